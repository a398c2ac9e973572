package slack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Service posts best-effort messages to a Slack incoming webhook.
// Failures are returned but callers treat delivery as optional.
type Service struct {
	webhookURL string
	httpClient *http.Client
}

// New creates a Slack notifier. An empty webhook URL disables it.
func New(webhookURL string) *Service {
	return &Service{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook is configured.
func (s *Service) Enabled() bool { return s.webhookURL != "" }

type payload struct {
	Text string `json:"text"`
}

// Notify sends a plain text message.
func (s *Service) Notify(text string) error {
	if !s.Enabled() {
		return nil
	}
	body, err := json.Marshal(payload{Text: text})
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

// NotifySignup announces a new registration.
func (s *Service) NotifySignup(username, email string) error {
	return s.Notify(fmt.Sprintf("*New user* @%s (%s) joined", username, email))
}

// NotifyNewPost announces a freshly published post.
func (s *Service) NotifyNewPost(username, title, url string) error {
	return s.Notify(fmt.Sprintf("*New post* by @%s: <%s|%s>", username, url, title))
}
