package mail

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Config holds SMTP settings.
type Config struct {
	Enable bool   `yaml:"enable"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	From   string `yaml:"from"`
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender sends emails via SMTP.
type Sender struct {
	cfg Config
}

func New(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// Send dispatches an email. A disabled sender silently drops mail, which
// keeps auth flows working in development without an SMTP server.
func (s *Sender) Send(msg Message) error {
	if !s.cfg.Enable {
		return nil
	}

	host := s.cfg.Host
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	body := msg.HTML
	contentType := "text/html; charset=UTF-8"
	if body == "" {
		body = msg.Text
		contentType = "text/plain; charset=UTF-8"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\nContent-Type: %s\r\n\r\n", contentType)
	b.WriteString(body)

	addr := fmt.Sprintf("%s:%d", host, port)
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, host)
	}
	return smtp.SendMail(addr, auth, from, msg.To, []byte(b.String()))
}
