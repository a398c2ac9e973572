package post

// Page size bounds for the cursor-paginated post listings.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// CreatePostDTO creates a post for the authenticated user. Tags are free
// text; they are resolved or created during the save.
type CreatePostDTO struct {
	Title            string   `json:"title" binding:"required"`
	Body             string   `json:"body"`
	ShortDescription string   `json:"short_description"`
	Thumbnail        string   `json:"thumbnail"`
	URLSlug          string   `json:"url_slug"`
	IsPrivate        bool     `json:"is_private"`
	IsTemp           bool     `json:"is_temp"`
	Tags             []string `json:"tags"`
}

// UpdatePostDTO updates a post. Nil fields are left untouched; a non-nil
// Tags replaces the whole tag set.
type UpdatePostDTO struct {
	Title            *string   `json:"title"`
	Body             *string   `json:"body"`
	ShortDescription *string   `json:"short_description"`
	Thumbnail        *string   `json:"thumbnail"`
	URLSlug          *string   `json:"url_slug"`
	IsPrivate        *bool     `json:"is_private"`
	IsTemp           *bool     `json:"is_temp"`
	Tags             *[]string `json:"tags"`
}
