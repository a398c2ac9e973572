package comment

// Replies nest one level below a root comment; velog threads max out at
// level 2 (root, reply, reply-to-reply) and deeper replies are rejected.
const maxLevel = 2

type CreateCommentDTO struct {
	PostID   string  `json:"post_id" binding:"required"`
	Text     string  `json:"text"    binding:"required"`
	ParentID *string `json:"parent_id"`
}

type UpdateCommentDTO struct {
	Text string `json:"text" binding:"required"`
}
