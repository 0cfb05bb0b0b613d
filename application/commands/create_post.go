package commands

import "blogify/pkg/utils"

// CreatePostCommand asks for a new post authored by the signed-in user.
// Length rules are applied by the handler against the domain config.
type CreatePostCommand struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

// Validate validates the command
func (c CreatePostCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CreatePostResult is what a confirmed creation hands back.
type CreatePostResult struct {
	PostID     string `json:"post_id"`
	RedirectTo string `json:"redirect_to"`
}
