package commands

import "blogify/pkg/utils"

// SignInCommand signs the shell in with an email and password.
type SignInCommand struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Validate validates the command
func (c SignInCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SignOutCommand ends the shell's session.
type SignOutCommand struct{}

// Validate always succeeds.
func (SignOutCommand) Validate() error {
	return nil
}
