package valueobjects

import (
	"strings"
	"unicode/utf8"

	"blogify/domain/config"
	pkgerrors "blogify/pkg/errors"
)

// PostContent is a value object for the title and body of a post
type PostContent struct {
	title string
	body  string
}

// NewPostContent creates content with validation using default configuration
func NewPostContent(title, body string) (PostContent, error) {
	return NewPostContentWithConfig(title, body, config.DefaultDomainConfig())
}

// NewPostContentWithConfig trims both fields and checks their lengths in
// runes. All violations are reported together.
func NewPostContentWithConfig(title, body string, cfg *config.DomainConfig) (PostContent, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)

	errs := pkgerrors.NewValidationErrors()

	switch n := utf8.RuneCountInString(title); {
	case n < cfg.MinTitleLength:
		errs.AddFieldError("title", pkgerrors.ErrPostTitleTooShort)
	case n > cfg.MaxTitleLength:
		errs.AddFieldError("title", pkgerrors.ErrPostTitleTooLong)
	}

	switch n := utf8.RuneCountInString(body); {
	case n < cfg.MinBodyLength:
		errs.AddFieldError("body", pkgerrors.ErrPostBodyTooShort)
	case n > cfg.MaxBodyLength:
		errs.AddFieldError("body", pkgerrors.ErrPostBodyTooLong)
	}

	if errs.HasErrors() {
		return PostContent{}, errs
	}

	return PostContent{title: title, body: body}, nil
}

// Title returns the content title
func (c PostContent) Title() string {
	return c.title
}

// Body returns the content body
func (c PostContent) Body() string {
	return c.body
}

// IsEmpty checks if the content is empty
func (c PostContent) IsEmpty() bool {
	return c.title == "" && c.body == ""
}

// Summary returns the body truncated to maxLength runes
func (c PostContent) Summary(maxLength int) string {
	if utf8.RuneCountInString(c.body) <= maxLength {
		return c.body
	}
	runes := []rune(c.body)
	return strings.TrimSpace(string(runes[:maxLength])) + "..."
}
