package validators

import (
	"net/url"
	"strings"

	"blogify/pkg/errors"
)

// PathValidator checks application paths used for navigation and route
// policies.
type PathValidator struct{}

// NewPathValidator creates a new path validator
func NewPathValidator() *PathValidator {
	return &PathValidator{}
}

// SafeLocalPath returns raw when it is an absolute path on this
// application, and false otherwise. Anything carrying a scheme or host, or
// a protocol-relative "//" form, is rejected.
func (v *PathValidator) SafeLocalPath(raw string) (string, bool) {
	next := strings.TrimSpace(raw)
	if next == "" || !strings.HasPrefix(next, "/") {
		return "", false
	}
	if strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "", false
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" || parsed.Path == "" {
		return "", false
	}
	local := parsed.Path
	if parsed.RawQuery != "" {
		local += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		local += "#" + parsed.EscapedFragment()
	}
	return local, true
}

// ValidateLocation rejects navigation targets that are not local paths.
func (v *PathValidator) ValidateLocation(raw string) error {
	if _, ok := v.SafeLocalPath(raw); !ok {
		validationErrors := errors.NewValidationErrors()
		validationErrors.Add("path", "must be an absolute path on this site")
		return validationErrors
	}
	return nil
}

// ValidatePrefixes checks a set of route prefixes under the given field name.
func (v *PathValidator) ValidatePrefixes(field string, prefixes []string) error {
	validationErrors := errors.NewValidationErrors()

	for _, p := range prefixes {
		if !strings.HasPrefix(p, "/") {
			validationErrors.Add(field, "route prefix must start with '/': "+p)
			continue
		}
		if p != "/" && strings.HasSuffix(p, "/") {
			validationErrors.Add(field, "route prefix must not end with '/': "+p)
		}
	}

	if validationErrors.HasErrors() {
		return validationErrors
	}
	return nil
}

// HasPathPrefix reports whether path lies under prefix on a segment
// boundary, so "/home" matches "/home" and "/home/posts" but not "/homely".
func HasPathPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}
