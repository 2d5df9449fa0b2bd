package mutation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// Validator collects field errors; the first one wins.
type Validator struct {
	errs []*ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// Add records a field error.
func (v *Validator) Add(field, description string) *Validator {
	v.errs = append(v.errs, Invalid(field, description))
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// Err returns the first error, or nil.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return v.errs[0]
}

// Required checks that value is not blank.
func (v *Validator) Required(value, field, description string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.Add(field, description)
	}
	return v
}

// Length checks string length constraints
func (v *Validator) Length(value, field string, max int) *Validator {
	if max > 0 && utf8.RuneCountInString(value) > max {
		v.Add(field, fmt.Sprintf("%s must be no more than %d characters long", label(field), max))
	}
	return v
}

// Email validates email format
func (v *Validator) Email(email, field string) *Validator {
	if email == "" {
		return v
	}
	if !emailRegex.MatchString(email) || len(email) > 320 {
		v.Add(field, fmt.Sprintf("%s must be a valid email address", label(field)))
	}
	return v
}

// URL validates an http(s) link.
func (v *Validator) URL(rawURL, field string) *Validator {
	if rawURL == "" {
		return v
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.Add(field, fmt.Sprintf("%s must be a valid URL", label(field)))
	}
	return v
}

// OneOf checks value against an enumeration.
func (v *Validator) OneOf(value, field string, allowed ...string) *Validator {
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.Add(field, fmt.Sprintf("%s must be one of: %s", label(field), strings.Join(allowed, ", ")))
	return v
}

// SafeText rejects control characters other than whitespace.
func (v *Validator) SafeText(value, field string) *Validator {
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			v.Add(field, fmt.Sprintf("%s contains invalid characters", label(field)))
			break
		}
	}
	return v
}

// Extension checks a file name against allowed extensions.
func (v *Validator) Extension(name, field string, allowed map[string]bool) *Validator {
	if name == "" {
		return v
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if !allowed[ext] {
		v.Add(field, "This file type is not supported.")
	}
	return v
}

// Sanitize trims input and strips control characters.
func Sanitize(input string) string {
	input = strings.TrimSpace(input)
	var b strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 10000 {
		s = s[:10000]
	}
	return s
}

func label(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return "Value"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
