// Package identity resolves the college affiliation of a requester from the
// student email address. Authentication itself is the job of the surrounding
// application; this package only parses an already validated identity.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidEmail: адрес не соответствует студенческому шаблону
var ErrInvalidEmail = errors.New("invalid student email")

// ErrUnknownCollege: буква колледжа не из каталога
var ErrUnknownCollege = errors.New("unknown college letter")

// DefaultPattern matches campus student addresses. The fifth character of the
// local part encodes the college.
const DefaultPattern = `^k[0-9]{3}[a-z][0-9]{4}@g\.neec\.ac\.jp$`

// DefaultCollegeCharIndex is the zero-based position of the college letter
// inside the student id.
const DefaultCollegeCharIndex = 4

// College describes one organizational group from the catalog config.
type College struct {
	Code string
	Name string
}

// Identity is a resolved requester.
type Identity struct {
	Email       string
	StudentID   string
	College     string
	CollegeName string
}

// Resolver parses student emails against a configured pattern and college map.
type Resolver struct {
	pattern   *regexp.Regexp
	charIndex int
	colleges  map[string]College
}

func NewResolver(pattern string, charIndex int, colleges map[string]College) (*Resolver, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile identity pattern: %w", err)
	}
	// Индекс 0 это всегда литера "k" в студенческом id, осмысленным он быть
	// не может: незаполненный конфиг даёт 0, подставляем дефолт.
	if charIndex <= 0 {
		charIndex = DefaultCollegeCharIndex
	}
	return &Resolver{pattern: re, charIndex: charIndex, colleges: colleges}, nil
}

// Resolve parses the email into an Identity. The email must match the
// configured pattern and contain a known college letter.
func (r *Resolver) Resolve(email string) (*Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !r.pattern.MatchString(email) {
		return nil, fmt.Errorf("%w: %q does not match the student address pattern", ErrInvalidEmail, email)
	}

	local := email[:strings.Index(email, "@")]
	if r.charIndex >= len(local) {
		return nil, fmt.Errorf("%w: %q is too short to carry a college letter", ErrInvalidEmail, email)
	}

	code := string(local[r.charIndex])
	college, ok := r.colleges[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", ErrUnknownCollege, code, email)
	}

	return &Identity{
		Email:       email,
		StudentID:   local,
		College:     college.Code,
		CollegeName: college.Name,
	}, nil
}

// CollegeName returns the display name for a college code, empty when unknown.
func (r *Resolver) CollegeName(code string) string {
	if c, ok := r.colleges[code]; ok {
		return c.Name
	}
	return ""
}
