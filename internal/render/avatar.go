package render

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"committeeDashboard/internal/viewmodel"
)

// Avatar is a person's picture, or the initial shown in its place.
type Avatar struct {
	Name    string
	Src     string
	Initial string
}

// AvatarInitial is the first character of name, uppercased, or "?" for a
// blank name.
func AvatarInitial(name string) string {
	name = strings.TrimSpace(name)
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

// AvatarFor builds the avatar of p. A nil p has no avatar.
func AvatarFor(p *viewmodel.PersonRef) *Avatar {
	if p == nil {
		return nil
	}
	return &Avatar{Name: p.Name, Src: p.Avatar, Initial: AvatarInitial(p.Name)}
}

// AvatarStack is a row of avatars plus an overflow count.
type AvatarStack struct {
	Avatars  []Avatar
	Overflow int
}

// MoreLabel is "+N" for the hidden members, or "".
func (s AvatarStack) MoreLabel() string {
	if s.Overflow <= 0 {
		return ""
	}
	return "+" + strconv.Itoa(s.Overflow)
}

// Stack shows up to limit people.
func Stack(people []viewmodel.PersonRef, limit int) AvatarStack {
	var s AvatarStack
	for i := range people {
		if i == limit {
			s.Overflow = len(people) - limit
			break
		}
		s.Avatars = append(s.Avatars, *AvatarFor(&people[i]))
	}
	return s
}
