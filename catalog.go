package main

import (
	"regexp"
	"strings"
	"time"

	"github.com/life4/genesis/slices"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// MaxCodeLength keeps deep links and callback payloads that embed the code
// within Telegram's 64 byte limits.
const MaxCodeLength = 32

// Entry is a published movie. It is never updated in place; delete and
// publish again under a new code instead.
type Entry struct {
	Mode         Mode       `json:"mode"`
	Files        []string   `json:"files,omitempty"`
	Sections     []Section  `json:"sections,omitempty"`
	PosterMode   PosterMode `json:"poster_mode,omitempty"`
	PosterText   string     `json:"poster_text,omitempty"`
	PosterImage  string     `json:"poster_image,omitempty"`
	PosterOrigin *Origin    `json:"poster_origin,omitempty"`
	AltLink      string     `json:"alt_link,omitempty"`
	CreatedBy    int64      `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

func NewEntry(session *Session, now time.Time) Entry {
	return Entry{
		Mode:         session.Mode,
		Files:        session.Files,
		Sections:     session.Sections,
		PosterMode:   session.PosterMode,
		PosterText:   session.PosterText,
		PosterImage:  session.PosterImage,
		PosterOrigin: session.PosterOrigin,
		AltLink:      session.AltLink,
		CreatedBy:    session.AdminID,
		CreatedAt:    now,
	}
}

func (o Entry) Labels() []string {
	return slices.Map(o.Sections, func(el Section) string { return el.Label })
}

func (o Entry) FileCount() int {
	if o.Mode == ModeMulti {
		return slices.Reduce(o.Sections, 0, func(el Section, acc int) int { return acc + len(el.Files) })
	}
	return len(o.Files)
}

// NormalizeCode trims and lower-cases a code the way both admins and users
// type it.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func ValidCode(code string) bool {
	return len(code) <= MaxCodeLength && codePattern.MatchString(code)
}
