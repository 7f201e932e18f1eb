package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/life4/genesis/slices"
)

type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

type Stage string

const (
	StageAwaitingMode          Stage = "awaiting_mode"
	StageCollectingFiles       Stage = "collecting_files"
	StageAwaitingPosterChoice  Stage = "awaiting_poster_choice"
	StageCollectingPoster      Stage = "collecting_poster"
	StageCollectingCode        Stage = "collecting_code"
	StageAwaitingAltLinkChoice Stage = "awaiting_altlink_choice"
	StageCollectingAltLink     Stage = "collecting_altlink"
)

type PosterMode string

const (
	PosterCompose PosterMode = "compose"
	PosterRelay   PosterMode = "relay"
)

// Section is the ordered file list published under one language label.
type Section struct {
	Label string   `json:"label"`
	Files []string `json:"files"`
}

// Origin points at a message the transport can relay again by reference.
type Origin struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

type Session struct {
	ID           string     `json:"id"`
	AdminID      int64      `json:"admin_id"`
	ChatID       int64      `json:"chat_id"`
	Stage        Stage      `json:"stage"`
	Mode         Mode       `json:"mode,omitempty"`
	Files        []string   `json:"files,omitempty"`
	Sections     []Section  `json:"sections,omitempty"`
	CurrentLabel string     `json:"current_label,omitempty"`
	Seen         []string   `json:"seen,omitempty"`
	PosterMode   PosterMode `json:"poster_mode,omitempty"`
	PosterText   string     `json:"poster_text,omitempty"`
	PosterImage  string     `json:"poster_image,omitempty"`
	PosterOrigin *Origin    `json:"poster_origin,omitempty"`
	Code         string     `json:"code,omitempty"`
	AltLink      string     `json:"alt_link,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func sessionKey(adminID int64) string {
	return strconv.FormatInt(adminID, 10)
}

// HasFiles reports whether the session may leave the file collection stage.
func (o *Session) HasFiles() bool {
	if o.Mode == ModeMulti {
		return slices.Any(o.Sections, func(el Section) bool { return len(el.Files) > 0 })
	}
	return len(o.Files) > 0
}

func (o *Session) FileCount() int {
	if o.Mode == ModeMulti {
		return slices.Reduce(o.Sections, 0, func(el Section, acc int) int { return acc + len(el.Files) })
	}
	return len(o.Files)
}

func (o *Session) sectionIndex(label string) int {
	for i, s := range o.Sections {
		if strings.EqualFold(s.Label, label) {
			return i
		}
	}
	return -1
}
