package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/life4/genesis/slices"
)

var altLinkPattern = regexp.MustCompile(`^https?://`)

// ErrNoSession is returned when an admin sends wizard input without an
// upload in progress.
var ErrNoSession error = &invalidInput{msg: "No upload in progress. Send /upload to start one."}

// Input is one admin message as seen by the wizard. Only the fields the
// message actually carries are set.
type Input struct {
	ChatID    int64
	MessageID int
	Text      string
	Caption   string
	FileID    string
	FileKey   string
	ImageID   string
	VideoID   string
	Origin    *Origin
}

func (o Input) hasMedia() bool {
	return o.FileID != "" || o.ImageID != "" || o.VideoID != ""
}

type AltLinkChoice string

const (
	AltLinkSkip    AltLinkChoice = "skip"
	AltLinkProvide AltLinkChoice = "provide"
	AltLinkCancel  AltLinkChoice = "cancel"
)

// Step reports where a transition left the admin. Session is nil once the
// session is gone, either published or cancelled.
type Step struct {
	Session     *Session
	Publication *Publication
	Cancelled   bool
}

// Wizard drives upload sessions from mode selection to a published entry.
// All transitions of one admin are serialized; a transition is visible to
// the next one only after its session has been saved.
type Wizard struct {
	sessions  Store[Session]
	catalog   Store[Entry]
	publisher *Publisher
	locks     keyedMutex
	now       func() time.Time
}

func NewWizard(sessions Store[Session], catalog Store[Entry], publisher *Publisher) *Wizard {
	return &Wizard{sessions: sessions, catalog: catalog, publisher: publisher, now: time.Now}
}

// transition returns publish=true when the session is complete and must be
// handed to the publisher instead of being saved.
type transition func(ctx context.Context, s *Session) (publish bool, err error)

func (o *Wizard) Begin(ctx context.Context, adminID, chatID int64) (Step, error) {
	key := sessionKey(adminID)
	defer o.locks.Lock(key)()
	existing, ok, err := o.sessions.Get(ctx, key)
	if err != nil {
		return Step{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if ok {
		return Step{}, newInvalidInput("An upload is already in progress (%s). Finish it or send /cancel first.",
			stageTitle(existing.Stage))
	}
	now := o.now()
	s := Session{
		ID:        uuid.New().String(),
		AdminID:   adminID,
		ChatID:    chatID,
		Stage:     StageAwaitingMode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = o.sessions.Put(ctx, key, s); err != nil {
		return Step{}, err
	}
	slog.Info("create session", "admin_id", adminID, "session_id", s.ID)
	wizardTransitions.WithLabelValues("", string(s.Stage)).Inc()
	return Step{Session: &s}, nil
}

func (o *Wizard) ChooseMode(ctx context.Context, adminID int64, mode Mode) (Step, error) {
	return o.apply(ctx, adminID, func(_ context.Context, s *Session) (bool, error) {
		if s.Stage != StageAwaitingMode {
			return false, wrongStage(s)
		}
		if mode != ModeSingle && mode != ModeMulti {
			return false, newInvalidInput("Unknown mode %q, pick one of the buttons.", mode)
		}
		s.Mode = mode
		s.Stage = StageCollectingFiles
		return false, nil
	})
}

// Handle routes a free-form admin message by the current stage.
func (o *Wizard) Handle(ctx context.Context, adminID int64, in Input) (Step, error) {
	return o.apply(ctx, adminID, func(ctx context.Context, s *Session) (bool, error) {
		switch s.Stage {
		case StageCollectingFiles:
			return false, o.collectFile(s, in)
		case StageCollectingPoster:
			return false, o.collectPoster(s, in)
		case StageCollectingCode:
			return false, o.collectCode(ctx, s, in)
		case StageCollectingAltLink:
			return o.collectAltLink(s, in)
		}
		return false, wrongStage(s)
	})
}

func (o *Wizard) Done(ctx context.Context, adminID int64) (Step, error) {
	return o.apply(ctx, adminID, func(_ context.Context, s *Session) (bool, error) {
		if s.Stage != StageCollectingFiles {
			return false, wrongStage(s)
		}
		if !s.HasFiles() {
			if s.Mode == ModeMulti {
				return false, newInvalidInput("No files yet. Send a language label, then its files, then /done.")
			}
			return false, newInvalidInput("No files yet. Send at least one file, then /done.")
		}
		// labels declared without files are not offered to users
		s.Sections = slices.Filter(s.Sections, func(el Section) bool { return len(el.Files) > 0 })
		s.CurrentLabel = ""
		s.Stage = StageAwaitingPosterChoice
		return false, nil
	})
}

func (o *Wizard) ChoosePosterMode(ctx context.Context, adminID int64, mode PosterMode) (Step, error) {
	return o.apply(ctx, adminID, func(_ context.Context, s *Session) (bool, error) {
		if s.Stage != StageAwaitingPosterChoice {
			return false, wrongStage(s)
		}
		if mode != PosterCompose && mode != PosterRelay {
			return false, newInvalidInput("Unknown poster mode %q, pick one of the buttons.", mode)
		}
		s.PosterMode = mode
		s.Stage = StageCollectingPoster
		return false, nil
	})
}

func (o *Wizard) ChooseAltLink(ctx context.Context, adminID int64, choice AltLinkChoice) (Step, error) {
	if choice == AltLinkCancel {
		return o.cancel(ctx, adminID, StageAwaitingAltLinkChoice)
	}
	return o.apply(ctx, adminID, func(_ context.Context, s *Session) (bool, error) {
		if s.Stage != StageAwaitingAltLinkChoice {
			return false, wrongStage(s)
		}
		switch choice {
		case AltLinkSkip:
			return true, nil
		case AltLinkProvide:
			s.Stage = StageCollectingAltLink
			return false, nil
		}
		return false, newInvalidInput("Unknown choice %q, pick one of the buttons.", choice)
	})
}

// Cancel discards the admin's session in any stage. The catalog is not
// touched.
func (o *Wizard) Cancel(ctx context.Context, adminID int64) (Step, error) {
	return o.cancel(ctx, adminID, "")
}

func (o *Wizard) cancel(ctx context.Context, adminID int64, expect Stage) (Step, error) {
	key := sessionKey(adminID)
	defer o.locks.Lock(key)()
	s, ok, err := o.sessions.Get(ctx, key)
	if err != nil {
		return Step{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return Step{}, ErrNoSession
	}
	if expect != "" && s.Stage != expect {
		return Step{}, wrongStage(&s)
	}
	if _, err = o.sessions.Delete(ctx, key); err != nil {
		return Step{}, err
	}
	slog.Info("cancel session", "admin_id", adminID, "session_id", s.ID, "stage", s.Stage)
	wizardTransitions.WithLabelValues(string(s.Stage), "cancelled").Inc()
	return Step{Cancelled: true}, nil
}

// Session returns the admin's current session, if any.
func (o *Wizard) Session(ctx context.Context, adminID int64) (*Session, error) {
	s, ok, err := o.sessions.Get(ctx, sessionKey(adminID))
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (o *Wizard) apply(ctx context.Context, adminID int64, fn transition) (Step, error) {
	key := sessionKey(adminID)
	defer o.locks.Lock(key)()
	s, ok, err := o.sessions.Get(ctx, key)
	if err != nil {
		return Step{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return Step{}, ErrNoSession
	}
	from := s.Stage
	publish, err := fn(ctx, &s)
	if err != nil {
		wizardRejections.WithLabelValues(string(from)).Inc()
		slog.Info("reject input", "admin_id", adminID, "stage", from, "err", err)
		return Step{}, err
	}
	if publish {
		return o.publish(ctx, &s)
	}
	s.UpdatedAt = o.now()
	if err = o.sessions.Put(ctx, key, s); err != nil {
		return Step{}, err
	}
	if from != s.Stage {
		slog.Info("advance session", "admin_id", adminID, "session_id", s.ID, "from", from, "to", s.Stage)
		wizardTransitions.WithLabelValues(string(from), string(s.Stage)).Inc()
	}
	return Step{Session: &s}, nil
}

// publish must be called with the admin's lock held.
func (o *Wizard) publish(ctx context.Context, s *Session) (Step, error) {
	pub, err := o.publisher.Publish(ctx, s)
	if err == nil {
		wizardTransitions.WithLabelValues(string(s.Stage), "committed").Inc()
		return Step{Publication: pub}, nil
	}
	if !errors.Is(err, ErrDuplicateCode) {
		return Step{}, err
	}
	// Another admin committed the same code first. Send this one back to
	// the code stage with everything else kept.
	key := sessionKey(s.AdminID)
	stored, ok, getErr := o.sessions.Get(ctx, key)
	if getErr != nil || !ok {
		return Step{}, err
	}
	from := stored.Stage
	stored.Code = ""
	stored.AltLink = ""
	stored.Stage = StageCollectingCode
	stored.UpdatedAt = o.now()
	if putErr := o.sessions.Put(ctx, key, stored); putErr != nil {
		return Step{}, errors.Join(err, putErr)
	}
	wizardTransitions.WithLabelValues(string(from), string(stored.Stage)).Inc()
	return Step{Session: &stored}, err
}

func (o *Wizard) collectFile(s *Session, in Input) error {
	if in.VideoID != "" {
		return newInvalidInput("Videos cannot be delivered as movie files. Send the video as a document (📎 File), then /done.")
	}
	if in.FileID == "" {
		if s.Mode == ModeSingle {
			if in.ImageID != "" {
				return newInvalidInput("Photos are not accepted as movie files. Send documents, then /done.")
			}
			return newInvalidInput("Send movie files as documents, then /done when finished.")
		}
		if in.ImageID != "" || in.Text == "" {
			return newInvalidInput("Send a language label as text, then its files.")
		}
		label := strings.TrimSpace(in.Text)
		if label == "" {
			return newInvalidInput("The language label cannot be empty.")
		}
		if i := s.sectionIndex(label); i >= 0 {
			s.CurrentLabel = s.Sections[i].Label
			return nil
		}
		s.Sections = append(s.Sections, Section{Label: label, Files: []string{}})
		s.CurrentLabel = label
		return nil
	}
	key := in.FileKey
	if key == "" {
		key = in.FileID
	}
	if slices.Contains(s.Seen, key) {
		return newInvalidInput("This file was already added. Send the next one or /done.")
	}
	switch s.Mode {
	case ModeSingle:
		s.Files = append(s.Files, in.FileID)
	case ModeMulti:
		i := s.sectionIndex(s.CurrentLabel)
		if s.CurrentLabel == "" || i < 0 {
			return newInvalidInput("Send a language label (e.g. Hindi) before its files.")
		}
		s.Sections[i].Files = append(s.Sections[i].Files, in.FileID)
	default:
		return wrongStage(s)
	}
	s.Seen = append(s.Seen, key)
	return nil
}

func (o *Wizard) collectPoster(s *Session, in Input) error {
	text := in.Text
	if in.hasMedia() {
		text = in.Caption
	}
	text = strings.TrimSpace(text)
	// a forwarded post is relayed as is, whatever it carries
	relayed := s.PosterMode == PosterRelay && in.Origin != nil
	if !relayed && in.ImageID == "" && (text == "" || in.hasMedia()) {
		return newInvalidInput("Send the poster as a photo (caption optional) or as a text message.")
	}
	s.PosterText = text
	s.PosterImage = in.ImageID
	if s.PosterMode == PosterRelay {
		if in.Origin != nil {
			origin := *in.Origin
			s.PosterOrigin = &origin
		} else {
			s.PosterOrigin = &Origin{ChatID: in.ChatID, MessageID: in.MessageID}
		}
	}
	s.Stage = StageCollectingCode
	return nil
}

func (o *Wizard) collectCode(ctx context.Context, s *Session, in Input) error {
	if in.hasMedia() {
		return newInvalidInput("Send the movie code as a text message (e.g. kgf2).")
	}
	code := NormalizeCode(in.Text)
	if code == "" {
		return newInvalidInput("The code cannot be empty. Send a code such as kgf2.")
	}
	if len(code) > MaxCodeLength {
		return newInvalidInput("The code may be at most %d characters long. Try a shorter one.", MaxCodeLength)
	}
	if !ValidCode(code) {
		return newInvalidInput("The code may only contain letters and digits. Try another one.")
	}
	_, exists, err := o.catalog.Get(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, code)
	}
	s.Code = code
	s.Stage = StageAwaitingAltLinkChoice
	return nil
}

func (o *Wizard) collectAltLink(s *Session, in Input) (bool, error) {
	link := strings.TrimSpace(in.Text)
	if in.hasMedia() || !altLinkPattern.MatchString(link) {
		return false, newInvalidInput("The alternate link must start with http:// or https://. Send it again.")
	}
	s.AltLink = link
	return true, nil
}

func wrongStage(s *Session) error {
	return newInvalidInput("That does not fit the current step (%s). %s", stageTitle(s.Stage), stageHint(s))
}
