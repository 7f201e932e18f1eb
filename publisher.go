package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type Publication struct {
	Code         string
	Entry        Entry
	Preview      MessageRef
	Broadcast    *MessageRef
	BroadcastErr error
}

type PublisherOptions struct {
	BotUsername   string
	Broadcast     any
	CustomCaption bool
	ChannelName   string
}

// Publisher turns a finished session into a catalog entry and its public
// preview. The entry and the session removal succeed or fail together.
type Publisher struct {
	transport Transport
	catalog   Store[Entry]
	sessions  Store[Session]
	opts      PublisherOptions
	now       func() time.Time
}

func NewPublisher(transport Transport, catalog Store[Entry], sessions Store[Session], opts PublisherOptions) *Publisher {
	return &Publisher{transport: transport, catalog: catalog, sessions: sessions, opts: opts, now: time.Now}
}

func (o *Publisher) Publish(ctx context.Context, s *Session) (*Publication, error) {
	entry := NewEntry(s, o.now())
	if err := o.catalog.Create(ctx, s.Code, entry); err != nil {
		if errors.Is(err, ErrExists) {
			publishEvents.WithLabelValues("duplicate").Inc()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, s.Code)
		}
		return nil, err
	}
	slog.Info("commit entry", "code", s.Code, "mode", entry.Mode, "files", entry.FileCount(), "session_id", s.ID)

	preview, err := o.RenderPreview(ctx, s.ChatID, s.Code, entry)
	if err != nil {
		return nil, o.rollback(ctx, s.Code, err)
	}
	pub := &Publication{Code: s.Code, Entry: entry, Preview: preview}

	if o.opts.Broadcast != nil {
		ref, err := o.relayPreview(ctx, preview, s.Code, entry)
		if err != nil {
			slog.Error("broadcast preview failed", "code", s.Code, "err", err)
			pub.BroadcastErr = err
		} else {
			pub.Broadcast = &ref
		}
	}

	if _, err = o.sessions.Delete(ctx, sessionKey(s.AdminID)); err != nil {
		return nil, o.rollback(ctx, s.Code, err)
	}
	publishEvents.WithLabelValues("committed").Inc()
	return pub, nil
}

// RenderPreview sends the poster with its "get movie" button to chat.
func (o *Publisher) RenderPreview(ctx context.Context, chat any, code string, entry Entry) (MessageRef, error) {
	buttons := PreviewButtons(o.opts.BotUsername, code, entry.AltLink)
	return o.renderPoster(ctx, chat, entry, buttons)
}

// RenderPoster sends the bare poster, as shown to users before they pick a
// language.
func (o *Publisher) RenderPoster(ctx context.Context, chat any, entry Entry) (MessageRef, error) {
	return o.renderPoster(ctx, chat, entry, nil)
}

func (o *Publisher) renderPoster(ctx context.Context, chat any, entry Entry, buttons Buttons) (MessageRef, error) {
	if entry.PosterOrigin != nil {
		ref, err := o.transport.RelayMessage(ctx, chat, MessageRef{
			ChatID:    entry.PosterOrigin.ChatID,
			MessageID: entry.PosterOrigin.MessageID,
		})
		if err != nil || len(buttons) == 0 {
			return ref, err
		}
		return ref, o.transport.EditButtons(ctx, ref, buttons)
	}
	caption := PreviewCaption(entry, o.opts.CustomCaption, o.opts.ChannelName)
	if entry.PosterImage != "" {
		return o.transport.SendImage(ctx, chat, entry.PosterImage, caption, buttons)
	}
	return o.transport.SendMessage(ctx, chat, caption, buttons)
}

func (o *Publisher) relayPreview(ctx context.Context, preview MessageRef, code string, entry Entry) (MessageRef, error) {
	ref, err := o.transport.RelayMessage(ctx, o.opts.Broadcast, preview)
	if err != nil {
		return ref, err
	}
	return ref, o.transport.EditButtons(ctx, ref, PreviewButtons(o.opts.BotUsername, code, entry.AltLink))
}

func (o *Publisher) rollback(ctx context.Context, code string, cause error) error {
	publishEvents.WithLabelValues("rolled_back").Inc()
	if _, err := o.catalog.Delete(ctx, code); err != nil {
		slog.Error("rollback entry failed", "code", code, "err", err)
		return errors.Join(cause, err)
	}
	slog.Warn("rollback entry", "code", code, "cause", cause)
	return cause
}
