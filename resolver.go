package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Resolver maps a requested code (and language for multi-language entries)
// to the file ids to deliver.
type Resolver struct {
	catalog Store[Entry]
}

func NewResolver(catalog Store[Entry]) *Resolver {
	return &Resolver{catalog: catalog}
}

func (o *Resolver) Lookup(ctx context.Context, code string) (Entry, error) {
	code = NormalizeCode(code)
	entry, ok, err := o.catalog.Get(ctx, code)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return entry, nil
}

// Resolve returns the files in stored order. Multi-language entries require
// language to name one of their labels (case-insensitive).
func (o *Resolver) Resolve(ctx context.Context, code, language string) ([]string, error) {
	entry, err := o.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if entry.Mode != ModeMulti {
		return append([]string(nil), entry.Files...), nil
	}
	language = strings.TrimSpace(language)
	if language == "" {
		return nil, fmt.Errorf("%w: no language given", ErrInvalidSelection)
	}
	for _, s := range entry.Sections {
		if strings.EqualFold(s.Label, language) {
			return append([]string(nil), s.Files...), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, language)
}

// MembershipGate checks that a user belongs to the configured channel. A
// nil channel lets everyone through.
type MembershipGate struct {
	transport Transport
	channel   any
}

func NewMembershipGate(transport Transport, channel any) *MembershipGate {
	return &MembershipGate{transport: transport, channel: channel}
}

func (o *MembershipGate) Check(ctx context.Context, userID int64) (bool, error) {
	if o.channel == nil {
		return true, nil
	}
	status, err := o.transport.GetMembership(ctx, o.channel, userID)
	membershipChecks.WithLabelValues(string(status)).Inc()
	if err != nil {
		return false, err
	}
	return status.Allowed(), nil
}

type DeliveryReport struct {
	Sent   int
	Failed []error
}

// Deliver sends every file once, in order. A failed send does not stop the
// rest and is not retried.
func Deliver(ctx context.Context, transport Transport, chat int64, files []string) DeliveryReport {
	var report DeliveryReport
	for i, fileID := range files {
		if _, err := transport.SendDocument(ctx, chat, fileID, ""); err != nil {
			slog.Error("send file failed", "chat_id", chat, "index", i, "err", err)
			report.Failed = append(report.Failed, fmt.Errorf("file %d: %w", i+1, err))
			filesSent.WithLabelValues("failed").Inc()
			continue
		}
		report.Sent++
		filesSent.WithLabelValues("sent").Inc()
	}
	return report
}
