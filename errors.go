package main

import (
	"errors"
	"fmt"
	"html"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateCode    = errors.New("duplicate code")
	ErrNotFound         = errors.New("not found")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrTransport        = errors.New("transport failure")
	ErrPersistence      = errors.New("persistence failure")
)

// invalidInput carries the text shown to the admin, the sentinel is only
// used for classification.
type invalidInput struct {
	msg string
}

func (e *invalidInput) Error() string { return "invalid input: " + e.msg }

func (e *invalidInput) Is(target error) bool { return target == ErrInvalidInput }

func newInvalidInput(format string, args ...any) error {
	return &invalidInput{msg: fmt.Sprintf(format, args...)}
}

// UserMessage renders err for the person who caused it.
func UserMessage(err error) string {
	var ii *invalidInput
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ii):
		return "❌ " + ii.msg
	case errors.Is(err, ErrUnauthorized):
		return "⛔ This action is for admins only."
	case errors.Is(err, ErrDuplicateCode):
		return "❌ This code is already taken, send another one."
	case errors.Is(err, ErrNotFound):
		return "❌ Invalid movie code."
	case errors.Is(err, ErrInvalidSelection):
		return "❌ Unknown language, pick one of the buttons."
	case errors.Is(err, ErrPersistence):
		return "⚠️ Could not save your progress, nothing was changed. Please try again."
	case errors.Is(err, ErrTransport):
		return "⚠️ Telegram refused the request: " + html.EscapeString(err.Error())
	}
	return "⚠️ " + html.EscapeString(err.Error())
}
