package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type HandlerGroup struct {
	config    *Config
	transport Transport
	wizard    *Wizard
	publisher *Publisher
	resolver  *Resolver
	gate      *MembershipGate
	catalog   Store[Entry]
	sessions  Store[Session]
	http      *resty.Client
}
type Update struct {
	*models.Update
	bot *bot.Bot
	ctx context.Context
}

func (o Update) GetCommand() string {
	return strings.Split(strings.Split(o.Message.Text[1:], "@")[0], " ")[0]
}
func (o Update) GetArgumentString() string {
	arr := strings.Split(o.Message.Text, " ")
	if len(arr) <= 1 {
		return ""
	}
	return strings.Join(arr[1:], " ")
}
func (o Update) ChatID() int64 {
	if o.Message != nil {
		return o.Message.Chat.ID
	}
	if o.CallbackQuery != nil && o.CallbackQuery.Message != nil {
		return o.CallbackQuery.Message.Chat.ID
	}
	return o.UserID()
}
func (o Update) UserID() int64 {
	if o.Message != nil && o.Message.From != nil {
		return o.Message.From.ID
	}
	if o.CallbackQuery != nil {
		return o.CallbackQuery.Sender.ID
	}
	return 0
}
func (o Update) IsPrivate() bool {
	return o.Message != nil && o.Message.Chat.Type == "private"
}
func (o Update) AnswerCallback(text string) {
	if o.bot == nil || o.CallbackQuery == nil {
		return
	}
	_, err := o.bot.AnswerCallbackQuery(o.ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: o.CallbackQuery.ID,
		Text:            text,
	})
	if err != nil {
		slog.Error("cannot answer callback query", "err", err)
	}
}

// Input converts the message into what the upload wizard understands.
func (o Update) Input() Input {
	m := o.Message
	in := Input{ChatID: m.Chat.ID, MessageID: m.ID, Text: m.Text, Caption: m.Caption}
	switch {
	case m.Document != nil:
		in.FileID, in.FileKey = m.Document.FileID, m.Document.FileUniqueID
	case m.Video != nil:
		in.VideoID = m.Video.FileID
	}
	if len(m.Photo) > 0 {
		in.ImageID = m.Photo[len(m.Photo)-1].FileID
	}
	if m.ForwardFromChat != nil && m.ForwardFromMessageID != 0 {
		in.Origin = &Origin{ChatID: m.ForwardFromChat.ID, MessageID: m.ForwardFromMessageID}
	}
	return in
}

func (o *HandlerGroup) WrapHandlerGroupFunc(fun func(update *Update) error) bot.HandlerFunc {
	return func(ctx context.Context, botIns *bot.Bot, update *models.Update) {
		o.handle(&Update{Update: update, bot: botIns, ctx: ctx}, fun)
	}
}

func (o *HandlerGroup) handle(u *Update, fun func(update *Update) error) {
	defer func() {
		if err := recover(); err != nil {
			slog.Error("recover from panic", "err", err)
			o.replyError(u, fmt.Errorf("%v", err))
		}
	}()
	err := fun(u)
	if err == nil {
		return
	}
	if errors.Is(err, ErrUnauthorized) {
		slog.Debug("ignore non-admin", "user_id", u.UserID())
		return
	}
	slog.Info("handler error", "user_id", u.UserID(), "err", err)
	o.replyError(u, err)
}

func (o *HandlerGroup) replyError(u *Update, err error) {
	if _, sendErr := o.transport.SendMessage(u.ctx, u.ChatID(), UserMessage(err), nil); sendErr != nil {
		slog.Error("cannot send error msg", "err", sendErr)
	}
}

func (o *HandlerGroup) reply(u *Update, text string, buttons Buttons) error {
	_, err := o.transport.SendMessage(u.ctx, u.ChatID(), text, buttons)
	return err
}

func (o *HandlerGroup) requireAdmin(u *Update) error {
	if !o.config.IsAdmin(u.UserID()) {
		return ErrUnauthorized
	}
	return nil
}

func (o *HandlerGroup) replyStep(u *Update, step Step) error {
	switch {
	case step.Publication != nil:
		return o.reply(u, BuildPublishedText(step.Publication), nil)
	case step.Cancelled:
		return o.reply(u, "🚫 Upload cancelled. Nothing was published.", nil)
	case step.Session != nil:
		text, buttons := BuildStagePrompt(step.Session)
		return o.reply(u, text, buttons)
	}
	return nil
}

// Start is the user entry point: /start <code> [language].
func (o *HandlerGroup) Start(update *Update) error {
	args := strings.Fields(update.GetArgumentString())
	if len(args) == 0 {
		return o.reply(update, BuildStartUsage(), nil)
	}
	return o.deliver(update, NormalizeCode(args[0]), strings.Join(args[1:], " "))
}

func (o *HandlerGroup) deliver(u *Update, code, language string) error {
	if !ValidCode(code) {
		deliveryRequests.WithLabelValues("not_found").Inc()
		return fmt.Errorf("%w: %q", ErrNotFound, code)
	}
	allowed, err := o.gate.Check(u.ctx, u.UserID())
	if err != nil {
		slog.Warn("membership check failed", "user_id", u.UserID(), "err", err)
		deliveryRequests.WithLabelValues("gate_error").Inc()
		return o.reply(u, UserMessage(err)+"\n"+BuildJoinText(), JoinButtons(o.config.MainChannelLink, code, language))
	}
	if !allowed {
		deliveryRequests.WithLabelValues("gated").Inc()
		return o.reply(u, BuildJoinText(), JoinButtons(o.config.MainChannelLink, code, language))
	}
	entry, err := o.resolver.Lookup(u.ctx, code)
	if err != nil {
		deliveryRequests.WithLabelValues("not_found").Inc()
		return err
	}
	if entry.Mode == ModeMulti && strings.TrimSpace(language) == "" {
		deliveryRequests.WithLabelValues("language_prompt").Inc()
		return o.offerLanguages(u, code, entry)
	}
	files, err := o.resolver.Resolve(u.ctx, code, language)
	if errors.Is(err, ErrInvalidSelection) {
		deliveryRequests.WithLabelValues("invalid_selection").Inc()
		return o.reply(u, UserMessage(err), LanguageButtons(code, entry.Labels()))
	}
	if err != nil {
		return err
	}
	if len(files) == 0 {
		deliveryRequests.WithLabelValues("empty").Inc()
		return o.reply(u, "ℹ️ No files available.", nil)
	}
	report := Deliver(u.ctx, o.transport, u.ChatID(), files)
	slog.Info("deliver files", "user_id", u.UserID(), "code", code, "language", language,
		"sent", report.Sent, "failed", len(report.Failed))
	if text := BuildDeliveryReport(report); text != "" {
		deliveryRequests.WithLabelValues("partial").Inc()
		return o.reply(u, text, nil)
	}
	deliveryRequests.WithLabelValues("delivered").Inc()
	return nil
}

func (o *HandlerGroup) offerLanguages(u *Update, code string, entry Entry) error {
	if _, err := o.publisher.RenderPoster(u.ctx, u.ChatID(), entry); err != nil {
		slog.Error("cannot show poster", "code", code, "err", err)
	}
	return o.reply(u, "📂 Select a language to receive its files:", LanguageButtons(code, entry.Labels()))
}

func (o *HandlerGroup) Upload(update *Update) error {
	if err := o.requireAdmin(update); err != nil {
		return err
	}
	step, err := o.wizard.Begin(update.ctx, update.UserID(), update.ChatID())
	if err != nil {
		return err
	}
	return o.replyStep(update, step)
}

func (o *HandlerGroup) Done(update *Update) error {
	if err := o.requireAdmin(update); err != nil {
		return err
	}
	step, err := o.wizard.Done(update.ctx, update.UserID())
	if err != nil {
		return err
	}
	return o.replyStep(update, step)
}

func (o *HandlerGroup) Cancel(update *Update) error {
	if err := o.requireAdmin(update); err != nil {
		return err
	}
	step, err := o.wizard.Cancel(update.ctx, update.UserID())
	if err != nil {
		return err
	}
	return o.replyStep(update, step)
}

func (o *HandlerGroup) Delete(update *Update) error {
	if err := o.requireAdmin(update); err != nil {
		return err
	}
	code := NormalizeCode(update.GetArgumentString())
	if code == "" {
		return newInvalidInput("Usage: /delete &lt;code&gt;")
	}
	deleted, err := o.catalog.Delete(update.ctx, code)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	slog.Info("delete entry", "code", code, "admin_id", update.UserID())
	return o.reply(update, "🗑 Deleted <code>"+code+"</code>", nil)
}

func (o *HandlerGroup) Status(update *Update) error {
	if err := o.requireAdmin(update); err != nil {
		return err
	}
	codes, err := o.catalog.Keys(update.ctx)
	if err != nil {
		return err
	}
	pending, err := o.sessions.Keys(update.ctx)
	if err != nil {
		return err
	}
	reach := ""
	if o.config.KeepAlive.URL != "" {
		ctx, cancel := context.WithTimeout(update.ctx, 10*time.Second)
		defer cancel()
		if reach, err = CheckKeepAlive(ctx, o.http, o.config.KeepAlive.URL); err != nil {
			reach = "unreachable (" + err.Error() + ")"
		}
	}
	return o.reply(update, BuildStatusText(len(codes), len(pending), reach), nil)
}

// Callback routes inline button presses.
func (o *HandlerGroup) Callback(update *Update) error {
	defer update.AnswerCallback("")
	data := update.CallbackQuery.Data
	switch {
	case strings.HasPrefix(data, callbackRetry):
		code, language, _ := strings.Cut(strings.TrimPrefix(data, callbackRetry), ":")
		return o.deliver(update, code, language)
	case strings.HasPrefix(data, callbackLang):
		return o.pickLanguage(update, strings.TrimPrefix(data, callbackLang))
	case strings.HasPrefix(data, callbackMode):
		return o.wizardButton(update, func(ctx context.Context, adminID int64) (Step, error) {
			return o.wizard.ChooseMode(ctx, adminID, Mode(strings.TrimPrefix(data, callbackMode)))
		})
	case strings.HasPrefix(data, callbackPoster):
		return o.wizardButton(update, func(ctx context.Context, adminID int64) (Step, error) {
			return o.wizard.ChoosePosterMode(ctx, adminID, PosterMode(strings.TrimPrefix(data, callbackPoster)))
		})
	case strings.HasPrefix(data, callbackAlt):
		return o.wizardButton(update, func(ctx context.Context, adminID int64) (Step, error) {
			return o.wizard.ChooseAltLink(ctx, adminID, AltLinkChoice(strings.TrimPrefix(data, callbackAlt)))
		})
	}
	slog.Warn("unknown callback", "data", data)
	return nil
}

func (o *HandlerGroup) pickLanguage(u *Update, payload string) error {
	code, rawIndex, _ := strings.Cut(payload, ":")
	entry, err := o.resolver.Lookup(u.ctx, code)
	if err != nil {
		return err
	}
	i, err := strconv.Atoi(rawIndex)
	if err != nil || i < 0 || i >= len(entry.Sections) {
		return fmt.Errorf("%w: %q", ErrInvalidSelection, rawIndex)
	}
	return o.deliver(u, code, entry.Sections[i].Label)
}

func (o *HandlerGroup) wizardButton(u *Update, fn func(ctx context.Context, adminID int64) (Step, error)) error {
	if err := o.requireAdmin(u); err != nil {
		return err
	}
	step, err := fn(u.ctx, u.UserID())
	if err != nil {
		return err
	}
	if m := u.CallbackQuery.Message; m != nil {
		if err = o.transport.EditButtons(u.ctx, MessageRef{ChatID: m.Chat.ID, MessageID: m.ID}, nil); err != nil {
			slog.Warn("cannot clear buttons", "err", err)
		}
	}
	return o.replyStep(u, step)
}

// Default handles every message no command matched.
func (o *HandlerGroup) Default(update *Update) error {
	if update.Message == nil {
		return nil
	}
	if !o.config.IsAdmin(update.UserID()) {
		if update.IsPrivate() {
			return o.reply(update, BuildStartUsage(), nil)
		}
		return nil
	}
	if !update.IsPrivate() {
		return nil
	}
	if strings.HasPrefix(update.Message.Text, "/") {
		return newInvalidInput("Unknown command /%s.", html.EscapeString(update.GetCommand()))
	}
	step, err := o.wizard.Handle(update.ctx, update.UserID(), update.Input())
	if err != nil {
		return err
	}
	if step.Session != nil && step.Session.Stage == StageCollectingFiles {
		return o.reply(update, BuildProgressText(step.Session), nil)
	}
	return o.replyStep(update, step)
}
