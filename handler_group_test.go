package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-telegram/bot/models"
)

const testUser int64 = 500

func newTestHandlerGroup(t *testing.T) (*HandlerGroup, *testEnv) {
	t.Helper()
	env := newTestEnv(t, PublisherOptions{})
	cfg := &Config{
		BotUsername:     "MollywoodBot",
		AdminIDs:        []int64{testAdmin},
		MainChannel:     "@mollywood",
		MainChannelLink: "https://t.me/mollywood",
	}
	hg := NewHandlerGroup(cfg, env.transport, env.catalog, env.sessions)
	hg.wizard.now = env.wizard.now
	return hg, env
}

func messageUpdate(userID int64, text string) *Update {
	return &Update{
		Update: &models.Update{Message: &models.Message{
			ID:   1,
			Chat: models.Chat{ID: userID, Type: "private"},
			From: &models.User{ID: userID},
			Text: text,
		}},
		ctx: context.Background(),
	}
}

func documentUpdate(userID int64, id string) *Update {
	u := messageUpdate(userID, "")
	u.Message.Document = &models.Document{FileID: "file-" + id, FileUniqueID: "key-" + id}
	return u
}

func callbackUpdate(userID int64, data string) *Update {
	return &Update{
		Update: &models.Update{CallbackQuery: &models.CallbackQuery{
			ID:      "cb",
			Sender:  models.User{ID: userID},
			Data:    data,
			Message: &models.Message{ID: 77, Chat: models.Chat{ID: userID, Type: "private"}},
		}},
		ctx: context.Background(),
	}
}

func seedCatalog(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	entries := map[string]Entry{
		"abc123": {Mode: ModeSingle, Files: []string{"f1", "f2"}, PosterMode: PosterCompose, PosterText: "Single"},
		"xy9": {Mode: ModeMulti, Sections: []Section{
			{Label: "Hindi", Files: []string{"h1", "h2"}},
			{Label: "Tamil", Files: []string{"t1"}},
		}, PosterMode: PosterCompose, PosterText: "Multi"},
		"empty": {Mode: ModeSingle, Files: []string{}},
	}
	for code, entry := range entries {
		if err := env.catalog.Put(ctx, code, entry); err != nil {
			t.Fatalf("seed %s: %v", code, err)
		}
	}
}

func documentIDs(tr *fakeTransport) []string {
	var ids []string
	for _, m := range tr.byMethod("SendDocument") {
		ids = append(ids, m.FileID)
	}
	return ids
}

func TestUpdateGetCommand(t *testing.T) {
	tests := []struct {
		text, command, args string
	}{
		{"/start abc123", "start", "abc123"},
		{"/start@MollywoodBot xy9 Hindi", "start", "xy9 Hindi"},
		{"/done", "done", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			u := messageUpdate(1, tt.text)
			if got := u.GetCommand(); got != tt.command {
				t.Errorf("Expected command %q, got %q", tt.command, got)
			}
			if got := u.GetArgumentString(); got != tt.args {
				t.Errorf("Expected args %q, got %q", tt.args, got)
			}
		})
	}
}

func TestUpdateInput(t *testing.T) {
	u := messageUpdate(1, "")
	u.Message.Caption = "Leo (2023)"
	u.Message.Photo = []models.PhotoSize{{FileID: "small"}, {FileID: "large"}}
	u.Message.ForwardFromChat = &models.Chat{ID: -100}
	u.Message.ForwardFromMessageID = 12

	in := u.Input()
	if in.ImageID != "large" || in.Caption != "Leo (2023)" || in.FileID != "" {
		t.Errorf("Expected largest photo with caption, got %+v", in)
	}
	if in.Origin == nil || in.Origin.ChatID != -100 || in.Origin.MessageID != 12 {
		t.Errorf("Expected forward origin -100/12, got %+v", in.Origin)
	}

	video := messageUpdate(1, "")
	video.Message.Video = &models.Video{FileID: "vid", FileUniqueID: "vid-key"}
	in = video.Input()
	if in.VideoID != "vid" || in.FileID != "" {
		t.Errorf("Expected video to be kept apart from document files, got %+v", in)
	}

	in = documentUpdate(1, "a").Input()
	if in.FileID != "file-a" || in.FileKey != "key-a" {
		t.Errorf("Expected document ids, got %+v", in)
	}
}

func TestStartDeliversSingleEntry(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	seedCatalog(t, env)

	hg.handle(messageUpdate(testUser, "/start ABC123"), hg.Start)
	if got := strings.Join(documentIDs(env.transport), ","); got != "f1,f2" {
		t.Errorf("Expected f1,f2 in order, got %s", got)
	}
	for _, m := range env.transport.byMethod("SendDocument") {
		if m.Chat != testUser {
			t.Errorf("Expected delivery to %d, got %v", testUser, m.Chat)
		}
	}
}

func TestStartWithoutCode(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	hg.handle(messageUpdate(testUser, "/start"), hg.Start)
	if got := env.transport.last().Text; got != BuildStartUsage() {
		t.Errorf("Expected usage, got %q", got)
	}
}

func TestStartUnknownCode(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	hg.handle(messageUpdate(testUser, "/start nope"), hg.Start)
	if got := env.transport.last().Text; got != "❌ Invalid movie code." {
		t.Errorf("Expected invalid code reply, got %q", got)
	}
}

func TestStartRejectsMalformedCodeBeforeGate(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	env.transport.membership = MembershipNone

	for _, code := range []string{strings.Repeat("a", MaxCodeLength+1), "kgf-2"} {
		hg.handle(messageUpdate(testUser, "/start "+code+" Hindi"), hg.Start)
		reply := env.transport.last()
		if reply.Text != "❌ Invalid movie code." || len(reply.Buttons) != 0 {
			t.Errorf("Expected invalid code reply for %q, got %+v", code, reply)
		}
	}
}

func TestStartEmptyEntry(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	seedCatalog(t, env)
	hg.handle(messageUpdate(testUser, "/start empty"), hg.Start)
	if got := env.transport.last().Text; got != "ℹ️ No files available." {
		t.Errorf("Expected no files reply, got %q", got)
	}
}

func TestMembershipGateAndRetry(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	seedCatalog(t, env)
	env.transport.membership = MembershipNone

	hg.handle(messageUpdate(testUser, "/start abc123"), hg.Start)
	if ids := documentIDs(env.transport); len(ids) != 0 {
		t.Fatalf("Expected nothing delivered to a non-member, got %v", ids)
	}
	prompt := env.transport.last()
	if prompt.Text != BuildJoinText() {
		t.Errorf("Expected join prompt, got %q", prompt.Text)
	}
	if len(prompt.Buttons) != 2 || prompt.Buttons[0][0].URL != "https://t.me/mollywood" || prompt.Buttons[1][0].Data != "retry:abc123" {
		t.Errorf("Unexpected join buttons %+v", prompt.Buttons)
	}

	env.transport.membership = MembershipAdmin
	hg.handle(callbackUpdate(testUser, "retry:abc123"), hg.Callback)
	if got := strings.Join(documentIDs(env.transport), ","); got != "f1,f2" {
		t.Errorf("Expected delivery after joining, got %s", got)
	}
}

func TestMembershipCheckErrorShowsJoinPrompt(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	seedCatalog(t, env)
	env.transport.membershipErr = errors.New("user not found")

	hg.handle(messageUpdate(testUser, "/start abc123"), hg.Start)
	if ids := documentIDs(env.transport); len(ids) != 0 {
		t.Fatalf("Expected nothing delivered, got %v", ids)
	}
	if !strings.Contains(env.transport.last().Text, BuildJoinText()) {
		t.Errorf("Expected join prompt, got %q", env.transport.last().Text)
	}
}

func TestStartMultiEntryOffersLanguages(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	seedCatalog(t, env)

	hg.handle(messageUpdate(testUser, "/start xy9"), hg.Start)
	if ids := documentIDs(env.transport); len(ids) != 0 {
		t.Fatalf("Expected no files before a language is picked, got %v", ids)
	}
	prompt := env.transport.last()
	if len(prompt.Buttons) != 2 || prompt.Buttons[0][0].Text != "Hindi" || prompt.Buttons[1][0].Data != "lang:xy9:1" {
		t.Fatalf("Unexpected language buttons %+v", prompt.Buttons)
	}
	if msgs := env.transport.byMethod("SendMessage"); len(msgs) != 2 || msgs[0].Text != "Multi" {
		t.Errorf("Expected poster before the language prompt, got %+v", msgs)
	}

	hg.handle(callbackUpdate(testUser, "lang:xy9:1"), hg.Callback)
	if got := strings.Join(documentIDs(env.transport), ","); got != "t1" {
		t.Errorf("Expected Tamil files, got %s", got)
	}
}

func TestStartMultiEntryWithLanguageArgument(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	seedCatalog(t, env)

	hg.handle(messageUpdate(testUser, "/start xy9 hindi"), hg.Start)
	if got := strings.Join(documentIDs(env.transport), ","); got != "h1,h2" {
		t.Errorf("Expected Hindi files, got %s", got)
	}

	hg.handle(messageUpdate(testUser, "/start xy9 Telugu"), hg.Start)
	reply := env.transport.last()
	if reply.Text != UserMessage(ErrInvalidSelection) || len(reply.Buttons) != 2 {
		t.Errorf("Expected invalid selection with language buttons, got %+v", reply)
	}
}

func TestPartialDeliveryIsReported(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	seedCatalog(t, env)
	env.transport.failFiles["f1"] = errors.New("file is too big")

	hg.handle(messageUpdate(testUser, "/start abc123"), hg.Start)
	if got := strings.Join(documentIDs(env.transport), ","); got != "f2" {
		t.Errorf("Expected f2 to still be sent, got %s", got)
	}
	if got := env.transport.last().Text; !strings.HasPrefix(got, "⚠️ 1 of 2 file(s)") {
		t.Errorf("Expected a partial delivery report, got %q", got)
	}
}

func TestNonAdminIsIgnored(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	for name, fun := range map[string]func(*Update) error{
		"upload": hg.Upload,
		"done":   hg.Done,
		"cancel": hg.Cancel,
		"delete": hg.Delete,
		"status": hg.Status,
	} {
		t.Run(name, func(t *testing.T) {
			hg.handle(messageUpdate(testUser, "/"+name+" abc"), fun)
		})
	}
	hg.handle(callbackUpdate(testUser, "mode:single"), hg.Callback)
	if len(env.transport.sent) != 0 {
		t.Errorf("Expected no replies to a non-admin, got %+v", env.transport.sent)
	}
	if keys, _ := env.sessions.Keys(context.Background()); len(keys) != 0 {
		t.Errorf("Expected no sessions, got %v", keys)
	}
}

func TestDefaultForNonAdmin(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	hg.handle(messageUpdate(testUser, "hello"), hg.Default)
	if got := env.transport.last().Text; got != BuildStartUsage() {
		t.Errorf("Expected usage reply, got %q", got)
	}

	group := messageUpdate(testUser, "hello")
	group.Message.Chat.Type = "supergroup"
	before := len(env.transport.sent)
	hg.handle(group, hg.Default)
	if len(env.transport.sent) != before {
		t.Error("Expected group chatter to be ignored")
	}
}

func TestDefaultUnknownCommandForAdmin(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	hg.handle(messageUpdate(testAdmin, "/frobnicate"), hg.Default)
	if got := env.transport.last().Text; got != "❌ Unknown command /frobnicate." {
		t.Errorf("Expected unknown command reply, got %q", got)
	}
}

func TestAdminUploadFlow(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	ctx := context.Background()

	hg.handle(messageUpdate(testAdmin, "/upload"), hg.Upload)
	if buttons := env.transport.last().Buttons; len(buttons) != 1 || buttons[0][0].Data != "mode:single" {
		t.Fatalf("Expected mode buttons, got %+v", buttons)
	}
	hg.handle(callbackUpdate(testAdmin, "mode:single"), hg.Callback)
	if len(env.transport.edits) != 1 || env.transport.edits[0].MessageID != 77 {
		t.Errorf("Expected mode buttons to be cleared, got %+v", env.transport.edits)
	}
	hg.handle(documentUpdate(testAdmin, "a"), hg.Default)
	hg.handle(documentUpdate(testAdmin, "b"), hg.Default)
	if got := env.transport.last().Text; got != "✅ 2 file(s) so far. Send more or /done." {
		t.Errorf("Expected progress text, got %q", got)
	}
	hg.handle(messageUpdate(testAdmin, "/done"), hg.Done)
	hg.handle(callbackUpdate(testAdmin, "poster:compose"), hg.Callback)

	poster := messageUpdate(testAdmin, "")
	poster.Message.Photo = []models.PhotoSize{{FileID: "poster"}}
	poster.Message.Caption = "Leo (2023)"
	hg.handle(poster, hg.Default)
	hg.handle(messageUpdate(testAdmin, "leo"), hg.Default)
	if buttons := env.transport.last().Buttons; len(buttons) != 2 {
		t.Fatalf("Expected alt link choice buttons, got %+v", buttons)
	}
	hg.handle(callbackUpdate(testAdmin, "alt:skip"), hg.Callback)

	if got := env.transport.last().Text; !strings.HasPrefix(got, "✅ Movie added under code <code>leo</code>") {
		t.Errorf("Expected published confirmation, got %q", got)
	}
	entry, ok, _ := env.catalog.Get(ctx, "leo")
	if !ok || strings.Join(entry.Files, ",") != "file-a,file-b" {
		t.Errorf("Expected published entry with two files, got %+v", entry)
	}
	if keys, _ := env.sessions.Keys(ctx); len(keys) != 0 {
		t.Errorf("Expected session removed, got %v", keys)
	}
}

func TestAdminVideoIsRefused(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	hg.handle(messageUpdate(testAdmin, "/upload"), hg.Upload)
	hg.handle(callbackUpdate(testAdmin, "mode:single"), hg.Callback)

	video := messageUpdate(testAdmin, "")
	video.Message.Video = &models.Video{FileID: "vid", FileUniqueID: "vid-key"}
	hg.handle(video, hg.Default)
	if got := env.transport.last().Text; !strings.Contains(got, "as a document") {
		t.Errorf("Expected a request to resend as a document, got %q", got)
	}
	s, _ := hg.wizard.Session(context.Background(), testAdmin)
	if s == nil || s.FileCount() != 0 {
		t.Errorf("Expected no file recorded, got %+v", s)
	}
}

func TestAdminCancel(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	hg.handle(messageUpdate(testAdmin, "/upload"), hg.Upload)
	hg.handle(messageUpdate(testAdmin, "/cancel"), hg.Cancel)
	if got := env.transport.last().Text; !strings.HasPrefix(got, "🚫 Upload cancelled") {
		t.Errorf("Expected cancel confirmation, got %q", got)
	}
	hg.handle(messageUpdate(testAdmin, "/cancel"), hg.Cancel)
	if got := env.transport.last().Text; got != UserMessage(ErrNoSession) {
		t.Errorf("Expected no session reply, got %q", got)
	}
}

func TestAdminDelete(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	seedCatalog(t, env)

	hg.handle(messageUpdate(testAdmin, "/delete ABC123"), hg.Delete)
	if got := env.transport.last().Text; got != "🗑 Deleted <code>abc123</code>" {
		t.Errorf("Expected delete confirmation, got %q", got)
	}
	if _, ok, _ := env.catalog.Get(context.Background(), "abc123"); ok {
		t.Error("Expected abc123 to be gone")
	}
	hg.handle(messageUpdate(testAdmin, "/delete abc123"), hg.Delete)
	if got := env.transport.last().Text; got != "❌ Invalid movie code." {
		t.Errorf("Expected not found reply, got %q", got)
	}
}

func TestAdminStatus(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	seedCatalog(t, env)
	hg.handle(messageUpdate(testAdmin, "/upload"), hg.Upload)

	hg.handle(messageUpdate(testAdmin, "/status"), hg.Status)
	if got := env.transport.last().Text; got != BuildStatusText(3, 1, "") {
		t.Errorf("Expected status text, got %q", got)
	}
}

func TestHandlerRecoversFromPanic(t *testing.T) {
	hg, env := newTestHandlerGroup(t)
	hg.handle(messageUpdate(testAdmin, "/x"), func(*Update) error { panic("boom") })
	if got := env.transport.last().Text; got != "⚠️ boom" {
		t.Errorf("Expected panic to be reported, got %q", got)
	}
}
