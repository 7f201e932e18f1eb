package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	catalogDocument = "movieFiles"
	sessionDocument = "pending"
)

var handlerGroup *HandlerGroup

// ChatTarget turns a configured channel ("@name" or a numeric id) into a
// transport chat target, nil when unset.
func ChatTarget(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id
	}
	if !strings.HasPrefix(s, "@") {
		s = "@" + s
	}
	return s
}

// OpenStores opens the catalog and session documents on the configured
// storage driver.
func OpenStores(ctx context.Context, cfg *Config) (*DocumentStore[Entry], *DocumentStore[Session], error) {
	var catalogBlob, sessionBlob Blob
	switch cfg.Storage.Driver {
	case StorageDriverS3:
		client, err := NewS3Client(cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		catalogBlob = newS3Blob(client, cfg.S3.Bucket, cfg.Storage.Prefix, catalogDocument)
		sessionBlob = newS3Blob(client, cfg.S3.Bucket, cfg.Storage.Prefix, sessionDocument)
	case StorageDriverRedis:
		rdb := NewRedisClient(cfg.Redis)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		catalogBlob = newRedisBlob(rdb, cfg.Storage.Prefix, catalogDocument)
		sessionBlob = newRedisBlob(rdb, cfg.Storage.Prefix, sessionDocument)
	default:
		fb, err := newFileBlob(cfg.Storage.Dir, catalogDocument)
		if err != nil {
			return nil, nil, err
		}
		catalogBlob = fb
		if sessionBlob, err = newFileBlob(cfg.Storage.Dir, sessionDocument); err != nil {
			return nil, nil, err
		}
	}
	catalog, err := OpenDocumentStore[Entry](ctx, catalogBlob)
	if err != nil {
		return nil, nil, err
	}
	sessions, err := OpenDocumentStore[Session](ctx, sessionBlob)
	if err != nil {
		return nil, nil, err
	}
	return catalog, sessions, nil
}

func NewHandlerGroup(cfg *Config, transport Transport, catalog Store[Entry], sessions Store[Session]) *HandlerGroup {
	publisher := NewPublisher(transport, catalog, sessions, PublisherOptions{
		BotUsername:   cfg.BotUsername,
		Broadcast:     ChatTarget(cfg.BroadcastChannel),
		CustomCaption: cfg.CustomCaption,
		ChannelName:   cfg.MainChannel,
	})
	return &HandlerGroup{
		config:    cfg,
		transport: transport,
		wizard:    NewWizard(sessions, catalog, publisher),
		publisher: publisher,
		resolver:  NewResolver(catalog),
		gate:      NewMembershipGate(transport, ChatTarget(cfg.MainChannel)),
		catalog:   catalog,
		sessions:  sessions,
		http:      NewHTTPClient(),
	}
}

// Serve runs the bot and the keep-alive server until ctx is cancelled.
func Serve(ctx context.Context, cfg *Config) error {
	catalog, sessions, err := OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(defaultHandler),
		bot.WithServerURL(cfg.Server),
	}
	if strings.EqualFold(cfg.Log.Level, "debug") {
		opts = append(opts, bot.WithDebug())
	}
	tgBot, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return err
	}
	if cfg.BotUsername == "" {
		me, err := tgBot.GetMe(ctx)
		if err != nil {
			return fmt.Errorf("getMe: %w", err)
		}
		cfg.BotUsername = me.Username
	}
	handlerGroup = NewHandlerGroup(cfg, NewTelegramTransport(tgBot), catalog, sessions)
	commands := map[string]func(update *Update) error{
		"/start":  handlerGroup.Start,
		"/upload": handlerGroup.Upload,
		"/done":   handlerGroup.Done,
		"/cancel": handlerGroup.Cancel,
		"/delete": handlerGroup.Delete,
		"/status": handlerGroup.Status,
	}
	for command, fun := range commands {
		tgBot.RegisterHandler(bot.HandlerTypeMessageText, command, bot.MatchTypePrefix,
			handlerGroup.WrapHandlerGroupFunc(fun))
	}
	tgBot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix,
		handlerGroup.WrapHandlerGroupFunc(handlerGroup.Callback))

	go func() {
		if err := RunKeepAlive(ctx, cfg.KeepAlive.Addr); err != nil {
			slog.Error("keep alive server stopped", "err", err)
		}
	}()
	slog.Info("✅ Bot is running...", "bot", cfg.BotUsername, "storage", cfg.Storage.Driver, "admins", len(cfg.AdminIDs))
	tgBot.Start(ctx)
	return nil
}

func defaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if handlerGroup == nil {
		return
	}
	handlerGroup.WrapHandlerGroupFunc(handlerGroup.Default)(ctx, b, update)
}
