package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type Button struct {
	Text string
	URL  string
	Data string
}

type Buttons [][]Button

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type Membership string

const (
	MembershipOwner   Membership = "owner"
	MembershipAdmin   Membership = "admin"
	MembershipMember  Membership = "member"
	MembershipNone    Membership = "none"
	MembershipUnknown Membership = "unknown"
)

func (o Membership) Allowed() bool {
	return o == MembershipOwner || o == MembershipAdmin || o == MembershipMember
}

// Transport is everything the bot needs from the chat platform. Chat targets
// are either numeric ids or "@channel" usernames. Texts are HTML.
type Transport interface {
	SendMessage(ctx context.Context, chat any, text string, buttons Buttons) (MessageRef, error)
	SendDocument(ctx context.Context, chat any, fileID string, caption string) (MessageRef, error)
	SendImage(ctx context.Context, chat any, imageID string, caption string, buttons Buttons) (MessageRef, error)
	RelayMessage(ctx context.Context, chat any, from MessageRef) (MessageRef, error)
	GetMembership(ctx context.Context, channel any, userID int64) (Membership, error)
	EditButtons(ctx context.Context, ref MessageRef, buttons Buttons) error
}

type telegramTransport struct {
	b *bot.Bot
}

func NewTelegramTransport(b *bot.Bot) Transport {
	return &telegramTransport{b: b}
}

func (o Buttons) markup() models.ReplyMarkup {
	if len(o) == 0 {
		return nil
	}
	rows := make([][]models.InlineKeyboardButton, 0, len(o))
	for _, row := range o {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, URL: b.URL, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func transportError(method string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, method, err)
}

func (o *telegramTransport) SendMessage(ctx context.Context, chat any, text string, buttons Buttons) (MessageRef, error) {
	msg, err := o.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:                chat,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup:           buttons.markup(),
	})
	if err != nil {
		return MessageRef{}, transportError("sendMessage", err)
	}
	return MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID}, nil
}

func (o *telegramTransport) SendDocument(ctx context.Context, chat any, fileID string, caption string) (MessageRef, error) {
	msg, err := o.b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:    chat,
		Document:  &models.InputFileString{Data: fileID},
		Caption:   caption,
		ParseMode: "HTML",
	})
	if err != nil {
		return MessageRef{}, transportError("sendDocument", err)
	}
	return MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID}, nil
}

func (o *telegramTransport) SendImage(ctx context.Context, chat any, imageID string, caption string, buttons Buttons) (MessageRef, error) {
	msg, err := o.b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:      chat,
		Photo:       &models.InputFileString{Data: imageID},
		Caption:     caption,
		ParseMode:   "HTML",
		ReplyMarkup: buttons.markup(),
	})
	if err != nil {
		return MessageRef{}, transportError("sendPhoto", err)
	}
	return MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID}, nil
}

// RelayMessage copies the message by reference; the content is never
// downloaded. The copy belongs to the bot so its buttons can be edited.
func (o *telegramTransport) RelayMessage(ctx context.Context, chat any, from MessageRef) (MessageRef, error) {
	id, err := o.b.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:     chat,
		FromChatID: strconv.FormatInt(from.ChatID, 10),
		MessageID:  from.MessageID,
	})
	if err != nil {
		return MessageRef{}, transportError("copyMessage", err)
	}
	ref := MessageRef{MessageID: id.ID}
	if chatID, ok := chat.(int64); ok {
		ref.ChatID = chatID
	} else {
		c, err := o.b.GetChat(ctx, &bot.GetChatParams{ChatID: chat})
		if err != nil {
			return MessageRef{}, transportError("getChat", err)
		}
		ref.ChatID = c.ID
	}
	return ref, nil
}

func (o *telegramTransport) GetMembership(ctx context.Context, channel any, userID int64) (Membership, error) {
	member, err := o.b.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: channel, UserID: userID})
	if err != nil {
		return MembershipUnknown, transportError("getChatMember", err)
	}
	return membershipOf(member), nil
}

func membershipOf(member *models.ChatMember) Membership {
	switch member.Type {
	case models.ChatMemberTypeOwner:
		return MembershipOwner
	case models.ChatMemberTypeAdministrator:
		return MembershipAdmin
	case models.ChatMemberTypeMember:
		return MembershipMember
	case models.ChatMemberTypeRestricted:
		// restricted users may still be in the chat
		if member.Restricted != nil && member.Restricted.IsMember {
			return MembershipMember
		}
		return MembershipNone
	case models.ChatMemberTypeLeft, models.ChatMemberTypeBanned:
		return MembershipNone
	}
	return MembershipUnknown
}

func (o *telegramTransport) EditButtons(ctx context.Context, ref MessageRef, buttons Buttons) error {
	_, err := o.b.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      ref.ChatID,
		MessageID:   ref.MessageID,
		ReplyMarkup: buttons.markup(),
	})
	if err != nil {
		return transportError("editMessageReplyMarkup", err)
	}
	return nil
}
