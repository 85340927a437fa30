// Package telegram bridges Telegram updates into chatrelay messages.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"chatrelay/pkg/bus"
	"chatrelay/pkg/channel"
	"chatrelay/pkg/config"
	"chatrelay/pkg/roster"
)

const channelName = "telegram"
const messagePreviewLimit = 240
const typingRefreshInterval = 4 * time.Second

const startGreeting = "Hi! Send me a message and I will pass it to the assistant. Use /reset to start over."

// ChatDirectory looks up roster details for the /chatinfo command.
type ChatDirectory interface {
	Get(chatID string) (roster.ChatInfo, bool)
}

// Adapter runs Telegram long polling and forwards messages to the dispatcher.
//
// Each update is handled in its own goroutine so a slow assistant run for one
// user never blocks other users.
type Adapter struct {
	cfg   config.TelegramConfig
	chats ChatDirectory
	log   *slog.Logger

	botID       int64
	botUsername string
}

// NewAdapter validates Telegram configuration and constructs an adapter.
// chats may be nil when chat tracking is disabled.
func NewAdapter(cfg config.TelegramConfig, chats ChatDirectory, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram bot token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:   cfg,
		chats: chats,
		log:   log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts long polling and dispatches updates until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("resolve bot identity: %w", err)
	}
	a.botID = me.ID
	a.botUsername = me.Username

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started", "bot_username", a.botUsername)

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			message := update.Message
			if message == nil || message.From == nil {
				continue
			}
			if strings.TrimSpace(message.Text) == "" {
				// Only text updates carry a prompt for the assistant.
				continue
			}

			inflight.Add(1)
			go func(msg *telego.Message) {
				defer inflight.Done()
				a.handleMessage(ctx, bot, handler, msg)
			}(message)
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, bot *telego.Bot, handler channel.Handler, message *telego.Message) {
	content := strings.TrimSpace(message.Text)
	chatID := strconv.FormatInt(message.Chat.ID, 10)
	senderID := strconv.FormatInt(message.From.ID, 10)
	replyToBot := a.isReplyToBot(message)

	if isGroup(message.Chat.Type) && !replyToBot && !a.mentionsBot(content) {
		// In groups the bot only reacts when addressed.
		return
	}
	content = strings.TrimSpace(a.stripMention(content))
	if content == "" {
		return
	}

	command, remainder := parseCommand(content, a.botUsername)
	switch command {
	case "start":
		a.send(ctx, bot, message.Chat.ID, startGreeting)
		return
	case "chatinfo":
		a.send(ctx, bot, message.Chat.ID, a.chatInfoText(message, chatID))
		return
	case "reset":
		// Forwarded to the dispatcher, which owns session state.
	case "":
		// Plain text.
	default:
		a.log.Debug("Ignoring unknown command", "command", command, "chat_id", chatID)
		return
	}
	if command == "" && remainder == "" {
		// Command addressed to another bot in the chat.
		return
	}

	inbound := bus.InboundMessage{
		Channel:    channelName,
		SenderID:   senderID,
		SenderName: message.From.Username,
		ChatID:     chatID,
		ChatType:   message.Chat.Type,
		ChatTitle:  chatDisplayName(message),
		Content:    remainder,
		Command:    command,
		ReplyToBot: replyToBot,
	}
	a.log.Info("Received message",
		"chat_id", chatID,
		"sender_id", senderID,
		"command", command,
		"content", previewText(content),
	)

	stopTyping := a.startTypingIndicator(ctx, bot, message.Chat.ID)
	outbound := handler(ctx, inbound)
	stopTyping()

	responseText := strings.TrimSpace(outbound.Content)
	if responseText == "" {
		return
	}
	a.log.Info("Sending message", "chat_id", chatID, "content", previewText(responseText))
	a.send(ctx, bot, message.Chat.ID, responseText)
}

func (a *Adapter) send(ctx context.Context, bot *telego.Bot, chatID int64, text string) {
	if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		a.log.Error("Failed to send telegram message", "chat_id", chatID, "error", err)
	}
}

func (a *Adapter) isReplyToBot(message *telego.Message) bool {
	reply := message.ReplyToMessage
	return reply != nil && reply.From != nil && reply.From.ID == a.botID
}

func (a *Adapter) mentionsBot(content string) bool {
	if a.botUsername == "" {
		return false
	}

	return containsFold(content, "@"+a.botUsername)
}

// stripMention removes the bot's @mention so the assistant sees a clean prompt.
func (a *Adapter) stripMention(content string) string {
	if a.botUsername == "" {
		return content
	}

	mention := "@" + a.botUsername
	for {
		idx := indexFold(content, mention)
		if idx < 0 {
			return content
		}
		content = content[:idx] + content[idx+len(mention):]
	}
}

// chatInfoText answers /chatinfo with chat identity plus roster timestamps
// when available.
func (a *Adapter) chatInfoText(message *telego.Message, chatID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chat ID: %s\n", chatID)
	fmt.Fprintf(&b, "Type: %s\n", message.Chat.Type)
	fmt.Fprintf(&b, "Name: %s", chatDisplayName(message))

	if a.chats != nil {
		if info, ok := a.chats.Get(chatID); ok {
			fmt.Fprintf(&b, "\nFirst seen: %s\nLast message: %s", info.FirstSeen, info.LastMessage)
		}
	}

	return b.String()
}

// parseCommand extracts a leading "/command" (with optional "@botname"
// suffix) from the text. remainder keeps the original text so the dispatcher
// sees what the user typed minus the command word.
func parseCommand(content string, botUsername string) (command string, remainder string) {
	if !strings.HasPrefix(content, "/") {
		return "", content
	}

	word, rest, _ := strings.Cut(content, " ")
	word = strings.TrimPrefix(word, "/")
	if at := strings.IndexByte(word, '@'); at >= 0 {
		target := word[at+1:]
		if botUsername != "" && !strings.EqualFold(target, botUsername) {
			// A command addressed to some other bot in the chat.
			return "", ""
		}
		word = word[:at]
	}

	return strings.ToLower(word), strings.TrimSpace(rest)
}

func isGroup(chatType string) bool {
	return chatType == telego.ChatTypeGroup || chatType == telego.ChatTypeSupergroup
}

// chatDisplayName describes a chat for the roster: group title, or the
// sender's name for private chats.
func chatDisplayName(message *telego.Message) string {
	if title := strings.TrimSpace(message.Chat.Title); title != "" {
		return title
	}

	from := message.From
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if from.Username != "" {
		if name == "" {
			return "@" + from.Username
		}
		return fmt.Sprintf("%s (@%s)", name, from.Username)
	}

	return name
}

func containsFold(haystack string, needle string) bool {
	return indexFold(haystack, needle) >= 0
}

func indexFold(haystack string, needle string) int {
	return strings.Index(strings.ToLower(haystack), strings.ToLower(needle))
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}

// startTypingIndicator sends an initial typing action and refreshes it
// periodically until the returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, bot *telego.Bot, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := bot.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", chatID, "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}
