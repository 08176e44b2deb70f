package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/ravianlabs/quantum-chat/internal/chat"
	"github.com/ravianlabs/quantum-chat/internal/models"
	"go.uber.org/zap"
)

// Bot is an optional Telegram front end over the same chat service the
// dashboard uses. Each Telegram account maps to one user id and keeps
// one active conversation at a time.
type Bot struct {
	api     *tgbotapi.BotAPI
	service *chat.Service
	logger  *zap.Logger

	mu     sync.Mutex
	active map[int64]uuid.UUID
}

func New(token string, service *chat.Service, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:     api,
		service: service,
		logger:  logger,
		active:  make(map[int64]uuid.UUID),
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func userID(from *tgbotapi.User) string {
	return "tg:" + strconv.FormatInt(from.ID, 10)
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	b.mu.Lock()
	convoID := b.active[message.From.ID]
	b.mu.Unlock()

	turn, err := b.service.SendMessage(ctx, userID(message.From), convoID, message.Text)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrQuotaExceeded):
			b.sendMessage(message.Chat.ID, "You've reached your daily message limit. Try again tomorrow!")
		case errors.Is(err, models.ErrEmptyContent):
			b.sendMessage(message.Chat.ID, "Please send a text message.")
		default:
			b.logger.Error("Failed to process turn",
				zap.Error(err),
				zap.Int64("telegram_user_id", message.From.ID))
			b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't process your message. Please try again.")
		}
		return
	}

	b.mu.Lock()
	b.active[message.From.ID] = turn.Conversation.ID
	b.mu.Unlock()

	reply := tgbotapi.NewMessage(message.Chat.ID, turn.AssistantMessage.Content)
	reply.ReplyToMessageID = message.MessageID
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "new":
		b.handleNew(ctx, message)
	case "usage":
		b.handleUsage(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to the Ravian QuantumAI agent! 🤖
I can help you with analytics, business insights and your questions.

Just send me a message to start a conversation.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/new - Start a fresh conversation
/usage - Show how many messages you have left today

Anything else you send becomes a chat message in your current conversation.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleNew(ctx context.Context, message *tgbotapi.Message) {
	convo, err := b.service.NewConversation(ctx, userID(message.From))
	if err != nil {
		b.logger.Error("Failed to create conversation",
			zap.Error(err),
			zap.Int64("telegram_user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't start a new conversation. Please try again.")
		return
	}

	b.mu.Lock()
	b.active[message.From.ID] = convo.ID
	b.mu.Unlock()

	b.sendMessage(message.Chat.ID, "Started a new conversation. What would you like to talk about?")
}

func (b *Bot) handleUsage(ctx context.Context, message *tgbotapi.Message) {
	usage, err := b.service.Usage(ctx, userID(message.From))
	if err != nil {
		b.logger.Error("Failed to get usage",
			zap.Error(err),
			zap.Int64("telegram_user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your usage. Please try again later.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"You've used %d of %d messages today. %d remaining.",
		usage.Used, usage.Limit, usage.Remaining))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
