package telegram

import (
	"context"
	"fmt"
	"os"
	"sync"

	"coachmastery/knowledge"
	"coachmastery/localization"
	"coachmastery/logger"
	"coachmastery/training"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type TelegramConnectProps struct {
	Logger    *logger.LogMiddleware
	Knowledge *knowledge.Engine
	Training  *training.Engine
}

// Telegram exposes the tutor and the marker quiz as a chat bot. Plain
// text goes to the tutor; /quiz runs a multiple-choice round with
// inline-keyboard answers.
type Telegram struct {
	logger    *logger.LogMiddleware
	bot       *tgbotapi.BotAPI
	knowledge *knowledge.Engine
	training  *training.Engine

	mu      sync.Mutex
	pending map[int64]*training.Quiz // active quiz per chat
}

func Connect(ctx context.Context, args TelegramConnectProps) *Telegram {
	tracer := otel.Tracer("telegram/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		args.Logger.Logger(ctx).Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		args.Logger.Logger(ctx).Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	debug := os.Getenv("TELEGRAM_DEBUG") == "true"
	bot.Debug = debug

	span.SetAttributes(
		attribute.String("bot.username", bot.Self.UserName),
		attribute.Bool("bot.debug", debug),
	)

	args.Logger.Logger(ctx).Info("Telegram bot connected successfully",
		zap.String("username", bot.Self.UserName),
		zap.Bool("debug", debug),
	)

	return &Telegram{
		logger:    args.Logger,
		bot:       bot,
		knowledge: args.Knowledge,
		training:  args.Training,
		pending:   make(map[int64]*training.Quiz),
	}
}

func (t *Telegram) Listen(ctx context.Context) {
	tracer := otel.Tracer("telegram/Listen")
	ctx, span := tracer.Start(ctx, "Listen")
	defer span.End()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)

	t.logger.Logger(ctx).Info("Starting Telegram bot message listener")

	for {
		select {
		case <-ctx.Done():
			t.logger.Logger(ctx).Info("Shutting down Telegram bot listener")
			return
		case update := <-updates:
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	tracer := otel.Tracer("telegram/handleUpdate")
	ctx, span := tracer.Start(ctx, "handleUpdate")
	defer span.End()

	switch {
	case update.Message != nil:
		t.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		t.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func userLanguage(user *tgbotapi.User) localization.Language {
	return localization.Resolve(user.LanguageCode)
}

func telegramUserID(user *tgbotapi.User) string {
	return fmt.Sprintf("telegram:%d", user.ID)
}

func (t *Telegram) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleMessage")
	ctx, span := tracer.Start(ctx, "handleMessage")
	defer span.End()

	if message.From == nil {
		return
	}

	user := message.From
	span.SetAttributes(
		attribute.Int64("user.id", user.ID),
		attribute.String("user.username", user.UserName),
		attribute.String("message.type", "text"),
	)

	t.logger.Logger(ctx).Info("Received message",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.UserName),
		zap.String("text", message.Text),
	)

	if message.Text == "" {
		return
	}

	switch message.Command() {
	case "start", "help":
		t.send(ctx, message.Chat.ID,
			"Ask me anything about the ICF PCC markers, coaching ethics, or the GROW model. Send /quiz for a practice question.")
		return
	case "quiz":
		t.sendQuiz(ctx, message.Chat.ID, user)
		return
	}

	answer, err := t.knowledge.Ask(ctx, telegramUserID(user), message.Text, userLanguage(user))
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to generate response", zap.Error(err))
		t.send(ctx, message.Chat.ID, localization.Message(localization.MsgAnalysisFailed, userLanguage(user)))
		return
	}

	t.send(ctx, message.Chat.ID, answer)
}

func (t *Telegram) sendQuiz(ctx context.Context, chatID int64, user *tgbotapi.User) {
	quiz := t.training.GenerateQuiz(ctx, telegramUserID(user), userLanguage(user))

	t.mu.Lock()
	t.pending[chatID] = quiz
	t.mu.Unlock()

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(quiz.Options))
	for i, option := range quiz.Options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(option, fmt.Sprintf("quiz:%d", i)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Marker %s\n\n%s", quiz.MarkerID, quiz.Question))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Logger(ctx).Error("Failed to send quiz", zap.Error(err))
	}
}

func (t *Telegram) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	tracer := otel.Tracer("telegram/handleCallbackQuery")
	ctx, span := tracer.Start(ctx, "handleCallbackQuery")
	defer span.End()

	if query.From == nil {
		return
	}

	span.SetAttributes(
		attribute.Int64("user.id", query.From.ID),
		attribute.String("user.username", query.From.UserName),
		attribute.String("callback.data", query.Data),
	)

	t.logger.Logger(ctx).Info("Received callback query",
		zap.Int64("user_id", query.From.ID),
		zap.String("username", query.From.UserName),
		zap.String("data", query.Data),
	)

	callback := tgbotapi.NewCallback(query.ID, "")
	t.bot.Send(callback)

	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	t.mu.Lock()
	quiz := t.pending[chatID]
	delete(t.pending, chatID)
	t.mu.Unlock()

	if quiz == nil {
		return
	}

	var picked int
	if _, err := fmt.Sscanf(query.Data, "quiz:%d", &picked); err != nil || picked < 0 || picked >= len(quiz.Options) {
		return
	}

	if quiz.Options[picked] == quiz.CorrectAnswer {
		t.send(ctx, chatID, fmt.Sprintf("Correct!\n\n%s", quiz.Explanation))
	} else {
		t.send(ctx, chatID, fmt.Sprintf("Not quite. The answer is: %s\n\n%s", quiz.CorrectAnswer, quiz.Explanation))
	}
}

func (t *Telegram) send(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Logger(ctx).Error("Failed to send response", zap.Error(err))
	}
}
