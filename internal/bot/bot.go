package bot

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/puzzletrainer/internal/catalog"
	"github.com/example/puzzletrainer/internal/database"
	"github.com/example/puzzletrainer/internal/engine"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// activeAttempt tracks the puzzle a user is currently working on,
// so the completion record can carry attempt counts and timing.
type activeAttempt struct {
	PuzzleID  int64
	LessonID  int64
	SessionID *int64
	Started   time.Time
	Attempts  int
	IsFinal   bool
}

// Bot represents the Telegram bot application
type Bot struct {
	api      *tgbotapi.BotAPI
	token    string
	users    *database.UserRepository
	catalog  *catalog.Catalog
	progress *engine.ProgressTracker
	practice *engine.PracticeSelector
	tests    *engine.TestManager

	mu       sync.Mutex
	attempts map[int64]*activeAttempt
}

// New creates a new bot instance
func New(users *database.UserRepository, cat *catalog.Catalog, progress *engine.ProgressTracker, practice *engine.PracticeSelector, tests *engine.TestManager) (*Bot, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	return &Bot{
		token:    token,
		users:    users,
		catalog:  cat,
		progress: progress,
		practice: practice,
		tests:    tests,
		attempts: make(map[int64]*activeAttempt),
	}, nil
}

// MainMenuButtons returns the buttons shown in the main menu
func (b *Bot) MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "📚 Lessons", CallbackData: callbackShowLessons}},
		{{Text: "♟ Practice", CallbackData: callbackStartPractice}},
		{{Text: "🏁 Take the test", CallbackData: callbackStartTest}},
	}
}

// Start initializes and starts the bot
func (b *Bot) Start() error {
	botAPI, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %v", err)
	}

	b.api = botAPI
	log.Printf("Authorized on account %s", botAPI.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.api.GetUpdatesChan(updateConfig)

	for update := range updates {
		go b.handleUpdate(update)
	}

	return nil
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
	log.Println("Bot stopped")
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		if update.Message.IsCommand() {
			if err := b.handleCommand(update.Message); err != nil {
				log.Printf("Error handling /%s: %v", update.Message.Command(), err)
			}
			return
		}
		msg := tgbotapi.NewMessage(update.Message.Chat.ID, "I don't understand. Use /menu to show the main menu.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		b.send(msg)
	} else if update.CallbackQuery != nil {
		if err := b.handleCallbackQuery(update.CallbackQuery); err != nil {
			log.Printf("Error handling callback %q: %v", update.CallbackQuery.Data, err)
		}
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) error {
	_, err := b.api.Send(msg)
	if err != nil {
		log.Printf("Error sending message: %v", err)
	}
	return err
}

func (b *Bot) setAttempt(userID int64, a *activeAttempt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts[userID] = a
}

func (b *Bot) getAttempt(userID int64) *activeAttempt {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts[userID]
}

func (b *Bot) clearAttempt(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.attempts, userID)
}
