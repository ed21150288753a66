package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/puzzletrainer/internal/catalog"
	"github.com/example/puzzletrainer/pkg/models"
)

// Constants for callback data
const (
	callbackBeginnerYes   = "beginner_yes"
	callbackBeginnerNo    = "beginner_no"
	callbackShowLessons   = "show_lessons"
	callbackStartPractice = "start_practice"
	callbackStartTest     = "start_test"
	callbackMainMenu      = "main_menu"
	callbackSolved        = "puzzle_solved"
	callbackRetry         = "puzzle_retry"
	callbackSkip          = "puzzle_skip"

	practiceLessonPrefix = "practice_lesson_"
)

// handleCommand handles bot commands
func (b *Bot) handleCommand(message *tgbotapi.Message) error {
	ctx := context.Background()
	switch message.Command() {
	case "start":
		return b.handleStart(ctx, message)
	case "help":
		return b.handleHelp(message)
	case "menu":
		return b.showMainMenu(message.Chat.ID)
	case "lessons":
		return b.handleLessons(ctx, message)
	case "practice":
		return b.handlePractice(ctx, message)
	case "test":
		return b.handleTest(ctx, message)
	default:
		msg := tgbotapi.NewMessage(message.Chat.ID, "Unknown command. Use /help to see the available commands.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		return b.send(msg)
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.From == nil || message.Chat == nil {
		return fmt.Errorf("invalid message: required fields are missing")
	}

	user, err := b.users.GetByTelegramID(ctx, message.From.ID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if user == nil {
		newUser := &models.User{
			TelegramID:    message.From.ID,
			Username:      message.From.UserName,
			FirstName:     message.From.FirstName,
			LastName:      message.From.LastName,
			ChessBeginner: true,
		}
		if err := b.users.Create(ctx, newUser); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		text := "👋 Welcome to the Atomic Chess Trainer!\n\n" +
			"I will walk you through the rules of atomic chess with a series of puzzles, " +
			"then put your skills to the test.\n\n" +
			"First things first: do you already know how regular chess pieces move?"
		msg := tgbotapi.NewMessage(message.Chat.ID, text)
		msg.ReplyMarkup = createKeyboard([][]MenuButton{
			{{Text: "Yes, I play chess", CallbackData: callbackBeginnerNo}},
			{{Text: "No, I'm new to chess", CallbackData: callbackBeginnerYes}},
		})
		return b.send(msg)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, "Welcome back! What would you like to do?")
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.send(msg)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) error {
	text := "📖 Available commands:\n\n" +
		"/start - Register and show the main menu\n" +
		"/menu - Show the main menu\n" +
		"/lessons - Show your progress through the lessons\n" +
		"/practice [lesson] - Practice puzzles, optionally from one lesson\n" +
		"/test - Start a test session across the whole curriculum"

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "⬅️ Back to menu", CallbackData: callbackMainMenu}},
	})
	return b.send(msg)
}

func (b *Bot) showMainMenu(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "What would you like to do?")
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.send(msg)
}

// ensureUser looks up the user by telegram ID, creating the record on first contact.
func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*models.User, error) {
	if from == nil {
		return nil, fmt.Errorf("message has no sender")
	}

	user, err := b.users.GetByTelegramID(ctx, from.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	newUser := &models.User{
		TelegramID:    from.ID,
		Username:      from.UserName,
		FirstName:     from.FirstName,
		LastName:      from.LastName,
		ChessBeginner: true,
	}
	if err := b.users.Create(ctx, newUser); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return b.users.GetByTelegramID(ctx, from.ID)
}

func (b *Bot) handleLessons(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, message.From)
	if err != nil {
		return err
	}

	var text strings.Builder
	text.WriteString("📚 Your lessons:\n\n")

	for _, lesson := range b.catalog.All() {
		percent, err := b.progress.PercentComplete(ctx, user.ID, lesson.ID)
		if err != nil {
			return fmt.Errorf("failed to compute progress for lesson %d: %w", lesson.ID, err)
		}

		marker := "▫️"
		if percent >= 100 {
			marker = "✅"
		} else if percent > 0 {
			marker = "🔄"
		}
		text.WriteString(fmt.Sprintf("%s %s — %d%%\n", marker, lesson.Name, percent))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, text.String())
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "♟ Practice", CallbackData: callbackStartPractice}},
		{{Text: "⬅️ Back to menu", CallbackData: callbackMainMenu}},
	})
	return b.send(msg)
}

func (b *Bot) handlePractice(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, message.From)
	if err != nil {
		return err
	}

	args := strings.TrimSpace(message.CommandArguments())
	if args == "" {
		return b.showPracticeLessonPicker(message.Chat.ID)
	}

	lesson, ok := b.catalog.ByName(args)
	if !ok {
		if id, err := strconv.ParseInt(args, 10, 64); err == nil {
			lesson, ok = b.catalog.ByID(id)
		}
	}
	if !ok {
		msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("I don't know a lesson called %q. Use /lessons to see them all.", args))
		return b.send(msg)
	}

	lessonID := lesson.ID
	return b.servePracticePuzzle(ctx, message.Chat.ID, user.ID, &lessonID)
}

func (b *Bot) showPracticeLessonPicker(chatID int64) error {
	buttons := [][]MenuButton{
		{{Text: "🌐 All lessons", CallbackData: practiceLessonPrefix + "all"}},
	}
	for _, lesson := range b.catalog.All() {
		buttons = append(buttons, []MenuButton{{
			Text:         lesson.Name,
			CallbackData: fmt.Sprintf("%s%d", practiceLessonPrefix, lesson.ID),
		}})
	}

	msg := tgbotapi.NewMessage(chatID, "Which lesson would you like to practice?")
	msg.ReplyMarkup = createKeyboard(buttons)
	return b.send(msg)
}

func (b *Bot) servePracticePuzzle(ctx context.Context, chatID, userID int64, lessonID *int64) error {
	puzzle, err := b.practice.SelectPuzzle(ctx, userID, lessonID)
	if err != nil {
		return fmt.Errorf("failed to select puzzle: %w", err)
	}
	if puzzle == nil {
		msg := tgbotapi.NewMessage(chatID, "There are no puzzles to practice yet. Check back later!")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		return b.send(msg)
	}

	b.setAttempt(userID, &activeAttempt{
		PuzzleID: puzzle.ID,
		LessonID: puzzle.LessonID,
		Started:  time.Now(),
		Attempts: 1,
	})

	return b.sendPuzzle(chatID, puzzle, false, true)
}

func (b *Bot) handleTest(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, message.From)
	if err != nil {
		return err
	}

	session, err := b.tests.OpenSession(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to open test session: %w", err)
	}

	text := fmt.Sprintf("🏁 Test started! Solve %d puzzles to pass. Good luck!", b.tests.RequiredPuzzles())
	if err := b.send(tgbotapi.NewMessage(message.Chat.ID, text)); err != nil {
		return err
	}

	return b.serveTestPuzzle(ctx, message.Chat.ID, user.ID, session.ID)
}

func (b *Bot) serveTestPuzzle(ctx context.Context, chatID, userID, sessionID int64) error {
	puzzle, isFinal, err := b.tests.NextPuzzle(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to pick test puzzle: %w", err)
	}
	if puzzle == nil {
		return b.finishTest(ctx, chatID, userID, sessionID)
	}

	b.setAttempt(userID, &activeAttempt{
		PuzzleID:  puzzle.ID,
		LessonID:  puzzle.LessonID,
		SessionID: &sessionID,
		Started:   time.Now(),
		Attempts:  1,
		IsFinal:   isFinal,
	})

	return b.sendPuzzle(chatID, puzzle, isFinal, false)
}

func (b *Bot) finishTest(ctx context.Context, chatID, userID, sessionID int64) error {
	b.clearAttempt(userID)

	if err := b.tests.CloseSession(ctx, sessionID); err != nil {
		log.Printf("Error closing test session %d: %v", sessionID, err)
	}

	update := models.ProgressUpdate{CompletedTest: boolRef(true)}
	if err := b.progress.Update(ctx, userID, catalog.IntroLessonID, update); err != nil {
		log.Printf("Error marking test complete for user %d: %v", userID, err)
	}

	msg := tgbotapi.NewMessage(chatID, "🎉 Congratulations, you passed the test! You have mastered atomic chess.")
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.send(msg)
}

// sendPuzzle presents a puzzle position to the user with the solve controls.
func (b *Bot) sendPuzzle(chatID int64, puzzle *models.Puzzle, isFinal, isPractice bool) error {
	lessonName := fmt.Sprintf("lesson %d", puzzle.LessonID)
	if lesson, ok := b.catalog.ByID(puzzle.LessonID); ok {
		lessonName = lesson.Name
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("♟ %s\n\n", lessonName))
	text.WriteString(fmt.Sprintf("Position:\n`%s`\n\n", puzzle.FEN))
	text.WriteString("Find the best move!")
	if isFinal {
		text.WriteString("\n\n🏁 This is the final puzzle of your test.")
	}

	buttons := [][]MenuButton{
		{{Text: "✅ Solved it", CallbackData: callbackSolved}},
		{{Text: "🔁 Try again", CallbackData: callbackRetry}},
	}
	if isPractice {
		buttons = append(buttons, []MenuButton{{Text: "⏭ Another puzzle", CallbackData: callbackSkip}})
	}

	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = createKeyboard(buttons)
	return b.send(msg)
}

// callbackChat resolves the chat a callback answer should go to. Telegram
// omits Message on queries for messages that are too old; the sender's
// private chat shares their user id, so fall back to that.
func callbackChat(query *tgbotapi.CallbackQuery) *tgbotapi.Chat {
	if query.Message != nil && query.Message.Chat != nil {
		return query.Message.Chat
	}
	return &tgbotapi.Chat{ID: query.From.ID}
}

// handleCallbackQuery handles button presses
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) error {
	ctx := context.Background()

	// Acknowledge the button press so the client stops the spinner.
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))

	chat := callbackChat(query)
	chatID := chat.ID
	data := query.Data

	user, err := b.ensureUser(ctx, query.From)
	if err != nil {
		return err
	}

	switch {
	case data == callbackBeginnerYes:
		return b.handleBeginnerAnswer(ctx, chatID, user, true)
	case data == callbackBeginnerNo:
		return b.handleBeginnerAnswer(ctx, chatID, user, false)
	case data == callbackMainMenu:
		return b.showMainMenu(chatID)
	case data == callbackShowLessons:
		fake := &tgbotapi.Message{Chat: chat, From: query.From}
		return b.handleLessons(ctx, fake)
	case data == callbackStartPractice:
		return b.showPracticeLessonPicker(chatID)
	case data == callbackStartTest:
		fake := &tgbotapi.Message{Chat: chat, From: query.From}
		return b.handleTest(ctx, fake)
	case data == callbackSolved:
		return b.handleSolved(ctx, chatID, user.ID)
	case data == callbackRetry:
		return b.handleRetry(chatID, user.ID)
	case data == callbackSkip:
		return b.handleSkip(ctx, chatID, user.ID)
	case strings.HasPrefix(data, practiceLessonPrefix):
		return b.handlePracticeLessonChoice(ctx, chatID, user.ID, strings.TrimPrefix(data, practiceLessonPrefix))
	default:
		log.Printf("Unknown callback data: %q", data)
		return nil
	}
}

func (b *Bot) handleBeginnerAnswer(ctx context.Context, chatID int64, user *models.User, beginner bool) error {
	if err := b.users.SetBeginner(ctx, user.ID, beginner); err != nil {
		return fmt.Errorf("failed to store beginner flag: %w", err)
	}

	if !beginner {
		// Players who already know chess skip straight past the intro lesson.
		if intro, ok := b.catalog.ByID(catalog.IntroLessonID); ok {
			if err := b.progress.MarkLessonComplete(ctx, user.ID, intro.ID, intro.MaxProgression); err != nil {
				return fmt.Errorf("failed to skip intro lesson: %w", err)
			}
		}
		msg := tgbotapi.NewMessage(chatID, "Great! We'll skip the chess basics and jump straight into atomic chess.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		return b.send(msg)
	}

	msg := tgbotapi.NewMessage(chatID, "No problem! We'll start from the very beginning with how the pieces move.")
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.send(msg)
}

func (b *Bot) handlePracticeLessonChoice(ctx context.Context, chatID, userID int64, choice string) error {
	if choice == "all" {
		return b.servePracticePuzzle(ctx, chatID, userID, nil)
	}

	id, err := strconv.ParseInt(choice, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed lesson choice %q: %w", choice, err)
	}
	return b.servePracticePuzzle(ctx, chatID, userID, &id)
}

func (b *Bot) handleSolved(ctx context.Context, chatID, userID int64) error {
	attempt := b.getAttempt(userID)
	if attempt == nil {
		msg := tgbotapi.NewMessage(chatID, "There is no puzzle in progress. Use /practice or /test to get one.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		return b.send(msg)
	}

	now := time.Now()
	if attempt.SessionID != nil {
		return b.recordTestSolve(ctx, chatID, userID, attempt, now)
	}
	return b.recordPracticeSolve(ctx, chatID, userID, attempt, now)
}

func (b *Bot) recordPracticeSolve(ctx context.Context, chatID, userID int64, attempt *activeAttempt, now time.Time) error {
	if err := b.practice.RecordCompletion(ctx, userID, attempt.PuzzleID, attempt.Attempts, attempt.Started, now); err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	b.clearAttempt(userID)

	if err := b.advanceLessonProgress(ctx, userID, attempt.LessonID); err != nil {
		log.Printf("Error advancing progress for user %d lesson %d: %v", userID, attempt.LessonID, err)
	}

	msg := tgbotapi.NewMessage(chatID, "✅ Nicely done!")
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "♟ Next puzzle", CallbackData: callbackStartPractice}},
		{{Text: "⬅️ Back to menu", CallbackData: callbackMainMenu}},
	})
	return b.send(msg)
}

// advanceLessonProgress recomputes the user's progression in the lesson from
// their completion history and marks the lesson complete when it is exhausted.
func (b *Bot) advanceLessonProgress(ctx context.Context, userID, lessonID int64) error {
	lesson, ok := b.catalog.ByID(lessonID)
	if !ok {
		return nil
	}

	count, err := b.practice.CompletedInLesson(ctx, userID, lessonID)
	if err != nil {
		return err
	}
	if count > lesson.MaxProgression {
		count = lesson.MaxProgression
	}

	if count >= lesson.MaxProgression {
		return b.progress.MarkLessonComplete(ctx, userID, lessonID, lesson.MaxProgression)
	}
	return b.progress.Update(ctx, userID, lessonID, models.ProgressUpdate{Progression: &count})
}

func (b *Bot) recordTestSolve(ctx context.Context, chatID, userID int64, attempt *activeAttempt, now time.Time) error {
	sessionID := *attempt.SessionID
	if err := b.tests.RecordAttempt(ctx, sessionID, userID, attempt.PuzzleID, attempt.Attempts, attempt.Started, now); err != nil {
		return fmt.Errorf("failed to record test attempt: %w", err)
	}

	if attempt.IsFinal {
		return b.finishTest(ctx, chatID, userID, sessionID)
	}

	if err := b.send(tgbotapi.NewMessage(chatID, "✅ Correct! Next one:")); err != nil {
		return err
	}
	return b.serveTestPuzzle(ctx, chatID, userID, sessionID)
}

func (b *Bot) handleRetry(chatID, userID int64) error {
	attempt := b.getAttempt(userID)
	if attempt == nil {
		msg := tgbotapi.NewMessage(chatID, "There is no puzzle in progress. Use /practice or /test to get one.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		return b.send(msg)
	}

	attempt.Attempts++
	b.setAttempt(userID, attempt)

	return b.send(tgbotapi.NewMessage(chatID, "Take another look at the position and try again."))
}

func (b *Bot) handleSkip(ctx context.Context, chatID, userID int64) error {
	attempt := b.getAttempt(userID)
	b.clearAttempt(userID)

	if attempt == nil || attempt.SessionID != nil {
		return b.showPracticeLessonPicker(chatID)
	}

	lessonID := attempt.LessonID
	return b.servePracticePuzzle(ctx, chatID, userID, &lessonID)
}

func boolRef(v bool) *bool {
	return &v
}
