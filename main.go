package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/puzzletrainer/internal/bot"
	"github.com/example/puzzletrainer/internal/catalog"
	"github.com/example/puzzletrainer/internal/database"
	"github.com/example/puzzletrainer/internal/engine"
	"github.com/example/puzzletrainer/internal/importer"
	"github.com/example/puzzletrainer/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	cat := catalog.Default()

	puzzles := database.NewPuzzleRepository(db)
	completions := database.NewCompletionRepository(db)
	progressRows := database.NewLessonProgressRepository(db)
	sessions := database.NewTestSessionRepository(db)
	users := database.NewUserRepository(db)

	// One-shot puzzle import, useful when seeding a fresh database.
	if path := os.Getenv("PUZZLE_IMPORT_FILE"); path != "" {
		result, err := importer.ImportPuzzles(context.Background(), puzzles, cat, importer.DefaultImportConfig(path))
		if err != nil {
			log.Fatalf("Failed to import puzzles from %s: %v", path, err)
		}
		log.Printf("Imported puzzles from %s: %d created, %d skipped, %d errors",
			path, result.Created, result.Skipped, len(result.Errors))
	}

	required := engine.DefaultRequiredPuzzles
	if v := os.Getenv("REQUIRED_TEST_PUZZLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("Invalid REQUIRED_TEST_PUZZLES value %q: %v", v, err)
		}
		required = n
	}

	progress := engine.NewProgressTracker(progressRows, cat)
	practice := engine.NewPracticeSelector(puzzles, completions)
	tests := engine.NewTestManager(puzzles, completions, sessions, required)

	b, err := bot.New(users, cat, progress, practice, tests)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	var sched *scheduler.Scheduler
	if os.Getenv("ENABLE_SCHEDULER") != "false" {
		sched = scheduler.New(sessions)
		sched.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		if sched != nil {
			sched.Stop()
		}
		b.Stop()
	}()

	log.Println("Bot started. Press Ctrl+C to stop.")
	if err := b.Start(); err != nil {
		log.Fatalf("Bot error: %v", err)
	}
	log.Println("Bot stopped successfully")
}
