// Package importer loads puzzle definitions from Excel or CSV files into
// the puzzle table. Puzzle authoring has no runtime endpoint; curriculum
// content arrives through this import path at deploy time.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/puzzletrainer/internal/catalog"
	"github.com/example/puzzletrainer/pkg/models"
)

// PuzzleCreator is the slice of the puzzle repository the importer needs.
type PuzzleCreator interface {
	Create(ctx context.Context, puzzle *models.Puzzle) error
}

// ImportConfig defines the import configuration. Rows carry four columns
// in order: FEN, moves (space-separated coordinate notation), lesson
// (catalog name or numeric id), and an optional atomic flag.
type ImportConfig struct {
	FilePath   string // Path to the Excel or CSV file
	SheetName  string // Name of the sheet to import (Excel only)
	SkipHeader bool   // Skip the first row
}

// DefaultImportConfig returns the default import configuration.
func DefaultImportConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath:   path,
		SheetName:  "Sheet1",
		SkipHeader: true,
	}
}

// ImportResult holds the result of an import operation.
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// ImportPuzzles imports puzzles from an Excel or CSV file. Malformed rows
// are skipped and reported in the result rather than aborting the run.
func ImportPuzzles(ctx context.Context, repo PuzzleCreator, cat *catalog.Catalog, config ImportConfig) (*ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		return importFromCSV(ctx, repo, cat, config)
	}
	return importFromExcel(ctx, repo, cat, config)
}

func importFromExcel(ctx context.Context, repo PuzzleCreator, cat *catalog.Catalog, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", config.SheetName, err)
	}
	return importRows(ctx, repo, cat, rows, config.SkipHeader)
}

func importFromCSV(ctx context.Context, repo PuzzleCreator, cat *catalog.Catalog, config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV file: %w", err)
		}
		rows = append(rows, record)
	}
	return importRows(ctx, repo, cat, rows, config.SkipHeader)
}

func importRows(ctx context.Context, repo PuzzleCreator, cat *catalog.Catalog, rows [][]string, skipHeader bool) (*ImportResult, error) {
	result := &ImportResult{}

	for i, row := range rows {
		if i == 0 && skipHeader {
			continue
		}
		result.TotalProcessed++

		puzzle, err := puzzleFromRow(cat, row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if err := repo.Create(ctx, puzzle); err != nil {
			return result, fmt.Errorf("row %d: %w", i+1, err)
		}
		result.Created++
	}
	return result, nil
}

func puzzleFromRow(cat *catalog.Catalog, row []string) (*models.Puzzle, error) {
	if len(row) < 3 {
		return nil, fmt.Errorf("want at least 3 columns (fen, moves, lesson), got %d", len(row))
	}

	fen := strings.TrimSpace(row[0])
	if fen == "" {
		return nil, fmt.Errorf("empty FEN")
	}

	moveTree, err := MoveTreeJSON(strings.Fields(row[1]))
	if err != nil {
		return nil, err
	}

	lesson, err := resolveLesson(cat, strings.TrimSpace(row[2]))
	if err != nil {
		return nil, err
	}

	isAtomic := true
	if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
		isAtomic, err = strconv.ParseBool(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("invalid atomic flag %q", row[3])
		}
	}

	return &models.Puzzle{
		LessonID: lesson.ID,
		FEN:      fen,
		MoveTree: moveTree,
		IsAtomic: isAtomic,
	}, nil
}

// resolveLesson accepts either a catalog lesson name or a numeric id.
func resolveLesson(cat *catalog.Catalog, value string) (catalog.Lesson, error) {
	if lesson, ok := cat.ByName(value); ok {
		return lesson, nil
	}
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		if lesson, ok := cat.ByID(id); ok {
			return lesson, nil
		}
	}
	return catalog.Lesson{}, fmt.Errorf("unknown lesson %q", value)
}
