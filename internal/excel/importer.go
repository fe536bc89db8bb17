package excel

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

	"github.com/example/lingobot/pkg/models"
)

// WordWriter persists imported vocabulary. Satisfied by the database
// vocab repository.
type WordWriter interface {
	Upsert(ctx context.Context, word *models.VocabWord) (created bool, err error)
}

// ImportConfig defines the import configuration.
type ImportConfig struct {
	FilePath     string // Path to the Excel or CSV file
	SheetName    string // Sheet to import from (Excel only)
	StartRow     int    // Row to start importing from (1-based)
	WordCol      int    // 0-based column indexes
	MeaningCol   int
	LessonCol    int
	PartCol      int
	GrammarCol   int
	FrequencyCol int
}

// DefaultImportConfig returns the standard column layout: word, meaning,
// lesson, part of speech, grammar note, frequency tier.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SheetName:    "Sheet1",
		StartRow:     2, // skip header
		WordCol:      0,
		MeaningCol:   1,
		LessonCol:    2,
		PartCol:      3,
		GrammarCol:   4,
		FrequencyCol: 5,
	}
}

// ImportResult holds the outcome of an import operation.
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// Importer loads vocabulary files into the catalogue.
type Importer struct {
	words WordWriter
}

// NewImporter creates an importer writing through the given repository.
func NewImporter(words WordWriter) *Importer {
	return &Importer{words: words}
}

// ImportWords imports vocabulary from an Excel or CSV file, dispatching
// on the file extension.
func (imp *Importer) ImportWords(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		return imp.importFromCSV(ctx, config)
	}
	return imp.importFromExcel(ctx, config)
}

func (imp *Importer) importFromExcel(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		result.TotalProcessed++
		if err := imp.processRow(ctx, row, config, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}
	return result, nil
}

func (imp *Importer) importFromCSV(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	result := &ImportResult{Errors: make([]string, 0)}
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}

		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		result.TotalProcessed++
		if err := imp.processRow(ctx, row, config, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}
	return result, nil
}

// processRow turns one file row into an upsert. Rows without a word or a
// meaning are counted as skipped, not as errors, so half-filled template
// rows don't flood the report.
func (imp *Importer) processRow(ctx context.Context, row []string, config ImportConfig, result *ImportResult) error {
	word := strings.TrimSpace(cell(row, config.WordCol))
	meaning := strings.TrimSpace(cell(row, config.MeaningCol))
	if word == "" || meaning == "" {
		result.Skipped++
		return nil
	}

	lesson := 1
	if raw := strings.TrimSpace(cell(row, config.LessonCol)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid lesson number %q", raw)
		}
		lesson = n
	}

	// Frequency tiers are small positive ints; blank or junk cells fall
	// back to the untiered default rather than failing the row.
	tier := 0
	if raw := strings.TrimSpace(cell(row, config.FrequencyCol)); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			tier = n
		}
	}

	entry := &models.VocabWord{
		Word:          word,
		Meaning:       meaning,
		Lesson:        lesson,
		PartOfSpeech:  strings.TrimSpace(cell(row, config.PartCol)),
		Grammar:       strings.TrimSpace(cell(row, config.GrammarCol)),
		FrequencyTier: tier,
	}

	created, err := imp.words.Upsert(ctx, entry)
	if err != nil {
		return err
	}
	if created {
		result.Created++
	} else {
		result.Updated++
	}
	return nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
