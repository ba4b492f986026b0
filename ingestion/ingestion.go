package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"quiz-server/models"
	"quiz-server/utils"
)

const (
	sourceCSV  = "csv_import"
	sourceSeed = "seed"
	listSep    = "|"
)

// Columns of the question CSV, in order.
var csvHeader = []string{"id", "question_text", "options", "correct_answers", "explanation", "image_filename"}

var ErrBadHeader = errors.New("unexpected CSV header")

// Importer writes a batch of questions in one transaction.
type Importer interface {
	ImportQuestions(ctx context.Context, qs []models.Question, deleteAll bool) (inserted, updated int, err error)
}

// ErrorLogger records row-level problems, normally into the error_logs table.
type ErrorLogger interface {
	LogError(ctx context.Context, source, filePath string, lineNumber int, fieldName, errMsg string)
}

// RowError is a validation failure on one CSV line (1-based, header is line 1).
type RowError struct {
	Line  int    `json:"line"`
	Field string `json:"field,omitempty"`
	Err   string `json:"error"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d (%s): %s", e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Err)
}

// Report summarises an import. When Errors is non-empty nothing was written.
type Report struct {
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Errors   []RowError `json:"errors,omitempty"`
}

// ParseQuestionsCSV reads questions with the columns
// id,question_text,options,correct_answers,explanation,image_filename. A leading
// UTF-8 BOM is ignored, lists are "|"-separated and an empty id means "assign one".
func ParseQuestionsCSV(r io.Reader) ([]models.Question, []RowError, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: file is empty", ErrBadHeader)
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, nil, err
	}

	var (
		questions []models.Question
		rowErrs   []RowError
		seenIDs   = make(map[int]int) // id -> line
	)
	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}
		if len(row) < len(csvHeader) {
			rowErrs = append(rowErrs, RowError{Line: line, Err: fmt.Sprintf("expected %d columns, got %d", len(csvHeader), len(row))})
			continue
		}

		q := models.Question{
			QuestionText:   strings.TrimSpace(row[1]),
			Options:        utils.SplitList(row[2], listSep),
			CorrectAnswers: utils.SplitList(row[3], listSep),
			Explanation:    utils.OptionalString(row[4]),
			ImageFilename:  utils.OptionalString(row[5]),
		}
		if idStr := strings.TrimSpace(row[0]); idStr != "" {
			id, err := strconv.Atoi(idStr)
			if err != nil || id <= 0 {
				rowErrs = append(rowErrs, RowError{Line: line, Field: "id", Err: fmt.Sprintf("invalid id %q", idStr)})
				continue
			}
			if prev, dup := seenIDs[id]; dup {
				rowErrs = append(rowErrs, RowError{Line: line, Field: "id", Err: fmt.Sprintf("id %d already used on line %d", id, prev)})
				continue
			}
			seenIDs[id] = line
			q.ID = id
		}
		if err := q.Validate(); err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Field: fieldFor(err), Err: err.Error()})
			continue
		}
		questions = append(questions, q)
	}
	return questions, rowErrs, nil
}

func checkHeader(header []string) error {
	if len(header) < len(csvHeader) {
		return fmt.Errorf("%w: want %s", ErrBadHeader, strings.Join(csvHeader, ","))
	}
	for i, col := range csvHeader {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i+1, header[i], col)
		}
	}
	return nil
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func fieldFor(err error) string {
	switch {
	case errors.Is(err, models.ErrQuestionTextRequired):
		return "question_text"
	case errors.Is(err, models.ErrOptionsRequired):
		return "options"
	default:
		return "correct_answers"
	}
}

// ImportQuestionsCSV parses r and, when every row is valid, writes all questions in
// one transaction. Invalid rows are logged and reported; in that case nothing is
// written.
func ImportQuestionsCSV(ctx context.Context, imp Importer, errLog ErrorLogger, fileName string, r io.Reader, deleteAll bool) (*Report, error) {
	questions, rowErrs, err := ParseQuestionsCSV(r)
	if err != nil {
		errLog.LogError(ctx, sourceCSV, fileName, 0, "", err.Error())
		return nil, err
	}
	report := &Report{Errors: rowErrs}
	if len(rowErrs) > 0 {
		for _, re := range rowErrs {
			errLog.LogError(ctx, sourceCSV, fileName, re.Line, re.Field, re.Err)
		}
		return report, nil
	}
	if len(questions) == 0 {
		return report, nil
	}
	report.Inserted, report.Updated, err = imp.ImportQuestions(ctx, questions, deleteAll)
	if err != nil {
		errLog.LogError(ctx, sourceCSV, fileName, 0, "", err.Error())
		return nil, fmt.Errorf("import questions: %w", err)
	}
	return report, nil
}

// SeedFile is the YAML document loaded by the seed command.
type SeedFile struct {
	Questions []SeedQuestion `yaml:"questions"`
}

type SeedQuestion struct {
	ID             int      `yaml:"id"`
	QuestionText   string   `yaml:"question_text"`
	Options        []string `yaml:"options"`
	CorrectAnswers []string `yaml:"correct_answers"`
	Explanation    string   `yaml:"explanation"`
	ImageFilename  string   `yaml:"image_filename"`
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(data []byte) ([]models.Question, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seed file: %w", err)
	}
	qs := make([]models.Question, 0, len(seed.Questions))
	for i, sq := range seed.Questions {
		q := models.Question{
			ID:             sq.ID,
			QuestionText:   strings.TrimSpace(sq.QuestionText),
			Options:        sq.Options,
			CorrectAnswers: sq.CorrectAnswers,
			Explanation:    utils.OptionalString(sq.Explanation),
			ImageFilename:  utils.OptionalString(sq.ImageFilename),
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("seed question #%d (id %d): %w", i+1, sq.ID, err)
		}
		qs = append(qs, q)
	}
	return qs, nil
}

// LoadSeedFile reads path and imports its questions.
func LoadSeedFile(ctx context.Context, imp Importer, errLog ErrorLogger, path string, deleteAll bool) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		errLog.LogError(ctx, sourceSeed, path, 0, "", err.Error())
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	qs, err := ParseSeed(data)
	if err != nil {
		errLog.LogError(ctx, sourceSeed, path, 0, "", err.Error())
		return nil, err
	}
	ins, upd, err := imp.ImportQuestions(ctx, qs, deleteAll)
	if err != nil {
		return nil, fmt.Errorf("import seed questions: %w", err)
	}
	return &Report{Inserted: ins, Updated: upd}, nil
}
