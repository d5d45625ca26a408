// Package report builds the operator's spreadsheet export of submissions.
package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tejzpr/checkup-bot/internal/submission"
	"github.com/xuri/excelize/v2"
)

const (
	// DefaultLookbackDays is used when the command has no argument.
	DefaultLookbackDays = 7

	sheetName     = "Submissions"
	maxColumnWide = 60
)

var (
	ErrInvalidLookback = errors.New("report: lookback must be a non-negative whole number of days")
	ErrNoSubmissions   = errors.New("report: no submissions in window")
)

// Header is the first spreadsheet row.
var Header = []string{"Submission ID", "User ID", "Username", "Address", "Cadastral Number", "Requester Role", "Comment", "Date"}

// Source is the read side of the submission store.
type Source interface {
	ListSince(ctx context.Context, since time.Time) ([]submission.Submission, error)
}

// ParseLookback parses the optional day-count argument of the report command.
func ParseLookback(arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return DefaultLookbackDays, nil
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return 0, ErrInvalidLookback
		}
	}
	days, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidLookback, err)
	}
	return days, nil
}

// Usage is the reply to a malformed report command.
const Usage = "Usage: /report <days> (for example /report 30)"

// Report is a rendered workbook ready for delivery.
type Report struct {
	Filename string
	Days     int
	Count    int
	Data     []byte
}

// Generator queries a Source and renders workbooks.
type Generator struct {
	Source Source
	Now    func() time.Time
}

// Query returns the submissions created within the last days, newest first.
// A zero-day window is empty by definition and is not queried.
func (g *Generator) Query(ctx context.Context, days int) ([]submission.Submission, error) {
	if days < 0 {
		return nil, ErrInvalidLookback
	}
	if days == 0 {
		return nil, nil
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	since := now().UTC().AddDate(0, 0, -days)
	return g.Source.ListSince(ctx, since)
}

// Generate builds the report for the window. It returns ErrNoSubmissions
// without rendering anything when the window is empty.
func (g *Generator) Generate(ctx context.Context, days int) (*Report, error) {
	subs, err := g.Query(ctx, days)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrNoSubmissions
	}
	data, err := Render(subs)
	if err != nil {
		return nil, err
	}
	return &Report{
		Filename: Filename(days),
		Days:     days,
		Count:    len(subs),
		Data:     data,
	}, nil
}

// Filename names the workbook after its window.
func Filename(days int) string {
	return fmt.Sprintf("requests_report_%dd.xlsx", days)
}

// Row flattens one submission in Header order.
func Row(s submission.Submission) []string {
	return []string{
		s.ID,
		strconv.FormatInt(s.UserID, 10),
		s.DisplayName,
		s.Address,
		s.CadastralNumber,
		s.RequesterRole,
		s.Comment,
		s.CreatedAtText(),
	}
}

// Render writes a single-sheet workbook with a header row and one row per
// submission. Column widths follow the longest value, capped at 60.
func Render(subs []submission.Submission) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("report: rename sheet: %w", err)
	}

	widths := make([]int, len(Header))
	rows := make([][]string, 0, len(subs)+1)
	rows = append(rows, Header)
	for _, s := range subs {
		rows = append(rows, Row(s))
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
			if n := utf8.RuneCountInString(v); n > widths[j] {
				widths[j] = n
			}
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("report: write row %d: %w", i+1, err)
		}
	}

	for j, w := range widths {
		col, err := excelize.ColumnNumberToName(j + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetName, col, col, float64(min(w+2, maxColumnWide))); err != nil {
			return nil, fmt.Errorf("report: width %s: %w", col, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("report: encode: %w", err)
	}
	return buf.Bytes(), nil
}
