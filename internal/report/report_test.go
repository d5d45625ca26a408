package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tejzpr/checkup-bot/internal/submission"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	subs  []submission.Submission
	calls int
	since time.Time
}

func (f *fakeSource) ListSince(_ context.Context, since time.Time) ([]submission.Submission, error) {
	f.calls++
	f.since = since
	return f.subs, nil
}

var reportNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func sample(id string) submission.Submission {
	return submission.Submission{
		ID:              id,
		UserID:          99,
		DisplayName:     "bob",
		Address:         "Main St 5",
		CadastralNumber: "none",
		RequesterRole:   "Agent",
		Comment:         strings.Repeat("x", 100),
		CreatedAt:       reportNow.Add(-time.Hour),
	}
}

func TestParseLookback(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 7, false},
		{"  ", 7, false},
		{"30", 30, false},
		{"0", 0, false},
		{"abc", 0, true},
		{"-3", 0, true},
		{"1.5", 0, true},
		{"3 days", 0, true},
	}
	for _, c := range cases {
		got, err := ParseLookback(c.in)
		if c.wantErr {
			if !errors.Is(err, ErrInvalidLookback) {
				t.Errorf("ParseLookback(%q): expected ErrInvalidLookback, got %v", c.in, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("ParseLookback(%q) = %d, %v; want %d", c.in, got, err, c.want)
		}
	}
}

func TestGenerateZeroDaysSkipsQuery(t *testing.T) {
	src := &fakeSource{subs: []submission.Submission{sample("a")}}
	g := &Generator{Source: src, Now: func() time.Time { return reportNow }}

	rep, err := g.Generate(context.Background(), 0)
	if !errors.Is(err, ErrNoSubmissions) {
		t.Fatalf("expected ErrNoSubmissions, got %v", err)
	}
	if rep != nil {
		t.Error("no report should be built")
	}
	if src.calls != 0 {
		t.Error("zero-day window should not query the store")
	}
}

func TestGenerateEmptyWindow(t *testing.T) {
	src := &fakeSource{}
	g := &Generator{Source: src, Now: func() time.Time { return reportNow }}
	if _, err := g.Generate(context.Background(), 3); !errors.Is(err, ErrNoSubmissions) {
		t.Fatalf("expected ErrNoSubmissions, got %v", err)
	}
	if want := reportNow.AddDate(0, 0, -3); !src.since.Equal(want) {
		t.Errorf("expected window start %s, got %s", want, src.since)
	}
}

func TestGenerateWorkbook(t *testing.T) {
	src := &fakeSource{subs: []submission.Submission{sample("new"), sample("old")}}
	g := &Generator{Source: src, Now: func() time.Time { return reportNow }}

	rep, err := g.Generate(context.Background(), 30)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if rep.Filename != "requests_report_30d.xlsx" {
		t.Errorf("unexpected filename %q", rep.Filename)
	}
	if rep.Count != 2 {
		t.Errorf("expected count 2, got %d", rep.Count)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rep.Data))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(Header, "|") {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "new" || rows[2][0] != "old" {
		t.Errorf("rows out of order: %v / %v", rows[1][0], rows[2][0])
	}
	if rows[1][1] != "99" || rows[1][7] != "2026-06-15 09:00:00" {
		t.Errorf("unexpected row %v", rows[1])
	}

	w, err := f.GetColWidth(sheetName, "G")
	if err != nil {
		t.Fatal(err)
	}
	if w != maxColumnWide {
		t.Errorf("expected comment column capped at %d, got %v", maxColumnWide, w)
	}
	w, err = f.GetColWidth(sheetName, "B")
	if err != nil {
		t.Fatal(err)
	}
	if w != float64(len("User ID")+2) {
		t.Errorf("expected auto width %d, got %v", len("User ID")+2, w)
	}
}
