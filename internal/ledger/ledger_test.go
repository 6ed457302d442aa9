package ledger

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cctally/cctally/internal/domain"
)

func testWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	return w
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return rows
}

func TestInitAll_CreatesEveryCategoryWithHeader(t *testing.T) {
	w := testWriter(t)

	if err := w.InitAll(context.Background()); err != nil {
		t.Fatalf("InitAll failed: %v", err)
	}

	for _, c := range AllCategories() {
		rows := readCSV(t, w.Path(c))
		assertEqual(t, string(c)+" row count", 1, len(rows))
		assertEqual(t, string(c)+" header width", len(Header(c)), len(rows[0]))
		assertEqual(t, string(c)+" first column", "session_id", rows[0][0])
	}
}

func TestAppendTurn(t *testing.T) {
	w := testWriter(t)

	turn := &domain.Turn{
		SessionID: "sess-1",
		Turn:      1,
		StartedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
		ToolCount: 3,
		CostUSD:   0.0421,
	}
	if err := w.AppendTurn(turn); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	rows := readCSV(t, w.Path(CategoryTurns))
	assertEqual(t, "rows", 2, len(rows))
	assertEqual(t, "session_id", "sess-1", rows[1][0])
	assertEqual(t, "turn", "1", rows[1][1])
	assertEqual(t, "started_at", "2026-03-01T09:00:00Z", rows[1][2])
	assertEqual(t, "tool_count", "3", rows[1][4])
	assertEqual(t, "cost", "0.042100", rows[1][5])
	assertEqual(t, "interrupted", "false", rows[1][6])
}

func TestAppend_EscapesDelimitersAndFormulas(t *testing.T) {
	w := testWriter(t)

	op := &domain.GitOperation{
		SessionID: "=cmd()",
		Turn:      1,
		Operation: "checkout, then pull",
		Branch:    "@hourly",
		Timestamp: time.Now().UTC(),
	}
	if err := w.AppendGitOperation(op); err != nil {
		t.Fatalf("AppendGitOperation failed: %v", err)
	}

	raw, err := os.ReadFile(w.Path(CategoryGitOperations))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	text := string(raw)

	if !strings.Contains(text, "'=cmd()") {
		t.Errorf("expected formula trigger to be neutralized, got:\n%s", text)
	}
	if !strings.Contains(text, `"checkout, then pull"`) {
		t.Errorf("expected embedded comma to be quote-wrapped, got:\n%s", text)
	}
	if !strings.Contains(text, "'@hourly") {
		t.Errorf("expected @ trigger to be neutralized, got:\n%s", text)
	}

	// Round-trips through a conforming CSV reader.
	rows := readCSV(t, w.Path(CategoryGitOperations))
	assertEqual(t, "operation cell", "checkout, then pull", rows[1][2])
}

func TestNeutralizeFormula_KeepsNegativeNumbers(t *testing.T) {
	assertEqual(t, "negative int", "-5", neutralizeFormula("-5"))
	assertEqual(t, "negative float", "-0.25", neutralizeFormula("-0.25"))
	assertEqual(t, "plus number", "+12", neutralizeFormula("+12"))
	assertEqual(t, "minus text", "'-rf /", neutralizeFormula("-rf /"))
	assertEqual(t, "equals", "'=1+2", neutralizeFormula("=1+2"))
	assertEqual(t, "empty", "", neutralizeFormula(""))
}

func TestEnsure_MigratesEvolvedSchema(t *testing.T) {
	w := testWriter(t)
	path := w.Path(CategoryPrompts)

	// A prompts log written by an older build: no subcategory column, an
	// extra column since dropped, and a different column order.
	old := [][]string{
		{"session_id", "turn", "category", "prompt_length", "raw_prompt", "timestamp"},
		{"sess-1", "1", "bug_fix", "24", "fix, please", "2026-02-01T10:00:00Z"},
		{"sess-1", "2", "testing", "9", "add tests", "2026-02-01T10:05:00Z"},
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(old); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	f.Close()

	migrated, err := w.Ensure(CategoryPrompts)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	assertEqual(t, "migrated", true, migrated)

	// Backup preserves the original contents.
	backup := readCSV(t, path+".bak")
	assertEqual(t, "backup rows", 3, len(backup))
	assertEqual(t, "backup header width", 6, len(backup[0]))

	// Migrated file: new header, same data row count, columns remapped by name.
	rows := readCSV(t, path)
	assertEqual(t, "migrated rows", 3, len(rows))
	assertEqual(t, "header width", len(Header(CategoryPrompts)), len(rows[0]))
	assertEqual(t, "category survives reorder", "bug_fix", rows[1][2])
	assertEqual(t, "new column empty", "", rows[1][3])
	assertEqual(t, "prompt_length survives", "24", rows[1][4])
	assertEqual(t, "timestamp survives", "2026-02-01T10:00:00Z", rows[1][5])

	// raw_prompt was dropped from the schema; its values are discarded.
	for _, row := range rows {
		assertEqual(t, "row width", len(Header(CategoryPrompts)), len(row))
		for _, cell := range row {
			if strings.Contains(cell, "fix, please") {
				t.Error("dropped column's data leaked into the migrated file")
			}
		}
	}
}

func TestEnsure_NoopWhenHeaderCurrent(t *testing.T) {
	w := testWriter(t)

	if _, err := w.Ensure(CategoryTools); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	migrated, err := w.Ensure(CategoryTools)
	if err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	assertEqual(t, "migrated", false, migrated)

	if _, err := os.Stat(w.Path(CategoryTools) + ".bak"); !os.IsNotExist(err) {
		t.Error("no backup should exist for an up-to-date file")
	}
}

func TestAppend_MultipleRowsAccumulate(t *testing.T) {
	w := testWriter(t)

	for i := 1; i <= 3; i++ {
		err := w.AppendCompaction(&domain.Compaction{
			SessionID:    "sess-1",
			Turn:         i,
			Timestamp:    time.Now().UTC(),
			TokensBefore: 100_000,
			TokensAfter:  40_000,
			Reduction:    60_000,
			ReductionPct: 60,
			CompactType:  "auto",
			Trigger:      "threshold",
		})
		if err != nil {
			t.Fatalf("AppendCompaction failed: %v", err)
		}
	}

	rows := readCSV(t, filepath.Join(filepath.Dir(w.Path(CategoryCompactions)), "compactions.csv"))
	assertEqual(t, "rows", 4, len(rows))
}

func assertEqual[T comparable](t *testing.T, name string, expected, actual T) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", name, expected, actual)
	}
}
