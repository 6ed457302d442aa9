// Package ledger owns the append-only durable logs, one delimited-text file
// per metric category, each with a header row. Writes are append-only; the
// only rewrite ever performed is the explicit migrate-with-backup procedure
// when a file's header no longer matches the current schema.
package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/cctally/cctally/internal/domain"
)

// Writer appends rows to category logs under a data directory.
type Writer struct {
	dir        string
	maxRetries uint64
}

func NewWriter(dir string, retries int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if retries < 0 {
		retries = 0
	}
	return &Writer{dir: dir, maxRetries: uint64(retries)}, nil
}

// Path returns the log file backing a category.
func (w *Writer) Path(c Category) string {
	return filepath.Join(w.dir, string(c)+".csv")
}

// InitAll ensures every category file exists with the current header,
// migrating any whose schema has evolved. Categories touch disjoint files,
// so initialization fans out concurrently.
func (w *Writer) InitAll(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	for _, c := range AllCategories() {
		c := c
		g.Go(func() error {
			_, err := w.Ensure(c)
			return err
		})
	}
	return g.Wait()
}

// Ensure creates the category file with its header if absent, or migrates it
// in place when the existing header differs from the current schema. It
// reports whether a migration ran.
func (w *Writer) Ensure(c Category) (bool, error) {
	path := w.Path(c)

	existing, err := readHeader(path)
	if os.IsNotExist(err) {
		return false, w.retry(func() error { return writeHeaderFile(path, Header(c)) })
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s header: %w", c, err)
	}

	if equalHeader(existing, Header(c)) {
		return false, nil
	}

	if err := w.migrate(c, path, existing); err != nil {
		return false, fmt.Errorf("failed to migrate %s ledger: %w", c, err)
	}
	return true, nil
}

// append serializes one row and appends it to the category's log, retrying
// transient write failures a bounded number of times.
func (w *Writer) append(c Category, row []string) error {
	if _, err := w.Ensure(c); err != nil {
		return err
	}

	for i, cell := range row {
		row[i] = neutralizeFormula(cell)
	}

	return w.retry(func() error {
		f, err := os.OpenFile(w.Path(c), os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()

		cw := csv.NewWriter(f)
		if err := cw.Write(row); err != nil {
			return err
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		return f.Sync()
	})
}

// retry runs op with a short exponential backoff. A file that stays busy past
// the bounded attempts surfaces the final error.
func (w *Writer) retry(op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 25 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	return backoff.Retry(op, backoff.WithMaxRetries(bo, w.maxRetries))
}

// neutralizeFormula prefixes cells that a spreadsheet would interpret as a
// formula. Leading + and - are only neutralized when the cell is not a plain
// number, so negative values survive untouched.
func neutralizeFormula(cell string) string {
	if cell == "" {
		return cell
	}
	switch cell[0] {
	case '=', '@':
		return "'" + cell
	case '+', '-':
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return "'" + cell
		}
	}
	return cell
}

func writeHeaderFile(path string, header []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			// Lost the creation race; the winner wrote the header.
			return nil
		}
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	return header, nil
}

func equalHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

// ReadAll returns a category's data rows, excluding the header. A missing
// file reads as empty.
func (w *Writer) ReadAll(c Category) ([][]string, error) {
	rows, err := readRows(w.Path(c))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return rows, err
}

// AppendSession appends a terminal session record. Sessions are never
// rewritten in place; readers select the most recent row per session ID.
func (w *Writer) AppendSession(s *domain.Session) error {
	return w.append(CategorySessions, []string{
		s.ID, s.UserName, s.UserEmail, s.RepoURL, s.RepoName,
		s.Branch, s.HeadCommit, formatTime(s.StartedAt), formatTime(s.EndedAt),
		strconv.Itoa(s.TurnCount), formatFloat(s.TotalCostUSD),
		formatBool(s.Interrupted),
	})
}

func (w *Writer) AppendTurn(t *domain.Turn) error {
	return w.append(CategoryTurns, []string{
		t.SessionID, strconv.Itoa(t.Turn), formatTime(t.StartedAt),
		formatTime(t.EndedAt), strconv.Itoa(t.ToolCount),
		formatFloat(t.CostUSD), formatBool(t.Interrupted),
	})
}

func (w *Writer) AppendTool(t *domain.ToolInvocation) error {
	return w.append(CategoryTools, []string{
		t.SessionID, strconv.Itoa(t.Turn), t.ToolName, formatTime(t.StartedAt),
		formatTime(t.EndedAt), formatBool(t.Success),
		strconv.FormatInt(t.DurationMs, 10), strconv.Itoa(t.InputBytes),
		strconv.Itoa(t.OutputBytes),
	})
}

func (w *Writer) AppendCost(c *domain.CostRecord) error {
	return w.append(CategoryCosts, []string{
		c.SessionID, strconv.Itoa(c.Turn), c.MessageID, c.Model,
		strconv.FormatInt(c.InputTokens, 10),
		strconv.FormatInt(c.OutputTokens, 10),
		strconv.FormatInt(c.CacheWriteTokens, 10),
		strconv.FormatInt(c.CacheReadTokens, 10),
		formatFloat(c.InputCostUSD), formatFloat(c.OutputCostUSD),
		formatFloat(c.CacheWriteCostUSD), formatFloat(c.CacheReadCostUSD),
		formatFloat(c.TotalCostUSD), formatTime(c.Timestamp),
	})
}

func (w *Writer) AppendPrompt(p *domain.PromptClassification) error {
	return w.append(CategoryPrompts, []string{
		p.SessionID, strconv.Itoa(p.Turn), p.Category, p.Subcategory,
		strconv.Itoa(p.PromptLength), formatTime(p.Timestamp),
	})
}

func (w *Writer) AppendGitOperation(g *domain.GitOperation) error {
	return w.append(CategoryGitOperations, []string{
		g.SessionID, strconv.Itoa(g.Turn), g.Operation, g.Branch,
		formatTime(g.Timestamp),
	})
}

func (w *Writer) AppendCompaction(c *domain.Compaction) error {
	return w.append(CategoryCompactions, []string{
		c.SessionID, strconv.Itoa(c.Turn), formatTime(c.Timestamp),
		strconv.FormatInt(c.TokensBefore, 10),
		strconv.FormatInt(c.TokensAfter, 10),
		strconv.FormatInt(c.Reduction, 10), formatFloat(c.ReductionPct),
		c.CompactType, c.Trigger,
	})
}

func (w *Writer) AppendCommit(c *domain.Commit) error {
	return w.append(CategoryCommits, []string{
		c.SessionID, strconv.Itoa(c.Turn), c.Hash, c.Branch, c.Author,
		strconv.Itoa(c.FilesChanged), strconv.Itoa(c.Insertions),
		strconv.Itoa(c.Deletions), strconv.Itoa(c.TotalLinesChanged),
		formatTime(c.Timestamp),
	})
}
