package covstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/FocuswithJustin/numbits/core/errors"
	"github.com/FocuswithJustin/numbits/core/numbits"
	"github.com/FocuswithJustin/numbits/internal/logging"
)

// Record is one stored (file, context) row.
type Record struct {
	Path    string
	Context string
	Numbits []byte
}

// Stats summarizes a data file.
type Stats struct {
	Files    int
	Contexts int
	Records  int
	// Lines is the number of distinct executed lines summed over files.
	Lines uint64
}

const recordSelect = `
	SELECT f.path, c.context, lb.numbits
	FROM line_bits lb
	JOIN file f ON f.id = lb.file_id
	JOIN context c ON c.id = lb.context_id`

// Files returns every measured file path in sorted order.
func (s *Store) Files(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT path FROM file ORDER BY path`)
}

// Contexts returns every measurement context in sorted order.
func (s *Store) Contexts(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT context FROM context ORDER BY context`)
}

// Lines returns the lines of path executed in any context.
func (s *Store) Lines(ctx context.Context, path string) ([]int, error) {
	if err := s.requireFile(ctx, path); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT lb.numbits FROM line_bits lb
		JOIN file f ON f.id = lb.file_id
		WHERE f.path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var all []byte
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("failed to scan numbits: %w", err)
		}
		all = numbits.Union(all, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return numbits.Decode(all), nil
}

// ContextsForLine returns the contexts that executed line of path.
func (s *Store) ContextsForLine(ctx context.Context, path string, line int) ([]string, error) {
	if line < 0 {
		return nil, &errors.ValidationError{Field: "line", Message: "must be non-negative", Value: strconv.Itoa(line)}
	}
	if err := s.requireFile(ctx, path); err != nil {
		return nil, err
	}
	return s.strings(ctx, `
		SELECT c.context FROM line_bits lb
		JOIN file f ON f.id = lb.file_id
		JOIN context c ON c.id = lb.context_id
		WHERE f.path = ? AND num_in_numbits(?, lb.numbits)
		ORDER BY c.context`, path, line)
}

// ContextsTouching returns the contexts that executed at least one of lines
// in path. An empty lines slice matches nothing.
func (s *Store) ContextsTouching(ctx context.Context, path string, lines []int) ([]string, error) {
	if err := s.requireFile(ctx, path); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	query, err := numbits.Encode(lines)
	if err != nil {
		return nil, err
	}
	return s.strings(ctx, `
		SELECT c.context FROM line_bits lb
		JOIN file f ON f.id = lb.file_id
		JOIN context c ON c.id = lb.context_id
		WHERE f.path = ? AND numbits_any_intersection(lb.numbits, ?)
		ORDER BY c.context`, path, query)
}

// EquivalentContexts groups the contexts that executed exactly the same
// lines of path. Only groups with more than one context are returned.
func (s *Store) EquivalentContexts(ctx context.Context, path string) ([][]string, error) {
	if err := s.requireFile(ctx, path); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT lb.digest, c.context FROM line_bits lb
		JOIN file f ON f.id = lb.file_id
		JOIN context c ON c.id = lb.context_id
		WHERE f.path = ?
		ORDER BY lb.digest, c.context`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query digests: %w", err)
	}
	defer rows.Close()

	var (
		groups  [][]string
		current []string
		last    string
	)
	flush := func() {
		if len(current) > 1 {
			groups = append(groups, current)
		}
		current = nil
	}
	for rows.Next() {
		var digest, name string
		if err := rows.Scan(&digest, &name); err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}
		if digest != last {
			flush()
			last = digest
		}
		current = append(current, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	flush()
	return groups, nil
}

// Records returns every stored row ordered by path then context.
func (s *Store) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, recordSelect+` ORDER BY f.path, c.context`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Path, &r.Context, &r.Numbits); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Merge adds every record of other into s. Lines already present are kept.
func (s *Store) Merge(ctx context.Context, other *Store) error {
	records, err := other.Records(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		logging.WarnContext(s.logCtx(ctx), "merge_source_empty", "from", other.Path())
		return nil
	}
	byContext := make(map[string]map[string][]byte)
	for _, r := range records {
		if byContext[r.Context] == nil {
			byContext[r.Context] = make(map[string][]byte)
		}
		byContext[r.Context][r.Path] = r.Numbits
	}
	if err := s.addBatch(ctx, byContext); err != nil {
		return fmt.Errorf("merge %s: %w", other.Path(), err)
	}
	logging.InfoContext(s.logCtx(ctx), "store_merged", "from", other.Path(), "records", len(records))
	return nil
}

// Stats counts files, contexts and rows, and the distinct executed lines of
// each file summed over all files.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return Stats{}, err
	}
	perFile := make(map[string]*roaring.Bitmap)
	contexts := make(map[string]struct{})
	for _, r := range records {
		rb := perFile[r.Path]
		if rb == nil {
			rb = roaring.New()
			perFile[r.Path] = rb
		}
		rb.Or(numbits.ToBitmap(r.Numbits))
		contexts[r.Context] = struct{}{}
	}

	st := Stats{Files: len(perFile), Contexts: len(contexts), Records: len(records)}
	for _, rb := range perFile {
		st.Lines += rb.GetCardinality()
	}
	return st, nil
}

func (s *Store) requireFile(ctx context.Context, path string) error {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM file WHERE path = ?`, path).Scan(&id)
	if err == sql.ErrNoRows {
		return errors.NewNotFound("file", path)
	}
	if err != nil {
		return fmt.Errorf("failed to look up file: %w", err)
	}
	return nil
}

func (s *Store) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
