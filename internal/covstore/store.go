// Package covstore keeps per-context line coverage in a SQLite data file.
//
// Each (file, context) pair owns one numbits row. Recording more lines for an
// existing pair merges them inside SQLite with merge_numbits, and lookups such
// as "which tests ran line 17" are answered with num_in_numbits and
// numbits_any_intersection in the WHERE clause, so stored blobs are never
// decoded in Go just to be filtered.
package covstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/numbits/core/errors"
	"github.com/FocuswithJustin/numbits/core/numbits"
	"github.com/FocuswithJustin/numbits/core/sqlite"
	"github.com/FocuswithJustin/numbits/internal/logging"
	"github.com/FocuswithJustin/numbits/internal/validation"
)

// SchemaVersion is written to the meta table of new data files.
const SchemaVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS file (
	id INTEGER PRIMARY KEY,
	path TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS context (
	id INTEGER PRIMARY KEY,
	context TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS line_bits (
	file_id INTEGER NOT NULL REFERENCES file (id),
	context_id INTEGER NOT NULL REFERENCES context (id),
	numbits BLOB NOT NULL,
	digest TEXT NOT NULL,
	UNIQUE (file_id, context_id)
);
`

// Options configures Open.
type Options struct {
	// Path is the data file location. It is created if missing unless
	// ReadOnly is set.
	Path string

	// ReadOnly opens an existing data file without write access.
	ReadOnly bool
}

// Store is an open coverage data file. It is safe for concurrent use.
type Store struct {
	db    *sql.DB
	path  string
	runID string
}

// Open opens or creates the data file described by opts.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.NewValidation("path", "data file path is required")
	}

	_, statErr := os.Stat(opts.Path)
	created := os.IsNotExist(statErr)
	if created && opts.ReadOnly {
		return nil, errors.NewNotFound("data file", opts.Path)
	}

	var (
		db  *sql.DB
		err error
	)
	if opts.ReadOnly {
		db, err = sqlite.OpenReadOnly(opts.Path)
	} else {
		db, err = sqlite.Open(opts.Path)
	}
	if err != nil {
		return nil, errors.NewIO("open", opts.Path, err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY
	// between pooled connections.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: opts.Path}
	if !opts.ReadOnly {
		if err := s.init(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	s.runID, err = s.meta(ctx, "run_id")
	if err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreOpened(logging.WithRunID(ctx, s.runID), opts.Path, created, "read_only", opts.ReadOnly)
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	defaults := [][2]string{
		{"version", SchemaVersion},
		{"run_id", uuid.NewString()},
		{"created", time.Now().UTC().Format(time.RFC3339)},
	}
	for _, kv := range defaults {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`, kv[0], kv[1])
		if err != nil {
			return fmt.Errorf("failed to write meta %s: %w", kv[0], err)
		}
	}
	return nil
}

func (s *Store) meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFound("meta key", key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return v, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the data file location.
func (s *Store) Path() string {
	return s.path
}

// RunID returns the identifier assigned when the data file was created.
func (s *Store) RunID() string {
	return s.runID
}

// Version returns the schema version recorded in the data file.
func (s *Store) Version(ctx context.Context) (string, error) {
	return s.meta(ctx, "version")
}

func (s *Store) logCtx(ctx context.Context) context.Context {
	return logging.WithRunID(ctx, s.runID)
}

// AddLines records executed lines per file for one measurement context.
// Files with no lines are skipped.
func (s *Store) AddLines(ctx context.Context, measurement string, lines map[string][]int) error {
	blobs := make(map[string][]byte, len(lines))
	total := 0
	for path, nums := range lines {
		if len(nums) == 0 {
			continue
		}
		b, err := numbits.Encode(nums)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		blobs[path] = b
		total += numbits.Count(b)
	}
	if err := s.addBlobs(ctx, measurement, blobs); err != nil {
		return err
	}
	logging.LinesRecorded(s.logCtx(ctx), measurement, len(blobs), total)
	return nil
}

// AddNumbits records an already-packed set of lines for one file and
// context. An empty set is a no-op.
func (s *Store) AddNumbits(ctx context.Context, measurement, path string, blob []byte) error {
	return s.addBlobs(ctx, measurement, map[string][]byte{path: blob})
}

// AddReport records packed lines for many files under one context, as read
// from a coverage report.
func (s *Store) AddReport(ctx context.Context, measurement string, files map[string][]byte) error {
	if err := s.addBlobs(ctx, measurement, files); err != nil {
		return err
	}
	total := 0
	for _, b := range files {
		total += numbits.Count(b)
	}
	logging.LinesRecorded(s.logCtx(ctx), measurement, len(files), total, "source", "report")
	return nil
}

func (s *Store) addBlobs(ctx context.Context, measurement string, blobs map[string][]byte) error {
	return s.addBatch(ctx, map[string]map[string][]byte{measurement: blobs})
}

// addBatch records blobs for several contexts in one transaction. Every key
// is validated before anything is written, and nothing is written if any
// upsert fails.
func (s *Store) addBatch(ctx context.Context, batch map[string]map[string][]byte) error {
	for measurement, blobs := range batch {
		if err := validateKeys(measurement, blobs); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for measurement, blobs := range batch {
		if err := addBlobsTx(ctx, tx, measurement, blobs); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func validateKeys(measurement string, blobs map[string][]byte) error {
	if err := validation.ValidateContext(measurement); err != nil {
		return &errors.ValidationError{Field: "context", Value: measurement, Message: err.Error()}
	}
	for path := range blobs {
		if err := validation.ValidateSourcePath(path); err != nil {
			return &errors.ValidationError{Field: "path", Value: path, Message: err.Error()}
		}
	}
	return nil
}

func addBlobsTx(ctx context.Context, tx *sql.Tx, measurement string, blobs map[string][]byte) error {
	contextID, err := upsertID(ctx, tx, "context", "context", measurement)
	if err != nil {
		return err
	}
	for path, blob := range blobs {
		if numbits.Count(blob) == 0 {
			continue
		}
		fileID, err := upsertID(ctx, tx, "file", "path", path)
		if err != nil {
			return err
		}
		if err := upsertLineBits(ctx, tx, fileID, contextID, blob); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// upsertID returns the id of the row in table whose column equals value,
// inserting it first if needed.
func upsertID(ctx context.Context, tx *sql.Tx, table, column, value string) (int64, error) {
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?) ON CONFLICT (%s) DO NOTHING`, table, column, column), value)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s %q: %w", table, value, err)
	}
	var id int64
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE %s = ?`, table, column), value).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to look up %s %q: %w", table, value, err)
	}
	return id, nil
}

func upsertLineBits(ctx context.Context, tx *sql.Tx, fileID, contextID int64, blob []byte) error {
	var merged []byte
	err := tx.QueryRowContext(ctx, `
		INSERT INTO line_bits (file_id, context_id, numbits, digest) VALUES (?, ?, ?, ?)
		ON CONFLICT (file_id, context_id)
		DO UPDATE SET numbits = merge_numbits(line_bits.numbits, excluded.numbits)
		RETURNING numbits`,
		fileID, contextID, blob, numbits.Digest(blob)).Scan(&merged)
	if err != nil {
		return fmt.Errorf("failed to store line bits: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE line_bits SET digest = ? WHERE file_id = ? AND context_id = ?`,
		numbits.Digest(merged), fileID, contextID)
	if err != nil {
		return fmt.Errorf("failed to update digest: %w", err)
	}
	return nil
}
