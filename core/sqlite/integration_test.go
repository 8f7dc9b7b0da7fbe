package sqlite_test

import (
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/FocuswithJustin/numbits/core/numbits"
	"github.com/FocuswithJustin/numbits/core/sqlite"
)

// setupTestDB creates a database holding, for id i in 1..10, the multiples
// of i below 100.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE data (id INTEGER, numbits BLOB)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	for i := 1; i <= 10; i++ {
		var nums []int
		for n := i; n < 100; n += i {
			nums = append(nums, n)
		}
		blob, err := numbits.Encode(nums)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if _, err := db.Exec(`INSERT INTO data (id, numbits) VALUES (?, ?)`, i, blob); err != nil {
			t.Fatalf("failed to insert row %d: %v", i, err)
		}
	}
	return db
}

func mustEncode(t *testing.T, nums ...int) []byte {
	t.Helper()
	b, err := numbits.Encode(nums)
	if err != nil {
		t.Fatalf("Encode(%v): %v", nums, err)
	}
	return b
}

func TestIntegrationMergeNumbits(t *testing.T) {
	db := setupTestDB(t)

	var merged []byte
	err := db.QueryRow(`SELECT merge_numbits(
		(SELECT numbits FROM data WHERE id = 7),
		(SELECT numbits FROM data WHERE id = 9))`).Scan(&merged)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}

	want := []int{7, 9, 14, 18, 21, 27, 28, 35, 36, 42, 45, 49,
		54, 56, 63, 70, 72, 77, 81, 84, 90, 91, 98, 99}
	if got := numbits.Decode(merged); !slices.Equal(got, want) {
		t.Errorf("merge_numbits = %v, want %v", got, want)
	}
}

func TestIntegrationAnyIntersection(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name string
		a, b []byte
		want int64
	}{
		{"overlap", mustEncode(t, 1, 2, 3), mustEncode(t, 3, 4, 5), 1},
		{"disjoint", mustEncode(t, 1, 2, 3), mustEncode(t, 7, 8, 9), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int64
			err := db.QueryRow(`SELECT numbits_any_intersection(?, ?)`, tt.a, tt.b).Scan(&got)
			if err != nil {
				t.Fatalf("failed to query: %v", err)
			}
			if got != tt.want {
				t.Errorf("numbits_any_intersection = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIntegrationNumInNumbits(t *testing.T) {
	db := setupTestDB(t)

	rows, err := db.Query(`SELECT id, num_in_numbits(12, numbits) FROM data ORDER BY id`)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	defer rows.Close()

	var got []int64
	for rows.Next() {
		var id, in int64
		if err := rows.Scan(&id, &in); err != nil {
			t.Fatalf("failed to scan: %v", err)
		}
		got = append(got, in)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows error: %v", err)
	}

	want := []int64{1, 1, 1, 1, 0, 1, 0, 0, 0, 0}
	if !slices.Equal(got, want) {
		t.Errorf("num_in_numbits(12, ...) = %v, want %v", got, want)
	}
}

func TestIntegrationFilterInWhere(t *testing.T) {
	db := setupTestDB(t)

	query := mustEncode(t, 35)
	rows, err := db.Query(`SELECT id FROM data WHERE numbits_any_intersection(numbits, ?) ORDER BY id`, query)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("failed to scan: %v", err)
		}
		ids = append(ids, id)
	}
	if want := []int{1, 5, 7}; !slices.Equal(ids, want) {
		t.Errorf("ids intersecting {35} = %v, want %v", ids, want)
	}
}

func TestIntegrationTrailingZeroBlob(t *testing.T) {
	db := setupTestDB(t)

	var in int64
	err := db.QueryRow(`SELECT num_in_numbits(3, x'08000000')`).Scan(&in)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if in != 1 {
		t.Errorf("num_in_numbits(3, x'08000000') = %d, want 1", in)
	}

	var far int64
	err = db.QueryRow(`SELECT num_in_numbits(1000000, numbits) FROM data WHERE id = 1`).Scan(&far)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if far != 0 {
		t.Errorf("num_in_numbits(1000000, ...) = %d, want 0", far)
	}
}

func TestIntegrationTypeErrors(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"text blob", `SELECT merge_numbits('abc', numbits) FROM data WHERE id = 1`, "argument 1 must be blob"},
		{"integer blob", `SELECT numbits_any_intersection(numbits, 5) FROM data WHERE id = 1`, "argument 2 must be blob"},
		{"real number", `SELECT num_in_numbits(1.5, numbits) FROM data WHERE id = 1`, "argument 1 must be integer"},
		{"negative number", `SELECT num_in_numbits(-1, numbits) FROM data WHERE id = 1`, "must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v any
			err := db.QueryRow(tt.query).Scan(&v)
			if err == nil {
				t.Fatalf("query succeeded with %v, want error", v)
			}
			if errors.Is(err, sql.ErrNoRows) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
