package sqlite

import (
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDriverInfo(t *testing.T) {
	info := GetInfo()

	if info.DriverName == "" {
		t.Error("DriverName should not be empty")
	}

	if info.DriverType == "" {
		t.Error("DriverType should not be empty")
	}

	if info.Package == "" {
		t.Error("Package should not be empty")
	}

	// Verify consistency
	if info.DriverName != DriverName() {
		t.Errorf("DriverName mismatch: info=%s, func=%s", info.DriverName, DriverName())
	}

	if info.DriverType != DriverType() {
		t.Errorf("DriverType mismatch: info=%s, func=%s", info.DriverType, DriverType())
	}

	if info.IsCGO != IsCGO() {
		t.Errorf("IsCGO mismatch: info=%v, func=%v", info.IsCGO, IsCGO())
	}

	want := []string{"merge_numbits", "numbits_any_intersection", "num_in_numbits"}
	if !slices.Equal(info.Functions, want) {
		t.Errorf("Functions = %v, want %v", info.Functions, want)
	}

	t.Logf("SQLite driver: %s (%s) from %s", info.DriverName, info.DriverType, info.Package)
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE test (id INTEGER PRIMARY KEY, numbits BLOB)`)
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	_, err = db.Exec(`INSERT INTO test (numbits) VALUES (?)`, []byte{0x09, 0x02})
	if err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	var got []byte
	err = db.QueryRow(`SELECT numbits FROM test WHERE id = 1`).Scan(&got)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}

	if !slices.Equal(got, []byte{0x09, 0x02}) {
		t.Errorf("expected 0902, got %x", got)
	}
}

func TestOpenReadOnly(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE test (id INTEGER PRIMARY KEY, numbits BLOB)`)
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	_, err = db.Exec(`INSERT INTO test (numbits) VALUES (?)`, []byte{0x10})
	if err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	db.Close()

	rodb, err := OpenReadOnly(dbPath)
	if err != nil {
		t.Fatalf("failed to open read-only: %v", err)
	}
	defer rodb.Close()

	var in int64
	err = rodb.QueryRow(`SELECT num_in_numbits(4, numbits) FROM test WHERE id = 1`).Scan(&in)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if in != 1 {
		t.Errorf("expected 1, got %d", in)
	}

	if _, err := rodb.Exec(`INSERT INTO test (numbits) VALUES (x'01')`); err == nil {
		t.Error("write succeeded on a read-only database")
	}
}

func TestOpenReadOnlyEscapesPath(t *testing.T) {
	for _, name := range []string{"cov#1.db", "cov 50%.db", "cov?x=1.db"} {
		t.Run(name, func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), name)
			u := url.URL{Scheme: "file", Path: dbPath, OmitHost: true}

			db, err := Open(u.String())
			if err != nil {
				t.Fatalf("failed to open database: %v", err)
			}
			if _, err := db.Exec(`CREATE TABLE test (numbits BLOB)`); err != nil {
				t.Fatalf("failed to create table: %v", err)
			}
			if _, err := db.Exec(`INSERT INTO test VALUES (x'02')`); err != nil {
				t.Fatalf("failed to insert: %v", err)
			}
			db.Close()

			if _, err := os.Stat(dbPath); err != nil {
				t.Fatalf("database not created at %s: %v", dbPath, err)
			}

			rodb, err := OpenReadOnly(dbPath)
			if err != nil {
				t.Fatalf("failed to open read-only: %v", err)
			}
			defer rodb.Close()

			var in int64
			if err := rodb.QueryRow(`SELECT num_in_numbits(1, numbits) FROM test`).Scan(&in); err != nil {
				t.Fatalf("failed to query: %v", err)
			}
			if in != 1 {
				t.Errorf("expected 1, got %d", in)
			}
		})
	}
}

func TestMustOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	// Should not panic for valid path
	db := MustOpen(dbPath)
	db.Close()
}

func TestRegisterFunctionsIdempotent(t *testing.T) {
	for i := 0; i < 3; i++ {
		if err := RegisterFunctions(); err != nil {
			t.Fatalf("RegisterFunctions call %d: %v", i+1, err)
		}
	}
}

func TestDriverTypeConsistency(t *testing.T) {
	driverType := DriverType()

	switch driverType {
	case "purego":
		if IsCGO() {
			t.Error("IsCGO() should be false for purego driver")
		}
		if DriverName() != "sqlite" {
			t.Errorf("purego driver should use 'sqlite' name, got '%s'", DriverName())
		}
	case "cgo":
		if !IsCGO() {
			t.Error("IsCGO() should be true for cgo driver")
		}
		if DriverName() != "sqlite3_numbits" {
			t.Errorf("cgo driver should use 'sqlite3_numbits' name, got '%s'", DriverName())
		}
	default:
		t.Errorf("unknown driver type: %s", driverType)
	}
}
