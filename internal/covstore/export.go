package covstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/FocuswithJustin/numbits/core/errors"
	"github.com/FocuswithJustin/numbits/core/numbits"
	"github.com/FocuswithJustin/numbits/internal/linespec"
	"github.com/FocuswithJustin/numbits/internal/logging"
)

// exportRecord is one line of an export stream.
type exportRecord struct {
	Path    string `json:"path"`
	Context string `json:"context"`
	Lines   string `json:"lines"`
}

// Export writes every record as JSON lines through the given codec and
// returns the number of records written.
func (s *Store) Export(ctx context.Context, w io.Writer, c Compression) (int, error) {
	if c == CompressionAuto {
		return 0, errors.NewUnsupported("compression", "auto is only valid for import")
	}
	start := time.Now()

	records, err := s.Records(ctx)
	if err != nil {
		return 0, err
	}

	cw, err := newCompressWriter(w, c)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(cw)
	for _, r := range records {
		rec := exportRecord{
			Path:    r.Path,
			Context: r.Context,
			Lines:   linespec.Format(numbits.Decode(r.Numbits)),
		}
		if err := enc.Encode(rec); err != nil {
			cw.Close()
			return 0, errors.NewIO("write", "", err)
		}
	}
	if err := cw.Close(); err != nil {
		return 0, errors.NewIO("flush", "", err)
	}

	logging.TransferDone(s.logCtx(ctx), "export", string(c), len(records), time.Since(start))
	return len(records), nil
}

// Import reads a stream produced by Export and records its lines. Use
// CompressionAuto to detect the codec.
func (s *Store) Import(ctx context.Context, r io.Reader, c Compression) (int, error) {
	start := time.Now()

	rc, err := newDecompressReader(r, c)
	if err != nil {
		return 0, errors.NewIO("open stream", "", err)
	}
	defer rc.Close()

	byContext := make(map[string]map[string][]int)
	count := 0
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		count++
		var rec exportRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return 0, errors.NewParse("export record", "", fmt.Sprintf("record %d: %v", count, err))
		}
		if rec.Path == "" {
			return 0, errors.NewParse("export record", "", fmt.Sprintf("record %d: missing path", count))
		}
		nums, err := linespec.Parse(rec.Lines)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", count, err)
		}
		if byContext[rec.Context] == nil {
			byContext[rec.Context] = make(map[string][]int)
		}
		byContext[rec.Context][rec.Path] = append(byContext[rec.Context][rec.Path], nums...)
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.NewIO("read", "", err)
	}

	batch := make(map[string]map[string][]byte, len(byContext))
	for measurement, lines := range byContext {
		blobs := make(map[string][]byte, len(lines))
		for path, nums := range lines {
			if len(nums) == 0 {
				continue
			}
			b, err := numbits.Encode(nums)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", path, err)
			}
			blobs[path] = b
		}
		batch[measurement] = blobs
	}
	if err := s.addBatch(ctx, batch); err != nil {
		return 0, err
	}

	logging.TransferDone(s.logCtx(ctx), "import", string(c), count, time.Since(start))
	return count, nil
}
