// Command numbits packs line-number sets into numbits blobs and manages
// per-context coverage data files built on them.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/numbits/core/errors"
	"github.com/FocuswithJustin/numbits/core/numbits"
	"github.com/FocuswithJustin/numbits/core/sqlite"
	"github.com/FocuswithJustin/numbits/internal/cobertura"
	"github.com/FocuswithJustin/numbits/internal/covstore"
	"github.com/FocuswithJustin/numbits/internal/linespec"
	"github.com/FocuswithJustin/numbits/internal/logging"
)

const version = "0.1.0"

// stdout receives command output. Tests replace it.
var stdout io.Writer = os.Stdout

// CLI defines the command-line interface for numbits.
var CLI struct {
	// Global flags
	DB        string `name:"db" help:"Coverage data file" default:".numbits.db" env:"NUMBITS_DB" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"warn" env:"NUMBITS_LOG_LEVEL"`
	LogFormat string `name:"log-format" help:"Log format (json, text)" default:"text" env:"NUMBITS_LOG_FORMAT"`

	// Codec operations on hex-encoded numbits
	Encode     EncodeCmd     `cmd:"" help:"Encode a line spec such as 1-5,9 as hex numbits"`
	Decode     DecodeCmd     `cmd:"" help:"Decode hex numbits to a line spec"`
	Union      UnionCmd      `cmd:"" help:"Union of two hex numbits"`
	Intersects IntersectsCmd `cmd:"" help:"Report whether two hex numbits share a number"`
	Contains   ContainsCmd   `cmd:"" help:"Report whether hex numbits contain a number"`
	Digest     DigestCmd     `cmd:"" help:"Print the BLAKE3 digest of hex numbits"`

	// Data file operations
	Record          RecordCmd          `cmd:"" help:"Record executed lines of a file for a context"`
	Lines           LinesCmd           `cmd:"" help:"Print lines of a file executed in any context"`
	WhoRan          WhoRanCmd          `cmd:"" name:"who-ran" help:"List contexts that executed a line"`
	Touching        TouchingCmd        `cmd:"" help:"List contexts that executed any of the given lines"`
	Equivalent      EquivalentCmd      `cmd:"" help:"Group contexts that executed identical lines of a file"`
	Stats           StatsCmd           `cmd:"" help:"Summarize the data file"`
	Export          ExportCmd          `cmd:"" help:"Export the data file as compressed JSON lines"`
	Import          ImportCmd          `cmd:"" help:"Import records written by export"`
	Merge           MergeCmd           `cmd:"" help:"Merge other data files into this one"`
	ImportCobertura ImportCoberturaCmd `cmd:"" name:"import-cobertura" help:"Record executed lines from Cobertura XML reports"`
	Info            InfoCmd            `cmd:"" help:"Print SQLite driver information"`
	Version         VersionCmd         `cmd:"" help:"Print version information"`
}

// EncodeCmd encodes a line spec.
type EncodeCmd struct {
	Spec string `arg:"" help:"Line spec, e.g. 3,5-9,12"`
}

func (c *EncodeCmd) Run() error {
	nums, err := linespec.Parse(c.Spec)
	if err != nil {
		return err
	}
	b, err := numbits.Encode(nums)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hex.EncodeToString(b))
	return nil
}

// DecodeCmd decodes hex numbits.
type DecodeCmd struct {
	Hex string `arg:"" help:"Hex-encoded numbits"`
}

func (c *DecodeCmd) Run() error {
	b, err := parseHex(c.Hex)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, linespec.Format(numbits.Decode(b)))
	return nil
}

// UnionCmd combines two hex numbits.
type UnionCmd struct {
	A string `arg:"" help:"First hex numbits"`
	B string `arg:"" help:"Second hex numbits"`
}

func (c *UnionCmd) Run() error {
	a, b, err := parseHexPair(c.A, c.B)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hex.EncodeToString(numbits.Union(a, b)))
	return nil
}

// IntersectsCmd tests two hex numbits for a shared member.
type IntersectsCmd struct {
	A string `arg:"" help:"First hex numbits"`
	B string `arg:"" help:"Second hex numbits"`
}

func (c *IntersectsCmd) Run() error {
	a, b, err := parseHexPair(c.A, c.B)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, numbits.Intersects(a, b))
	return nil
}

// ContainsCmd tests membership of one number.
type ContainsCmd struct {
	Num int    `arg:"" help:"Number to look for"`
	Hex string `arg:"" help:"Hex-encoded numbits"`
}

func (c *ContainsCmd) Run() error {
	b, err := parseHex(c.Hex)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, numbits.Contains(c.Num, b))
	return nil
}

// DigestCmd prints the content digest of hex numbits.
type DigestCmd struct {
	Hex string `arg:"" help:"Hex-encoded numbits"`
}

func (c *DigestCmd) Run() error {
	b, err := parseHex(c.Hex)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, numbits.Digest(b))
	return nil
}

// RecordCmd records lines for one file and context.
type RecordCmd struct {
	Context string `required:"" help:"Measurement context, e.g. a test name"`
	File    string `arg:"" help:"Source file path as stored in the data file"`
	Spec    string `arg:"" help:"Executed lines, e.g. 1-5,9"`
}

func (c *RecordCmd) Run() error {
	nums, err := linespec.Parse(c.Spec)
	if err != nil {
		return err
	}
	return withStore(false, func(ctx context.Context, s *covstore.Store) error {
		return s.AddLines(ctx, c.Context, map[string][]int{c.File: nums})
	})
}

// LinesCmd prints the executed lines of a file.
type LinesCmd struct {
	File string `arg:"" help:"Source file path"`
}

func (c *LinesCmd) Run() error {
	return withStore(true, func(ctx context.Context, s *covstore.Store) error {
		lines, err := s.Lines(ctx, c.File)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, linespec.Format(lines))
		return nil
	})
}

// WhoRanCmd lists the contexts that executed a line.
type WhoRanCmd struct {
	File string `arg:"" help:"Source file path"`
	Line int    `arg:"" help:"Line number"`
}

func (c *WhoRanCmd) Run() error {
	return withStore(true, func(ctx context.Context, s *covstore.Store) error {
		contexts, err := s.ContextsForLine(ctx, c.File, c.Line)
		if err != nil {
			return err
		}
		printLines(contexts)
		return nil
	})
}

// TouchingCmd lists the contexts that executed any line of a spec.
type TouchingCmd struct {
	File string `arg:"" help:"Source file path"`
	Spec string `arg:"" help:"Lines of interest, e.g. 10-20"`
}

func (c *TouchingCmd) Run() error {
	nums, err := linespec.Parse(c.Spec)
	if err != nil {
		return err
	}
	return withStore(true, func(ctx context.Context, s *covstore.Store) error {
		contexts, err := s.ContextsTouching(ctx, c.File, nums)
		if err != nil {
			return err
		}
		printLines(contexts)
		return nil
	})
}

// EquivalentCmd prints groups of contexts with identical coverage of a file.
type EquivalentCmd struct {
	File string `arg:"" help:"Source file path"`
}

func (c *EquivalentCmd) Run() error {
	return withStore(true, func(ctx context.Context, s *covstore.Store) error {
		groups, err := s.EquivalentContexts(ctx, c.File)
		if err != nil {
			return err
		}
		for _, g := range groups {
			fmt.Fprintln(stdout, strings.Join(g, "\t"))
		}
		return nil
	})
}

// StatsCmd summarizes the data file.
type StatsCmd struct{}

func (c *StatsCmd) Run() error {
	return withStore(true, func(ctx context.Context, s *covstore.Store) error {
		st, err := s.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "run_id:   %s\n", s.RunID())
		fmt.Fprintf(stdout, "files:    %d\n", st.Files)
		fmt.Fprintf(stdout, "contexts: %d\n", st.Contexts)
		fmt.Fprintf(stdout, "records:  %d\n", st.Records)
		fmt.Fprintf(stdout, "lines:    %d\n", st.Lines)
		return nil
	})
}

// ExportCmd writes the data file as JSON lines.
type ExportCmd struct {
	Out         string `help:"Output path (- for stdout)" default:"-" type:"path"`
	Compression string `help:"Compression (xz, zstd, lz4, none)" default:"xz" enum:"xz,zstd,lz4,none"`
}

func (c *ExportCmd) Run() error {
	comp, err := covstore.ParseCompression(c.Compression)
	if err != nil {
		return err
	}
	return withStore(true, func(ctx context.Context, s *covstore.Store) error {
		var w io.Writer = stdout
		if c.Out != "-" {
			f, err := os.Create(c.Out)
			if err != nil {
				return errors.NewIO("create", c.Out, err)
			}
			defer f.Close()
			w = f
		}
		_, err := s.Export(ctx, w, comp)
		return err
	})
}

// ImportCmd reads records written by export.
type ImportCmd struct {
	Path        string `arg:"" help:"Export file" type:"existingfile"`
	Compression string `help:"Compression (auto, xz, zstd, lz4, none)" default:"auto" enum:"auto,xz,zstd,lz4,none"`
}

func (c *ImportCmd) Run() error {
	comp, err := covstore.ParseCompression(c.Compression)
	if err != nil {
		return err
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return errors.NewIO("open", c.Path, err)
	}
	defer f.Close()

	return withStore(false, func(ctx context.Context, s *covstore.Store) error {
		n, err := s.Import(ctx, f, comp)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "imported %d records\n", n)
		return nil
	})
}

// MergeCmd folds other data files into the current one.
type MergeCmd struct {
	Paths []string `arg:"" help:"Data files to merge" type:"existingfile"`
}

func (c *MergeCmd) Run() error {
	return withStore(false, func(ctx context.Context, s *covstore.Store) error {
		for _, path := range c.Paths {
			other, err := covstore.Open(ctx, covstore.Options{Path: path, ReadOnly: true})
			if err != nil {
				return err
			}
			err = s.Merge(ctx, other)
			other.Close()
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ImportCoberturaCmd records lines from Cobertura XML reports.
type ImportCoberturaCmd struct {
	Context string   `required:"" help:"Measurement context for all reports"`
	Reports []string `arg:"" help:"Cobertura XML files" type:"existingfile"`
}

func (c *ImportCoberturaCmd) Run() error {
	parsed := make([]map[string][]byte, len(c.Reports))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range c.Reports {
		g.Go(func() error {
			files, err := cobertura.ParseFile(path)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				logging.Warn("report_empty", "report", path)
			}
			parsed[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	combined := make(map[string][]byte)
	for _, files := range parsed {
		for path, b := range files {
			combined[path] = numbits.Union(combined[path], b)
		}
	}

	logging.Info("reports_parsed", "reports", len(c.Reports), "files", len(combined))

	return withStore(false, func(ctx context.Context, s *covstore.Store) error {
		if err := s.AddReport(ctx, c.Context, combined); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "recorded %d files from %d reports\n", len(combined), len(c.Reports))
		return nil
	})
}

// InfoCmd prints which SQLite engine is compiled in.
type InfoCmd struct{}

func (c *InfoCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "driver:    %s (%s)\n", info.DriverName, info.DriverType)
	fmt.Fprintf(stdout, "package:   %s\n", info.Package)
	fmt.Fprintf(stdout, "cgo:       %t\n", info.IsCGO)
	fmt.Fprintf(stdout, "functions: %s\n", strings.Join(info.Functions, ", "))
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(stdout, "numbits version %s\n", version)
	return nil
}

// Helper functions

func withStore(readOnly bool, fn func(ctx context.Context, s *covstore.Store) error) error {
	ctx := context.Background()
	path := CLI.DB
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	s, err := covstore.Open(ctx, covstore.Options{Path: path, ReadOnly: readOnly})
	if err != nil {
		logging.Error("store_open_failed", "db", path, "error", err)
		return err
	}
	defer s.Close()

	ctx = logging.WithRunID(ctx, s.RunID())
	if err := fn(ctx, s); err != nil {
		logging.ErrorContext(ctx, "command_failed", "db", path, "error", err)
		return err
	}
	logging.DebugContext(ctx, "command_done", "db", path)
	return nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &errors.ValidationError{Field: "hex", Value: s, Message: err.Error()}
	}
	return b, nil
}

func parseHexPair(a, b string) ([]byte, []byte, error) {
	x, err := parseHex(a)
	if err != nil {
		return nil, nil, err
	}
	y, err := parseHex(b)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

func printLines(items []string) {
	for _, item := range items {
		fmt.Fprintln(stdout, item)
	}
}

func setupLogging() error {
	level, err := logging.ParseLevel(CLI.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(CLI.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("numbits"),
		kong.Description("Numbits line-set codec and coverage data tool"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	ctx.FatalIfErrorf(setupLogging())
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
