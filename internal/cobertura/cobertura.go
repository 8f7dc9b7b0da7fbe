// Package cobertura reads line coverage from Cobertura XML reports and packs
// it into numbits per source file.
//
// Only executed lines (hits > 0) are kept. A file that appears in several
// <class> elements has its lines combined.
package cobertura

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/numbits/core/errors"
	"github.com/FocuswithJustin/numbits/core/numbits"
	"github.com/FocuswithJustin/numbits/internal/validation"
)

const format = "Cobertura XML"

var (
	classExpr = xpath.MustCompile(`//class[@filename]`)
	// Only the class-level lines; method lines repeat them.
	lineExpr = xpath.MustCompile(`lines/line`)
)

// Parse reads a Cobertura report from r and returns the executed lines of
// each file as numbits, keyed by the class filename.
func Parse(r io.Reader) (map[string][]byte, error) {
	return parse(r, "")
}

// ParseFile is like Parse but reads the report at path.
func ParseFile(path string) (map[string][]byte, error) {
	if err := validation.CheckFileSize(path, validation.MaxReportSize); err != nil {
		if errors.Is(err, validation.ErrFileTooLarge) {
			return nil, &errors.ValidationError{Field: "report", Value: path, Message: err.Error()}
		}
		return nil, errors.NewIO("stat", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return parse(f, path)
}

func parse(r io.Reader, path string) (map[string][]byte, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, errors.NewParse(format, path, err.Error())
	}
	if xmlquery.FindOne(doc, "/coverage") == nil {
		return nil, errors.NewParse(format, path, "missing <coverage> root element")
	}

	executed := make(map[string]*roaring.Bitmap)
	for _, class := range xmlquery.QuerySelectorAll(doc, classExpr) {
		filename := class.SelectAttr("filename")
		rb := executed[filename]
		if rb == nil {
			rb = roaring.New()
			executed[filename] = rb
		}

		for _, line := range xmlquery.QuerySelectorAll(class, lineExpr) {
			number, err := attrInt(line, "number")
			if err != nil {
				return nil, errors.NewParse(format, path, fmt.Sprintf("%s: %v", filename, err))
			}
			if err := validation.ValidateLineNumber(number); err != nil {
				return nil, errors.NewParse(format, path, fmt.Sprintf("%s: %v", filename, err))
			}
			hits, err := attrInt(line, "hits")
			if err != nil {
				return nil, errors.NewParse(format, path, fmt.Sprintf("%s line %d: %v", filename, number, err))
			}
			if hits > 0 {
				rb.Add(uint32(number))
			}
		}
	}

	out := make(map[string][]byte, len(executed))
	for filename, rb := range executed {
		if rb.IsEmpty() {
			continue
		}
		b, err := numbits.FromBitmap(rb)
		if err != nil {
			return nil, err
		}
		out[filename] = b
	}
	return out, nil
}

func attrInt(n *xmlquery.Node, name string) (int, error) {
	raw := n.SelectAttr(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s attribute", name)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad %s attribute %q", name, raw)
	}
	return int(v), nil
}
