// Package linespec parses and formats compact line-number lists such as
// "3,5-9,12".
package linespec

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/numbits/core/errors"
	"github.com/FocuswithJustin/numbits/internal/validation"
)

// MaxSpan bounds how many numbers one range may expand to.
const MaxSpan = 1 << 20

// specGrammar is the participle grammar for line specs.
// Examples: "7", "1-5", "1-5, 7, 10-12"
type specGrammar struct {
	Items []*rangeItem `parser:"@@ ( \",\" @@ )*"`
}

type rangeItem struct {
	Start int  `parser:"@Int"`
	End   *int `parser:"( \"-\" @Int )?"`
}

var specLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[,\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var specParser = participle.MustBuild[specGrammar](
	participle.Lexer(specLexer),
	participle.Elide("Whitespace"),
)

// Parse expands a line spec into sorted, de-duplicated line numbers.
func Parse(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.NewParse("line spec", "", "empty line spec")
	}

	parsed, err := specParser.ParseString("", s)
	if err != nil {
		return nil, errors.NewParse("line spec", "", fmt.Sprintf("%q: %v", s, err))
	}

	var nums []int
	for _, item := range parsed.Items {
		end := item.Start
		if item.End != nil {
			end = *item.End
		}
		if end < item.Start {
			return nil, errors.NewParse("line spec", "", fmt.Sprintf("range %d-%d is reversed", item.Start, end))
		}
		if err := validation.ValidateLineNumber(end); err != nil {
			return nil, errors.NewParse("line spec", "", err.Error())
		}
		if end-item.Start >= MaxSpan {
			return nil, errors.NewParse("line spec", "", fmt.Sprintf("range %d-%d is too large", item.Start, end))
		}
		for n := item.Start; n <= end; n++ {
			nums = append(nums, n)
		}
	}

	slices.Sort(nums)
	return slices.Compact(nums), nil
}

// Format renders sorted, distinct nums as a line spec, collapsing runs of
// consecutive numbers into ranges.
func Format(nums []int) string {
	var sb strings.Builder
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(nums[i]))
		if j > i {
			sb.WriteByte('-')
			sb.WriteString(strconv.Itoa(nums[j]))
		}
		i = j + 1
	}
	return sb.String()
}
