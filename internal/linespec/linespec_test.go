package linespec

import (
	"errors"
	"slices"
	"testing"

	apperrors "github.com/FocuswithJustin/numbits/core/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  []int
	}{
		{"7", []int{7}},
		{"0", []int{0}},
		{"1-5", []int{1, 2, 3, 4, 5}},
		{"3,5-7,12", []int{3, 5, 6, 7, 12}},
		{" 3 , 5 - 7 ,12 ", []int{3, 5, 6, 7, 12}},
		{"9,1,4-5,1", []int{1, 4, 5, 9}},
		{"4-4", []int{4}},
		{"16777216", []int{16777216}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"a",
		"1,",
		"1--3",
		"-3",
		"5-2",
		"1-99999999",
		"16777217",
		"8000000000",
		"16777210-16777220",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", input)
			}
			var perr *apperrors.ParseError
			if !errors.As(err, &perr) {
				t.Errorf("Parse(%q) error = %T, want *ParseError", input, err)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		nums []int
		want string
	}{
		{nil, ""},
		{[]int{7}, "7"},
		{[]int{1, 2, 3}, "1-3"},
		{[]int{3, 5, 6, 7, 12}, "3,5-7,12"},
		{[]int{1, 3, 5}, "1,3,5"},
	}

	for _, tt := range tests {
		if got := Format(tt.nums); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.nums, got, tt.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	nums := []int{1, 2, 3, 10, 20, 21, 99}
	got, err := Parse(Format(nums))
	if err != nil {
		t.Fatalf("Parse(Format(%v)) error: %v", nums, err)
	}
	if !slices.Equal(got, nums) {
		t.Errorf("round trip = %v, want %v", got, nums)
	}
}
