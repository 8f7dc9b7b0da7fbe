package numbits

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"maps"
	"slices"
	"testing"

	apperrors "github.com/FocuswithJustin/numbits/core/errors"
)

// randomSet returns a non-empty set of line numbers in 1..9999.
func randomSet(r *rand.Rand) map[int]bool {
	n := 1 + r.IntN(200)
	set := make(map[int]bool, n)
	for len(set) < n {
		set[1+r.IntN(9999)] = true
	}
	return set
}

func sortedKeys(set map[int]bool) []int {
	return slices.Sorted(maps.Keys(set))
}

func mustEncode(t *testing.T, nums []int) []byte {
	t.Helper()
	b, err := Encode(nums)
	if err != nil {
		t.Fatalf("Encode(%v) error: %v", nums, err)
	}
	return b
}

func multiplesBelow(step, limit int) []int {
	var nums []int
	for i := step; i < limit; i += step {
		nums = append(nums, i)
	}
	return nums
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		nums []int
		want []byte
	}{
		{"zero", []int{0}, []byte{0x01}},
		{"single high bit", []int{7}, []byte{0x80}},
		{"second byte", []int{8}, []byte{0x00, 0x01}},
		{"doc example", []int{0, 3, 9}, []byte{0x09, 0x02}},
		{"duplicates and order", []int{9, 3, 0, 3, 9}, []byte{0x09, 0x02}},
		{"sparse", []int{144}, append(make([]byte, 18), 0x01)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustEncode(t, tt.nums)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode(%v) = %x, want %x", tt.nums, got, tt.want)
			}
		})
	}
}

func TestEncodeLength(t *testing.T) {
	for _, maxNum := range []int{0, 1, 7, 8, 15, 16, 100, 9999} {
		got := mustEncode(t, []int{maxNum})
		if want := maxNum/8 + 1; len(got) != want {
			t.Errorf("len(Encode([%d])) = %d, want %d", maxNum, len(got), want)
		}
		if got[len(got)-1] == 0 {
			t.Errorf("Encode([%d]) has a trailing zero byte", maxNum)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	for _, nums := range [][]int{nil, {}} {
		_, err := Encode(nums)
		if !errors.Is(err, ErrEmptySet) {
			t.Errorf("Encode(%v) error = %v, want ErrEmptySet", nums, err)
		}
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("Encode(%v) error should wrap ErrInvalidInput", nums)
		}
	}
}

func TestEncodeNegative(t *testing.T) {
	_, err := Encode([]int{4, -1, 9})
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Encode with negative member error = %v, want *ValidationError", err)
	}
	if verr.Value != "-1" {
		t.Errorf("ValidationError.Value = %q, want %q", verr.Value, "-1")
	}
}

func TestEncodeSeq(t *testing.T) {
	got, err := EncodeSeq(slices.Values([]int{1, 2, 3}))
	if err != nil {
		t.Fatalf("EncodeSeq error: %v", err)
	}
	if !bytes.Equal(got, []byte{0x0e}) {
		t.Errorf("EncodeSeq = %x, want 0e", got)
	}
}

func TestEncodeSeqSingleUse(t *testing.T) {
	ch := make(chan int)
	go func() {
		defer close(ch)
		for _, n := range []int{17, 1, 9} {
			ch <- n
		}
	}()
	seq := func(yield func(int) bool) {
		for n := range ch {
			if !yield(n) {
				return
			}
		}
	}

	got, err := EncodeSeq(seq)
	if err != nil {
		t.Fatalf("EncodeSeq error: %v", err)
	}
	if want := []byte{0x02, 0x02, 0x02}; !bytes.Equal(got, want) {
		t.Errorf("EncodeSeq = %x, want %x", got, want)
	}
	if nums := Decode(got); !slices.Equal(nums, []int{1, 9, 17}) {
		t.Errorf("Decode = %v, want [1 9 17]", nums)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		numbits []byte
		want    []int
	}{
		{"empty", []byte{}, []int{}},
		{"nil", nil, []int{}},
		{"all zero", []byte{0, 0, 0}, []int{}},
		{"doc example", []byte{0x09, 0x02}, []int{0, 3, 9}},
		{"trailing zeros", []byte{0x09, 0x02, 0x00, 0x00}, []int{0, 3, 9}},
		{"full byte", []byte{0xff}, []int{0, 1, 2, 3, 4, 5, 6, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.numbits)
			if got == nil {
				t.Fatal("Decode returned nil")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Decode(%x) = %v, want %v", tt.numbits, got, tt.want)
			}
		})
	}
}

func TestConversionRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		set := randomSet(r)
		want := sortedKeys(set)
		got := Decode(mustEncode(t, want))
		if !slices.Equal(got, want) {
			t.Fatalf("round trip of %v gave %v", want, got)
		}
	}
}

func TestAll(t *testing.T) {
	numbits := mustEncode(t, []int{2, 30, 31, 64})
	got := slices.Collect(All(numbits))
	if want := []int{2, 30, 31, 64}; !slices.Equal(got, want) {
		t.Errorf("All = %v, want %v", got, want)
	}

	var first []int
	for num := range All(numbits) {
		first = append(first, num)
		if len(first) == 2 {
			break
		}
	}
	if want := []int{2, 30}; !slices.Equal(first, want) {
		t.Errorf("All with early break = %v, want %v", first, want)
	}
}

func TestEncodeDoesNotShareInput(t *testing.T) {
	nums := []int{5, 1, 3}
	_ = mustEncode(t, nums)
	if !slices.Equal(nums, []int{5, 1, 3}) {
		t.Errorf("Encode modified its input: %v", nums)
	}
}
