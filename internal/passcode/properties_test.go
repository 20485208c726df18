package passcode

import (
	"testing"

	"pgregory.net/rapid"
)

var lengthGen = rapid.SampledFrom([]int{ShortLength, DefaultLength})

func drawEntry(t *rapid.T, n int) *Input {
	in, err := NewInput(n, nil, nil)
	if err != nil {
		t.Fatalf("NewInput(%d): %v", n, err)
	}
	for i := 0; i < n; i++ {
		if rapid.Bool().Draw(t, "filled") {
			in.Type(i, rapid.StringMatching(`[0-9]`).Draw(t, "digit"))
		}
	}
	return in
}

func TestPropertyDigitMovesFocusForward(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := lengthGen.Draw(t, "n")
		i := rapid.IntRange(0, n-1).Draw(t, "i")
		digit := rapid.StringMatching(`[0-9]`).Draw(t, "digit")

		var focused []int
		in, err := NewInput(n, FocusFunc(func(p int) { focused = append(focused, p) }), nil)
		if err != nil {
			t.Fatal(err)
		}
		if !in.Type(i, digit) {
			t.Fatalf("digit %q rejected", digit)
		}
		if i < n-1 {
			if len(focused) != 1 || focused[0] != i+1 {
				t.Fatalf("focus calls %v, want [%d]", focused, i+1)
			}
		} else if len(focused) != 0 {
			t.Fatalf("focus moved past last box: %v", focused)
		}
	})
}

func TestPropertyNonDigitLeavesEntryUnchanged(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := lengthGen.Draw(t, "n")
		in := drawEntry(t, n)
		i := rapid.IntRange(0, n-1).Draw(t, "i")
		value := rapid.String().Filter(func(s string) bool {
			return s != "" && !IsDigit(s)
		}).Draw(t, "value")

		before := in.Entry()
		var focused []int
		in.focuser = FocusFunc(func(p int) { focused = append(focused, p) })

		if in.Type(i, value) {
			t.Fatalf("value %q accepted", value)
		}
		if !before.Equal(in.Entry()) {
			t.Fatalf("entry changed: %v -> %v", before.Boxes(), in.Entry().Boxes())
		}
		if len(focused) != 0 {
			t.Fatalf("focus moved: %v", focused)
		}
	})
}

func TestPropertyCompleteIffAllBoxesFilled(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := lengthGen.Draw(t, "n")
		mask := rapid.SliceOfN(rapid.Bool(), n, n).Draw(t, "mask")

		in, err := NewInput(n, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		all := true
		for i, filled := range mask {
			if filled {
				in.Type(i, "5")
			} else {
				all = false
			}
		}
		if in.Entry().Complete() != all {
			t.Fatalf("mask %v: Complete()=%v", mask, in.Entry().Complete())
		}
	})
}

func TestPropertyCodeIsExactlyNDigits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := lengthGen.Draw(t, "n")
		in, err := NewInput(n, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < n; i++ {
			in.Type(i, rapid.StringMatching(`[0-9]`).Draw(t, "digit"))
		}
		code, ok := in.Entry().Code()
		if !ok {
			t.Fatalf("entry %v not complete", in.Entry().Boxes())
		}
		if len(code) != n {
			t.Fatalf("code %q has length %d, want %d", code, len(code), n)
		}
		for k := 0; k < len(code); k++ {
			if code[k] < '0' || code[k] > '9' {
				t.Fatalf("code %q contains non-digit", code)
			}
		}
	})
}
