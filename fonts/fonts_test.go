package fonts

import "testing"

func TestAdvancePositiveAndStable(t *testing.T) {
	lib, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}

	first := lib.Advance('a', 12, false)
	if first <= 0 {
		t.Fatalf("Advance('a') = %v, want > 0", first)
	}
	// Memoized: a repeated lookup must return an identical value.
	if second := lib.Advance('a', 12, false) ; second != first {
		t.Fatalf("repeated Advance('a') = %v, want %v", second, first)
	}
	// Advances scale linearly with point size.
	if doubled := lib.Advance('a', 24, false); doubled <= first {
		t.Fatalf("Advance at 24pt = %v, want > %v", doubled, first)
	}
}

func TestAdvanceFallbackWidths(t *testing.T) {
	lib, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}

	// The Go fonts carry no CJK glyphs; a Han rune takes the full-em
	// fallback, which must be wider than a narrow Latin advance.
	wide := lib.Advance('中', 12, false)
	narrow := lib.Advance('i', 12, false)
	if wide != 12.0 {
		t.Fatalf("wide fallback advance = %v, want full em (12)", wide)
	}
	if wide <= narrow {
		t.Fatalf("wide advance %v should exceed narrow advance %v", wide, narrow)
	}
}

func TestStringWidth(t *testing.T) {
	lib, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}

	sum := lib.Advance('a', 12, false) + lib.Advance('b', 12, false)
	if got := lib.StringWidth("ab", 12, false); got != sum {
		t.Fatalf("StringWidth(ab) = %v, want %v", got, sum)
	}
	if got := lib.StringWidth("", 12, false); got != 0 {
		t.Fatalf("StringWidth empty = %v, want 0", got)
	}
}

func TestFaceLazyResolution(t *testing.T) {
	lib, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}

	// An unseen (size, bold) pair resolves on demand instead of failing.
	f1, err := lib.Face(13.5, true)
	if err != nil {
		t.Fatalf("Face(13.5, bold) error = %v", err)
	}
	f2, err := lib.Face(13.5, true)
	if err != nil {
		t.Fatalf("Face(13.5, bold) second call error = %v", err)
	}
	if f1 != f2 {
		t.Fatalf("expected cached face to be reused")
	}

	if _, err := lib.Face(0, false); err == nil {
		t.Fatalf("expected error for non-positive size")
	}
}
