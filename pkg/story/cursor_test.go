package story

import (
	"errors"
	"testing"
)

func TestCursor_Advance(t *testing.T) {
	var c Cursor
	if c.Advance(1) {
		t.Error("advance on single buffered segment should be a no-op")
	}
	if !c.Advance(3) || c.Index() != 1 {
		t.Errorf("expected index 1, got %d", c.Index())
	}
	c.Advance(3)
	if c.Advance(3) {
		t.Error("advance past last buffered segment should be a no-op")
	}
	if c.Index() != 2 {
		t.Errorf("expected index 2, got %d", c.Index())
	}
}

func TestCursor_JumpTo(t *testing.T) {
	var c Cursor
	if err := c.JumpTo(2, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, i := range []int{-1, 3, 10} {
		if err := c.JumpTo(i, 3); !errors.Is(err, ErrCursorOutOfRange) {
			t.Errorf("JumpTo(%d): expected ErrCursorOutOfRange, got %v", i, err)
		}
	}
	if c.Index() != 2 {
		t.Errorf("failed jumps must not move the cursor, got %d", c.Index())
	}
	c.Reset()
	if c.Index() != 0 {
		t.Errorf("expected reset to 0, got %d", c.Index())
	}
}

func TestCursor_NearEnd(t *testing.T) {
	tests := []struct {
		index, buffered int
		want            bool
	}{
		{0, 0, true},
		{0, 1, true},
		{0, 2, true},
		{0, 3, false},
		{1, 3, true},
		{2, 6, false},
		{4, 6, true},
	}
	for _, tt := range tests {
		c := Cursor{index: tt.index}
		if got := c.NearEnd(tt.buffered); got != tt.want {
			t.Errorf("NearEnd(index=%d, buffered=%d) = %v, want %v", tt.index, tt.buffered, got, tt.want)
		}
	}
}

func TestCursor_ProgressPercent(t *testing.T) {
	c := Cursor{index: 4}
	if got := c.ProgressPercent(10); got != 50 {
		t.Errorf("expected 50, got %v", got)
	}
	if got := c.ProgressPercent(0); got != 0 {
		t.Errorf("expected 0 for empty total, got %v", got)
	}
}
