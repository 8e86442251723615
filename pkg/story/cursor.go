package story

// Cursor tracks the segment currently presented to the user (0-based).
// It does not trigger buffering itself; the controller inspects NearEnd
// after every move.
type Cursor struct {
	index int
}

// Index returns the current position.
func (c *Cursor) Index() int { return c.index }

// Advance moves to the next buffered segment. It is a no-op returning false
// when the cursor already sits on the last buffered segment.
func (c *Cursor) Advance(buffered int) bool {
	if c.index >= buffered-1 {
		return false
	}
	c.index++
	return true
}

// JumpTo moves the cursor to i, which must address a buffered segment.
func (c *Cursor) JumpTo(i, buffered int) error {
	if i < 0 || i >= buffered {
		return ErrCursorOutOfRange
	}
	c.index = i
	return nil
}

// NearEnd reports whether the cursor is within two segments of the buffered end.
func (c *Cursor) NearEnd(buffered int) bool {
	return c.index >= buffered-2
}

// ProgressPercent is (index+1)/total*100. It can exceed what a viewer
// expects when the total estimate is conservative.
func (c *Cursor) ProgressPercent(total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(c.index+1) / float64(total) * 100
}

// Reset rewinds to the first segment.
func (c *Cursor) Reset() { c.index = 0 }
