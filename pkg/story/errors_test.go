package story

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	raw := errors.New("connection reset")
	e := classify(raw, KindSegmentFailure, "Segment %d generation failed", 4)
	assert.Equal(t, KindSegmentFailure, e.Kind)
	assert.Equal(t, "Segment 4 generation failed: connection reset", e.Error())
	assert.ErrorIs(t, e, raw)

	timeout := newError(KindSegmentTimeout, "Segment 4 generation timed out", nil)
	assert.Same(t, timeout, classify(fmt.Errorf("wrapped: %w", timeout), KindSegmentFailure, ""))
}

func TestError_IsByKind(t *testing.T) {
	e := newError(KindOutlineTimeout, "took too long", nil)
	assert.ErrorIs(t, fmt.Errorf("start: %w", e), &Error{Kind: KindOutlineTimeout})
	assert.NotErrorIs(t, e, &Error{Kind: KindOutlineFailure})
	assert.Equal(t, KindOutlineTimeout, KindOf(e))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestErrorInfo(t *testing.T) {
	var e *Error
	assert.Nil(t, e.info())
	info := newError(KindSegmentFailure, "bad", nil).info()
	assert.Equal(t, &ErrorInfo{Kind: KindSegmentFailure, Message: "bad"}, info)
}

func TestParseAppState(t *testing.T) {
	s, err := ParseAppState("background")
	assert.NoError(t, err)
	assert.Equal(t, AppStateBackground, s)
	_, err = ParseAppState("sleeping")
	assert.Error(t, err)
}
