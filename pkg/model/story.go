package model

import (
	"strings"
	"time"
)

// StorySegment is one narrated unit of the story. Index is 1-based.
type StorySegment struct {
	Index       int       `json:"index"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AudioStory is the evolving story aggregate.
// Segments is an append-only, gap-free prefix: Segments[k].Index == k+1.
type AudioStory struct {
	ID                    string         `json:"id"`
	TotalSegmentsEstimate int            `json:"total_segments_estimate"`
	Outline               []string       `json:"outline"`
	Segments              []StorySegment `json:"segments"`
	CreatedAt             time.Time      `json:"created_at"`
}

// Remaining returns how many segments are still to be generated.
func (s *AudioStory) Remaining() int {
	if n := s.TotalSegmentsEstimate - len(s.Segments); n > 0 {
		return n
	}
	return 0
}

// Complete reports whether every planned segment exists.
func (s *AudioStory) Complete() bool {
	return len(s.Segments) >= s.TotalSegmentsEstimate
}

// PreviousText joins the text of all segments in index order.
func (s *AudioStory) PreviousText() string {
	parts := make([]string, len(s.Segments))
	for i, seg := range s.Segments {
		parts[i] = seg.Text
	}
	return strings.Join(parts, " ")
}

// Clone returns a deep copy safe to hand to readers.
func (s *AudioStory) Clone() *AudioStory {
	if s == nil {
		return nil
	}
	c := *s
	c.Outline = append([]string(nil), s.Outline...)
	c.Segments = append(make([]StorySegment, 0, len(s.Segments)), s.Segments...)
	return &c
}
