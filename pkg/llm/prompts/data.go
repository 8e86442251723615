package prompts

import "github.com/4ndr3jS/TravelStory/pkg/llm"

// StoryData is the template context for outline and segment prompts.
type StoryData struct {
	StartAddress string
	EndAddress   string
	TravelMode   string // "walking" or "driving"
	Distance     string
	Duration     string
	Style        string
	Language     string
	Total        int

	// Segment prompts only.
	Index    int
	Outline  string
	Previous string
	IsLast   bool
	Words    int
}

func (StoryData) PreviousStart() string { return llm.PreviousStoryStart }
func (StoryData) PreviousEnd() string   { return llm.PreviousStoryEnd }
