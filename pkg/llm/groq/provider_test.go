package groq

import (
	"testing"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/llm"
	"github.com/4ndr3jS/TravelStory/pkg/request"
	"github.com/4ndr3jS/TravelStory/pkg/tracker"
)

func TestGroq_NewClient(t *testing.T) {
	rc := request.New(nil, tracker.New(), config.RequestConfig{})
	cfg := config.ProviderConfig{Key: "test_key", Profiles: map[string]string{llm.IntentSegment: "llama-3.1-8b-instant"}}

	c, err := NewClient(cfg, rc)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if c == nil {
		t.Fatal("expected client, got nil")
	}
	if !c.HasProfile(llm.IntentSegment) {
		t.Error("expected segment profile to be configured")
	}
}
