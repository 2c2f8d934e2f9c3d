package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/dang-hang/fleet-wise-aide/llm"
)

// fakeProvider returns a canned chat reply or error.
type fakeProvider struct {
	reply string
	err   error
}

func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply}, nil
}

func (f *fakeProvider) ChatWithImages(ctx context.Context, req llm.VisionChatRequest) (*llm.ChatResponse, error) {
	return f.Chat(ctx, llm.ChatRequest{})
}

func TestVehicle(t *testing.T) {
	c := New(&fakeProvider{reply: "```json\n{\"year\": 2020, \"make\": \"Honda\", \"model\": \"Civic\"}\n```"}, "test-model")

	v, err := c.Vehicle(context.Background(), "How do I change oil in my 2020 Honda Civic?")
	if err != nil {
		t.Fatalf("Vehicle: %v", err)
	}
	if v.Year == nil || *v.Year != 2020 {
		t.Errorf("year = %v, want 2020", v.Year)
	}
	if v.Model == nil || *v.Model != "Civic" {
		t.Errorf("model = %v, want Civic", v.Model)
	}
}

// A malformed reply is not an error; it degrades to an empty identity.
func TestVehicleMalformedReply(t *testing.T) {
	c := New(&fakeProvider{reply: "I could not determine the vehicle."}, "test-model")

	v, err := c.Vehicle(context.Background(), "help")
	if err != nil {
		t.Fatalf("Vehicle: %v", err)
	}
	if !v.Empty() {
		t.Errorf("expected empty identity, got %+v", v)
	}
}

func TestVehicleProviderError(t *testing.T) {
	c := New(&fakeProvider{err: errors.New("connection refused")}, "test-model")

	if _, err := c.Vehicle(context.Background(), "query"); err == nil {
		t.Fatal("expected transport error to surface")
	}
}

func TestTopics(t *testing.T) {
	c := New(&fakeProvider{reply: `["oil change", "engine"]`}, "test-model")

	topics, err := c.Topics(context.Background(), "How do I change the oil?")
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	if len(topics) != 2 || topics[0] != "oil change" || topics[1] != "engine" {
		t.Errorf("topics = %v", topics)
	}
}

func TestTopicsMalformedReply(t *testing.T) {
	c := New(&fakeProvider{reply: "no topics here"}, "test-model")

	topics, err := c.Topics(context.Background(), "query")
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	if len(topics) != 0 {
		t.Errorf("expected empty topics, got %v", topics)
	}
}
