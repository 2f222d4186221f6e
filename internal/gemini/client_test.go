package gemini

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"sync"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeModels struct {
	mu        sync.Mutex
	responses []fakeResponse
	stream    []fakeResponse
	prompts   []string
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, content := range contents {
		for _, part := range content.Parts {
			f.prompts = append(f.prompts, part.Text)
		}
	}

	if len(f.responses) == 0 {
		return nil, errors.New("unexpected call")
	}

	next := f.responses[0]
	f.responses = f.responses[1:]
	return next.resp, next.err
}

func (f *fakeModels) GenerateContentStream(_ context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, item := range f.stream {
			if !yield(item.resp, item.err) {
				return
			}
		}
	}
}

func newTestGenerator(models *fakeModels, maxRetries int) *Generator {
	return &Generator{
		models:     models,
		model:      "gemini-pro",
		maxRetries: maxRetries,
		retryDelay: 0,
		logger:     zap.NewNop(),
	}
}

func TestGenerateContentRetriesOnTemporaryError(t *testing.T) {
	models := &fakeModels{responses: []fakeResponse{
		{err: genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}},
		{resp: textResponse("retry ok")},
	}}

	g := newTestGenerator(models, 3)

	output, err := g.GenerateContent(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(models.prompts) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.prompts))
	}
}

func TestGenerateContentStopsAfterRetriesExhausted(t *testing.T) {
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	models := &fakeModels{responses: []fakeResponse{{err: tempErr}, {err: tempErr}}}

	g := newTestGenerator(models, 2)

	if _, err := g.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	if len(models.prompts) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.prompts))
	}
}

func TestGenerateContentDoesNotRetryPermanentErrors(t *testing.T) {
	models := &fakeModels{responses: []fakeResponse{
		{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}},
		{resp: textResponse("should not be reached")},
	}}

	g := newTestGenerator(models, 3)

	if _, err := g.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error")
	}

	if len(models.prompts) != 1 {
		t.Fatalf("expected single call, got %d", len(models.prompts))
	}
}

func TestGenerateContentRejectsEmptyPromptAndResponse(t *testing.T) {
	g := newTestGenerator(&fakeModels{}, 1)

	if _, err := g.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}

	g = newTestGenerator(&fakeModels{responses: []fakeResponse{{resp: textResponse("  ")}}}, 1)
	if _, err := g.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestGenerateContentStreamYieldsChunksInOrder(t *testing.T) {
	models := &fakeModels{stream: []fakeResponse{
		{resp: textResponse("I am ")},
		{resp: &genai.GenerateContentResponse{}}, // usage-only chunk, no text
		{resp: textResponse("a software engineer...")},
	}}

	g := newTestGenerator(models, 1)

	var got string
	for chunk, err := range g.GenerateContentStream(context.Background(), "prompt") {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		got += chunk
	}

	if got != "I am a software engineer..." {
		t.Fatalf("unexpected streamed text: %q", got)
	}
}

func TestGenerateContentStreamSurfacesUpstreamError(t *testing.T) {
	models := &fakeModels{stream: []fakeResponse{
		{resp: textResponse("partial")},
		{err: genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}},
		{resp: textResponse("never delivered")},
	}}

	g := newTestGenerator(models, 3)

	var chunks []string
	var streamErr error
	for chunk, err := range g.GenerateContentStream(context.Background(), "prompt") {
		if err != nil {
			streamErr = err
			break
		}
		chunks = append(chunks, chunk)
	}

	if streamErr == nil {
		t.Fatal("expected stream error")
	}

	if len(chunks) != 1 || chunks[0] != "partial" {
		t.Fatalf("unexpected chunks before failure: %+v", chunks)
	}
}

func TestGenerateContentStreamStopsWhenConsumerBreaks(t *testing.T) {
	models := &fakeModels{stream: []fakeResponse{
		{resp: textResponse("one")},
		{resp: textResponse("two")},
	}}

	g := newTestGenerator(models, 1)

	var got []string
	for chunk, err := range g.GenerateContentStream(context.Background(), "prompt") {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, chunk)
		break
	}

	if len(got) != 1 || got[0] != "one" {
		t.Fatalf("expected a single consumed chunk, got %+v", got)
	}
}
