package model

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMockTextModel(t *testing.T) {
	ctx := context.Background()

	t.Run("returns responses in order then repeats the last", func(t *testing.T) {
		m := &MockTextModel{Responses: []TextResponse{{Text: "one"}, {Text: "two"}}}

		var got []string
		for i := 0; i < 3; i++ {
			out, err := m.Generate(ctx, TextRequest{Prompt: "p"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			got = append(got, out.Text)
		}
		if got[0] != "one" || got[1] != "two" || got[2] != "two" {
			t.Errorf("expected [one two two], got %v", got)
		}
		if m.CallCount() != 3 {
			t.Errorf("expected 3 calls, got %d", m.CallCount())
		}
	})

	t.Run("Respond computes the answer from the request", func(t *testing.T) {
		m := &MockTextModel{Respond: func(req TextRequest) (TextResponse, error) {
			return TextResponse{Text: "echo: " + req.Prompt}, nil
		}}
		out, err := m.Generate(ctx, TextRequest{Prompt: "hi"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Text != "echo: hi" {
			t.Errorf("expected %q, got %q", "echo: hi", out.Text)
		}
	})

	t.Run("Err fails every call and still records it", func(t *testing.T) {
		boom := errors.New("boom")
		m := &MockTextModel{Err: boom}
		if _, err := m.Generate(ctx, TextRequest{Prompt: "x"}); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		if len(m.Calls()) != 1 || m.Calls()[0].Prompt != "x" {
			t.Errorf("expected recorded call with prompt x, got %+v", m.Calls())
		}
	})

	t.Run("cancelled context is not recorded", func(t *testing.T) {
		m := &MockTextModel{}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := m.Generate(cctx, TextRequest{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if m.CallCount() != 0 {
			t.Errorf("expected 0 calls, got %d", m.CallCount())
		}
	})

	t.Run("Reset rewinds", func(t *testing.T) {
		m := &MockTextModel{Responses: []TextResponse{{Text: "a"}, {Text: "b"}}}
		_, _ = m.Generate(ctx, TextRequest{})
		m.Reset()
		out, _ := m.Generate(ctx, TextRequest{})
		if out.Text != "a" {
			t.Errorf("expected a after reset, got %q", out.Text)
		}
	})

	t.Run("safe for concurrent use", func(t *testing.T) {
		m := &MockTextModel{Responses: []TextResponse{{Text: "x"}}}
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = m.Generate(ctx, TextRequest{})
			}()
		}
		wg.Wait()
		if m.CallCount() != 20 {
			t.Errorf("expected 20 calls, got %d", m.CallCount())
		}
	})
}

func TestMockImageModel(t *testing.T) {
	m := &MockImageModel{Response: ImageResponse{URL: "https://img/1.png"}}
	out, err := m.GenerateImage(context.Background(), ImageRequest{Prompt: "a cat", Size: "256x256"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.URL != "https://img/1.png" {
		t.Errorf("expected url, got %q", out.URL)
	}
	if calls := m.Calls(); len(calls) != 1 || calls[0].Size != "256x256" {
		t.Errorf("expected one recorded call with size, got %+v", calls)
	}
}

func TestProviderError(t *testing.T) {
	cause := errors.New("429")
	err := &ProviderError{Provider: "openai", Message: "rate limited", Retryable: true, Cause: cause}
	if err.Error() != "openai: rate limited" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected ProviderError to unwrap to its cause")
	}
}
