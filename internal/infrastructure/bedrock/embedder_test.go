package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/resilience"
)

type fakeInvoker struct {
	calls  int
	bodies [][]byte
	fn     func(input *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error)
}

func (f *fakeInvoker) InvokeModel(_ context.Context, input *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.calls++
	f.bodies = append(f.bodies, input.Body)
	return f.fn(input)
}

func testExecutor(maxAttempts int) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    maxAttempts,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
}

var testModel = domain.EmbeddingModel{ID: "test-embed-v1", Dimension: 3}

func embedOutput(vector []float32) *bedrockruntime.InvokeModelOutput {
	body, _ := json.Marshal(map[string]any{"embedding": vector})
	return &bedrockruntime.InvokeModelOutput{Body: body}
}

func TestEmbedTextTitanV1RequestShape(t *testing.T) {
	api := &fakeInvoker{fn: func(input *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
		if *input.ModelId != domain.EmbeddingModelTitanV1.ID {
			t.Fatalf("unexpected model id %s", *input.ModelId)
		}
		return embedOutput(make([]float32, domain.EmbeddingModelTitanV1.Dimension)), nil
	}}
	e := NewEmbedder(api, domain.EmbeddingModelTitanV1, testExecutor(1), 1, nil)

	if _, err := e.EmbedText(context.Background(), "hello"); err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}

	var req map[string]any
	if err := json.Unmarshal(api.bodies[0], &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if req["inputText"] != "hello" {
		t.Fatalf("expected inputText, got %v", req)
	}
	if _, ok := req["dimensions"]; ok {
		t.Fatalf("v1 request must not carry dimensions: %v", req)
	}
	if _, ok := req["normalize"]; ok {
		t.Fatalf("v1 request must not carry normalize: %v", req)
	}
}

func TestEmbedTextTitanV2RequestShape(t *testing.T) {
	api := &fakeInvoker{fn: func(*bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
		return embedOutput(make([]float32, domain.EmbeddingModelTitanV2.Dimension)), nil
	}}
	e := NewEmbedder(api, domain.EmbeddingModelTitanV2, testExecutor(1), 1, nil)

	if _, err := e.EmbedText(context.Background(), "hello"); err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}

	var req map[string]any
	if err := json.Unmarshal(api.bodies[0], &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if req["dimensions"] != float64(1024) {
		t.Fatalf("expected dimensions 1024, got %v", req["dimensions"])
	}
	if req["normalize"] != true {
		t.Fatalf("expected normalize true, got %v", req["normalize"])
	}
}

func TestEmbedTextFallsBackToZeroVectorAfterRetries(t *testing.T) {
	api := &fakeInvoker{fn: func(*bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
	}}
	var fallbacks int
	e := NewEmbedder(api, testModel, testExecutor(3), 1, func(string) { fallbacks++ })

	emb, err := e.EmbedText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("expected degraded fallback, got error %v", err)
	}
	if !emb.Degraded {
		t.Fatalf("expected degraded embedding")
	}
	if len(emb.Vector) != testModel.Dimension {
		t.Fatalf("fallback vector length = %d, want %d", len(emb.Vector), testModel.Dimension)
	}
	for i, v := range emb.Vector {
		if v != 0 {
			t.Fatalf("fallback vector component %d = %v, want 0", i, v)
		}
	}
	if api.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", api.calls)
	}
	if fallbacks != 1 {
		t.Fatalf("expected 1 fallback signal, got %d", fallbacks)
	}
}

func TestEmbedTextMalformedResponseIsFatal(t *testing.T) {
	api := &fakeInvoker{fn: func(*bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
		return &bedrockruntime.InvokeModelOutput{Body: []byte(`{"unexpected":"shape"}`)}, nil
	}}
	e := NewEmbedder(api, testModel, testExecutor(3), 1, nil)

	_, err := e.EmbedText(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected malformed-response error")
	}
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if api.calls != 1 {
		t.Fatalf("malformed response must not be retried, got %d attempts", api.calls)
	}
}

func TestEmbedTextRejectsEmptyInput(t *testing.T) {
	e := NewEmbedder(&fakeInvoker{fn: nil}, testModel, testExecutor(1), 1, nil)
	_, err := e.EmbedText(context.Background(), "")
	if err == nil {
		t.Fatalf("expected error for empty input")
	}
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

// deterministicOutput derives a vector from the input text so concurrent
// and sequential embedding results can be compared exactly.
func deterministicOutput(input *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
	var req map[string]any
	if err := json.Unmarshal(input.Body, &req); err != nil {
		return nil, err
	}
	text, _ := req["inputText"].(string)
	seed := float32(len(text))
	return embedOutput([]float32{seed, seed * 2, seed * 3}), nil
}

func TestEmbedAllMatchesSequentialEmbedding(t *testing.T) {
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}

	concurrent := NewEmbedder(&fakeInvoker{fn: deterministicOutput}, testModel, testExecutor(1), 8, nil)
	got, err := concurrent.EmbedAll(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedAll() error = %v", err)
	}
	if len(got) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(got))
	}

	sequential := NewEmbedder(&fakeInvoker{fn: deterministicOutput}, testModel, testExecutor(1), 1, nil)
	for i, text := range texts {
		want, err := sequential.EmbedText(context.Background(), text)
		if err != nil {
			t.Fatalf("EmbedText(%d) error = %v", i, err)
		}
		if fmt.Sprint(got[i].Vector) != fmt.Sprint(want.Vector) {
			t.Fatalf("embedding %d differs between concurrent and sequential paths", i)
		}
	}
}

func TestEmbedAllPropagatesFatalErrors(t *testing.T) {
	api := &fakeInvoker{fn: func(*bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
		return &bedrockruntime.InvokeModelOutput{Body: []byte(`{}`)}, nil
	}}
	e := NewEmbedder(api, testModel, testExecutor(1), 4, nil)

	_, err := e.EmbedAll(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestEmbedTextIdempotent(t *testing.T) {
	e := NewEmbedder(&fakeInvoker{fn: deterministicOutput}, testModel, testExecutor(1), 1, nil)

	first, err := e.EmbedText(context.Background(), "same text")
	if err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}
	second, err := e.EmbedText(context.Background(), "same text")
	if err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}
	if fmt.Sprint(first.Vector) != fmt.Sprint(second.Vector) {
		t.Fatalf("embedding the same text twice produced different vectors")
	}
}

func TestIsConnectivityClassification(t *testing.T) {
	if !isConnectivity(&smithy.GenericAPIError{Code: "ThrottlingException"}) {
		t.Fatalf("throttling must classify as connectivity")
	}
	if isConnectivity(&smithy.GenericAPIError{Code: "ValidationException"}) {
		t.Fatalf("validation errors are not connectivity")
	}
	if !isConnectivity(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded surfaces as connectivity")
	}
	if isConnectivity(context.Canceled) {
		t.Fatalf("cancellation is not connectivity")
	}
	if isConnectivity(errors.New("boom")) {
		t.Fatalf("generic errors are not connectivity")
	}
}
