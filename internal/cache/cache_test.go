package cache

import (
	"testing"

	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
)

func contextWith(values map[facts.ID]any) *resolution.Context {
	rctx := resolution.NewContext()
	for id, v := range values {
		rctx.State[id] = &facts.Value{FactID: id, Values: []any{v}, Status: facts.StatusSolid, Confidence: 1.0}
	}
	return rctx
}

func TestBuildKey_Deterministic(t *testing.T) {
	rctx := contextWith(map[facts.ID]any{"demo.b": 2, "demo.a": "one"})

	first, err := BuildKey(rctx, []facts.ID{"demo.a", "demo.b"})
	if err != nil {
		t.Fatal(err)
	}
	// Input order must not matter.
	second, err := BuildKey(rctx, []facts.ID{"demo.b", "demo.a"})
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("expected identical keys, got %q and %q", first, second)
	}
	if first != `{"demo.a":"one","demo.b":2}` {
		t.Errorf("unexpected canonical key: %q", first)
	}
}

func TestBuildKey_AbsentFactsOmitted(t *testing.T) {
	rctx := contextWith(map[facts.ID]any{"demo.a": "one"})

	key, err := BuildKey(rctx, []facts.ID{"demo.a", "demo.missing"})
	if err != nil {
		t.Fatal(err)
	}
	if key != `{"demo.a":"one"}` {
		t.Errorf("expected absent facts omitted, got %q", key)
	}
}

func TestBuildKey_IgnoresUnrelatedState(t *testing.T) {
	rctx := contextWith(map[facts.ID]any{"demo.a": "one", "demo.noise": true})

	key, err := BuildKey(rctx, []facts.ID{"demo.a"})
	if err != nil {
		t.Fatal(err)
	}
	if key != `{"demo.a":"one"}` {
		t.Errorf("expected only declared inputs in key, got %q", key)
	}
}

func TestEncodeDecodeOutputs(t *testing.T) {
	outputs := []resolution.Output{
		{FactID: "demo.a", Value: "x", Source: "r1", Note: "n", Confidence: 0.7},
		{FactID: "demo.b", Value: 2.0},
	}

	payload, err := EncodeOutputs(outputs)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeOutputs(payload)
	if err != nil {
		t.Fatal(err)
	}

	if len(decoded) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(decoded))
	}
	if decoded[0].FactID != "demo.a" || decoded[0].Value != "x" || decoded[0].Source != "r1" || decoded[0].Confidence != 0.7 {
		t.Errorf("first output mismatch: %+v", decoded[0])
	}
	// Default confidence is materialised on encode.
	if decoded[1].Confidence != 1.0 {
		t.Errorf("expected default confidence persisted, got %v", decoded[1].Confidence)
	}
}

func TestDecodeOutputs_Corrupt(t *testing.T) {
	if _, err := DecodeOutputs([]byte("not json")); err == nil {
		t.Error("expected error for corrupt payload")
	}
}
