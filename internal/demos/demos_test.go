package demos

import (
	"context"
	"testing"
	"time"

	"github.com/axonops/fact-resolver/internal/cache/memory"
	"github.com/axonops/fact-resolver/internal/demos/triage"
	"github.com/axonops/fact-resolver/internal/demos/users"
	"github.com/axonops/fact-resolver/internal/demos/vectorscalar"
	"github.com/axonops/fact-resolver/internal/demos/weather"
	"github.com/axonops/fact-resolver/internal/engine"
	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
	"github.com/axonops/fact-resolver/internal/resolver"
)

func newDemoEngine(t *testing.T) *engine.Engine {
	t.Helper()
	schemas := facts.NewRegistry()
	resolvers := resolver.NewRegistry()
	if err := RegisterAll(schemas, resolvers, memory.New(16, time.Minute)); err != nil {
		t.Fatal(err)
	}
	return engine.New(schemas, resolvers)
}

func TestRegisterAll_RejectsDuplicates(t *testing.T) {
	schemas := facts.NewRegistry()
	resolvers := resolver.NewRegistry()
	if err := RegisterAll(schemas, resolvers, nil); err != nil {
		t.Fatal(err)
	}
	// A second registration must be rejected, not silently overwrite.
	if err := RegisterAll(schemas, resolvers, nil); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

// Every declared output should carry an impact weight; a missing entry
// silently zeroes the resolver's score for that fact.
func TestSpecs_ImpactCoversOutputs(t *testing.T) {
	resolvers := resolver.NewRegistry()
	if err := RegisterAll(facts.NewRegistry(), resolvers, nil); err != nil {
		t.Fatal(err)
	}

	for _, r := range resolvers.Resolvers() {
		spec := r.Spec()
		for _, fid := range spec.OutputFacts {
			if _, ok := spec.Impact[fid]; !ok {
				t.Errorf("resolver %s: output %s has no impact weight", spec.Name, fid)
			}
		}
	}
}

func TestSpecs_InputsAndOutputsRegistered(t *testing.T) {
	schemas := facts.NewRegistry()
	resolvers := resolver.NewRegistry()
	if err := RegisterAll(schemas, resolvers, nil); err != nil {
		t.Fatal(err)
	}

	for _, r := range resolvers.Resolvers() {
		spec := r.Spec()
		for _, fid := range append(append([]facts.ID{}, spec.InputFacts...), spec.OutputFacts...) {
			if _, ok := schemas.Get(fid); !ok {
				t.Errorf("resolver %s references unregistered fact %s", spec.Name, fid)
			}
		}
	}
}

func TestWeatherChain(t *testing.T) {
	eng := newDemoEngine(t)

	result, err := eng.Run(context.Background(),
		map[string]any{weather.FactLocation.String(): "Phoenix"},
		[]string{weather.FactWardrobe.String(), weather.FactUmbrellaNeeded.String()},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Facts[weather.FactWardrobe.String()] != "T-shirt" {
		t.Errorf("expected Phoenix wardrobe T-shirt, got %v", result.Facts[weather.FactWardrobe.String()])
	}
	if result.Facts[weather.FactUmbrellaNeeded.String()] != false {
		t.Errorf("expected no umbrella in Phoenix, got %v", result.Facts[weather.FactUmbrellaNeeded.String()])
	}
}

func TestWeather_UnknownLocationDefaults(t *testing.T) {
	eng := newDemoEngine(t)

	result, err := eng.Run(context.Background(),
		map[string]any{weather.FactLocation.String(): "Atlantis"},
		[]string{weather.FactTemperatureF.String()},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := result.Facts[weather.FactTemperatureF.String()]; got != 70.0 {
		t.Errorf("expected default forecast 70.0, got %v", got)
	}
}

func TestTriageChain(t *testing.T) {
	eng := newDemoEngine(t)

	result, err := eng.Run(context.Background(),
		map[string]any{triage.FactIncidentSummary.String(): "Checkout is down for everyone"},
		[]string{triage.FactAssignedTeam.String(), triage.FactETADays.String()},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Facts[triage.FactSeverity.String()] != "critical" {
		t.Errorf("expected critical severity, got %v", result.Facts[triage.FactSeverity.String()])
	}
	if result.Facts[triage.FactAssignedTeam.String()] != "SRE" {
		t.Errorf("expected SRE assignment, got %v", result.Facts[triage.FactAssignedTeam.String()])
	}
	if result.Facts[triage.FactETADays.String()] != int64(1) {
		t.Errorf("expected 1 day ETA, got %v", result.Facts[triage.FactETADays.String()])
	}
}

func TestUsersChain_AmbiguousColor(t *testing.T) {
	schemas := facts.NewRegistry()
	resolvers := resolver.NewRegistry()
	if err := users.RegisterSchemas(schemas); err != nil {
		t.Fatal(err)
	}
	if err := users.RegisterResolvers(resolvers); err != nil {
		t.Fatal(err)
	}
	eng := engine.New(schemas, resolvers)

	// The caller supplies one color; the resolver derives another ("alice"
	// has id 5, which maps to green). The schema tolerates the disagreement.
	result, err := eng.Run(context.Background(),
		map[string]any{
			users.FactUserName.String():      "alice",
			users.FactFavoriteColor.String(): "red",
		},
		nil,
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	values, ok := result.Facts[users.FactFavoriteColor.String()].([]any)
	if !ok {
		t.Fatalf("expected ambiguous value list, got %v", result.Facts[users.FactFavoriteColor.String()])
	}
	if len(values) != 2 || values[0] != "red" || values[1] != "green" {
		t.Errorf("expected [red green], got %v", values)
	}
}

func TestVectorScalarChain_RoundTrip(t *testing.T) {
	eng := newDemoEngine(t)

	batch := []any{
		map[string]any{"user_id": 2, "name": "Grace Hopper", "email": "hopper@example.com"},
		map[string]any{"user_id": 1, "name": "Ada Lovelace", "email": "ada@example.com"},
	}
	result, err := eng.Run(context.Background(),
		map[string]any{vectorscalar.FactUserBatchRelation.String(): batch},
		[]string{
			vectorscalar.FactPrimaryUserName.String(),
			vectorscalar.FactPrimaryUserAsRelation.String(),
		},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := result.Facts[vectorscalar.FactUserCount.String()]; got != int64(2) {
		t.Errorf("expected vectorized count 2, got %v (%T)", got, got)
	}
	// Lowest user_id wins the scalar extraction.
	if got := result.Facts[vectorscalar.FactPrimaryUserName.String()]; got != "Ada Lovelace" {
		t.Errorf("expected Ada Lovelace as primary user, got %v", got)
	}
	if got := result.Facts[vectorscalar.FactPrimaryUserEmail.String()]; got != "ada@example.com" {
		t.Errorf("expected primary email, got %v", got)
	}

	relation, ok := result.Facts[vectorscalar.FactPrimaryUserAsRelation.String()].(vectorscalar.Relation)
	if !ok {
		t.Fatalf("expected a one-row relation, got %T", result.Facts[vectorscalar.FactPrimaryUserAsRelation.String()])
	}
	if len(relation) != 1 || relation[0]["name"] != "Ada Lovelace" {
		t.Errorf("expected scalars re-vectorized into one row, got %v", relation)
	}

	want := []string{"VectorizedUserBatchResolver", "PrimaryUserResolver", "ScalarToRelationResolver"}
	if len(result.Trace) != len(want) {
		t.Fatalf("expected trace %v, got %v", want, result.Trace)
	}
	for i := range want {
		if result.Trace[i] != want[i] {
			t.Errorf("trace[%d] = %s, want %s", i, result.Trace[i], want[i])
		}
	}
}

func TestVectorScalar_EmptyBatch(t *testing.T) {
	eng := newDemoEngine(t)

	result, err := eng.Run(context.Background(),
		map[string]any{vectorscalar.FactUserBatchRelation.String(): []any{}},
		[]string{vectorscalar.FactUserCount.String()},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := result.Facts[vectorscalar.FactUserCount.String()]; got != int64(0) {
		t.Errorf("expected count 0 for empty batch, got %v", got)
	}
	// No records means no primary user is ever produced.
	if _, ok := result.Facts[vectorscalar.FactPrimaryUserName.String()]; ok {
		t.Error("expected no primary user for an empty batch")
	}
}

func TestNormalizeUserBatch(t *testing.T) {
	batch := vectorscalar.NormalizeUserBatch([]any{
		map[string]any{"user_id": 1, "name": "Ada Lovelace", "email": "ada@example.com"},
	})
	relation, ok := batch.(vectorscalar.Relation)
	if !ok {
		t.Fatalf("expected Relation, got %T", batch)
	}
	if len(relation) != 1 || relation[0]["name"] != "Ada Lovelace" {
		t.Errorf("unexpected relation %v", relation)
	}

	// Row values are canonicalised, so integer kinds compare equal.
	fromInts := vectorscalar.NormalizeUserBatch([]map[string]any{{"user_id": 1}})
	fromFloats := vectorscalar.NormalizeUserBatch([]map[string]any{{"user_id": 1.0}})
	if !facts.Equal(fromInts, fromFloats) {
		t.Error("expected canonicalised relations to compare equal")
	}

	// Non-batch input passes through unchanged.
	if got := vectorscalar.NormalizeUserBatch("not a batch"); got != "not a batch" {
		t.Errorf("expected passthrough, got %v", got)
	}
}

func TestWeatherLookup_UsesCache(t *testing.T) {
	policy := memory.New(16, time.Minute)
	schemas := facts.NewRegistry()
	resolvers := resolver.NewRegistry()
	if err := weather.RegisterSchemas(schemas); err != nil {
		t.Fatal(err)
	}
	if err := weather.RegisterResolvers(resolvers, policy); err != nil {
		t.Fatal(err)
	}

	lookup, ok := resolvers.Get("WeatherLookupResolver")
	if !ok {
		t.Fatal("lookup resolver not registered")
	}

	provided := []resolution.Output{{FactID: weather.FactLocation, Value: "seattle"}}
	first, err := resolver.Execute(context.Background(), lookup, resolution.NewContext(), provided)
	if err != nil {
		t.Fatal(err)
	}
	if policy.Size() != 1 {
		t.Fatalf("expected one cached entry, got %d", policy.Size())
	}

	second, err := resolver.Execute(context.Background(), lookup, resolution.NewContext(), provided)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected cached outputs to match, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Value != second[i].Value {
			t.Errorf("output %d mismatch: %v vs %v", i, first[i].Value, second[i].Value)
		}
	}
}
