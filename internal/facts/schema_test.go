package facts

import (
	"errors"
	"testing"
)

func TestRegister_Duplicate(t *testing.T) {
	reg := NewRegistry()

	schema := &Schema{FactID: "demo.foo", Type: TypeString, Description: "a fact"}
	if err := reg.Register(schema); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	err := reg.Register(&Schema{FactID: "demo.foo", Type: TypeInt})
	if !errors.Is(err, ErrSchemaAlreadyRegistered) {
		t.Errorf("expected ErrSchemaAlreadyRegistered, got %v", err)
	}
}

func TestRegister_RequiresFactID(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&Schema{Type: TypeString}); err == nil {
		t.Error("expected error for empty fact id")
	}
}

func TestApplyNormalization(t *testing.T) {
	schema := &Schema{
		FactID:    "demo.num",
		Type:      TypeFloat,
		Normalize: NormalizeFloat,
	}

	if got := schema.ApplyNormalization("3.5"); got != 3.5 {
		t.Errorf("expected 3.5, got %v", got)
	}

	// Idempotent after one application.
	once := schema.ApplyNormalization(7)
	twice := schema.ApplyNormalization(once)
	if once != twice {
		t.Errorf("normalisation not idempotent: %v vs %v", once, twice)
	}
}

func TestApplyNormalization_NoNormalizer(t *testing.T) {
	schema := &Schema{FactID: "demo.raw", Type: TypeOpaque}
	if got := schema.ApplyNormalization("unchanged"); got != "unchanged" {
		t.Errorf("expected passthrough, got %v", got)
	}
}

func TestResolve(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&Schema{FactID: "demo.known", Type: TypeString}); err != nil {
		t.Fatal(err)
	}

	id, ok := reg.Resolve("demo.known")
	if !ok || id != ID("demo.known") {
		t.Errorf("expected demo.known to resolve, got %q ok=%v", id, ok)
	}

	// Unknown identifiers pass through as-is.
	id, ok = reg.Resolve("demo.unknown")
	if ok {
		t.Error("expected unknown identifier to report not registered")
	}
	if id != ID("demo.unknown") {
		t.Errorf("expected identifier to pass through, got %q", id)
	}
}

func TestIDs_Sorted(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []ID{"demo.c", "demo.a", "demo.b"} {
		if err := reg.Register(&Schema{FactID: id, Type: TypeString}); err != nil {
			t.Fatal(err)
		}
	}

	ids := reg.IDs()
	want := []ID{"demo.a", "demo.b", "demo.c"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestValuesEqual_OpaqueByIdentity(t *testing.T) {
	schema := &Schema{FactID: "demo.rel", Type: TypeOpaque}

	handle := &struct{ name string }{name: "rel"}
	other := &struct{ name string }{name: "rel"}
	if !schema.ValuesEqual(handle, handle) {
		t.Error("expected identical handles to be equal")
	}
	if schema.ValuesEqual(handle, other) {
		t.Error("expected distinct handles to differ without a comparator")
	}
}

func TestValuesEqual_CustomComparator(t *testing.T) {
	schema := &Schema{
		FactID: "demo.rel",
		Type:   TypeOpaque,
		Compare: func(a, b any) bool {
			return a.(*struct{ name string }).name == b.(*struct{ name string }).name
		},
	}

	if !schema.ValuesEqual(&struct{ name string }{name: "rel"}, &struct{ name string }{name: "rel"}) {
		t.Error("expected comparator equality")
	}
}

func TestCheckConstraint(t *testing.T) {
	constraint, err := CompileConstraint(`{"type": "string", "enum": ["low", "high"]}`)
	if err != nil {
		t.Fatalf("failed to compile constraint: %v", err)
	}
	schema := &Schema{FactID: "demo.level", Type: TypeString, Constraint: constraint}

	if err := schema.CheckConstraint("low"); err != nil {
		t.Errorf("expected conforming value, got %v", err)
	}
	if err := schema.CheckConstraint("medium"); err == nil {
		t.Error("expected constraint violation")
	}
}

func TestCompileConstraint_Invalid(t *testing.T) {
	if _, err := CompileConstraint(`{"type":`); err == nil {
		t.Error("expected error for malformed document")
	}
}
