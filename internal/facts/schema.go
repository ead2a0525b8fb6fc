package facts

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Sentinel errors for the schema registry.
var (
	ErrSchemaAlreadyRegistered = errors.New("fact schema already registered")
	ErrUnknownFact             = errors.New("fact schema not registered")
)

// Type is the declared logical type of a fact.
type Type string

const (
	TypeString   Type = "string"
	TypeInt      Type = "int"
	TypeFloat    Type = "float"
	TypeBool     Type = "bool"
	TypeList     Type = "list"
	TypeRelation Type = "relation"
	TypeOpaque   Type = "opaque"
)

// NormalizeFunc normalises a fact value. Normalisers must be total and
// deterministic, and idempotent after one application.
type NormalizeFunc func(any) any

// CompareFunc overrides structural equality for a fact's values. Opaque
// facts compare by identity unless the schema supplies one.
type CompareFunc func(a, b any) bool

// Schema is the per-fact registration: declared type, description, optional
// normaliser, and whether disagreeing values are tolerated as ambiguity
// rather than conflict.
type Schema struct {
	FactID         ID
	Type           Type
	Description    string
	Normalize      NormalizeFunc
	AllowAmbiguity bool

	// Constraint optionally validates normalised values against a JSON
	// Schema document. Violations are recorded as notes during merge; they
	// never reject the value.
	Constraint *jsonschema.Schema

	// Compare overrides value equality during divergence detection.
	Compare CompareFunc
}

// ApplyNormalization returns the normalised value, or the input unchanged
// when no normaliser is set.
func (s *Schema) ApplyNormalization(v any) any {
	if s.Normalize != nil {
		return s.Normalize(v)
	}
	return v
}

// ValuesEqual compares two values under this schema's equality rules.
func (s *Schema) ValuesEqual(a, b any) bool {
	if s.Compare != nil {
		return s.Compare(a, b)
	}
	if s.Type == TypeOpaque {
		return a == b
	}
	return Equal(a, b)
}

// CheckConstraint validates a value against the schema's constraint, if any.
// A nil return means no constraint or a conforming value.
func (s *Schema) CheckConstraint(v any) error {
	if s.Constraint == nil {
		return nil
	}
	return s.Constraint.Validate(v)
}

// CompileConstraint compiles a JSON Schema document for use as a fact value
// constraint.
func CompileConstraint(doc string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("constraint.json", strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("invalid constraint document: %w", err)
	}
	compiled, err := c.Compile("constraint.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile constraint: %w", err)
	}
	return compiled, nil
}

// Registry maps fact IDs to their schemas. Registration happens at startup
// (single-writer); lookups are read-shared across concurrent resolutions.
type Registry struct {
	mu      sync.RWMutex
	schemas map[ID]*Schema
}

// NewRegistry creates an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[ID]*Schema)}
}

// Register inserts a schema. Re-registering a fact ID fails with
// ErrSchemaAlreadyRegistered.
func (r *Registry) Register(s *Schema) error {
	if s.FactID == "" {
		return fmt.Errorf("fact schema requires a fact id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[s.FactID]; ok {
		return fmt.Errorf("%w: %s", ErrSchemaAlreadyRegistered, s.FactID)
	}
	r.schemas[s.FactID] = s
	return nil
}

// MustRegister registers a schema and panics on failure. Intended for
// startup wiring of bundled packs.
func (r *Registry) MustRegister(s *Schema) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get returns the schema for a fact ID.
func (r *Registry) Get(id ID) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[id]
	return s, ok
}

// Resolve maps an identifier string onto a registered fact ID by string
// equality. The second return is false when no registered fact matches.
func (r *Registry) Resolve(identifier string) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := ID(identifier)
	if _, ok := r.schemas[id]; ok {
		return id, true
	}
	return id, false
}

// IDs returns all registered fact IDs, sorted.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ID, 0, len(r.schemas))
	for id := range r.schemas {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// DefaultRegistry is the conventional process-wide registry used when no
// explicit registry is wired.
var DefaultRegistry = NewRegistry()

// Register registers a schema into the default registry.
func Register(s *Schema) error {
	return DefaultRegistry.Register(s)
}
