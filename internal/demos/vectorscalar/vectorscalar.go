// Package vectorscalar is the bundled demonstration pack bridging vectorized
// and scalar resolution: a batch of user rows comes in as a relation, one
// vectorized pass extracts records and a count, scalar resolvers refine a
// representative user, and a final resolver packs the scalars back into a
// one-row relation.
package vectorscalar

import (
	"fmt"
	"sort"

	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
	"github.com/axonops/fact-resolver/internal/resolver"
)

// Fact IDs for the vector/scalar pack.
const (
	FactUserBatchRelation     facts.ID = "vector_scalar.user_batch_relation"
	FactUserRecords           facts.ID = "vector_scalar.user_records"
	FactUserCount             facts.ID = "vector_scalar.user_count"
	FactPrimaryUserName       facts.ID = "vector_scalar.primary_user_name"
	FactPrimaryUserEmail      facts.ID = "vector_scalar.primary_user_email"
	FactPrimaryUserAsRelation facts.ID = "vector_scalar.primary_user_as_relation"
)

// Relation is the engine-agnostic stand-in for a columnar batch: an ordered
// list of rows keyed by column name. The core never inspects it; only this
// pack's resolvers do.
type Relation []map[string]any

// NormalizeUserBatch packs arbitrary batch input into a Relation. Accepted
// shapes are an existing Relation, []map[string]any, and []any whose
// elements are maps (what JSON decoding of a batch yields). Row values are
// canonicalised so relations built from different numeric kinds compare
// equal. Anything else passes through unchanged.
func NormalizeUserBatch(v any) any {
	switch batch := v.(type) {
	case Relation:
		return canonicalRelation(batch)
	case []map[string]any:
		rows := make(Relation, len(batch))
		for i, row := range batch {
			rows[i] = row
		}
		return canonicalRelation(rows)
	case []any:
		rows := make(Relation, 0, len(batch))
		for _, item := range batch {
			row, ok := item.(map[string]any)
			if !ok {
				return v
			}
			rows = append(rows, row)
		}
		return canonicalRelation(rows)
	}
	return v
}

func canonicalRelation(rows Relation) Relation {
	out := make(Relation, len(rows))
	for i, row := range rows {
		canonical, _ := facts.Canonical(row).(map[string]any)
		out[i] = canonical
	}
	return out
}

// RegisterSchemas registers the vector/scalar fact schemas.
func RegisterSchemas(reg *facts.Registry) error {
	schemas := []*facts.Schema{
		{
			FactID:      FactUserBatchRelation,
			Type:        facts.TypeRelation,
			Description: "Relation containing user batch records",
			Normalize:   NormalizeUserBatch,
		},
		{
			FactID:      FactUserRecords,
			Type:        facts.TypeList,
			Description: "Vectorized user records extracted from the relation",
		},
		{
			FactID:      FactUserCount,
			Type:        facts.TypeInt,
			Description: "Number of rows in the vectorized input relation",
			Normalize:   facts.NormalizeInt,
		},
		{
			FactID:      FactPrimaryUserName,
			Type:        facts.TypeString,
			Description: "Representative user name refined from the vectorized output",
		},
		{
			FactID:      FactPrimaryUserEmail,
			Type:        facts.TypeString,
			Description: "Representative user email refined from the vectorized output",
		},
		{
			FactID:      FactPrimaryUserAsRelation,
			Type:        facts.TypeRelation,
			Description: "One-row relation rebuilt from scalar facts to show the scalar-to-vector transition",
		},
	}
	for _, s := range schemas {
		if err := reg.Register(s); err != nil {
			return fmt.Errorf("vector/scalar pack: %w", err)
		}
	}
	return nil
}

// RegisterResolvers registers the vector/scalar resolvers.
func RegisterResolvers(reg *resolver.Registry) error {
	vectorized := &resolver.Func{
		ResolverSpec: &resolver.Spec{
			Name:        "VectorizedUserBatchResolver",
			Description: "Process a relation of users in a single vectorized pass",
			InputFacts:  []facts.ID{FactUserBatchRelation},
			OutputFacts: []facts.ID{FactUserRecords, FactUserCount},
			Impact: map[facts.ID]float64{
				FactUserRecords: 1.0,
				FactUserCount:   0.5,
			},
		},
		RunFunc: func(rctx *resolution.Context) ([]resolution.Output, error) {
			relation, ok := rctx.State[FactUserBatchRelation].Value().(Relation)
			if !ok {
				return nil, fmt.Errorf("user batch is not a relation")
			}
			records := make([]any, len(relation))
			for i, row := range relation {
				records[i] = row
			}
			return []resolution.Output{
				{FactID: FactUserRecords, Value: records, Source: "vectorized"},
				{FactID: FactUserCount, Value: len(records), Source: "vectorized"},
			}, nil
		},
	}

	primary := &resolver.Func{
		ResolverSpec: &resolver.Spec{
			Name:        "PrimaryUserResolver",
			Description: "Pick a representative user from the vectorized records",
			InputFacts:  []facts.ID{FactUserRecords},
			OutputFacts: []facts.ID{FactPrimaryUserName, FactPrimaryUserEmail},
			Impact: map[facts.ID]float64{
				FactPrimaryUserName:  1.0,
				FactPrimaryUserEmail: 0.8,
			},
		},
		RunFunc: func(rctx *resolution.Context) ([]resolution.Output, error) {
			records, ok := rctx.State[FactUserRecords].Value().([]any)
			if !ok || len(records) == 0 {
				return nil, nil
			}
			rows := make([]map[string]any, 0, len(records))
			for _, rec := range records {
				if row, ok := rec.(map[string]any); ok {
					rows = append(rows, row)
				}
			}
			if len(rows) == 0 {
				return nil, nil
			}
			// Lowest user_id wins, emphasising scalar extraction from a batch.
			sort.SliceStable(rows, func(i, j int) bool {
				return userID(rows[i]) < userID(rows[j])
			})
			chosen := rows[0]
			return []resolution.Output{
				{FactID: FactPrimaryUserName, Value: chosen["name"], Source: "scalar"},
				{FactID: FactPrimaryUserEmail, Value: chosen["email"], Source: "scalar"},
			}, nil
		},
	}

	repack := &resolver.Func{
		ResolverSpec: &resolver.Spec{
			Name:        "ScalarToRelationResolver",
			Description: "Pack scalar facts back into a one-row vectorized relation",
			InputFacts:  []facts.ID{FactPrimaryUserName, FactPrimaryUserEmail},
			OutputFacts: []facts.ID{FactPrimaryUserAsRelation},
			Impact: map[facts.ID]float64{
				FactPrimaryUserAsRelation: 0.6,
			},
		},
		RunFunc: func(rctx *resolution.Context) ([]resolution.Output, error) {
			name := rctx.State[FactPrimaryUserName].Value()
			email := rctx.State[FactPrimaryUserEmail].Value()
			relation := Relation{{
				"user_id": 1,
				"name":    name,
				"email":   email,
			}}
			return []resolution.Output{
				{
					FactID: FactPrimaryUserAsRelation,
					Value:  canonicalRelation(relation),
					Source: "scalar-to-vector",
					Note:   "Re-vectorized from scalar facts",
				},
			}, nil
		},
	}

	for _, r := range []resolver.Resolver{vectorized, primary, repack} {
		if err := reg.Register(r); err != nil {
			return fmt.Errorf("vector/scalar pack: %w", err)
		}
	}
	return nil
}

func userID(row map[string]any) float64 {
	id, _ := facts.Canonical(row["user_id"]).(float64)
	return id
}
