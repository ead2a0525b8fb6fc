// Package users is the bundled user-system demonstration pack. Its favorite
// color fact tolerates ambiguity, which makes it the smallest end-to-end
// exercise of the ambiguous merge path.
package users

import (
	"fmt"

	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
	"github.com/axonops/fact-resolver/internal/resolver"
)

// Fact IDs for the user-system pack.
const (
	FactUserName      facts.ID = "demo.user_name"
	FactUserID        facts.ID = "demo.user_id"
	FactFavoriteColor facts.ID = "demo.favorite_color"
)

// RegisterSchemas registers the user-system fact schemas.
func RegisterSchemas(reg *facts.Registry) error {
	schemas := []*facts.Schema{
		{
			FactID:      FactUserName,
			Type:        facts.TypeString,
			Description: "User name",
		},
		{
			FactID:      FactUserID,
			Type:        facts.TypeInt,
			Description: "User id",
			Normalize:   facts.NormalizeInt,
		},
		{
			FactID:         FactFavoriteColor,
			Type:           facts.TypeString,
			Description:    "Favorite color",
			AllowAmbiguity: true,
		},
	}
	for _, s := range schemas {
		if err := reg.Register(s); err != nil {
			return fmt.Errorf("users pack: %w", err)
		}
	}
	return nil
}

// RegisterResolvers registers the user-system resolvers.
func RegisterResolvers(reg *resolver.Registry) error {
	userID := &resolver.Func{
		ResolverSpec: &resolver.Spec{
			Name:        "UserIdResolver",
			Description: "Derive user id from name",
			InputFacts:  []facts.ID{FactUserName},
			OutputFacts: []facts.ID{FactUserID},
			Impact:      map[facts.ID]float64{FactUserID: 1.0},
		},
		RunFunc: func(rctx *resolution.Context) ([]resolution.Output, error) {
			name := fmt.Sprintf("%v", rctx.State[FactUserName].Value())
			return []resolution.Output{
				{FactID: FactUserID, Value: len(name)},
			}, nil
		},
	}

	favoriteColor := &resolver.Func{
		ResolverSpec: &resolver.Spec{
			Name:        "FavoriteColorResolver",
			Description: "Assign favorite color",
			InputFacts:  []facts.ID{FactUserID},
			OutputFacts: []facts.ID{FactFavoriteColor},
			Impact:      map[facts.ID]float64{FactFavoriteColor: 0.5},
		},
		RunFunc: func(rctx *resolution.Context) ([]resolution.Output, error) {
			uid, _ := facts.Canonical(rctx.State[FactUserID].Value()).(float64)
			color := "green"
			if int64(uid)%2 == 0 {
				color = "blue"
			}
			return []resolution.Output{
				{FactID: FactFavoriteColor, Value: color},
			}, nil
		},
	}

	for _, r := range []resolver.Resolver{userID, favoriteColor} {
		if err := reg.Register(r); err != nil {
			return fmt.Errorf("users pack: %w", err)
		}
	}
	return nil
}
