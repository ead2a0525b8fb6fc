// Package demos registers the bundled demonstration packs.
package demos

import (
	"github.com/axonops/fact-resolver/internal/cache"
	"github.com/axonops/fact-resolver/internal/demos/triage"
	"github.com/axonops/fact-resolver/internal/demos/users"
	"github.com/axonops/fact-resolver/internal/demos/vectorscalar"
	"github.com/axonops/fact-resolver/internal/demos/weather"
	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolver"
)

// RegisterAll registers every bundled pack's schemas and resolvers. The
// cache policy, when non-nil, is attached to the resolvers that declare one.
func RegisterAll(schemas *facts.Registry, resolvers *resolver.Registry, policy cache.Policy) error {
	if err := weather.RegisterSchemas(schemas); err != nil {
		return err
	}
	if err := weather.RegisterResolvers(resolvers, policy); err != nil {
		return err
	}
	if err := triage.RegisterSchemas(schemas); err != nil {
		return err
	}
	if err := triage.RegisterResolvers(resolvers); err != nil {
		return err
	}
	if err := users.RegisterSchemas(schemas); err != nil {
		return err
	}
	if err := users.RegisterResolvers(resolvers); err != nil {
		return err
	}
	if err := vectorscalar.RegisterSchemas(schemas); err != nil {
		return err
	}
	if err := vectorscalar.RegisterResolvers(resolvers); err != nil {
		return err
	}
	return nil
}
