// Package weather is the bundled weather-planner demonstration pack: given a
// location it forecasts conditions and recommends a wardrobe.
package weather

import (
	"fmt"

	"github.com/axonops/fact-resolver/internal/cache"
	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
	"github.com/axonops/fact-resolver/internal/resolver"
)

// Fact IDs for the weather pack.
const (
	FactLocation         facts.ID = "demo.weather.location"
	FactTemperatureF     facts.ID = "demo.weather.temperature_f"
	FactPrecipChance     facts.ID = "demo.weather.precip_probability"
	FactWardrobe         facts.ID = "demo.weather.wardrobe"
	FactUmbrellaNeeded   facts.ID = "demo.weather.umbrella_needed"
)

type forecast struct {
	temperature float64
	precip      float64
}

var forecasts = map[string]forecast{
	"seattle":  {temperature: 58.0, precip: 0.68},
	"phoenix":  {temperature: 88.0, precip: 0.05},
	"new york": {temperature: 72.0, precip: 0.32},
}

// RegisterSchemas registers the weather fact schemas.
func RegisterSchemas(reg *facts.Registry) error {
	schemas := []*facts.Schema{
		{
			FactID:      FactLocation,
			Type:        facts.TypeString,
			Description: "City or region to look up",
			Normalize:   facts.NormalizeTrimLower,
		},
		{
			FactID:      FactTemperatureF,
			Type:        facts.TypeFloat,
			Description: "Forecasted high temperature in Fahrenheit",
			Normalize:   facts.NormalizeFloat,
		},
		{
			FactID:      FactPrecipChance,
			Type:        facts.TypeFloat,
			Description: "Chance of precipitation as a probability between 0 and 1",
			Normalize:   facts.ClampUnit,
		},
		{
			FactID:      FactWardrobe,
			Type:        facts.TypeString,
			Description: "Suggested outfit description based on conditions",
		},
		{
			FactID:      FactUmbrellaNeeded,
			Type:        facts.TypeBool,
			Description: "Whether to pack an umbrella",
			Normalize:   facts.NormalizeBool,
		},
	}
	for _, s := range schemas {
		if err := reg.Register(s); err != nil {
			return fmt.Errorf("weather pack: %w", err)
		}
	}
	return nil
}

// RegisterResolvers registers the weather resolvers. The lookup resolver
// declares the given policy as its cache policy; resolver.Execute consults
// and populates it, while the planner calls Run directly and bypasses it.
func RegisterResolvers(reg *resolver.Registry, policy cache.Policy) error {
	lookup := &resolver.Func{
		ResolverSpec: &resolver.Spec{
			Name:        "WeatherLookupResolver",
			Description: "Look up forecasted weather for a location",
			InputFacts:  []facts.ID{FactLocation},
			OutputFacts: []facts.ID{FactTemperatureF, FactPrecipChance},
			Impact: map[facts.ID]float64{
				FactTemperatureF: 0.6,
				FactPrecipChance: 0.4,
			},
			CachePolicy: policy,
		},
		RunFunc: func(rctx *resolution.Context) ([]resolution.Output, error) {
			location := fmt.Sprintf("%v", rctx.State[FactLocation].Value())
			fc, ok := forecasts[location]
			if !ok {
				fc = forecast{temperature: 70.0, precip: 0.15}
			}
			return []resolution.Output{
				{FactID: FactTemperatureF, Value: fc.temperature, Source: "demo.weather"},
				{FactID: FactPrecipChance, Value: fc.precip, Source: "demo.weather"},
			}, nil
		},
	}

	wardrobe := &resolver.Func{
		ResolverSpec: &resolver.Spec{
			Name:        "WardrobePlannerResolver",
			Description: "Recommend clothing and umbrella choice based on forecast",
			InputFacts:  []facts.ID{FactTemperatureF, FactPrecipChance},
			OutputFacts: []facts.ID{FactWardrobe, FactUmbrellaNeeded},
			Impact: map[facts.ID]float64{
				FactWardrobe:       0.5,
				FactUmbrellaNeeded: 0.7,
			},
		},
		RunFunc: func(rctx *resolution.Context) ([]resolution.Output, error) {
			temperature, _ := facts.Canonical(rctx.State[FactTemperatureF].Value()).(float64)
			precip, _ := facts.Canonical(rctx.State[FactPrecipChance].Value()).(float64)

			var outfit string
			switch {
			case temperature < 50:
				outfit = "Warm coat and layers"
			case temperature < 70:
				outfit = "Light jacket"
			default:
				outfit = "T-shirt"
			}
			return []resolution.Output{
				{FactID: FactWardrobe, Value: outfit, Source: "demo.weather"},
				{FactID: FactUmbrellaNeeded, Value: precip >= 0.5, Source: "demo.weather"},
			}, nil
		},
	}

	for _, r := range []resolver.Resolver{lookup, wardrobe} {
		if err := reg.Register(r); err != nil {
			return fmt.Errorf("weather pack: %w", err)
		}
	}
	return nil
}
