// Package triage is the bundled support-triage demonstration pack: it
// classifies an incident summary and assigns a response team.
package triage

import (
	"fmt"
	"strings"

	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
	"github.com/axonops/fact-resolver/internal/resolver"
)

// Fact IDs for the support-triage pack.
const (
	FactIncidentSummary facts.ID = "demo.support.incident_summary"
	FactSeverity        facts.ID = "demo.support.severity"
	FactCustomerImpact  facts.ID = "demo.support.customer_impact"
	FactAssignedTeam    facts.ID = "demo.support.assigned_team"
	FactETADays         facts.ID = "demo.support.eta_days"
)

// severityConstraint pins the classifier's vocabulary; out-of-vocabulary
// values surface as notes on the fact rather than failing the merge.
const severityConstraint = `{"type": "string", "enum": ["critical", "major", "minor"]}`

// RegisterSchemas registers the support-triage fact schemas.
func RegisterSchemas(reg *facts.Registry) error {
	constraint, err := facts.CompileConstraint(severityConstraint)
	if err != nil {
		return fmt.Errorf("triage pack: %w", err)
	}

	schemas := []*facts.Schema{
		{
			FactID:      FactIncidentSummary,
			Type:        facts.TypeString,
			Description: "Short description of the incident submitted by a user",
		},
		{
			FactID:      FactSeverity,
			Type:        facts.TypeString,
			Description: "Categorized severity level",
			Constraint:  constraint,
		},
		{
			FactID:      FactCustomerImpact,
			Type:        facts.TypeString,
			Description: "Human-readable impact summary",
		},
		{
			FactID:      FactAssignedTeam,
			Type:        facts.TypeString,
			Description: "Team that will handle the incident",
		},
		{
			FactID:      FactETADays,
			Type:        facts.TypeInt,
			Description: "Estimated days until resolution",
			Normalize:   facts.NormalizeInt,
		},
	}
	for _, s := range schemas {
		if err := reg.Register(s); err != nil {
			return fmt.Errorf("triage pack: %w", err)
		}
	}
	return nil
}

// RegisterResolvers registers the support-triage resolvers.
func RegisterResolvers(reg *resolver.Registry) error {
	classifier := &resolver.Func{
		ResolverSpec: &resolver.Spec{
			Name:        "SeverityClassifierResolver",
			Description: "Roughly classify incident severity from the summary",
			InputFacts:  []facts.ID{FactIncidentSummary},
			OutputFacts: []facts.ID{FactSeverity, FactCustomerImpact},
			Impact: map[facts.ID]float64{
				FactSeverity:       0.6,
				FactCustomerImpact: 0.4,
			},
		},
		RunFunc: func(rctx *resolution.Context) ([]resolution.Output, error) {
			summary := strings.ToLower(fmt.Sprintf("%v", rctx.State[FactIncidentSummary].Value()))

			var severity, impact string
			switch {
			case strings.Contains(summary, "outage"),
				strings.Contains(summary, "down"),
				strings.Contains(summary, "unavailable"):
				severity = "critical"
				impact = "Widespread impact, service unavailable"
			case strings.Contains(summary, "slow"), strings.Contains(summary, "degraded"):
				severity = "major"
				impact = "Performance degradation for some users"
			default:
				severity = "minor"
				impact = "Isolated inconvenience or request"
			}
			return []resolution.Output{
				{FactID: FactSeverity, Value: severity, Source: "demo.support"},
				{FactID: FactCustomerImpact, Value: impact, Source: "demo.support"},
			}, nil
		},
	}

	assignment := &resolver.Func{
		ResolverSpec: &resolver.Spec{
			Name:        "AssignmentResolver",
			Description: "Assign the best-fit response team based on severity",
			InputFacts:  []facts.ID{FactSeverity},
			OutputFacts: []facts.ID{FactAssignedTeam, FactETADays},
			Impact: map[facts.ID]float64{
				FactAssignedTeam: 0.5,
				FactETADays:      0.7,
			},
		},
		RunFunc: func(rctx *resolution.Context) ([]resolution.Output, error) {
			severity := fmt.Sprintf("%v", rctx.State[FactSeverity].Value())

			var team string
			var etaDays int
			switch severity {
			case "critical":
				team = "SRE"
				etaDays = 1
			case "major":
				team = "Backend"
				etaDays = 3
			default:
				team = "Support"
				etaDays = 5
			}
			return []resolution.Output{
				{FactID: FactAssignedTeam, Value: team, Source: "demo.support"},
				{FactID: FactETADays, Value: etaDays, Source: "demo.support"},
			}, nil
		},
	}

	for _, r := range []resolver.Resolver{classifier, assignment} {
		if err := reg.Register(r); err != nil {
			return fmt.Errorf("triage pack: %w", err)
		}
	}
	return nil
}
