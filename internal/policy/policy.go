// Package policy holds the configuration tables driving the sign-off
// coordinator and the worker routing registry, plus hot reload of a
// standalone policy file.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/types"
)

// Policy is the resolved configuration: the sign-off requirement table
// and the capability-tag routing table.
type Policy struct {
	SignOffs []models.SignOffRequirement `yaml:"sign_offs"`
	Routing  []types.RoutingRule         `yaml:"routing"`
}

var validTaskTypes = map[models.TaskType]bool{
	models.TypeFeature:       true,
	models.TypeBugFix:        true,
	models.TypeEnhancement:   true,
	models.TypeQA:            true,
	models.TypeRefactor:      true,
	models.TypeDocumentation: true,
	models.TypeInvestigation: true,
}

// Validate checks the tables for internal consistency: known task
// types, approval thresholds within the reviewer set, non-empty
// routing commands.
func (p Policy) Validate() error {
	for _, r := range p.SignOffs {
		if !validTaskTypes[r.TaskType] {
			return types.ValidationError("sign-off rule references unknown task type %q", r.TaskType)
		}
		if len(r.RequiredAgents) == 0 {
			return types.ValidationError("sign-off rule for %s/%s has no required agents", r.TaskType, r.FeatureArea)
		}
		if r.MinApprovals < 1 || r.MinApprovals > len(r.RequiredAgents) {
			return types.ValidationError("sign-off rule for %s/%s: min_approvals %d outside 1..%d",
				r.TaskType, r.FeatureArea, r.MinApprovals, len(r.RequiredAgents))
		}
	}
	seen := map[string]bool{}
	for _, r := range p.Routing {
		if r.Capability == "" {
			return types.ValidationError("routing rule with empty capability tag")
		}
		if seen[r.Capability] {
			return types.ValidationError("duplicate routing rule for capability %q", r.Capability)
		}
		seen[r.Capability] = true
		if len(r.Command) == 0 {
			return types.ValidationError("routing rule for %q has no command", r.Capability)
		}
	}
	return nil
}

// FromConfig builds a Policy from the app configuration tables.
func FromConfig(cfg types.PolicyConfig) (Policy, error) {
	p := Policy{Routing: cfg.Routing}
	for _, rule := range cfg.SignOffs {
		p.SignOffs = append(p.SignOffs, models.SignOffRequirement{
			TaskType:       models.TaskType(rule.TaskType),
			FeatureArea:    rule.FeatureArea,
			RequiredAgents: rule.RequiredAgents,
			MinApprovals:   rule.MinApprovals,
		})
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// LoadFile reads a standalone YAML policy file.
func LoadFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Load resolves the effective policy: the standalone file when
// configured, otherwise the inline tables.
func Load(cfg types.PolicyConfig) (Policy, error) {
	if cfg.File != "" {
		return LoadFile(cfg.File)
	}
	return FromConfig(cfg)
}
