/*
Copyright © 2026 TradeOps Engineering
*/
package types

// AppConfig represents the complete application configuration.
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose" yaml:"verbose"`
	Config    string          `mapstructure:"config" yaml:"config"`
	Data      DataConfig      `mapstructure:"data" validate:"required" yaml:"data"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required" yaml:"scheduler"`
	Policy    PolicyConfig    `mapstructure:"policy" yaml:"policy"`
}

// DataConfig holds persistence settings.
type DataConfig struct {
	// Path to the SQLite database file.
	File string `mapstructure:"file" validate:"required" yaml:"file"`
}

// SchedulerConfig holds the autonomous loop settings.
type SchedulerConfig struct {
	// MaxTasksPerHour caps claims in any rolling 60-minute window.
	MaxTasksPerHour int `mapstructure:"maxTasksPerHour" validate:"required,min=1" yaml:"maxTasksPerHour"`
	// BudgetLimit is the hard ceiling on cumulative dispatch cost.
	BudgetLimit float64 `mapstructure:"budgetLimit" validate:"required,gt=0" yaml:"budgetLimit"`
	// CostPerTask is the projected cost charged against the budget
	// before dispatch; the worker's reported cost settles the ledger.
	CostPerTask float64 `mapstructure:"costPerTask" validate:"omitempty,gte=0" yaml:"costPerTask"`
	// Concurrency bounds simultaneous dispatches.
	Concurrency int `mapstructure:"concurrency" validate:"omitempty,min=1" yaml:"concurrency"`
	// PollIntervalSeconds is the idle sleep between empty select passes.
	PollIntervalSeconds int `mapstructure:"pollIntervalSeconds" validate:"omitempty,min=1" yaml:"pollIntervalSeconds"`
	// ExcludedFeatureAreas lists oversized ("epic") areas the loop
	// never selects from.
	ExcludedFeatureAreas []string `mapstructure:"excludedFeatureAreas" yaml:"excludedFeatureAreas"`
}

// PolicyConfig holds the sign-off requirement table and worker routing.
type PolicyConfig struct {
	// File optionally points at a standalone YAML policy file watched
	// for changes while the loop runs. Empty means the tables below
	// are used as-is.
	File string `mapstructure:"file" yaml:"file"`
	// SignOffs is the (task type, feature area) -> reviewer set table.
	SignOffs []SignOffRule `mapstructure:"signOffs" yaml:"signOffs"`
	// Routing maps capability tags to worker commands.
	Routing []RoutingRule `mapstructure:"routing" yaml:"routing"`
}

// SignOffRule is the mapstructure/yaml shape of a sign-off requirement.
type SignOffRule struct {
	TaskType       string   `mapstructure:"taskType" yaml:"task_type"`
	FeatureArea    string   `mapstructure:"featureArea" yaml:"feature_area"`
	RequiredAgents []string `mapstructure:"requiredAgents" yaml:"required_agents"`
	MinApprovals   int      `mapstructure:"minApprovals" yaml:"min_approvals"`
}

// RoutingRule binds a capability tag to a worker command line.
type RoutingRule struct {
	Capability string   `mapstructure:"capability" yaml:"capability"`
	Command    []string `mapstructure:"command" yaml:"command"`
}
