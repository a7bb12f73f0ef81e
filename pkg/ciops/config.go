package ciops

import (
	"fmt"
	"log"
	"time"

	"gopkg.in/yaml.v2"
)

// SearchStrategy selects how the reduction loop grows a subcircuit
// candidate from a chosen root gate, §4.8 step 3.
type SearchStrategy int

const (
	// OutputReduction greedily grows the candidate toward whichever
	// boundary gate minimises the resulting subcircuit's output count.
	OutputReduction SearchStrategy = iota
	// SingleOutputSubcircuit grows the candidate toward the inputs only
	// once every successor of the current frontier is already included,
	// keeping the candidate single-output as long as possible.
	SingleOutputSubcircuit
)

// SynthesisApproach selects the QBF encoding variant used by the
// subcircuit synthesiser, §4.6/§4.7.
type SynthesisApproach int

const (
	// QBFApproach is the standard two-quantifier-alternation exact
	// synthesis encoding (C5).
	QBFApproach SynthesisApproach = iota
	// ExactApproach is the isolated-specification variant used by the
	// standalone exact synthesiser (C6), which does not need a host
	// circuit copy inside the encoding.
	ExactApproach
)

// QBFSolverKind names a supported external QBF solver, each with its own
// command line and certificate line format (§6).
type QBFSolverKind int

const (
	SolverQFun QBFSolverKind = iota
	SolverQuabs
	SolverMiniQU
)

func (k QBFSolverKind) String() string {
	switch k {
	case SolverQFun:
		return "qfun"
	case SolverQuabs:
		return "quabs"
	case SolverMiniQU:
		return "miniqu"
	default:
		return "unknown"
	}
}

// Config gathers every tuning parameter for a reduction run: it is the Go
// analogue of the original tool's Configuration class, threaded by value
// or pointer into every component instead of being read from module
// globals. Grounded on original_source/utils.py's Configuration and
// pkg/minikanren/model.go's SolverConfig field.
type Config struct {
	// General
	Runs int
	Seed *int64 // nil means randomise

	SynthesiseAig bool

	// External ABC post-optimiser
	UseExternalOptimiser bool
	ABCPath               string
	ABCPreprocessCmds     string
	ABCCmds               string

	// Reduction loop
	TabooRatio                      float64
	UseTabooList                    bool
	CheckSubcircuitSizeInterval     int
	SubcircuitSizeIncreaseLimit     int
	SubcircuitSizeIncreaseNofSamples int
	InitialSubcircuitSize           int
	SearchStrategy                  SearchStrategy

	// Synthesis
	SynthesisApproach SynthesisApproach
	RequireReduction  bool
	QBFSolver         QBFSolverKind
	SolverPath        string

	// Encoding
	GateSize                 int
	UseTrivialRuleConstraint bool
	UseAllStepsConstraint    bool
	UseNoReapplicationConstraint bool
	UseOrderedStepsConstraint   bool
	AllowInputsAsOutputs        bool
	AllowConstantsAsOutputs     bool
	UseGateInputVariables       bool

	// Timeouts
	UseTimeouts        bool
	UseDynamicTimeouts bool
	TotalAvailableTime time.Duration
	BaseTimeout        time.Duration
	MinimalTimeout     time.Duration
	RequiredTimings    int
	Factor             float64
	AdjustUntil        int

	// Iteration / time budgets (SPEC_FULL.md §7)
	IterationBudget int // 0 means unlimited

	// Logging
	Logger                     *log.Logger
	GateCountTrace             bool
	LogNofEquivalentSubcircuits bool
	LogReplacedGates           bool
	LogEquivalentReplacements  bool
	EncodingLogDir             string
	SpecificationLogDir        string
	LogTimeSteps               *time.Duration
	LogIterationSteps          int

	// Supplemental ambient-stack toggles (SPEC_FULL.md §6)
	EmitDOT          bool
	MetricsAddr      string
	TraceFilter      string
	ParallelRestarts int
}

// DefaultConfig reproduces the original tool's Configuration() defaults
// field for field.
func DefaultConfig() *Config {
	return &Config{
		Runs:          1,
		SynthesiseAig: false,

		UseExternalOptimiser: false,
		ABCPreprocessCmds:    "fraig -C 50000",
		ABCCmds: "balance; resub -K 6; rewrite; resub -K 6 -N 2; refactor; resub -K 8; balance; " +
			"resub -K 8 -N 2; rewrite; resub -K 10; rewrite -z; resub -K 10 -N 2; balance",

		TabooRatio:                       0.6,
		UseTabooList:                     true,
		CheckSubcircuitSizeInterval:      50,
		SubcircuitSizeIncreaseLimit:      30,
		SubcircuitSizeIncreaseNofSamples: 50,
		InitialSubcircuitSize:            6,
		SearchStrategy:                   OutputReduction,

		SynthesisApproach: QBFApproach,
		RequireReduction:  false,
		QBFSolver:         SolverQFun,

		GateSize:                     2,
		UseTrivialRuleConstraint:     true,
		UseAllStepsConstraint:        true,
		UseNoReapplicationConstraint: true,
		UseOrderedStepsConstraint:    true,
		AllowInputsAsOutputs:         true,
		AllowConstantsAsOutputs:      true,
		UseGateInputVariables:        true,

		UseTimeouts:        true,
		UseDynamicTimeouts: true,
		TotalAvailableTime: 18000 * time.Second,
		BaseTimeout:        120 * time.Second,
		MinimalTimeout:     1 * time.Second,
		RequiredTimings:    10,
		Factor:             1.4,
		AdjustUntil:        50,

		ParallelRestarts: 1,
	}
}

// DisableSymmetryBreaking turns off the no-reapplication constraint, the
// fallback original_source/subcircuitSynthesiser.py applies when a
// subcircuit is not realisable at its original size with full symmetry
// breaking enabled (§4.7 step 2, checkEncodingWithSymmetryFallback).
func (c *Config) DisableSymmetryBreaking() {
	c.UseNoReapplicationConstraint = false
}

// SymmetryBreakingUsed reports whether any symmetry-breaking constraint
// is currently enabled.
func (c *Config) SymmetryBreakingUsed() bool {
	return c.UseTrivialRuleConstraint || c.UseAllStepsConstraint ||
		c.UseNoReapplicationConstraint || c.UseOrderedStepsConstraint
}

// Validate checks the invariants the original tool asserted in
// validateConfig, returning an error instead of asserting.
func (c *Config) Validate() error {
	if c.TabooRatio <= 0 || c.TabooRatio >= 1 {
		return fmt.Errorf("ciops: invalid TabooRatio %v, must be in (0,1)", c.TabooRatio)
	}
	if c.SubcircuitSizeIncreaseLimit <= 0 {
		return fmt.Errorf("ciops: invalid SubcircuitSizeIncreaseLimit %d, must be positive", c.SubcircuitSizeIncreaseLimit)
	}
	if c.TotalAvailableTime <= 0 {
		return fmt.Errorf("ciops: TotalAvailableTime must be positive")
	}
	if c.BaseTimeout <= 0 {
		return fmt.Errorf("ciops: BaseTimeout must be positive")
	}
	if c.GateSize < 1 {
		return fmt.Errorf("ciops: GateSize must be at least 1")
	}
	return nil
}

// LoadConfigYAML reads a Config from YAML, starting from DefaultConfig
// and overlaying whatever fields the document sets.
func LoadConfigYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ciops: parsing config yaml: %w", err)
	}
	return cfg, nil
}

// WriteYAML serialises the configuration back to YAML, e.g. to capture
// the exact tuning parameters a reduction run used for later replay.
func (c *Config) WriteYAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("ciops: marshalling config yaml: %w", err)
	}
	return out, nil
}
