package main

import (
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/karavel-ai/compass/internal/api"
	"github.com/karavel-ai/compass/internal/approval"
	"github.com/karavel-ai/compass/internal/classifier"
	"github.com/karavel-ai/compass/internal/config"
	"github.com/karavel-ai/compass/internal/cost"
	"github.com/karavel-ai/compass/internal/dispatch"
	"github.com/karavel-ai/compass/internal/engine"
	"github.com/karavel-ai/compass/internal/state"
	"github.com/karavel-ai/compass/pkg/models"
)

// buildEngine assembles the workflow engine from configuration. The gate
// is returned so interactive commands can service its requests, and the
// store so callers can close it.
func buildEngine(cfg *config.Config, policy approval.Policy) (*engine.Engine, *approval.Gate, state.WorkflowStore, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	catalogue, err := config.LoadCatalogue("")
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	gen := newGenerativeTier(cfg)

	var logger *engine.DebugLogger
	if cfg.Logging.Debug {
		cwd, _ := os.Getwd()
		logger = engine.NewDebugLoggerForProject(cwd)
	} else {
		logger = engine.NopLogger()
	}

	gate := approval.NewGate(policy)
	eng := engine.New(
		classifier.New(gen,
			classifier.WithCatalogue(catalogue),
			classifier.WithThreshold(cfg.Classifier.FastPathThreshold),
			classifier.WithSlowPathTimeout(cfg.Classifier.SlowPathTimeout),
		),
		newEstimator(cfg),
		gate,
		dispatch.NewDefaultDispatcher(),
		engine.WithStore(store),
		engine.WithLogger(logger),
	)

	return eng, gate, store, nil
}

// newGenerativeTier builds the Claude classification fallback, or nil when
// no credentials are configured. Without it classification degrades to
// keywords only.
func newGenerativeTier(cfg *config.Config) classifier.GenerativeClassifier {
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		return nil
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        key,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil
	}

	return classifier.NewClaudeClassifier(client)
}

// newEstimator applies configured cost and high-stakes overrides on top of
// the built-in tables.
func newEstimator(cfg *config.Config) *cost.Estimator {
	if len(cfg.Costs.BaseCosts) == 0 && len(cfg.Costs.HighStakes) == 0 {
		return cost.NewEstimator()
	}

	baseCosts := make(map[models.Capability]float64, len(cost.DefaultBaseCosts))
	for capability, c := range cost.DefaultBaseCosts {
		baseCosts[capability] = c
	}
	for name, c := range cfg.Costs.BaseCosts {
		baseCosts[models.Capability(name)] = c
	}

	highStakes := cost.DefaultHighStakes
	if len(cfg.Costs.HighStakes) > 0 {
		highStakes = make(map[models.Capability]bool, len(cfg.Costs.HighStakes))
		for _, name := range cfg.Costs.HighStakes {
			highStakes[models.Capability(name)] = true
		}
	}

	return cost.NewEstimatorWith(baseCosts, highStakes)
}

// openStore opens the workflow database selected by the storage config.
func openStore(cfg *config.Config) (state.WorkflowStore, error) {
	db, err := state.Open(dbPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// dbPath resolves the database location from the storage config.
func dbPath(cfg *config.Config) string {
	if cfg.Storage.Path != "" {
		return cfg.Storage.Path
	}
	if cfg.Storage.Scope == "project" {
		cwd, err := os.Getwd()
		if err == nil {
			return state.ProjectDBPath(cwd)
		}
	}
	return state.GlobalDBPath()
}

// parsePolicy maps the configured policy name to a gate policy.
func parsePolicy(name string) (approval.Policy, error) {
	switch name {
	case "auto", "":
		return approval.PolicyAuto, nil
	case "interactive":
		return approval.PolicyInteractive, nil
	case "suspend":
		return approval.PolicySuspend, nil
	default:
		return approval.PolicyAuto, fmt.Errorf("unknown approval policy %q (want auto, interactive, or suspend)", name)
	}
}
