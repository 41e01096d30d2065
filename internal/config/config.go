// Package config loads the operator-facing `.tix/config.toml` file,
// per spec.md 6.1 and SPEC_FULL.md 4.0b. Grounded in the teacher's
// internal/formula TOML-first/JSON-fallback loader convention
// (BurntSushi/toml decoding into a defaulted struct, with a
// missing-file path returning defaults rather than an error).
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/tixhq/tix/internal/logging"
	"github.com/tixhq/tix/internal/tixerr"
)

// Repo holds `[repo]` settings.
type Repo struct {
	MainBranch string `toml:"main_branch"`
	PlanFile   string `toml:"plan_file"`
}

// Display holds `[display]` settings.
type Display struct {
	Color bool `toml:"color"`
}

// Cache holds `[cache]` settings.
type Cache struct {
	AutoRebuild bool `toml:"auto_rebuild"`
}

// Config is the fully-defaulted operator configuration.
type Config struct {
	Repo    Repo    `toml:"repo"`
	Display Display `toml:"display"`
	Cache   Cache   `toml:"cache"`

	// LegacyPlanFile reports whether PlanFile was resolved via the
	// ralph/plan.jsonl migration fallback rather than config or default.
	LegacyPlanFile bool
}

func defaults() Config {
	return Config{
		Repo:    Repo{MainBranch: "main", PlanFile: ".tix/plan.jsonl"},
		Display: Display{Color: true},
		Cache:   Cache{AutoRebuild: true},
	}
}

// Load reads <repoRoot>/.tix/config.toml, falling back to defaults for
// a missing file or missing keys. It never returns an error for a
// missing config file, matching the teacher's "return defaulted
// config, nil error" convention.
func Load(repoRoot string, log *logging.Logger) (*Config, error) {
	if log == nil {
		log = logging.New(logging.LevelWarn)
	}
	cfg := defaults()

	path := filepath.Join(repoRoot, ".tix", "config.toml")
	// #nosec G304 - path is repo-relative and operator-controlled.
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, tixerr.New(tixerr.KindIO, "config.Load", "%v", err)
		}
	} else if _, decErr := toml.Decode(string(data), &cfg); decErr != nil {
		return nil, tixerr.New(tixerr.KindParse, "config.Load", "%v", decErr)
	}

	resolvePlanFile(repoRoot, &cfg, log)
	return &cfg, nil
}

// resolvePlanFile implements the ralph/plan.jsonl legacy fallback: if
// plan_file holds the default path (from the defaults or set
// explicitly to that same value), the default path does not yet
// exist, and the legacy path does, switch to it and warn once
// (SPEC_FULL.md 4.0b). Any other plan_file value skips the fallback.
func resolvePlanFile(repoRoot string, cfg *Config, log *logging.Logger) {
	const defaultPlanFile = ".tix/plan.jsonl"
	const legacyPlanFile = "ralph/plan.jsonl"

	if cfg.Repo.PlanFile != defaultPlanFile {
		return // a non-default path is used as given
	}
	defaultAbs := filepath.Join(repoRoot, defaultPlanFile)
	if _, err := os.Stat(defaultAbs); err == nil {
		return
	}
	legacyAbs := filepath.Join(repoRoot, legacyPlanFile)
	if _, err := os.Stat(legacyAbs); err != nil {
		return
	}
	cfg.Repo.PlanFile = legacyPlanFile
	cfg.LegacyPlanFile = true
	log.Warnf("config: using legacy %s as the event log; set [repo] plan_file to silence this", legacyPlanFile)
}

// PlanFilePath returns the absolute path to the event log.
func (c *Config) PlanFilePath(repoRoot string) string {
	return filepath.Join(repoRoot, c.Repo.PlanFile)
}

// CachePath returns the absolute path to the cache database.
func (c *Config) CachePath(repoRoot string) string {
	return filepath.Join(repoRoot, ".tix", "cache.db")
}
