package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tixhq/tix/internal/logging"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, logging.New(logging.LevelError))
	require.NoError(t, err)
	require.Equal(t, "main", cfg.Repo.MainBranch)
	require.Equal(t, ".tix/plan.jsonl", cfg.Repo.PlanFile)
	require.True(t, cfg.Display.Color)
	require.True(t, cfg.Cache.AutoRebuild)
	require.False(t, cfg.LegacyPlanFile)
}

func TestLoadAppliesExplicitOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".tix"), 0o755))
	toml := `
[repo]
main_branch = "trunk"
plan_file   = ".tix/plan.jsonl"

[display]
color = false

[cache]
auto_rebuild = false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tix", "config.toml"), []byte(toml), 0o644))

	cfg, err := Load(dir, logging.New(logging.LevelError))
	require.NoError(t, err)
	require.Equal(t, "trunk", cfg.Repo.MainBranch)
	require.False(t, cfg.Display.Color)
	require.False(t, cfg.Cache.AutoRebuild)
}

func TestLoadFallsBackToLegacyPlanFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ralph"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ralph", "plan.jsonl"), []byte(""), 0o644))

	var buf bytes.Buffer
	cfg, err := Load(dir, logging.NewTo(logging.LevelWarn, &buf))
	require.NoError(t, err)
	require.Equal(t, "ralph/plan.jsonl", cfg.Repo.PlanFile)
	require.True(t, cfg.LegacyPlanFile)
	require.Contains(t, buf.String(), "legacy")
}

func TestLoadPrefersDefaultPlanFileWhenBothExist(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".tix"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tix", "plan.jsonl"), []byte(""), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ralph"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ralph", "plan.jsonl"), []byte(""), 0o644))

	cfg, err := Load(dir, logging.New(logging.LevelError))
	require.NoError(t, err)
	require.Equal(t, ".tix/plan.jsonl", cfg.Repo.PlanFile)
	require.False(t, cfg.LegacyPlanFile)
}

func TestLoadExplicitPlanFileSkipsLegacyFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".tix"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ralph"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ralph", "plan.jsonl"), []byte(""), 0o644))
	toml := `
[repo]
plan_file = "custom/plan.jsonl"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tix", "config.toml"), []byte(toml), 0o644))

	cfg, err := Load(dir, logging.New(logging.LevelError))
	require.NoError(t, err)
	require.Equal(t, "custom/plan.jsonl", cfg.Repo.PlanFile)
	require.False(t, cfg.LegacyPlanFile)
}
