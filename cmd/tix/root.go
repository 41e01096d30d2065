package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/tixhq/tix/internal/config"
	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/logging"
	"github.com/tixhq/tix/internal/storage/sqlite"
	"github.com/tixhq/tix/internal/tixerr"
)

// app bundles the handles every subcommand needs, opened once in the
// root command's PersistentPreRunE and released in PersistentPostRunE.
// Cobra runs PersistentPostRunE only after a successful command; when
// setup or the command fails, the handle is not closed here and is
// released when the process exits.
type app struct {
	repoRoot string
	cfg      *config.Config
	log      *logging.Logger
	store    *sqlite.Store
	color    bool
}

func (a *app) logPath() string { return a.cfg.PlanFilePath(a.repoRoot) }

func newRootCmd() *cobra.Command {
	a := &app{}
	var repoFlag string

	root := &cobra.Command{
		Use:           "tix",
		Short:         "A git-native ticketing engine for autonomous agent workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRepoRoot(repoFlag)
			if err != nil {
				return err
			}
			a.repoRoot = root
			a.log = logging.FromEnv()

			cfg, err := config.Load(a.repoRoot, a.log)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.color = cfg.Display.Color && colorAllowed()

			store, err := sqlite.Open(cfg.CachePath(a.repoRoot), a.log)
			if err != nil {
				return err
			}
			a.store = store

			if cfg.Cache.AutoRebuild {
				return ensureFresh(cmd.Context(), a)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store != nil {
				return a.store.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&repoFlag, "repo", "", "repository root (default: current directory)")

	root.AddCommand(
		newTaskCmd(a), newIssueCmd(a), newNoteCmd(a),
		newPrioritizeCmd(a), newDeleteCmd(a),
		newIngestCmd(a),
		newQueryCmd(a), newSQLCmd(a),
		newSyncCmd(a), newCompactCmd(a), newValidateCmd(a),
		newStatusCmd(a), newLogCmd(a), newTreeCmd(a), newSearchCmd(a), newReportCmd(a),
		newLintLogCmd(a),
	)
	return root
}

// resolveRepoRoot returns explicit, or the current working directory.
func resolveRepoRoot(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", tixerr.New(tixerr.KindIO, "cmd.resolveRepoRoot", "%v", err)
	}
	return wd, nil
}

// colorAllowed implements spec.md 6.4's NO_COLOR/TERM=dumb override.
func colorAllowed() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// ensureFresh rebuilds the cache if the log's mtime/size no longer
// matches what the cache last recorded (spec.md 4.5).
func ensureFresh(ctx context.Context, a *app) error {
	path := a.logPath()
	mtime, size, err := jsonl.Stat(path)
	if err != nil {
		return err
	}
	stale, err := a.store.IsStale(ctx, mtime, size)
	if err != nil {
		return err
	}
	if !stale {
		return nil
	}
	lines, warnings, err := jsonl.ReadAll(path)
	for _, w := range warnings {
		a.log.Warnf("rebuild: %s", w)
	}
	if err != nil {
		return err
	}
	return a.store.Rebuild(ctx, lines, mtime, size)
}
