package main

import (
	"github.com/spf13/cobra"

	"github.com/tixhq/tix/internal/compact"
	"github.com/tixhq/tix/internal/gitlog"
	"github.com/tixhq/tix/internal/sync"
	"github.com/tixhq/tix/internal/tixerr"
	"github.com/tixhq/tix/internal/validate"
)

func newSyncCmd(a *app) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Rebuild the cache by replaying git history",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer := &sync.Syncer{Store: a.store, Run: gitlog.DefaultRunner, LogPath: a.logPath(), Log: a.log}
			result, err := syncer.Sync(cmd.Context(), scope)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", `"" (current branch), "all", or an explicit branch name`)
	return cmd
}

func newCompactCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Sync, denormalize, stamp, and rewrite the event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			compactor := &compact.Compactor{Store: a.store, Run: gitlog.DefaultRunner, LogPath: a.logPath(), Log: a.log}
			result, err := compactor.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the cache for invariant violations and warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := validate.Run(cmd.Context(), a.store)
			if err != nil {
				return err
			}
			if err := printJSON(report); err != nil {
				return err
			}
			if report.HasErrors() {
				return tixerr.New(tixerr.KindValidation, "cmd.validate", "validation found errors")
			}
			return nil
		},
	}
	return cmd
}
