package main

import (
	"github.com/spf13/cobra"

	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/lintlog"
	"github.com/tixhq/tix/internal/tixerr"
)

func newLintLogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint-log",
		Short: "Report duplicate ids and dangling deps in the raw event log (read-only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, warnings, err := jsonl.ReadAll(a.logPath())
			for _, w := range warnings {
				a.log.Warnf("lint-log: %s", w)
			}
			if err != nil {
				return err
			}
			report := lintlog.Run(lines)
			if err := printJSON(report); err != nil {
				return err
			}
			if report.HasFindings() {
				return tixerr.New(tixerr.KindValidation, "cmd.lint-log", "log hygiene issues found")
			}
			return nil
		},
	}
	return cmd
}
