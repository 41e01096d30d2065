package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tixhq/tix/internal/idgen"
	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/types"
)

type createFlags struct {
	name        string
	spec        string
	notes       string
	accept      string
	priority    string
	parent      string
	createdFrom string
	deps        string
	labels      string
}

func (f *createFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "ticket name (required)")
	cmd.Flags().StringVar(&f.spec, "spec", "", "path to a spec document")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-text notes")
	cmd.Flags().StringVar(&f.accept, "accept", "", "acceptance criterion (tasks)")
	cmd.Flags().StringVar(&f.priority, "priority", "none", "none|low|medium|high")
	cmd.Flags().StringVar(&f.parent, "parent", "", "parent ticket id")
	cmd.Flags().StringVar(&f.createdFrom, "created-from", "", "origin ticket id")
	cmd.Flags().StringVar(&f.deps, "deps", "", "comma-separated task ids this depends on")
	cmd.Flags().StringVar(&f.labels, "labels", "", "comma-separated labels")
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(
		newAddCmd(a, idgen.PrefixTask, types.TypeTask),
		newDoneCmd(a),
		newAcceptCmd(a),
		newRejectCmd(a),
	)
	return cmd
}

func newIssueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "issue", Short: "Manage issues"}
	cmd.AddCommand(newAddCmd(a, idgen.PrefixIssue, types.TypeIssue))
	return cmd
}

func newNoteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "note", Short: "Manage notes"}
	cmd.AddCommand(newAddCmd(a, idgen.PrefixNote, types.TypeNote))
	return cmd
}

func newAddCmd(a *app, prefix idgen.Prefix, ttype types.TicketType) *cobra.Command {
	f := &createFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new " + ttype.String(),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, ok := types.ParsePriority(f.priority)
			if !ok {
				priority = types.PriorityNone
			}
			tk := &types.Ticket{
				ID:          idgen.New(prefix),
				Type:        ttype,
				Status:      types.StatusPending,
				Priority:    priority,
				Name:        f.name,
				Spec:        f.spec,
				Notes:       f.notes,
				Accept:      f.accept,
				Parent:      f.parent,
				CreatedFrom: f.createdFrom,
				Deps:        splitCSV(f.deps),
				Labels:      splitCSV(f.labels),
			}
			if err := tk.Validate(); err != nil {
				return err
			}
			if err := appendAndProject(cmd.Context(), a, tk); err != nil {
				return err
			}
			return printJSON(mutationResult{ID: tk.ID, Status: tk.Status.String()})
		},
	}
	f.register(cmd)
	return cmd
}

// appendAndProject writes tk's current state as an owned log line and
// immediately projects it into the cache, per spec.md 4.5's "writer
// paths also project their own event" freshness shortcut.
func appendAndProject(ctx context.Context, a *app, tk *types.Ticket) error {
	rec, err := jsonl.TicketToRecord(tk)
	if err != nil {
		return err
	}
	if err := jsonl.Append(a.logPath(), rec); err != nil {
		return err
	}
	return a.store.Project(ctx, &jsonl.Line{Owned: true, Rec: rec})
}
