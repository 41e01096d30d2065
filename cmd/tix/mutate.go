package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/types"
)

func newDoneCmd(a *app) *cobra.Command {
	var doneAt, branch string
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task done, pending an accept/reject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tk, err := a.store.GetTicket(ctx, args[0])
			if err != nil {
				return err
			}
			tk.Status = types.StatusDone
			tk.DoneAt = doneAt
			tk.Branch = branch
			if err := tk.Validate(); err != nil {
				return err
			}
			if err := appendAndProject(ctx, a, tk); err != nil {
				return err
			}
			return printJSON(mutationResult{ID: tk.ID, Status: tk.Status.String()})
		},
	}
	cmd.Flags().StringVar(&doneAt, "done-at", "", "commit hash the task was completed at (required)")
	cmd.Flags().StringVar(&branch, "branch", "", "branch name at completion")
	_ = cmd.MarkFlagRequired("done-at")
	return cmd
}

func newAcceptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a done task, resolving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tk, err := a.store.GetTicket(ctx, args[0])
			if err != nil {
				return err
			}
			ts := &types.Tombstone{ID: tk.ID, DoneAt: tk.DoneAt, Name: tk.Name, IsAccept: true, Timestamp: time.Now().Unix()}
			rec := jsonl.TombstoneToAcceptRecord(ts)
			if err := jsonl.Append(a.logPath(), rec); err != nil {
				return err
			}
			if err := a.store.Project(ctx, &jsonl.Line{Owned: true, Rec: rec}); err != nil {
				return err
			}
			return printJSON(mutationResult{ID: tk.ID, Status: types.StatusAccepted.String()})
		},
	}
	return cmd
}

func newRejectCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a done task, returning it to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tk, err := a.store.GetTicket(ctx, args[0])
			if err != nil {
				return err
			}
			ts := &types.Tombstone{ID: tk.ID, Reason: reason, Name: tk.Name, IsAccept: false, Timestamp: time.Now().Unix()}
			rec := jsonl.TombstoneToRejectRecord(ts)
			if err := jsonl.Append(a.logPath(), rec); err != nil {
				return err
			}
			if err := a.store.Project(ctx, &jsonl.Line{Owned: true, Rec: rec}); err != nil {
				return err
			}
			return printJSON(mutationResult{ID: tk.ID, Status: types.StatusPending.String()})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the task was rejected")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete any ticket, regardless of type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			rec := jsonl.DeleteRecord(id, time.Now().Unix())
			if err := jsonl.Append(a.logPath(), rec); err != nil {
				return err
			}
			if err := a.store.Project(ctx, &jsonl.Line{Owned: true, Rec: rec}); err != nil {
				return err
			}
			return printJSON(mutationResult{ID: id, Status: types.StatusDeleted.String()})
		},
	}
	return cmd
}

func newPrioritizeCmd(a *app) *cobra.Command {
	var priority string
	cmd := &cobra.Command{
		Use:   "prioritize <id>",
		Short: "Change a ticket's priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, ok := types.ParsePriority(priority)
			if !ok {
				return tixerrInvalidPriority(priority)
			}
			tk, err := a.store.GetTicket(ctx, args[0])
			if err != nil {
				return err
			}
			tk.Priority = p
			if err := tk.Validate(); err != nil {
				return err
			}
			if err := appendAndProject(ctx, a, tk); err != nil {
				return err
			}
			return printJSON(mutationResult{ID: tk.ID, Status: tk.Status.String()})
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "", "none|low|medium|high (required)")
	_ = cmd.MarkFlagRequired("priority")
	return cmd
}
