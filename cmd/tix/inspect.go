package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/report"
	"github.com/tixhq/tix/internal/resolver"
	"github.com/tixhq/tix/internal/tixerr"
)

// statusSummary is the status report's output shape: aggregate
// counts plus reference-health counts across every ticket's
// deps/parent/created_from/supersedes (spec.md 4.8/4.12).
type statusSummary struct {
	Counts          []report.TypeStatusCount `json:"counts"`
	DepHealth       resolver.Counts          `json:"dep_health"`
	ParentHealth    resolver.Counts          `json:"parent_health"`
	OriginHealth    resolver.Counts          `json:"created_from_health"`
	SupersedeHealth resolver.Counts          `json:"supersedes_health"`
}

func newStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize ticket counts and cross-reference health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rep, err := report.Generate(ctx, a.store, 30)
			if err != nil {
				return err
			}
			summary, err := buildStatusSummary(ctx, a, rep)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	return cmd
}

func buildStatusSummary(ctx context.Context, a *app, rep *report.Report) (*statusSummary, error) {
	tickets, err := a.store.AllTickets(ctx)
	if err != nil {
		return nil, err
	}
	summary := &statusSummary{Counts: rep.Counts}
	for _, tk := range tickets {
		if len(tk.Deps) > 0 {
			_, counts, err := resolver.ResolveAll(ctx, a.store, tk.Deps)
			if err != nil {
				return nil, err
			}
			summary.DepHealth.Resolved += counts.Resolved
			summary.DepHealth.Stale += counts.Stale
			summary.DepHealth.Broken += counts.Broken
		}
		if err := foldRef(ctx, a, tk.Parent, &summary.ParentHealth); err != nil {
			return nil, err
		}
		if err := foldRef(ctx, a, tk.CreatedFrom, &summary.OriginHealth); err != nil {
			return nil, err
		}
		if err := foldRef(ctx, a, tk.Supersedes, &summary.SupersedeHealth); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func foldRef(ctx context.Context, a *app, id string, into *resolver.Counts) error {
	if id == "" {
		return nil
	}
	st, err := resolver.Resolve(ctx, a.store, id)
	if err != nil {
		return err
	}
	into.Add(st)
	return nil
}

func newLogCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the most recent lines of the event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, warnings, err := jsonl.ReadAll(a.logPath())
			for _, w := range warnings {
				a.log.Warnf("log: %s", w)
			}
			if err != nil {
				return err
			}
			if limit > 0 && len(lines) > limit {
				lines = lines[len(lines)-limit:]
			}
			out := make([]string, 0, len(lines))
			for _, line := range lines {
				if !line.Owned {
					out = append(out, string(line.Raw))
					continue
				}
				b, err := jsonl.EncodeRecord(line.Rec)
				if err != nil {
					return err
				}
				out = append(out, string(b))
			}
			return printJSON(out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of trailing lines to show (0 = all)")
	return cmd
}

const maxTreeDepth = 32

// treeNode is one level of a dependency tree render.
type treeNode struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Status string      `json:"status"`
	Deps   []*treeNode `json:"deps,omitempty"`
}

func newTreeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <id>",
		Short: "Show a task's dependency tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := buildTree(cmd.Context(), a, args[0], make(map[string]struct{}), 0)
			if err != nil {
				return err
			}
			return printJSON(node)
		},
	}
	return cmd
}

func buildTree(ctx context.Context, a *app, id string, visited map[string]struct{}, depth int) (*treeNode, error) {
	if depth >= maxTreeDepth {
		return &treeNode{ID: id, Name: "(depth limit reached)"}, nil
	}
	if _, seen := visited[id]; seen {
		return &treeNode{ID: id, Name: "(cycle)"}, nil
	}
	visited[id] = struct{}{}

	tk, err := a.store.GetTicket(ctx, id)
	if err != nil {
		return &treeNode{ID: id, Name: "(unresolved)", Status: resolverStatus(ctx, a, id)}, nil
	}
	node := &treeNode{ID: tk.ID, Name: tk.Name, Status: tk.Status.String()}
	for _, dep := range tk.Deps {
		child, err := buildTree(ctx, a, dep, visited, depth+1)
		if err != nil {
			return nil, err
		}
		node.Deps = append(node.Deps, child)
	}
	return node, nil
}

func resolverStatus(ctx context.Context, a *app, id string) string {
	st, err := resolver.Resolve(ctx, a.store, id)
	if err != nil {
		return "unknown"
	}
	return st.String()
}

type searchHit struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank tickets by keyword relevance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			results, err := a.store.Search(ctx, args[0])
			if err != nil {
				return err
			}
			hits := make([]searchHit, 0, len(results))
			for _, r := range results {
				tk, err := a.store.GetTicket(ctx, r.TicketID)
				name := ""
				if err == nil {
					name = tk.Name
				}
				hits = append(hits, searchHit{ID: r.TicketID, Name: name, Score: r.Score})
			}
			return printJSON(hits)
		},
	}
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var days string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate counts, velocity, and actor/model breakdowns",
		RunE: func(cmd *cobra.Command, args []string) error {
			trailing, err := parseTrailingDays(days)
			if err != nil {
				return err
			}
			rep, err := report.Generate(cmd.Context(), a.store, trailing)
			if err != nil {
				return err
			}
			return printJSON(rep)
		},
	}
	cmd.Flags().StringVar(&days, "days", "30", "trailing window for the velocity bucket")
	return cmd
}

func parseTrailingDays(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, tixerr.New(tixerr.KindInvalidArg, "cmd.report", "invalid --days %q", s)
	}
	return n, nil
}
