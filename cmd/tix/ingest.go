package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tixhq/tix/internal/idgen"
	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/tixerr"
	"github.com/tixhq/tix/internal/types"
)

// bulkItem is one entry of an ingest JSON array, per spec.md 6.3's
// "bulk ingest: a file or JSON array of {op:"add"|"delete", ...}".
type bulkItem struct {
	Op          string   `json:"op"`
	ID          string   `json:"id,omitempty"`
	Type        string   `json:"type,omitempty"`
	Name        string   `json:"name,omitempty"`
	Spec        string   `json:"spec,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Accept      string   `json:"accept,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Parent      string   `json:"parent,omitempty"`
	CreatedFrom string   `json:"created_from,omitempty"`
	Deps        []string `json:"deps,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

func newIngestCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Bulk add/delete tickets from a JSON array",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			items, err := readBulkItems(file)
			if err != nil {
				return err
			}
			if len(items) > types.MaxBatch {
				return tixerr.New(tixerr.KindOverflow, "cmd.ingest", "batch of %d exceeds %d", len(items), types.MaxBatch)
			}
			results := make([]mutationResult, 0, len(items))
			for _, item := range items {
				res, err := applyBulkItem(ctx, a, item)
				if err != nil {
					return err
				}
				results = append(results, res)
			}
			return printJSON(results)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a JSON array file (default: stdin)")
	return cmd
}

func readBulkItems(path string) ([]bulkItem, error) {
	var r io.Reader
	if path == "" {
		r = os.Stdin
	} else {
		// #nosec G304 - path is operator-supplied on the command line.
		f, err := os.Open(path)
		if err != nil {
			return nil, tixerr.New(tixerr.KindIO, "cmd.readBulkItems", "%v", err)
		}
		defer f.Close()
		r = f
	}
	var items []bulkItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, tixerr.New(tixerr.KindParse, "cmd.readBulkItems", "%v", err)
	}
	return items, nil
}

func applyBulkItem(ctx context.Context, a *app, item bulkItem) (mutationResult, error) {
	switch item.Op {
	case "add":
		return applyBulkAdd(ctx, a, item)
	case "delete":
		if item.ID == "" {
			return mutationResult{}, tixerr.New(tixerr.KindInvalidArg, "cmd.ingest", "delete op requires id")
		}
		rec := jsonl.DeleteRecord(item.ID, time.Now().Unix())
		if err := jsonl.Append(a.logPath(), rec); err != nil {
			return mutationResult{}, err
		}
		if err := a.store.Project(ctx, &jsonl.Line{Owned: true, Rec: rec}); err != nil {
			return mutationResult{}, err
		}
		return mutationResult{ID: item.ID, Status: types.StatusDeleted.String()}, nil
	default:
		return mutationResult{}, tixerr.New(tixerr.KindInvalidArg, "cmd.ingest", "unrecognized op %q", item.Op)
	}
}

func applyBulkAdd(ctx context.Context, a *app, item bulkItem) (mutationResult, error) {
	prefix, ok := idgen.PrefixForType(item.Type)
	if !ok {
		return mutationResult{}, tixerr.New(tixerr.KindInvalidArg, "cmd.ingest", "unrecognized type %q", item.Type)
	}
	ttype, _ := types.ParseTicketType(item.Type)
	priority, ok := types.ParsePriority(item.Priority)
	if !ok {
		priority = types.PriorityNone
	}
	tk := &types.Ticket{
		ID:          idgen.New(prefix),
		Type:        ttype,
		Status:      types.StatusPending,
		Priority:    priority,
		Name:        item.Name,
		Spec:        item.Spec,
		Notes:       item.Notes,
		Accept:      item.Accept,
		Parent:      item.Parent,
		CreatedFrom: item.CreatedFrom,
		Deps:        item.Deps,
		Labels:      item.Labels,
	}
	if err := tk.Validate(); err != nil {
		return mutationResult{}, err
	}
	if err := appendAndProject(ctx, a, tk); err != nil {
		return mutationResult{}, err
	}
	return mutationResult{ID: tk.ID, Status: tk.Status.String()}, nil
}
