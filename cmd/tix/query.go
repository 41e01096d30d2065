package main

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/tixhq/tix/internal/tixerr"
	"github.com/tixhq/tix/internal/tql"
)

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <tql>",
		Short: "Run a TQL pipeline query against the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := tql.Parse(args[0])
			if err != nil {
				return err
			}
			compiled, err := tql.Compile(q)
			if err != nil {
				return err
			}
			rows, err := runCompiled(cmd.Context(), a, compiled)
			if err != nil {
				return err
			}
			return printJSON(rows)
		},
	}
	return cmd
}

func newSQLCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql <query>",
		Short: "Run a raw SQL statement against the cache; writes are not blocked (escape hatch, spec.md 4.10)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := queryRows(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			return printJSON(rows)
		},
	}
	return cmd
}

func runCompiled(ctx context.Context, a *app, c *tql.Compiled) ([]map[string]any, error) {
	binds := make([]any, 0, len(c.Binds))
	for _, b := range c.Binds {
		switch b.Kind {
		case tql.BindInt:
			binds = append(binds, b.Int)
		case tql.BindFloat:
			binds = append(binds, b.Float)
		default:
			binds = append(binds, b.Text)
		}
	}
	rows, err := a.store.DB().QueryContext(ctx, c.SQL, binds...)
	if err != nil {
		return nil, tixerr.Wrap(tixerr.KindDB, "cmd.query", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func queryRows(ctx context.Context, a *app, query string) ([]map[string]any, error) {
	rows, err := a.store.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, tixerr.Wrap(tixerr.KindDB, "cmd.sql", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// scanRows materializes a *sql.Rows into JSON-friendly maps keyed by
// the driver's declared column names; maps do not keep column order.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, tixerr.Wrap(tixerr.KindDB, "cmd.scanRows", err)
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, tixerr.Wrap(tixerr.KindDB, "cmd.scanRows", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, tixerr.Wrap(tixerr.KindDB, "cmd.scanRows", rows.Err())
}
