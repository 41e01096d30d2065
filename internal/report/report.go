// Package report aggregates counts, velocity, and actor/model
// breakdowns from the cache alone, per SPEC_FULL.md 4.12. Grounded in
// the teacher's internal/query aggregate handling (GROUP BY-shaped
// queries keyed by an alias, summed/averaged over numeric columns),
// adapted here to the cache schema of storage/sqlite rather than the
// teacher's own tables.
package report

import (
	"context"
	"strconv"

	"github.com/tixhq/tix/internal/tixerr"

	"github.com/tixhq/tix/internal/storage/sqlite"
)

// TypeStatusCount is one (type, status) bucket.
type TypeStatusCount struct {
	Type   string
	Status string
	Count  int
}

// VelocityBucket is one day's resolved-ticket count.
type VelocityBucket struct {
	Day   string // YYYY-MM-DD, bucketed from resolved_at
	Count int
}

// ActorStat aggregates one author's contribution.
type ActorStat struct {
	Author    string
	Count     int
	Cost      float64
	TokensIn  int64
	TokensOut int64
}

// ModelStat aggregates one model's contribution.
type ModelStat struct {
	Model         string
	Count         int
	Cost          float64
	TokensIn      int64
	TokensOut     int64
	AvgIterations float64
	AvgRetries    float64
}

// Report bundles every aggregation SPEC_FULL.md 4.12 asks for.
type Report struct {
	Counts    []TypeStatusCount
	Velocity  []VelocityBucket
	Actors    []ActorStat
	Models    []ModelStat
}

func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return tixerr.Wrap(tixerr.KindDB, op, err)
}

// Generate runs every aggregation against store. trailingDays bounds
// the velocity window.
func Generate(ctx context.Context, store *sqlite.Store, trailingDays int) (*Report, error) {
	counts, err := typeStatusCounts(ctx, store)
	if err != nil {
		return nil, err
	}
	velocity, err := velocityBuckets(ctx, store, trailingDays)
	if err != nil {
		return nil, err
	}
	actors, err := actorStats(ctx, store)
	if err != nil {
		return nil, err
	}
	models, err := modelStats(ctx, store)
	if err != nil {
		return nil, err
	}
	return &Report{Counts: counts, Velocity: velocity, Actors: actors, Models: models}, nil
}

func typeStatusCounts(ctx context.Context, store *sqlite.Store) ([]TypeStatusCount, error) {
	rows, err := store.DB().QueryContext(ctx, `
SELECT type, status, COUNT(*) FROM tickets GROUP BY type, status ORDER BY type, status
`)
	if err != nil {
		return nil, wrapDBErr("report.typeStatusCounts", err)
	}
	defer rows.Close()

	var out []TypeStatusCount
	for rows.Next() {
		var ttype, status, count int
		if err := rows.Scan(&ttype, &status, &count); err != nil {
			return nil, wrapDBErr("report.typeStatusCounts", err)
		}
		out = append(out, TypeStatusCount{
			Type:   typeName(ttype),
			Status: statusName(status),
			Count:  count,
		})
	}
	return out, wrapDBErr("report.typeStatusCounts", rows.Err())
}

func velocityBuckets(ctx context.Context, store *sqlite.Store, trailingDays int) ([]VelocityBucket, error) {
	if trailingDays <= 0 {
		trailingDays = 30
	}
	rows, err := store.DB().QueryContext(ctx, `
SELECT date(resolved_at, 'unixepoch') AS day, COUNT(*)
FROM tickets
WHERE resolved_at > 0 AND resolved_at >= strftime('%s', 'now', ?)
GROUP BY day
ORDER BY day
`, "-"+strconv.Itoa(trailingDays)+" days")
	if err != nil {
		return nil, wrapDBErr("report.velocityBuckets", err)
	}
	defer rows.Close()

	var out []VelocityBucket
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, wrapDBErr("report.velocityBuckets", err)
		}
		out = append(out, VelocityBucket{Day: day, Count: count})
	}
	return out, wrapDBErr("report.velocityBuckets", rows.Err())
}

func actorStats(ctx context.Context, store *sqlite.Store) ([]ActorStat, error) {
	rows, err := store.DB().QueryContext(ctx, `
SELECT author, COUNT(*), COALESCE(SUM(cost),0), COALESCE(SUM(tokens_in),0), COALESCE(SUM(tokens_out),0)
FROM tickets WHERE author != '' GROUP BY author ORDER BY author
`)
	if err != nil {
		return nil, wrapDBErr("report.actorStats", err)
	}
	defer rows.Close()

	var out []ActorStat
	for rows.Next() {
		var s ActorStat
		if err := rows.Scan(&s.Author, &s.Count, &s.Cost, &s.TokensIn, &s.TokensOut); err != nil {
			return nil, wrapDBErr("report.actorStats", err)
		}
		out = append(out, s)
	}
	return out, wrapDBErr("report.actorStats", rows.Err())
}

func modelStats(ctx context.Context, store *sqlite.Store) ([]ModelStat, error) {
	rows, err := store.DB().QueryContext(ctx, `
SELECT model, COUNT(*), COALESCE(SUM(cost),0), COALESCE(SUM(tokens_in),0), COALESCE(SUM(tokens_out),0),
       COALESCE(AVG(iterations),0), COALESCE(AVG(retries),0)
FROM tickets WHERE model != '' GROUP BY model ORDER BY model
`)
	if err != nil {
		return nil, wrapDBErr("report.modelStats", err)
	}
	defer rows.Close()

	var out []ModelStat
	for rows.Next() {
		var s ModelStat
		if err := rows.Scan(&s.Model, &s.Count, &s.Cost, &s.TokensIn, &s.TokensOut, &s.AvgIterations, &s.AvgRetries); err != nil {
			return nil, wrapDBErr("report.modelStats", err)
		}
		out = append(out, s)
	}
	return out, wrapDBErr("report.modelStats", rows.Err())
}

func typeName(code int) string {
	switch code {
	case 0:
		return "task"
	case 1:
		return "issue"
	case 2:
		return "note"
	default:
		return "unknown"
	}
}

func statusName(code int) string {
	switch code {
	case 0:
		return "pending"
	case 1:
		return "done"
	case 2:
		return "accepted"
	case 3:
		return "rejected"
	case 4:
		return "deleted"
	default:
		return "unknown"
	}
}

