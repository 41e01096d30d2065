// Package sync implements the git history walker and cache rebuild of
// spec.md 4.6: reconstructing the cache by replaying every commit that
// touched the event log, and detecting compaction-implied deletions
// between consecutive snapshots.
package sync

import (
	"context"

	"github.com/tixhq/tix/internal/gitlog"
	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/logging"
	"github.com/tixhq/tix/internal/storage/sqlite"
	"github.com/tixhq/tix/internal/types"
)

const maxConcurrentReads = 8

// Result summarizes one sync run.
type Result struct {
	CommitsWalked       int
	CommitsOverflowed   bool
	ImplicitDeletions   []string
	LastCommit          string
}

// Syncer rebuilds a Store from git history.
type Syncer struct {
	Store   *sqlite.Store
	Run     gitlog.Runner
	LogPath string // path to the event log, relative to the repo root
	Log     *logging.Logger
}

// Sync walks scope ("" = current branch, "all" = all branches, or an
// explicit branch name), replaying each snapshot into the cache, per
// spec.md 4.6.
func (sy *Syncer) Sync(ctx context.Context, scope string) (*Result, error) {
	if sy.Log == nil {
		sy.Log = logging.New(logging.LevelWarn)
	}

	commits, overflow, err := gitlog.CommitsTouching(ctx, sy.Run, sy.LogPath, scope)
	if err != nil {
		return nil, err
	}
	if overflow {
		sy.Log.Warnf("sync: commit walk truncated at %d commits", types.MaxCommits)
	}

	contents, err := gitlog.ReadAtCommits(ctx, sy.Run, commits, sy.LogPath, maxConcurrentReads)
	if err != nil {
		return nil, err
	}

	if err := sy.Store.Clear(ctx); err != nil {
		return nil, err
	}

	var previousIDs map[string]struct{}
	var implicitDeletions []string

	for i, commit := range commits {
		content := contents[i]
		if content == nil {
			continue
		}
		lines, warnings, err := jsonl.ReadAllBytes(content)
		for _, w := range warnings {
			sy.Log.Warnf("sync: commit %s: %s", commit.Hash, w)
		}
		if err != nil {
			return nil, err
		}

		currentIDs, resolvedIDs := snapshotIDs(lines)

		if previousIDs != nil {
			missing := setDiff(previousIDs, currentIDs, resolvedIDs, types.MaxSnapshot, sy.Log)
			for _, id := range missing {
				if err := sy.Store.StampCompactedOnce(ctx, id, commit.Timestamp); err != nil {
					return nil, err
				}
				implicitDeletions = append(implicitDeletions, id)
			}
		}

		for _, line := range lines {
			if !line.Owned {
				continue
			}
			if err := sy.Store.Project(ctx, line); err != nil {
				return nil, err
			}
		}

		previousIDs = currentIDs
	}

	// Replay the working-tree copy on top, additively (spec.md 4.6).
	workingLines, warnings, err := jsonl.ReadAll(sy.LogPath)
	for _, w := range warnings {
		sy.Log.Warnf("sync: working tree: %s", w)
	}
	if err != nil {
		return nil, err
	}
	for _, line := range workingLines {
		if !line.Owned {
			continue
		}
		if err := sy.Store.Project(ctx, line); err != nil {
			return nil, err
		}
	}

	head := gitlog.CurrentCommitHash(ctx, sy.Run)
	if head == "" && len(commits) > 0 {
		head = commits[len(commits)-1].Hash
	}
	if err := sy.Store.SetMeta(ctx, "last_commit", head); err != nil {
		return nil, err
	}

	mtime, size, err := jsonl.Stat(sy.LogPath)
	if err != nil {
		return nil, err
	}
	if err := sy.Store.RecordFreshness(ctx, mtime, size); err != nil {
		return nil, err
	}

	return &Result{
		CommitsWalked:     len(commits),
		CommitsOverflowed: overflow,
		ImplicitDeletions: implicitDeletions,
		LastCommit:        head,
	}, nil
}

// snapshotIDs extracts the set of ticket ids present as owned
// task/issue/note lines, and the set of ids carrying a resolution
// marker (accept/reject/delete), within one snapshot's content.
func snapshotIDs(lines []*jsonl.Line) (present map[string]struct{}, resolved map[string]struct{}) {
	present = make(map[string]struct{})
	resolved = make(map[string]struct{})
	for _, line := range lines {
		if !line.Owned {
			continue
		}
		switch line.Rec.T {
		case jsonl.KindTask, jsonl.KindIssue, jsonl.KindNote:
			present[line.Rec.ID] = struct{}{}
		case jsonl.KindAccept, jsonl.KindReject, jsonl.KindDelete:
			resolved[line.Rec.ID] = struct{}{}
		}
	}
	return present, resolved
}

// setDiff returns ids in prev but not in current, excluding ids with
// a resolution marker in current, bounded at maxIDs (spec.md 4.6/5).
func setDiff(prev, current, resolved map[string]struct{}, maxIDs int, log *logging.Logger) []string {
	var missing []string
	for id := range prev {
		if _, stillPresent := current[id]; stillPresent {
			continue
		}
		if _, hasMarker := resolved[id]; hasMarker {
			continue
		}
		if len(missing) >= maxIDs {
			log.Warnf("sync: snapshot delta truncated at %d ids", maxIDs)
			break
		}
		missing = append(missing, id)
	}
	return missing
}
