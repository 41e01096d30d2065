// Package types defines the core tix data model: Ticket, Tombstone,
// and the enumerations that classify them, per spec.md 3.1-3.2.
package types

import (
	"regexp"

	"github.com/tixhq/tix/internal/tixerr"
)

// TicketType enumerates what a ticket represents.
type TicketType int

const (
	TypeTask TicketType = iota
	TypeIssue
	TypeNote
)

func (t TicketType) String() string {
	switch t {
	case TypeTask:
		return "task"
	case TypeIssue:
		return "issue"
	case TypeNote:
		return "note"
	default:
		return "unknown"
	}
}

// ParseTicketType parses the enum-sugar strings task|issue|note.
func ParseTicketType(s string) (TicketType, bool) {
	switch s {
	case "task":
		return TypeTask, true
	case "issue":
		return TypeIssue, true
	case "note":
		return TypeNote, true
	default:
		return 0, false
	}
}

// Status enumerates a ticket's lifecycle position. Status >= StatusAccepted
// is terminal/resolved per spec.md 3.1.
type Status int

const (
	StatusPending Status = iota
	StatusDone
	StatusAccepted
	StatusRejected
	StatusDeleted
)

// Resolved reports whether a status is terminal (spec.md 3.1).
func (s Status) Resolved() bool {
	return s >= StatusAccepted
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ParseStatus parses the enum-sugar strings pending|done|accepted|rejected|deleted.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "done":
		return StatusDone, true
	case "accepted":
		return StatusAccepted, true
	case "rejected":
		return StatusRejected, true
	case "deleted":
		return StatusDeleted, true
	default:
		return 0, false
	}
}

// Priority enumerates urgency.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityNone:
		return "none"
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParsePriority parses the enum-sugar strings none|low|medium|high.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "none":
		return PriorityNone, true
	case "low":
		return PriorityLow, true
	case "medium":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	default:
		return 0, false
	}
}

// Resource bounds, spec.md 5.
const (
	MaxIDLen     = 16
	MaxNameLen   = 256
	MaxTextLen   = 4096 // notes, accept
	MaxPathLen   = 4096
	MaxLineLen   = 8192
	MaxDeps      = 32
	MaxLabels    = 16
	MaxBatch     = 128
	MaxCommits   = 512
	MaxSnapshot  = 256
	MaxSQLBuf    = 4096
	MaxBinds     = 48
	MaxTQLFilter = 16
	MaxTQLSelect = 16
	MaxTQLSort   = 4
	MaxTQLAgg    = 8
	MaxTQLHaving = 8
	MaxTQLJoin   = 8
)

// IDPattern is the id shape required by the validator (spec.md 4.11).
var IDPattern = regexp.MustCompile(`^[tin]-[0-9a-f]+$`)

// MetaValue holds exactly one of a text or numeric meta entry, per
// spec.md 3.1's "never both" rule for ticket_meta.
type MetaValue struct {
	Text   string
	Num    float64
	IsText bool
}

// Ticket is a unit of work or information, spec.md 3.1.
type Ticket struct {
	ID       string
	Type     TicketType
	Status   Status
	Priority Priority
	Name     string

	Spec   string
	Notes  string
	Accept string

	DoneAt string
	Branch string

	Parent      string
	CreatedFrom string
	Supersedes  string
	Deps        []string

	CreatedFromName   string
	SupersedesName    string
	SupersedesReason  string

	KillReason string

	Author      string
	CompletedAt string
	Cost        float64
	TokensIn    int64
	TokensOut   int64
	Iterations  int64
	Model       string
	Retries     int64
	KillCount   int64

	CreatedAt   int64
	UpdatedAt   int64
	ResolvedAt  int64
	CompactedAt int64

	Meta   map[string]MetaValue
	Labels []string

	// ContentHash is an optional digest slot (SPEC_FULL.md 3, grounded
	// in beads' ComputeContentHash). It carries no invariant of its own;
	// nothing computes it, and the codec, projector and cache neither
	// read nor store it.
	ContentHash string

	// EstimatedMinutes is an optional effort estimate (SPEC_FULL.md 3).
	// The codec and projector do not map it to or from
	// meta["estimate_minutes"]; that meta entry travels only in Meta.
	EstimatedMinutes *int
}

// Tombstone is an accept/reject record, spec.md 3.2.
type Tombstone struct {
	ID        string
	DoneAt    string
	Reason    string
	Name      string
	IsAccept  bool
	Timestamp int64
}

// Validate enforces spec.md 3.1/3.4's essential-attribute and bound
// invariants. It does not check cross-ticket invariants (cycles,
// dangling deps); that is internal/validate's job against the cache.
func (tk *Ticket) Validate() error {
	const op = "types.Ticket.Validate"
	if tk.ID == "" {
		return tixerr.New(tixerr.KindInvalidArg, op, "id is required")
	}
	if len(tk.ID) > MaxIDLen {
		return tixerr.New(tixerr.KindOverflow, op, "id %q exceeds %d bytes", tk.ID, MaxIDLen)
	}
	if !IDPattern.MatchString(tk.ID) {
		return tixerr.New(tixerr.KindValidation, op, "id %q does not match %s", tk.ID, IDPattern.String())
	}
	if tk.Name == "" {
		return tixerr.New(tixerr.KindInvalidArg, op, "name is required")
	}
	if len(tk.Name) > MaxNameLen {
		return tixerr.New(tixerr.KindOverflow, op, "name exceeds %d bytes", MaxNameLen)
	}
	if len(tk.Notes) > MaxTextLen {
		return tixerr.New(tixerr.KindOverflow, op, "notes exceeds %d bytes", MaxTextLen)
	}
	if len(tk.Accept) > MaxTextLen {
		return tixerr.New(tixerr.KindOverflow, op, "accept exceeds %d bytes", MaxTextLen)
	}
	if len(tk.Spec) > MaxPathLen {
		return tixerr.New(tixerr.KindOverflow, op, "spec path exceeds %d bytes", MaxPathLen)
	}
	if len(tk.Deps) > MaxDeps {
		return tixerr.New(tixerr.KindOverflow, op, "deps exceeds %d entries", MaxDeps)
	}
	if len(tk.Labels) > MaxLabels {
		return tixerr.New(tixerr.KindOverflow, op, "labels exceeds %d entries", MaxLabels)
	}

	seenDeps := make(map[string]struct{}, len(tk.Deps))
	for _, d := range tk.Deps {
		if _, dup := seenDeps[d]; dup {
			return tixerr.New(tixerr.KindDuplicate, op, "duplicate dep %q", d)
		}
		seenDeps[d] = struct{}{}
	}
	seenLabels := make(map[string]struct{}, len(tk.Labels))
	for _, l := range tk.Labels {
		if _, dup := seenLabels[l]; dup {
			return tixerr.New(tixerr.KindDuplicate, op, "duplicate label %q", l)
		}
		seenLabels[l] = struct{}{}
	}

	// spec.md 3.4 invariant 5: done requires a commit hash.
	if tk.Status == StatusDone && tk.DoneAt == "" {
		return tixerr.New(tixerr.KindState, op, "status done requires a non-empty done_at")
	}

	return nil
}
