// Package jsonl implements the flat-object JSONL wire format of
// spec.md 4.1/6.2: one JSON object per line, discriminated by a
// top-level "t" field, with abbreviated keys matching the literal
// examples in spec.md 8 (e.g. "s":"p" for a pending ticket, "ts" for
// an event timestamp).
package jsonl

import (
	"bytes"
	"encoding/json"

	"github.com/tixhq/tix/internal/tixerr"
	"github.com/tixhq/tix/internal/types"
)

// Owned discriminator values (spec.md 3.3). Everything else is
// preserved verbatim across compactions.
const (
	KindTask   = "task"
	KindIssue  = "issue"
	KindNote   = "note"
	KindAccept = "accept"
	KindReject = "reject"
	KindDelete = "delete"
)

// IsOwned reports whether a discriminator value is tix-owned.
func IsOwned(t string) bool {
	switch t {
	case KindTask, KindIssue, KindNote, KindAccept, KindReject, KindDelete:
		return true
	default:
		return false
	}
}

// statusCode/statusFromCode implement the single-letter status
// encoding shown in spec.md 8's scenarios (s:"p", s:"d", ...).
func statusCode(s types.Status) string {
	switch s {
	case types.StatusPending:
		return "p"
	case types.StatusDone:
		return "d"
	case types.StatusAccepted:
		return "a"
	case types.StatusRejected:
		return "r"
	case types.StatusDeleted:
		return "x"
	default:
		return "p"
	}
}

func statusFromCode(c string) (types.Status, bool) {
	switch c {
	case "p", "":
		return types.StatusPending, true
	case "d":
		return types.StatusDone, true
	case "a":
		return types.StatusAccepted, true
	case "r":
		return types.StatusRejected, true
	case "x":
		return types.StatusDeleted, true
	default:
		return 0, false
	}
}

// Record is the flat on-disk shape of a tix-owned event line. Field
// order matches the canonical emission order of spec.md 4.1; json
// struct tag order controls json.Marshal's key order for Go's
// encoder, keeping lines stable and short via omitempty.
type Record struct {
	T  string `json:"t"`
	ID string `json:"id,omitempty"`

	S        string `json:"s,omitempty"`
	Priority *int   `json:"pri,omitempty"`
	Name     string `json:"name,omitempty"`

	Spec   string `json:"spec,omitempty"`
	Notes  string `json:"notes,omitempty"`
	Accept string `json:"accept,omitempty"`

	DoneAt string `json:"done_at,omitempty"`
	Branch string `json:"branch,omitempty"`

	Parent      string   `json:"parent,omitempty"`
	CreatedFrom string   `json:"created_from,omitempty"`
	Supersedes  string   `json:"supersedes,omitempty"`
	Deps        []string `json:"deps,omitempty"`

	CreatedFromName  string `json:"created_from_name,omitempty"`
	SupersedesName   string `json:"supersedes_name,omitempty"`
	SupersedesReason string `json:"supersedes_reason,omitempty"`

	KillReason string `json:"kill_reason,omitempty"`

	Author      string  `json:"author,omitempty"`
	CompletedAt string  `json:"completed_at,omitempty"`
	Cost        float64 `json:"cost,omitempty"`
	TokensIn    int64   `json:"tokens_in,omitempty"`
	TokensOut   int64   `json:"tokens_out,omitempty"`
	Iterations  int64   `json:"iterations,omitempty"`
	Model       string  `json:"model,omitempty"`
	Retries     int64   `json:"retries,omitempty"`
	KillCount   int64   `json:"kill_count,omitempty"`

	CreatedAt   int64 `json:"created_at,omitempty"`
	UpdatedAt   int64 `json:"updated_at,omitempty"`
	ResolvedAt  int64 `json:"resolved_at,omitempty"`
	CompactedAt int64 `json:"compacted_at,omitempty"`

	Labels []string          `json:"labels,omitempty"`
	Meta   map[string]any    `json:"meta,omitempty"`

	// Reject-only.
	Reason string `json:"reason,omitempty"`
	// accept/reject/delete event timestamp.
	Timestamp int64 `json:"ts,omitempty"`
}

// peekKind extracts just the discriminator without decoding the rest.
func peekKind(raw []byte) (string, error) {
	var head struct {
		T string `json:"t"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", tixerr.New(tixerr.KindParse, "jsonl.peekKind", "%v", err)
	}
	return head.T, nil
}

// Line is one physical line of the log: either a decoded tix-owned
// Record, or a foreign line preserved verbatim (spec.md 3.3).
type Line struct {
	Raw   []byte
	Owned bool
	Rec   *Record
}

// DecodeLine parses one line of the log. Foreign (non-tix-owned)
// lines are kept only as raw bytes so that compaction can reproduce
// them byte-for-byte.
func DecodeLine(raw []byte) (*Line, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, tixerr.New(tixerr.KindParse, "jsonl.DecodeLine", "empty line")
	}
	if len(trimmed) > types.MaxLineLen {
		return nil, tixerr.New(tixerr.KindOverflow, "jsonl.DecodeLine", "line exceeds %d bytes", types.MaxLineLen)
	}
	kind, err := peekKind(trimmed)
	if err != nil {
		return nil, err
	}
	if !IsOwned(kind) {
		cp := make([]byte, len(trimmed))
		copy(cp, trimmed)
		return &Line{Raw: cp, Owned: false}, nil
	}
	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, tixerr.New(tixerr.KindParse, "jsonl.DecodeLine", "%v", err)
	}
	return &Line{Owned: true, Rec: &rec}, nil
}

// EncodeRecord marshals a Record to its canonical single line, with
// no trailing newline.
func EncodeRecord(rec *Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, tixerr.New(tixerr.KindIO, "jsonl.EncodeRecord", "%v", err)
	}
	if len(b) > types.MaxLineLen {
		return nil, tixerr.New(tixerr.KindOverflow, "jsonl.EncodeRecord", "line exceeds %d bytes", types.MaxLineLen)
	}
	return b, nil
}

// TicketToRecord converts a live ticket into its owned-event shape.
// The discriminator is the ticket's type name, matching spec.md 3.3's
// "t=task|issue|note upserts a ticket of that type".
func TicketToRecord(tk *types.Ticket) (*Record, error) {
	if tk == nil {
		return nil, tixerr.New(tixerr.KindInvalidArg, "jsonl.TicketToRecord", "nil ticket")
	}
	rec := &Record{
		T:                tk.Type.String(),
		ID:               tk.ID,
		S:                statusCode(tk.Status),
		Name:             tk.Name,
		Spec:             tk.Spec,
		Notes:            tk.Notes,
		Accept:           tk.Accept,
		DoneAt:           tk.DoneAt,
		Branch:           tk.Branch,
		Parent:           tk.Parent,
		CreatedFrom:      tk.CreatedFrom,
		Supersedes:       tk.Supersedes,
		Deps:             tk.Deps,
		CreatedFromName:  tk.CreatedFromName,
		SupersedesName:   tk.SupersedesName,
		SupersedesReason: tk.SupersedesReason,
		KillReason:       tk.KillReason,
		Author:           tk.Author,
		CompletedAt:      tk.CompletedAt,
		Cost:             tk.Cost,
		TokensIn:         tk.TokensIn,
		TokensOut:        tk.TokensOut,
		Iterations:       tk.Iterations,
		Model:            tk.Model,
		Retries:          tk.Retries,
		KillCount:        tk.KillCount,
		CreatedAt:        tk.CreatedAt,
		UpdatedAt:        tk.UpdatedAt,
		ResolvedAt:       tk.ResolvedAt,
		CompactedAt:      tk.CompactedAt,
		Labels:           tk.Labels,
	}
	if int(tk.Priority) != 0 {
		p := int(tk.Priority)
		rec.Priority = &p
	}
	if len(tk.Meta) > 0 {
		m := make(map[string]any, len(tk.Meta))
		for k, v := range tk.Meta {
			if v.IsText {
				m[k] = v.Text
			} else {
				m[k] = v.Num
			}
		}
		rec.Meta = m
	}
	return rec, nil
}

// RecordToTicket converts a decoded owned Record back into a Ticket.
// Only valid for Records whose T is task|issue|note.
func RecordToTicket(rec *Record) (*types.Ticket, error) {
	const op = "jsonl.RecordToTicket"
	ttype, ok := types.ParseTicketType(rec.T)
	if !ok {
		return nil, tixerr.New(tixerr.KindInvalidArg, op, "record %q is not a ticket line", rec.T)
	}
	status, ok := statusFromCode(rec.S)
	if !ok {
		return nil, tixerr.New(tixerr.KindParse, op, "unrecognized status code %q", rec.S)
	}
	tk := &types.Ticket{
		ID:               rec.ID,
		Type:             ttype,
		Status:           status,
		Name:             rec.Name,
		Spec:             rec.Spec,
		Notes:            rec.Notes,
		Accept:           rec.Accept,
		DoneAt:           rec.DoneAt,
		Branch:           rec.Branch,
		Parent:           rec.Parent,
		CreatedFrom:      rec.CreatedFrom,
		Supersedes:       rec.Supersedes,
		Deps:             rec.Deps,
		CreatedFromName:  rec.CreatedFromName,
		SupersedesName:   rec.SupersedesName,
		SupersedesReason: rec.SupersedesReason,
		KillReason:       rec.KillReason,
		Author:           rec.Author,
		CompletedAt:      rec.CompletedAt,
		Cost:             rec.Cost,
		TokensIn:         rec.TokensIn,
		TokensOut:        rec.TokensOut,
		Iterations:       rec.Iterations,
		Model:            rec.Model,
		Retries:          rec.Retries,
		KillCount:        rec.KillCount,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
		ResolvedAt:       rec.ResolvedAt,
		CompactedAt:      rec.CompactedAt,
		Labels:           rec.Labels,
	}
	if rec.Priority != nil {
		tk.Priority = types.Priority(*rec.Priority)
	}
	if len(rec.Meta) > 0 {
		tk.Meta = make(map[string]types.MetaValue, len(rec.Meta))
		for k, v := range rec.Meta {
			switch val := v.(type) {
			case string:
				tk.Meta[k] = types.MetaValue{Text: val, IsText: true}
			case float64:
				tk.Meta[k] = types.MetaValue{Num: val}
			default:
				return nil, tixerr.New(tixerr.KindParse, op, "meta key %q has unsupported value type", k)
			}
		}
	}
	return tk, nil
}

// TombstoneToAcceptRecord encodes an accept event for tombstone ts, per the
// literal shape in spec.md 8 scenario 1.
func TombstoneToAcceptRecord(ts *types.Tombstone) *Record {
	return &Record{
		T:         KindAccept,
		ID:        ts.ID,
		DoneAt:    ts.DoneAt,
		Name:      ts.Name,
		Timestamp: ts.Timestamp,
	}
}

// TombstoneToRejectRecord encodes a reject event, per spec.md 8
// scenario 2.
func TombstoneToRejectRecord(ts *types.Tombstone) *Record {
	return &Record{
		T:         KindReject,
		ID:        ts.ID,
		Reason:    ts.Reason,
		Name:      ts.Name,
		Timestamp: ts.Timestamp,
	}
}

// DeleteRecord encodes a delete marker for id.
func DeleteRecord(id string, ts int64) *Record {
	return &Record{T: KindDelete, ID: id, Timestamp: ts}
}

// RecordToTombstone converts an accept/reject Record to a Tombstone.
func RecordToTombstone(rec *Record) (*types.Tombstone, error) {
	switch rec.T {
	case KindAccept:
		return &types.Tombstone{ID: rec.ID, DoneAt: rec.DoneAt, Name: rec.Name, IsAccept: true, Timestamp: rec.Timestamp}, nil
	case KindReject:
		return &types.Tombstone{ID: rec.ID, Reason: rec.Reason, Name: rec.Name, IsAccept: false, Timestamp: rec.Timestamp}, nil
	default:
		return nil, tixerr.New(tixerr.KindInvalidArg, "jsonl.RecordToTombstone", "record %q is not accept/reject", rec.T)
	}
}
