package types

import "testing"

func TestStatusResolved(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusDone, false},
		{StatusAccepted, true},
		{StatusRejected, true},
		{StatusDeleted, true},
	}
	for _, c := range cases {
		if got := c.status.Resolved(); got != c.want {
			t.Errorf("%s.Resolved() = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestParseEnumsRoundTrip(t *testing.T) {
	for _, s := range []string{"task", "issue", "note"} {
		tt, ok := ParseTicketType(s)
		if !ok || tt.String() != s {
			t.Fatalf("ParseTicketType(%q) round-trip failed", s)
		}
	}
	for _, s := range []string{"pending", "done", "accepted", "rejected", "deleted"} {
		st, ok := ParseStatus(s)
		if !ok || st.String() != s {
			t.Fatalf("ParseStatus(%q) round-trip failed", s)
		}
	}
	for _, s := range []string{"none", "low", "medium", "high"} {
		p, ok := ParsePriority(s)
		if !ok || p.String() != s {
			t.Fatalf("ParsePriority(%q) round-trip failed", s)
		}
	}
}

func TestValidateRequiresDoneAtForDone(t *testing.T) {
	tk := &Ticket{ID: "t-00000001", Name: "a", Status: StatusDone}
	if err := tk.Validate(); err == nil {
		t.Fatal("expected error for done without done_at")
	}
	tk.DoneAt = "abc123"
	if err := tk.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadID(t *testing.T) {
	tk := &Ticket{ID: "bogus", Name: "a"}
	if err := tk.Validate(); err == nil {
		t.Fatal("expected error for malformed id")
	}
}

func TestValidateRejectsDuplicateDeps(t *testing.T) {
	tk := &Ticket{ID: "t-00000001", Name: "a", Deps: []string{"t-00000002", "t-00000002"}}
	if err := tk.Validate(); err == nil {
		t.Fatal("expected error for duplicate dep")
	}
}

func TestValidateRejectsOverflow(t *testing.T) {
	longName := make([]byte, MaxNameLen+1)
	for i := range longName {
		longName[i] = 'x'
	}
	tk := &Ticket{ID: "t-00000001", Name: string(longName)}
	if err := tk.Validate(); err == nil {
		t.Fatal("expected overflow error for oversized name")
	}
}
