package presence

import (
	"fmt"
	"testing"
)

func TestRegistry_LoginDisconnect(t *testing.T) {
	r := NewRegistry()

	const logins = 5
	for i := 0; i < logins; i++ {
		r.OnLogin(fmt.Sprintf("conn%d", i), fmt.Sprintf("user%d", i), fmt.Sprintf("t%d", i))
	}

	snap := r.Snapshot()
	if len(snap) != logins {
		t.Fatalf("expected %d entries, got %d", logins, len(snap))
	}
	// Oldest login first
	for i, u := range snap {
		if u.Username != fmt.Sprintf("user%d", i) {
			t.Errorf("entry %d: expected user%d, got %s", i, i, u.Username)
		}
	}

	r.OnDisconnect("conn1")
	r.OnDisconnect("conn3")
	// Disconnecting an unknown connection is a no-op
	r.OnDisconnect("conn1")
	r.OnDisconnect("never-seen")

	snap = r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries after disconnects, got %d", len(snap))
	}
	want := []string{"user0", "user2", "user4"}
	for i, u := range snap {
		if u.Username != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], u.Username)
		}
	}
}

func TestRegistry_UpsertKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.OnLogin("c1", "alice", "t1")
	r.OnLogin("c2", "bob", "t2")

	// Second login on the same connection updates in place
	r.OnLogin("c1", "alice2", "t3")

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}
	if snap[0].Username != "alice2" || snap[0].Time != "t3" {
		t.Errorf("expected updated first entry, got %+v", snap[0])
	}
	if snap[1].Username != "bob" {
		t.Errorf("expected bob second, got %+v", snap[1])
	}
}

func TestRegistry_DuplicateUsernames(t *testing.T) {
	r := NewRegistry()
	r.OnLogin("c1", "alice", "t1")
	r.OnLogin("c2", "alice", "t2")

	if len(r.Snapshot()) != 2 {
		t.Error("expected two entries for the same username on two connections")
	}

	if name, ok := r.Username("c2"); !ok || name != "alice" {
		t.Errorf("Username(c2) = %q, %v", name, ok)
	}
	if _, ok := r.Username("c3"); ok {
		t.Error("expected no identity for unknown connection")
	}
}
