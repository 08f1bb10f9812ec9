package rbac

import "testing"

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	if !c.Has("teacher", "session:edit") {
		t.Fatalf("teacher must be able to edit a session")
	}
	if !c.Has("teacher", "test:commit") {
		t.Fatalf("teacher must be able to commit a test")
	}
	if c.Has("teacher", "user:manage") {
		t.Fatalf("teacher must not hold unlisted permissions")
	}
	if !c.Has("admin", "anything:at:all") {
		t.Fatalf("admin wildcard should grant everything")
	}
	if c.Has("student", "session:open") {
		t.Fatalf("unknown role holds nothing")
	}
}

func TestPrefixPatternGrantsWholeNamespace(t *testing.T) {
	c := NewChecker(map[string][]string{"assistant": {"session:*"}})

	if !c.Has("assistant", "session:open") || !c.Has("assistant", "session:edit") {
		t.Fatalf("session:* must cover the session namespace")
	}
	if c.Has("assistant", "test:commit") {
		t.Fatalf("session:* must not leak outside its namespace")
	}
}
