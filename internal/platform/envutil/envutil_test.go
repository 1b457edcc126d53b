package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("X_DUR", "90s")
	if got := Duration("X_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("Duration: got %v", got)
	}
	t.Setenv("X_DUR", "45")
	if got := Duration("X_DUR", time.Second); got != 45*time.Second {
		t.Fatalf("Duration seconds: got %v", got)
	}
	t.Setenv("X_DUR", "nope")
	if got := Duration("X_DUR", time.Second); got != time.Second {
		t.Fatalf("Duration fallback: got %v", got)
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("X_BOOL", "yes")
	if !Bool("X_BOOL", false) {
		t.Fatalf("Bool: expected true")
	}
	t.Setenv("X_LIST", "a, b,,c ")
	got := List("X_LIST", nil)
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("List: got %v", got)
	}
}
