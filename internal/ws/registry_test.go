package ws

import "testing"

func TestRegistryTracksResumePerChannel(t *testing.T) {
	r := NewRegistry()

	a := r.Add()
	b := r.Add()
	if a == b {
		t.Fatalf("expected distinct channel ids, got %q twice", a)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 channels, got %d", r.Len())
	}

	if got := r.Resume(a); got != "" {
		t.Fatalf("fresh channel should have no resume id, got %q", got)
	}

	r.SetResume(a, "s1")
	r.SetResume(a, "s2")
	if got := r.Resume(a); got != "s2" {
		t.Fatalf("expected latest resume id s2, got %q", got)
	}
	if got := r.Resume(b); got != "" {
		t.Fatalf("channel b should be unaffected, got %q", got)
	}
}

func TestRegistryRemoveForgetsChannel(t *testing.T) {
	r := NewRegistry()

	id := r.Add()
	r.SetResume(id, "s1")
	r.Remove(id)

	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
	if got := r.Resume(id); got != "" {
		t.Fatalf("removed channel should have no resume id, got %q", got)
	}

	// A late write from an in-flight turn must not resurrect the entry.
	r.SetResume(id, "s2")
	if r.Len() != 0 {
		t.Fatalf("SetResume after Remove should be a no-op, got %d entries", r.Len())
	}
}
