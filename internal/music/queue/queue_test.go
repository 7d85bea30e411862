package queue

import (
	"testing"
	"time"
)

func TestStore_FIFO(t *testing.T) {
	s := NewStore()

	s.Enqueue("g1", "a")
	s.Enqueue("g1", "b")
	s.Enqueue("g1", "c")

	want := []string{"a", "b", "c"}
	for _, w := range want {
		got, ok := s.DequeueNext("g1")
		if !ok {
			t.Fatalf("DequeueNext returned empty, want %q", w)
		}
		if got != w {
			t.Errorf("DequeueNext = %q, want %q", got, w)
		}
	}
	if _, ok := s.DequeueNext("g1"); ok {
		t.Error("DequeueNext on drained queue should return false")
	}
}

func TestStore_GuildIsolation(t *testing.T) {
	s := NewStore()

	s.Enqueue("g1", "a")
	s.Enqueue("g2", "b")

	if got, _ := s.DequeueNext("g2"); got != "b" {
		t.Errorf("g2 DequeueNext = %q, want b", got)
	}
	if got, _ := s.DequeueNext("g1"); got != "a" {
		t.Errorf("g1 DequeueNext = %q, want a", got)
	}
}

func TestStore_RequeueIfLooping_Front(t *testing.T) {
	s := NewStore()
	s.Enqueue("g1", "b")
	s.Enqueue("g1", "c")
	s.SetLoop("g1", true)

	if !s.RequeueIfLooping("g1", "a") {
		t.Fatal("RequeueIfLooping with loop on should requeue")
	}

	got := s.Pending("g1")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Pending = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Pending[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStore_RequeueIfLooping_Disabled(t *testing.T) {
	s := NewStore()

	if s.RequeueIfLooping("g1", "a") {
		t.Error("RequeueIfLooping with loop off should not requeue")
	}
	if s.Len("g1") != 0 {
		t.Errorf("Len = %d, want 0", s.Len("g1"))
	}
}

func TestStore_ClearDisablesLoop(t *testing.T) {
	s := NewStore()
	s.Enqueue("g1", "a")
	s.SetLoop("g1", true)

	s.Clear("g1")

	if s.Len("g1") != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len("g1"))
	}
	if s.LoopEnabled("g1") {
		t.Error("Clear should disable loop")
	}
}

func TestStore_ToggleLoop(t *testing.T) {
	s := NewStore()

	if !s.ToggleLoop("g1") {
		t.Error("first toggle should enable loop")
	}
	if s.ToggleLoop("g1") {
		t.Error("second toggle should disable loop")
	}
}

func TestStore_Reclaim(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Enqueue("idle", "a")
	s.DequeueNext("idle") // empty but touched
	s.Enqueue("busy", "b")
	s.Enqueue("looping", "c")
	s.DequeueNext("looping")
	s.SetLoop("looping", true)
	s.Enqueue("active", "d")
	s.DequeueNext("active")

	// Advance the clock past the grace period for everyone.
	s.now = func() time.Time { return now.Add(time.Hour) }

	dropped := s.Reclaim(30*time.Minute, func(guildID string) bool {
		return guildID == "active"
	})

	if dropped != 1 {
		t.Errorf("Reclaim dropped %d entries, want 1", dropped)
	}
	s.mu.Lock()
	_, idleKept := s.guilds["idle"]
	_, busyKept := s.guilds["busy"]
	_, loopKept := s.guilds["looping"]
	_, activeKept := s.guilds["active"]
	s.mu.Unlock()

	if idleKept {
		t.Error("idle guild should have been reclaimed")
	}
	if !busyKept {
		t.Error("guild with pending tracks must survive reclaim")
	}
	if !loopKept {
		t.Error("looping guild must survive reclaim")
	}
	if !activeKept {
		t.Error("in-use guild must survive reclaim")
	}
}
