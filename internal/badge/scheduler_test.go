package badge

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	from := time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		spec string
		next time.Time
	}{
		{"@every 30s", from.Add(30 * time.Second)},
		{"30s", from.Add(30 * time.Second)},
		{"*/5 * * * *", from.Add(5 * time.Minute)},
		{"@hourly", from.Add(time.Hour)},
	}
	for _, tt := range tests {
		s, err := ParseSchedule(tt.spec)
		if err != nil {
			t.Errorf("ParseSchedule(%q): %v", tt.spec, err)
			continue
		}
		if got := s.Next(from); !got.Equal(tt.next) {
			t.Errorf("ParseSchedule(%q).Next = %s, want %s", tt.spec, got, tt.next)
		}
	}

	for _, bad := range []string{"", "100ms", "every now and then", "61 * * * *"} {
		if _, err := ParseSchedule(bad); err == nil {
			t.Errorf("ParseSchedule(%q) should fail", bad)
		}
	}
}

func TestEverySpec(t *testing.T) {
	if got := EverySpec(30 * time.Second); got != "@every 30s" {
		t.Errorf("EverySpec = %q", got)
	}
}

func TestCronSchedulerRunsTasks(t *testing.T) {
	s := NewCronScheduler(time.UTC)

	var runs int32
	if err := s.Add("probe", "@every 1s", func() { atomic.AddInt32(&runs, 1) }); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add("broken", "not a spec", func() {}); err == nil {
		t.Error("expected invalid spec to be rejected")
	}

	s.Start()
	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&runs) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()

	if atomic.LoadInt32(&runs) == 0 {
		t.Fatal("task never ran")
	}
}
