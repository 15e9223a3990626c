package alert

import (
	"testing"
	"time"
)

func TestBoard_AutoDismiss(t *testing.T) {
	b := NewBoard(time.Second)
	defer b.Close()

	b.Show("Payment received", "Reservation R-1 paid", 30*time.Millisecond)
	if active := b.Active(); len(active) != 1 || active[0].Title != "Payment received" {
		t.Fatalf("expected one visible alert, got %+v", active)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(b.Active()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected alert to auto-dismiss")
}

func TestBoard_DurationIsBounded(t *testing.T) {
	b := NewBoard(50 * time.Millisecond)
	defer b.Close()

	b.Show("T", "M", time.Hour)
	active := b.Active()
	if len(active) != 1 {
		t.Fatalf("expected one alert")
	}
	if got := active[0].ExpiresAt.Sub(active[0].ShownAt); got != 50*time.Millisecond {
		t.Fatalf("expected capped duration, got %v", got)
	}
}

func TestBoard_Dismiss(t *testing.T) {
	b := NewBoard(time.Minute)
	defer b.Close()

	b.Show("a", "m", time.Minute)
	b.Show("b", "m", time.Minute)
	first := b.Active()[0]

	b.Dismiss(first.ID)
	b.Dismiss("missing")

	active := b.Active()
	if len(active) != 1 || active[0].Title != "b" {
		t.Fatalf("expected only b visible, got %+v", active)
	}
}

type countingSurface struct{ n int }

func (c *countingSurface) Show(string, string, time.Duration) { c.n++ }

func TestMulti_FansOut(t *testing.T) {
	a, b := &countingSurface{}, &countingSurface{}
	Multi{a, nil, b}.Show("t", "m", time.Second)
	if a.n != 1 || b.n != 1 {
		t.Fatalf("expected both surfaces called, got %d/%d", a.n, b.n)
	}
}
