// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	fake := Fake(epoch)
	if !fake.Now().Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", fake.Now(), epoch)
	}
	fake.Advance(90 * time.Second)
	if want := epoch.Add(90 * time.Second); !fake.Now().Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", fake.Now(), want)
	}
}

func TestFakeAfter(t *testing.T) {
	t.Run("fires at deadline", func(t *testing.T) {
		fake := Fake(epoch)
		channel := fake.After(10 * time.Second)

		fake.Advance(9 * time.Second)
		select {
		case <-channel:
			t.Fatal("After fired early")
		default:
		}

		fake.Advance(time.Second)
		select {
		case fired := <-channel:
			if want := epoch.Add(10 * time.Second); !fired.Equal(want) {
				t.Errorf("fired at %v, want %v", fired, want)
			}
		default:
			t.Fatal("After did not fire at deadline")
		}
		if fake.PendingCount() != 0 {
			t.Errorf("PendingCount = %d after one-shot fired", fake.PendingCount())
		}
	})

	t.Run("non-positive duration is immediate", func(t *testing.T) {
		fake := Fake(epoch)
		select {
		case <-fake.After(0):
		default:
			t.Fatal("After(0) did not deliver immediately")
		}
		if fake.PendingCount() != 0 {
			t.Errorf("After(0) registered a timer")
		}
	})
}

func TestFakeTicker(t *testing.T) {
	t.Run("fires once per period", func(t *testing.T) {
		fake := Fake(epoch)
		ticker := fake.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for i := 1; i <= 3; i++ {
			fake.Advance(30 * time.Second)
			select {
			case <-ticker.C:
			default:
				t.Fatalf("tick %d missing", i)
			}
		}
	})

	t.Run("overflowing ticks are dropped", func(t *testing.T) {
		fake := Fake(epoch)
		ticker := fake.NewTicker(time.Second)
		defer ticker.Stop()

		fake.Advance(5 * time.Second)
		<-ticker.C
		select {
		case <-ticker.C:
			t.Fatal("ticker queued more than one tick")
		default:
		}
	})

	t.Run("stop", func(t *testing.T) {
		fake := Fake(epoch)
		ticker := fake.NewTicker(time.Second)
		ticker.Stop()
		fake.Advance(time.Minute)
		select {
		case <-ticker.C:
			t.Fatal("stopped ticker fired")
		default:
		}
		if fake.PendingCount() != 0 {
			t.Errorf("PendingCount = %d after Stop", fake.PendingCount())
		}
	})

	t.Run("non-positive interval panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("NewTicker(0) did not panic")
			}
		}()
		Fake(epoch).NewTicker(0)
	})
}

func TestWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	registered := make(chan *Ticker)
	go func() {
		registered <- fake.NewTicker(time.Second)
	}()

	fake.WaitForTimers(1)
	ticker := <-registered

	stopped := make(chan struct{})
	go func() {
		fake.WaitForIdle(0)
		close(stopped)
	}()
	ticker.Stop()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForIdle did not return after Stop")
	}
}
