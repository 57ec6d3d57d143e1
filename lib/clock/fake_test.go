// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Unix(1735689600, 0)

func TestFakeAfterFuncFiresOnAdvance(t *testing.T) {
	clock := Fake(epoch)
	fired := 0
	clock.AfterFunc(5*time.Second, func() { fired++ })

	clock.Advance(4 * time.Second)
	if fired != 0 {
		t.Fatalf("fired %d times before deadline", fired)
	}
	clock.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired %d times at deadline, want 1", fired)
	}
	clock.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("fired %d times after deadline, want 1", fired)
	}
	if got := clock.Now(); !got.Equal(epoch.Add(time.Hour + 5*time.Second)) {
		t.Errorf("Now() = %v", got)
	}
}

func TestFakeStopPreventsFire(t *testing.T) {
	clock := Fake(epoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	if clock.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", clock.PendingCount())
	}
	if !timer.Stop() {
		t.Fatal("Stop returned false for pending timer")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
	clock.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after stop, want 0", clock.PendingCount())
	}
}

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	var order []int
	clock.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	clock.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	clock.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	clock.Advance(10 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	registered := make(chan struct{})
	go func() {
		clock.AfterFunc(time.Second, func() {})
		close(registered)
	}()
	clock.WaitForTimers(1)
	<-registered
	if clock.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want 1", clock.PendingCount())
	}
}
