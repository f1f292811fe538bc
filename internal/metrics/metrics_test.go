// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveRead()
	c.ObserveWrite()
	c.ObserveAutoVivification(3)
	c.ObserveRevisionBumps(2)
	c.ObserveDeletes(1)
	c.ObserveBusyTimeout()
	c.ObserveConsistencyFailure()
	c.ObserveTxnDuration(0.5)
}

func TestNewWithNilRegistererIsUsable(t *testing.T) {
	c := New(nil)
	c.ObserveRead()
	c.ObserveRead()
	if got := counterValue(t, c.reads); got != 2 {
		t.Fatalf("reads = %v, want 2", got)
	}
}

func TestObserveCountsAccumulate(t *testing.T) {
	c := New(nil)

	c.ObserveAutoVivification(2)
	c.ObserveAutoVivification(0)
	if got := counterValue(t, c.autoVivifications); got != 2 {
		t.Fatalf("autoVivifications = %v, want 2", got)
	}

	c.ObserveRevisionBumps(3)
	if got := counterValue(t, c.revisionBumps); got != 3 {
		t.Fatalf("revisionBumps = %v, want 3", got)
	}

	c.ObserveDeletes(5)
	if got := counterValue(t, c.deletes); got != 5 {
		t.Fatalf("deletes = %v, want 5", got)
	}

	c.ObserveConsistencyFailure()
	if got := counterValue(t, c.consistencyFails); got != 1 {
		t.Fatalf("consistencyFails = %v, want 1", got)
	}
}

func TestNewToleratesDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	New(reg) // must not panic on AlreadyRegisteredError
}
