// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package metrics exposes Prometheus instrumentation for the store: a
// handful of collectors, a newHist/newCounter helper, and a single New
// constructor the owning Store calls once at Open time, which registers the
// collectors against the caller's Registerer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles every metric the store reports. The zero value is safe
// to use (all methods become no-ops) so callers that don't care about
// metrics can skip construction entirely.
type Collector struct {
	reads             prometheus.Counter
	writes            prometheus.Counter
	autoVivifications prometheus.Counter
	revisionBumps     prometheus.Counter
	deletes           prometheus.Counter
	busyTimeouts      prometheus.Counter
	consistencyFails  prometheus.Counter
	txnDuration       prometheus.Histogram
}

// New builds a Collector and registers it against reg. A nil reg is
// permitted and yields an unregistered, otherwise fully functional,
// Collector (useful for tests that don't want a shared default registry).
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reads:             newCounter("reads_total", "Number of read operations served by the store."),
		writes:            newCounter("writes_total", "Number of write operations committed by the store."),
		autoVivifications: newCounter("auto_vivifications_total", "Number of intermediate entries created implicitly while resolving a path."),
		revisionBumps:     newCounter("revision_bumps_total", "Number of entry rows whose revision column was incremented."),
		deletes:           newCounter("deletes_total", "Number of entries removed, including entries removed as part of a recursive delete."),
		busyTimeouts:      newCounter("busy_timeouts_total", "Number of operations that failed after waiting out the backing store's busy timeout."),
		consistencyFails:  newCounter("consistency_check_failures_total", "Number of CheckDataConsistency calls that found a violation."),
		txnDuration:       newHist("txn_duration_seconds", "How long a transaction scope stayed open before Commit or Rollback."),
	}
	if reg != nil {
		for _, coll := range []prometheus.Collector{
			c.reads, c.writes, c.autoVivifications, c.revisionBumps,
			c.deletes, c.busyTimeouts, c.consistencyFails, c.txnDuration,
		} {
			// Re-registering the same collector (e.g. two stores sharing a
			// registry in tests) is tolerated; every other error is not.
			if err := reg.Register(coll); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	}
	return c
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "configstore",
		Name:      name,
		Help:      help,
	})
}

func newHist(name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "configstore",
		Name:      name,
		Help:      help,
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
	})
}

func (c *Collector) ObserveRead() {
	if c == nil || c.reads == nil {
		return
	}
	c.reads.Inc()
}

func (c *Collector) ObserveWrite() {
	if c == nil || c.writes == nil {
		return
	}
	c.writes.Inc()
}

func (c *Collector) ObserveAutoVivification(n int) {
	if c == nil || c.autoVivifications == nil || n <= 0 {
		return
	}
	c.autoVivifications.Add(float64(n))
}

func (c *Collector) ObserveRevisionBumps(n int) {
	if c == nil || c.revisionBumps == nil || n <= 0 {
		return
	}
	c.revisionBumps.Add(float64(n))
}

func (c *Collector) ObserveDeletes(n int) {
	if c == nil || c.deletes == nil || n <= 0 {
		return
	}
	c.deletes.Add(float64(n))
}

func (c *Collector) ObserveBusyTimeout() {
	if c == nil || c.busyTimeouts == nil {
		return
	}
	c.busyTimeouts.Inc()
}

func (c *Collector) ObserveConsistencyFailure() {
	if c == nil || c.consistencyFails == nil {
		return
	}
	c.consistencyFails.Inc()
}

func (c *Collector) ObserveTxnDuration(seconds float64) {
	if c == nil || c.txnDuration == nil {
		return
	}
	c.txnDuration.Observe(seconds)
}
