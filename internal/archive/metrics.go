package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultHit    = "hit"
	resultMiss   = "miss"
	resultCached = "cached"
	resultError  = "error"
)

var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dlarchive_checks_total",
	Help: "Archive lookups by backend and result",
}, []string{"backend", "result"})

var addsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dlarchive_adds_total",
	Help: "Items recorded or queued by backend",
}, []string{"backend"})

var flushedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dlarchive_flushed_entries_total",
	Help: "New entries written by memory-mode finalize, by backend",
}, []string{"backend"})

var opErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dlarchive_operation_errors_total",
	Help: "Swallowed backend errors by operation",
}, []string{"backend", "op"})

var fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dlarchive_fallbacks_total",
	Help: "Times the postgres archive was unreachable and the sqlite fallback was used",
})

var replayedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dlarchive_replayed_entries_total",
	Help: "Entries replayed from the fallback archive into postgres",
})

var replayFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dlarchive_replay_failures_total",
	Help: "Failed fallback replays",
})
