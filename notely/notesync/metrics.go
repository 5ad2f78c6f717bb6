package notesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notely_cache_hits_total",
		Help: "Note list reads served from the local cache",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notely_cache_misses_total",
		Help: "Note list reads that needed a remote fetch",
	})
	cacheFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notely_cache_fetches_total",
		Help: "Completed remote fetches by outcome",
	}, []string{"result"})
	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notely_cache_evictions_total",
		Help: "Cache partitions dropped by eviction or principal change",
	})
	cacheRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notely_cache_rollbacks_total",
		Help: "Optimistic changes undone after a failed mutation",
	})
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notely_mutations_total",
		Help: "Note mutations by operation and outcome",
	}, []string{"op", "result"})
)
