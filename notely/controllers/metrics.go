package controllers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notely_event_subscribers",
		Help: "Open /notes/events feeds",
	})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notely_events_dropped_total",
		Help: "Note events not delivered to a slow subscriber",
	})
	summarizeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notely_summarize_requests_total",
		Help: "Summarize requests by outcome",
	}, []string{"result"})
)
