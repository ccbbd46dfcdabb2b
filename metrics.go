/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts how visits move through the card.
type Metrics struct {
	registry *prometheus.Registry

	VisitsStarted   prometheus.Counter
	VisitsLive      prometheus.Gauge
	NamesAccepted   prometheus.Counter
	NamesRejected   prometheus.Counter
	Evasions        prometheus.Counter
	Affirmations    prometheus.Counter
	ConfettiFrames  prometheus.Counter
	VisitsReaped    prometheus.Counter
	ImagesSubmitted prometheus.Counter
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		VisitsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweetheart_visits_started_total",
			Help: "Total number of card visits opened",
		}),
		VisitsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sweetheart_visits_live",
			Help: "Number of card visits currently connected",
		}),
		NamesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweetheart_names_accepted_total",
			Help: "Total number of names let past the entry screen",
		}),
		NamesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweetheart_names_rejected_total",
			Help: "Total number of names turned away at the entry screen",
		}),
		Evasions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweetheart_evasions_total",
			Help: "Total number of times the No button ran away",
		}),
		Affirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweetheart_affirmations_total",
			Help: "Total number of yes answers",
		}),
		ConfettiFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweetheart_confetti_frames_total",
			Help: "Total number of confetti frames sent",
		}),
		VisitsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweetheart_visits_reaped_total",
			Help: "Total number of idle visits disconnected",
		}),
		ImagesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweetheart_images_submitted_total",
			Help: "Total number of accepted names submitted with a custom image",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.VisitsStarted,
		m.VisitsLive,
		m.NamesAccepted,
		m.NamesRejected,
		m.Evasions,
		m.Affirmations,
		m.ConfettiFrames,
		m.VisitsReaped,
		m.ImagesSubmitted,
	)

	return m
}

func registerMetricsHandler(cfg *Config, m *Metrics, mux *httprouter.Router) {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	mux.Handler(http.MethodGet, cfg.prefix+"/metrics", h)
}
