// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics are the socket's Prometheus collectors. Several clients
// registering with one Registerer share the same collectors.
type metrics struct {
	packets    *prometheus.CounterVec
	dropped    prometheus.Counter
	reconnects prometheus.Counter
	online     prometheus.Gauge
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	packets, err := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meower",
		Subsystem: "socket",
		Name:      "packets_total",
		Help:      "Inbound packets dispatched, by command. Unknown commands are counted as \"other\".",
	}, []string{"cmd"}))
	if err != nil {
		return nil, err
	}
	dropped, err := register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "meower",
		Subsystem: "socket",
		Name:      "dropped_frames_total",
		Help:      "Inbound frames or payloads discarded as malformed.",
	}))
	if err != nil {
		return nil, err
	}
	reconnects, err := register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "meower",
		Subsystem: "socket",
		Name:      "reconnects_total",
		Help:      "Reconnect calls.",
	}))
	if err != nil {
		return nil, err
	}
	online, err := register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "meower",
		Subsystem: "socket",
		Name:      "online_users",
		Help:      "Users in the last ulist received.",
	}))
	if err != nil {
		return nil, err
	}
	return &metrics{packets: packets, dropped: dropped, reconnects: reconnects, online: online}, nil
}

// register adds collector to registerer, or returns the collector
// already registered under the same description. A nil registerer
// leaves the collector unregistered.
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) (T, error) {
	if registerer == nil {
		return collector, nil
	}
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("socket: registering metrics: %w", err)
	}
	return collector, nil
}

// packetLabel bounds the cmd label to the known command set.
func packetLabel(cmd string) string {
	if _, ok := commands[cmd]; ok {
		return cmd
	}
	return "other"
}
