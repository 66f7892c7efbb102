/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package metrics exposes the agent's own operational counters/gauges
// (ticks fired, session status, reconnect attempts, PI/ACTION frame
// traffic) through prometheus/client_golang, served over an HTTP handler
// the way the wider corpus wires promhttp.Handler into a plain net/http
// server rather than rolling a bespoke exposition format.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const httpShutdownTimeout = 5 * time.Second

// Collector holds every metric the agent publishes, registered against
// its own registry so a test can inspect it without touching the
// process-global default registry.
type Collector struct {
	registry *prometheus.Registry

	TicksFired      prometheus.Counter
	ReconnectCount  prometheus.Counter
	SessionStatus   *prometheus.GaugeVec
	FramesSent      *prometheus.CounterVec
	FramesReceived  *prometheus.CounterVec
	CollectDuration prometheus.Histogram
}

// New builds a Collector with every metric registered.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		TicksFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tuagent",
			Name:      "ticks_fired_total",
			Help:      "Number of scheduler ticks fired since process start.",
		}),
		ReconnectCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tuagent",
			Name:      "reconnects_total",
			Help:      "Number of times the session loop re-dialed the gateway.",
		}),
		SessionStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tuagent",
			Name:      "session_status",
			Help:      "1 for the currently active session status, 0 for every other.",
		}, []string{"status"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tuagent",
			Name:      "frames_sent_total",
			Help:      "Number of wire frames sent to the gateway, by opcode.",
		}, []string{"op"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tuagent",
			Name:      "frames_received_total",
			Help:      "Number of wire frames received from the gateway, by opcode.",
		}, []string{"op"}),
		CollectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tuagent",
			Name:      "collect_duration_seconds",
			Help:      "Time spent collecting PI values from registered getters.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}

	reg.MustRegister(
		c.TicksFired,
		c.ReconnectCount,
		c.SessionStatus,
		c.FramesSent,
		c.FramesReceived,
		c.CollectDuration,
	)
	return c
}

// SetStatus zeroes every other status gauge and raises status to 1, so a
// "session_status{status=...} 1" query always names exactly one status.
func (c *Collector) SetStatus(status string, known []string) {
	for _, s := range known {
		v := 0.0
		if s == status {
			v = 1.0
		}
		c.SessionStatus.WithLabelValues(s).Set(v)
	}
}

// Handler returns the promhttp handler scraping this Collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve runs an HTTP server exposing /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
