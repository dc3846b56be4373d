// Package health polls the gateway's liveness endpoint after spawn.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"

	"github.com/systmms/openclaw-secure/internal/logging"
	"github.com/systmms/openclaw-secure/internal/metrics"
)

// DefaultInterval is the pause between two probes.
const DefaultInterval = 500 * time.Millisecond

// Endpoint returns the gateway health URL on the loopback interface.
func Endpoint(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/health", port)
}

// Waiter polls an endpoint until it answers 2xx.
type Waiter struct {
	Client   *http.Client
	Interval time.Duration
	Logger   *logging.Logger

	// Progress receives a spinner while waiting; nil disables it.
	Progress io.Writer
}

// NewWaiter returns a Waiter that shows a spinner when stderr is a
// terminal and debug output is off.
func NewWaiter(logger *logging.Logger) *Waiter {
	if logger == nil {
		logger = logging.Discard()
	}
	w := &Waiter{
		Client:   &http.Client{Timeout: 2 * time.Second},
		Interval: DefaultInterval,
		Logger:   logger,
	}
	if term.IsTerminal(int(os.Stderr.Fd())) && !logger.IsDebug() {
		w.Progress = os.Stderr
	}
	return w
}

// WaitHealthy polls endpoint with a default Waiter.
func WaitHealthy(ctx context.Context, endpoint string, timeout time.Duration) bool {
	return NewWaiter(nil).Wait(ctx, endpoint, timeout)
}

// Wait returns true on the first 2xx answer and false when timeout elapses
// or ctx is cancelled. Connection errors only mean "not yet".
func (w *Waiter) Wait(ctx context.Context, endpoint string, timeout time.Duration) bool {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if w.Progress != nil {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w.Progress))
		s.Suffix = " waiting for gateway at " + endpoint
		s.Start()
		defer s.Stop()
	}

	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if w.probe(ctx, client, endpoint) {
			metrics.ObserveHealthWait(time.Since(start))
			w.Logger.Debug("%s healthy after %s", endpoint, time.Since(start).Round(time.Millisecond))
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (w *Waiter) probe(ctx context.Context, client *http.Client, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
