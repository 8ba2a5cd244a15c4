package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveRebuildDuration("client", 150*time.Millisecond)
	pr.IncRebuildResult("client", ResultSuccess)
	pr.IncRebuildResult("server", ResultFailed)
	pr.IncRebuildResult("server", ResultFailed)
	pr.IncProcessExit("tailwindcss", 2)
	pr.IncWatchCycle("test")
	pr.ObserveRunDuration("build", 2*time.Second)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.rebuildResults.WithLabelValues("server", "failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.processExits.WithLabelValues("tailwindcss", "2")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.watchCycles.WithLabelValues("test")), 0)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveRebuildDuration("client", time.Second)
		pr.IncRebuildResult("client", ResultCanceled)
		pr.IncProcessExit("node", 1)
		pr.IncWatchCycle("watch")
		pr.ObserveRunDuration("dev", time.Second)
	})
}

func TestResultFor(t *testing.T) {
	assert.Equal(t, ResultSuccess, ResultFor(0, 0))
	assert.Equal(t, ResultWarning, ResultFor(0, 3))
	assert.Equal(t, ResultFailed, ResultFor(1, 3))
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncWatchCycle("watch")

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "slimpack_watch_cycles_total")
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncWatchCycle("dev")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, "/m", reg) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/m", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(b), "slimpack_watch_cycles_total")
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
