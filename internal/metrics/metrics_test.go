package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBeforeInitIsNoop(t *testing.T) {
	if Registered() {
		t.Skip("collectors already registered by another test")
	}
	RecordFetch("memory", ResultFound)
	RecordScrub("scrub", nil)
	assert.Nil(t, BackendFetchTotal())
}

func TestRecordCounters(t *testing.T) {
	Init()
	Init()
	require.True(t, Registered())

	before := testutil.ToFloat64(BackendFetchTotal().WithLabelValues("memory", ResultFound))
	RecordFetch("memory", ResultFound)
	RecordFetch("memory", ResultFound)
	assert.Equal(t, before+2, testutil.ToFloat64(BackendFetchTotal().WithLabelValues("memory", ResultFound)))

	failedBefore := testutil.ToFloat64(ScrubTotal().WithLabelValues("store", ResultFailure))
	RecordScrub("store", errors.New("write failed"))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(ScrubTotal().WithLabelValues("store", ResultFailure)))

	forcedBefore := testutil.ToFloat64(ChildExitTotal().WithLabelValues("forced"))
	RecordChildExit("forced")
	assert.Equal(t, forcedBefore+1, testutil.ToFloat64(ChildExitTotal().WithLabelValues("forced")))

	ObserveHealthWait(1500 * time.Millisecond)
}

func TestServerServesMetrics(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(ctx))
	})

	RecordChildExit("exited")

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "openclaw_secure_child_exit_total")
}

func TestServerStopBeforeStart(t *testing.T) {
	t.Parallel()

	srv := NewServer("127.0.0.1:0", nil)
	assert.Empty(t, srv.Addr())
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestServerBindError(t *testing.T) {
	t.Parallel()

	assert.Error(t, NewServer("256.0.0.1:99999", nil).Start())
}
