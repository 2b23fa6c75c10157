package progress_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"testing"

	"github.com/go-logr/logr"
	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.buf.build/protocolbuffers/go/prometheus/prometheus"

	"extract/progress"
	"extract/series"
)

func remoteWriteServer(t *testing.T, status int, received chan<- *prometheus.WriteRequest) *url.URL {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prom/api/v1/write", r.URL.Path)
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		data, err := snappy.Decode(nil, body)
		require.NoError(t, err)

		wr := &prometheus.WriteRequest{}
		require.NoError(t, proto.Unmarshal(data, wr))
		received <- wr
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL + "/prom")
	require.NoError(t, err)
	return u
}

func parseSeries(t *testing.T, selector string) *prometheus.TimeSeries {
	t.Helper()
	ts, err := series.Parse(selector)
	require.NoError(t, err)
	return ts
}

// run starts the sender of w and stops it when the test ends.
func run(t *testing.T, w *progress.RemoteWriter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		assert.NoError(t, w.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
}

func labelNames(ts *prometheus.TimeSeries) []string {
	var names []string
	for _, l := range ts.Labels {
		names = append(names, l.Name)
	}
	return names
}

func labelMap(ts *prometheus.TimeSeries) map[string]string {
	m := map[string]string{}
	for _, l := range ts.Labels {
		m[l.Name] = l.Value
	}
	return m
}

func TestRemoteWriter_Progress(t *testing.T) {
	received := make(chan *prometheus.WriteRequest, 1)
	w := progress.NewRemoteWriter(remoteWriteServer(t, http.StatusNoContent, received), parseSeries(t, progress.DefaultSeries), logr.Discard(), 0)
	run(t, w)

	w.ProgressUpdated("x+y", 42)

	wr := <-received
	require.Len(t, wr.Timeseries, 1)
	ts := wr.Timeseries[0]
	assert.Equal(t, []string{"__name__", "expression", "job"}, labelNames(ts))
	assert.Equal(t, map[string]string{
		"__name__":   "expression_extraction_progress",
		"job":        "extract",
		"expression": "x+y",
	}, labelMap(ts))
	require.Len(t, ts.Samples, 1)
	assert.Equal(t, float64(42), ts.Samples[0].Value)
	assert.NotZero(t, ts.Samples[0].Timestamp)
}

func TestRemoteWriter_LabelsSorted(t *testing.T) {
	received := make(chan *prometheus.WriteRequest, 1)
	selector := `p{zone="b",expression="configured",a="1"}`
	w := progress.NewRemoteWriter(remoteWriteServer(t, http.StatusOK, received), parseSeries(t, selector), logr.Discard(), 0)
	run(t, w)

	w.ProgressUpdated("x+y", 10)

	ts := (<-received).Timeseries[0]
	names := labelNames(ts)
	assert.True(t, sort.StringsAreSorted(names), "labels %v", names)
	assert.Equal(t, []string{"__name__", "a", "expression", "zone"}, names)
	assert.Equal(t, "x+y", labelMap(ts)["expression"])
}

func TestRemoteWriter_Completed(t *testing.T) {
	received := make(chan *prometheus.WriteRequest, 1)
	base := parseSeries(t, progress.DefaultSeries)
	w := progress.NewRemoteWriter(remoteWriteServer(t, http.StatusOK, received), base, logr.Discard(), 0)
	run(t, w)

	w.ProcessCompleted("x+y", variables)

	ts := (<-received).Timeseries[0]
	assert.Equal(t, "expression_extraction_progress_variables", labelMap(ts)["__name__"])
	assert.Equal(t, float64(2), ts.Samples[0].Value)
	assert.Equal(t, "expression_extraction_progress", base.Labels[0].Value, "configured series must not change")
}

func TestRemoteWriter_FullQueueDoesNotBlock(t *testing.T) {
	received := make(chan *prometheus.WriteRequest, 8)
	w := progress.NewRemoteWriter(remoteWriteServer(t, http.StatusOK, received), parseSeries(t, "p"), logr.Discard(), 1)

	// nothing sends yet, so all but the first sample are dropped
	w.ProgressUpdated("x", 0)
	w.ProgressUpdated("x", 50)
	w.ProcessCompleted("x", variables)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	require.Len(t, received, 1)
	assert.Equal(t, float64(0), (<-received).Timeseries[0].Samples[0].Value)
}

func TestRemoteWriter_DrainsOnShutdown(t *testing.T) {
	received := make(chan *prometheus.WriteRequest, 8)
	w := progress.NewRemoteWriter(remoteWriteServer(t, http.StatusOK, received), parseSeries(t, "p"), logr.Discard(), 0)

	w.ProgressUpdated("x", 100)
	w.ProcessCompleted("x", variables)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	assert.Len(t, received, 2)
}

func TestRemoteWriter_Status(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			received := make(chan *prometheus.WriteRequest, 1)
			w := progress.NewRemoteWriter(remoteWriteServer(t, tt.status, received), parseSeries(t, "p"), logr.Discard(), 0)

			err := w.Send(context.Background(), &prometheus.WriteRequest{})
			<-received
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
