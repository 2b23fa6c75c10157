package progress

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"go.buf.build/protocolbuffers/go/prometheus/prometheus"

	"extract/expression"
)

const (
	MetricNameLabel = "__name__"
	VariablesSuffix = "_variables"
	// DefaultSeries is the selector of the remote written progress samples.
	DefaultSeries = `expression_extraction_progress{job="extract"}`
	// DefaultRemoteWriteQueue is the number of samples waiting to be sent.
	DefaultRemoteWriteQueue = 256

	remoteWritePath  = "/api/v1/write"
	remoteWriteLimit = 30 * time.Second
	drainLimit       = 5 * time.Second
)

// RemoteWriter pushes notifications to a Prometheus remote write endpoint.
// Progress becomes a sample of the configured series, completion a sample of
// the same series suffixed with _variables holding the variable count. Both
// carry an expression label.
//
// Notifications only enqueue samples; Run sends them. When the queue is full
// samples are dropped, so a slow endpoint never holds up a scan.
type RemoteWriter struct {
	url    *url.URL
	series *prometheus.TimeSeries
	client *http.Client
	logger logr.Logger
	queue  chan *prometheus.WriteRequest
}

// NewRemoteWriter writes to the remote write API below base. series supplies
// the metric name and labels of the written samples. A queueSize <= 0 uses
// DefaultRemoteWriteQueue.
func NewRemoteWriter(base *url.URL, series *prometheus.TimeSeries, logger logr.Logger, queueSize int) *RemoteWriter {
	endpoint := *base
	endpoint.Path = path.Join(endpoint.Path, remoteWritePath)

	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	if queueSize <= 0 {
		queueSize = DefaultRemoteWriteQueue
	}

	return &RemoteWriter{
		url:    &endpoint,
		series: series,
		client: &http.Client{
			Timeout: remoteWriteLimit,
		},
		logger: logger,
		queue:  make(chan *prometheus.WriteRequest, queueSize),
	}
}

func (w *RemoteWriter) ProgressUpdated(expr string, percent float64) {
	if !w.enqueue(w.sample("", expr, percent)) {
		w.logger.V(1).Info("remote write queue full, dropping progress sample", "expression", expr, "percent", percent)
	}
}

func (w *RemoteWriter) ProcessCompleted(expr string, variables expression.TokenList) {
	if !w.enqueue(w.sample(VariablesSuffix, expr, float64(len(variables)))) {
		w.logger.Info("remote write queue full, dropping completion sample", "expression", expr)
	}
}

func (w *RemoteWriter) enqueue(wr *prometheus.WriteRequest) bool {
	select {
	case w.queue <- wr:
		return true
	default:
		return false
	}
}

// Run sends queued samples until ctx is cancelled. Samples still queued then
// are sent with a short grace period.
func (w *RemoteWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(nil)
			return nil
		case wr := <-w.queue:
			if ctx.Err() != nil {
				w.drain(wr)
				return nil
			}
			w.write(ctx, wr)
		}
	}
}

func (w *RemoteWriter) drain(first *prometheus.WriteRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), drainLimit)
	defer cancel()

	if first != nil {
		w.write(ctx, first)
	}
	for {
		select {
		case wr := <-w.queue:
			w.write(ctx, wr)
		default:
			return
		}
	}
}

// sample builds a single-sample request. Labels are sorted by name as remote
// write receivers require; a configured expression label is replaced.
func (w *RemoteWriter) sample(suffix string, expr string, value float64) *prometheus.WriteRequest {
	var labels []*prometheus.Label
	for _, l := range w.series.Labels {
		if l.Name == ExpressionLabel {
			continue
		}
		label := &prometheus.Label{Name: l.Name, Value: l.Value}
		if label.Name == MetricNameLabel {
			label.Value += suffix
		}
		labels = append(labels, label)
	}
	labels = append(labels, &prometheus.Label{
		Name:  ExpressionLabel,
		Value: expr,
	})
	sort.Slice(labels, func(i, j int) bool {
		return labels[i].Name < labels[j].Name
	})

	wr := &prometheus.WriteRequest{}
	wr.Timeseries = append(wr.Timeseries, &prometheus.TimeSeries{
		Labels: labels,
		Samples: []*prometheus.Sample{{
			Value:     value,
			Timestamp: time.Now().UnixMilli(),
		}},
	})
	wr.Metadata = append(wr.Metadata, &prometheus.MetricMetadata{
		Type: prometheus.MetricMetadata_GAUGE,
	})
	return wr
}

func (w *RemoteWriter) write(ctx context.Context, wr *prometheus.WriteRequest) {
	if err := w.Send(ctx, wr); err != nil {
		w.logger.Error(err, "remote write failed", "url", w.url.String())
	}
}

// Send encodes wr and posts it to the remote write endpoint.
func (w *RemoteWriter) Send(ctx context.Context, wr *prometheus.WriteRequest) error {
	data, err := proto.Marshal(wr)
	if err != nil {
		return fmt.Errorf("marshal write request: %w", err)
	}
	encoded := snappy.Encode(nil, data)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url.String(), bytes.NewReader(encoded))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusBadRequest {
			// possibly duplicate data? ignore it.
			w.logger.Info("remote write rejected sample as invalid, ignoring it", "url", w.url.String())
			return nil
		}
		return fmt.Errorf("unexpected remote write status code: %v", resp.StatusCode)
	}

	return nil
}
