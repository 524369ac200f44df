package server

import (
	"context"
	"time"

	"github.com/elifarley/vandamme-proxy/pkg/telemetry/metrics"
	"github.com/elifarley/vandamme-proxy/pkg/usage"
)

// meteredSink records completed requests to the usage ledger and the metrics
// collector. Either side may be nil.
type meteredSink struct {
	ledger    *usage.Ledger
	collector *metrics.Collector
}

// Insert implements handlers.UsageSink.
func (s *meteredSink) Insert(ctx context.Context, rec *usage.Record) error {
	if s.collector != nil {
		status := rec.ErrorKind
		if status == "" {
			status = "success"
		}
		s.collector.RecordRequest(rec.Provider, rec.Model, status, rec.Stream,
			time.Duration(rec.LatencyMS)*time.Millisecond,
			rec.InputTokens, rec.OutputTokens)
		if rec.ErrorKind != "" {
			s.collector.RecordUpstreamError(rec.Provider, rec.ErrorKind)
		}
	}

	if s.ledger != nil {
		return s.ledger.Insert(ctx, rec)
	}
	return nil
}
