package cli

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/crawlplan/internal/store"
)

// writeMetrics writes the families gathered from g in the Prometheus text
// exposition format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// dumpStoreMetrics writes the store metrics when --metrics is set.
func dumpStoreMetrics(opts *RootOptions, w io.Writer) error {
	if !opts.Metrics {
		return nil
	}
	return writeMetrics(w, store.NewRegistry())
}
