package main

import (
	"context"
	"fmt"

	"kununu/internal/config"
	"kununu/internal/metrics"
	"kununu/internal/metrics/datadog"

	"github.com/sirupsen/logrus"
)

// initMetrics installs the backend named by cfg.Metrics.Backend. The returned
// func flushes and uninstalls it.
func initMetrics(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (func(), error) {
	switch cfg.Metrics.Backend {
	case "datadog":
		// Flushes every FlushEvery and once more on Close.
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Job,
			Tags:       cfg.Metrics.Tags,
			FlushEvery: cfg.MetricsFlushEvery(),
		})
		if err != nil {
			return nil, fmt.Errorf("init datadog backend: %w", err)
		}
		metrics.SetBackend(b)
		log.WithFields(logrus.Fields{"backend": "datadog", "job": cfg.Job, "tags": cfg.Metrics.Tags}).Info("metrics enabled")
		return func() {
			if err := b.Close(); err != nil {
				log.WithError(err).Warn("metrics: datadog close/flush error")
			}
			metrics.SetBackend(nil)
		}, nil

	case "", "none":
		log.Debug("metrics disabled")
		return func() {}, nil

	default:
		return nil, fmt.Errorf("unknown metrics backend %q", cfg.Metrics.Backend)
	}
}
