// Package metricstest reads counter values back out of a metrics.Metrics
// registry for assertions in tests.
package metricstest

import (
	"testing"

	"bracket-pool-services/internal/metrics"

	"github.com/stretchr/testify/require"
)

// CounterValue returns the counter in family name whose labels equal labels
// exactly, or 0 when that series has not been created yet.
func CounterValue(t testing.TB, m *metrics.Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	series:
		for _, metric := range family.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for _, pair := range pairs {
				if want, ok := labels[pair.GetName()]; !ok || want != pair.GetValue() {
					continue series
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func CronAuth(t testing.TB, m *metrics.Metrics, result string) float64 {
	t.Helper()
	return CounterValue(t, m, "bracketpool_cron_auth_total", map[string]string{"result": result})
}

func JobRuns(t testing.TB, m *metrics.Metrics, job, status string) float64 {
	t.Helper()
	return CounterValue(t, m, "bracketpool_cron_job_runs_total", map[string]string{"job": job, "status": status})
}
