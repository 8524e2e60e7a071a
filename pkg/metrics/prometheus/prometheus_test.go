package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/memfsd/pkg/memfs"
	"github.com/marmos91/memfsd/pkg/metrics"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFiles struct{ stats memfs.Stats }

func (f fakeFiles) Stats() memfs.Stats { return f.stats }

type fakeAccounts int

func (a fakeAccounts) Len() int { return int(a) }

func gather(t *testing.T) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func counterWithLabels(mf *dto.MetricFamily, labels map[string]string) float64 {
	for _, m := range mf.GetMetric() {
		match := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				match = false
			}
		}
		if match {
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

// The registry is process-wide, so every collector is created once here.
func TestCollectors(t *testing.T) {
	metrics.InitRegistry()
	require.True(t, metrics.IsEnabled())

	sm := NewSocketMetrics()
	sm.RecordConnectionAccepted()
	sm.RecordConnectionAccepted()
	sm.RecordConnectionClosed()
	sm.SetActiveConnections(1)
	sm.RecordRequestStart("open")
	sm.RecordRequest("open", 30*time.Microsecond, "Ok")
	sm.RecordRequestEnd("open")
	sm.RecordRequest("open", time.Millisecond, "FileAlreadyOpen")
	sm.RecordProtocolError()

	snap := NewSnapshotMetrics()
	snap.RecordSnapshot("save", "badger", 5*time.Millisecond, nil)
	snap.RecordSnapshot("load", "s3", time.Millisecond, errors.New("boom"))
	snap.SetSnapshotSize(3, 2)

	files := fakeFiles{stats: memfs.Stats{Files: 4, OpenHandles: 2, MaxOpenFiles: 5}}
	require.NoError(t, RegisterTableGauges(files, fakeAccounts(7)))
	assert.Error(t, RegisterTableGauges(files, fakeAccounts(7)), "duplicate registration must fail")

	got := gather(t)

	assert.Equal(t, float64(2), got["memfsd_socket_connections_accepted_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, float64(1), got["memfsd_socket_active_connections"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, float64(1), got["memfsd_socket_protocol_errors_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, float64(1), counterWithLabels(got["memfsd_socket_requests_total"], map[string]string{"op": "open", "status": "Ok"}))
	assert.Equal(t, float64(1), counterWithLabels(got["memfsd_socket_requests_total"], map[string]string{"op": "open", "status": "FileAlreadyOpen"}))

	assert.Equal(t, float64(1), counterWithLabels(got["memfsd_snapshot_operations_total"],
		map[string]string{"operation": "load", "store": "s3", "status": "error"}))
	assert.Equal(t, float64(3), got["memfsd_snapshot_files"].GetMetric()[0].GetGauge().GetValue())

	assert.Equal(t, float64(4), got["memfsd_files"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, float64(2), got["memfsd_open_handles"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, float64(5), got["memfsd_max_open_files"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, float64(7), got["memfsd_accounts"].GetMetric()[0].GetGauge().GetValue())
}
