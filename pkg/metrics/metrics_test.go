package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"liyu1981.xyz/home-state-monitor/pkg/models"
)

type fakeCounter struct{ n int64 }

func (f fakeCounter) CountRows(model any, where ...any) (int64, error) {
	return f.n, nil
}

func TestCollectors(t *testing.T) {
	Init(fakeCounter{n: 3})

	before := testutil.ToFloat64(transitionsTotal.WithLabelValues(string(models.EventClassSecurity)))
	IncTransition(models.EventClassSecurity)
	assert.Equal(t, before+1, testutil.ToFloat64(transitionsTotal.WithLabelValues(string(models.EventClassSecurity))))

	ObserveSnapshot(models.SourceSwitchBot, models.MonitoringModePushed, "", time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(snapshotsTotal.WithLabelValues("switchbot", "pushed", ResultAccepted)), 1.0)

	AddPruned("sensor_samples", 0)
	AddPruned("sensor_samples", 4)
	assert.Equal(t, 4.0, testutil.ToFloat64(pruneDeleted.WithLabelValues("sensor_samples")))

	SetIngressState("registered", []string{"unregistered", "registered"})
	assert.Equal(t, 1.0, testutil.ToFloat64(ingressState.WithLabelValues("registered")))
	assert.Equal(t, 0.0, testutil.ToFloat64(ingressState.WithLabelValues("unregistered")))

	IncMirror(NotifyDropped)
	assert.Equal(t, 1.0, testutil.ToFloat64(mirroredTotal.WithLabelValues(NotifyDropped)))
}
