package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_ObserveRefresh(t *testing.T) {
	p := NewProvider()

	p.ObserveRefresh("success", 120*time.Millisecond)
	p.ObserveRefresh("success", 80*time.Millisecond)
	p.ObserveRefresh("rejected", 40*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(p.refreshTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.refreshTotal.WithLabelValues("rejected")))
}

func TestProvider_ObserveAuthAndToolCalls(t *testing.T) {
	p := NewProvider()

	p.ObserveAuth("accepted")
	p.ObserveAuth("rejected")
	p.ObserveAuth("rejected")
	p.ObserveToolCall("find_events")

	assert.Equal(t, float64(1), testutil.ToFloat64(p.authTotal.WithLabelValues("accepted")))
	assert.Equal(t, float64(2), testutil.ToFloat64(p.authTotal.WithLabelValues("rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.toolCallsTotal.WithLabelValues("find_events")))
}

func TestProvider_RegistryGathersCollectors(t *testing.T) {
	p := NewProvider()
	p.ObserveRefresh("success", time.Millisecond)

	families, err := p.Registry().Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "calmcp_token_refresh_total")
	assert.Contains(t, names, "calmcp_token_refresh_duration_seconds")
}
