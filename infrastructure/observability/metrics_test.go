package observability

import (
	"context"
	"testing"
	"time"

	"gatekeeper/config"
	"gatekeeper/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestProvider(t *testing.T) (*MetricsProvider, *sdkmetric.ManualReader) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true

	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.initializeWithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	return totals
}

func TestMetricsProvider_Disabled(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = false

	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))

	assert.NotPanics(t, func() {
		mp.RecordMessageEvaluated("verify", "")
		mp.RecordVerification()
		mp.RecordCleanupDeleted(3)
		mp.RecordCommand("status")
		mp.MeasureDatabaseQuery("guild_verification_settings", "GetOrCreate")()
	})
	assert.False(t, mp.isEnabled())
}

func TestMetricsProvider_NilIsSafe(t *testing.T) {
	var mp *MetricsProvider
	assert.NotPanics(t, func() {
		mp.RecordVerification()
		mp.RecordCommand("role")
	})
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "carrier-pigeon"

	err := NewMetricsProvider(cfg).Initialize(context.Background())
	assert.Error(t, err)
}

func TestMetricsProvider_Counters(t *testing.T) {
	mp, reader := newTestProvider(t)

	mp.RecordMessageEvaluated("verify", "")
	mp.RecordMessageEvaluated("ignore", "wrong_channel")
	mp.RecordVerification()
	mp.RecordCleanupDeleted(4)
	mp.RecordCleanupDeleted(0)
	mp.RecordCommand("mintime")
	mp.MeasureDatabaseQuery("guild_verification_settings", "Update")()

	totals := collectSums(t, reader)
	assert.Equal(t, int64(2), totals[MessagesEvaluatedTotal])
	assert.Equal(t, int64(1), totals[VerificationsTotal])
	assert.Equal(t, int64(4), totals[CleanupDeletedTotal])
	assert.Equal(t, int64(1), totals[CommandsTotal])
	assert.Equal(t, int64(1), totals[DatabaseQueriesTotal])
}

func TestMetricsProvider_RegisterEventHandlers(t *testing.T) {
	mp, reader := newTestProvider(t)
	bus := events.NewBus()
	mp.RegisterEventHandlers(bus)

	ctx := context.Background()
	bus.Emit(ctx, events.MemberVerifiedEvent{GuildID: 1, UserID: 2})
	bus.Emit(ctx, events.MessagesPurgedEvent{GuildID: 1, Deleted: 5})

	assert.Eventually(t, func() bool {
		totals := collectSums(t, reader)
		return totals[VerificationsTotal] == 1 && totals[CleanupDeletedTotal] == 5
	}, 2*time.Second, 10*time.Millisecond)
}
