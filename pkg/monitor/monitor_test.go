package monitor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/config"
	"github.com/LucaPlaster/MyGeoEyes/pkg/coordinator"
	"github.com/LucaPlaster/MyGeoEyes/pkg/protocol"
	"github.com/LucaPlaster/MyGeoEyes/pkg/shared"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestRecordKeepsMostRecent(t *testing.T) {
	m := New(&config.MonitorConfig{MaxReports: 3}, zaptest.NewLogger(t))

	for _, id := range []types.NodeID{"a", "b", "c", "d", "e"} {
		m.Record(id)
	}

	reports := m.Reports(0)
	require.Len(t, reports, 3)
	assert.Equal(t, types.NodeID("c"), reports[0].NodeID)
	assert.Equal(t, types.NodeID("e"), reports[2].NodeID)

	latest := m.Reports(2)
	require.Len(t, latest, 2)
	assert.Equal(t, types.NodeID("d"), latest[0].NodeID)
}

func TestMonitorHandlers(t *testing.T) {
	m := New(&config.MonitorConfig{}, zaptest.NewLogger(t))
	ctx := context.Background()

	resp, err := m.RegisterCoordinator(ctx, &protocol.RegisterCoordinatorRequest{Address: "coord-b:8001"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	_, err = m.RegisterCoordinator(ctx, &protocol.RegisterCoordinatorRequest{Address: "coord-a:8001"})
	require.NoError(t, err)

	rejected, err := m.RegisterCoordinator(ctx, &protocol.RegisterCoordinatorRequest{})
	require.NoError(t, err)
	assert.False(t, rejected.Success)

	_, err = m.ReportNodeFailure(ctx, &protocol.ReportNodeFailureRequest{NodeId: "node-1"})
	require.NoError(t, err)

	list, err := m.ListFailures(ctx, &protocol.ListFailuresRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"coord-a:8001", "coord-b:8001"}, list.Coordinators)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, "node-1", list.Reports[0].NodeId)
	assert.WithinDuration(t, time.Now(), list.Reports[0].ReportedAt.AsTime(), time.Minute)
}

// A coordinator pointed at the monitor registers itself and reports the
// node it sweeps out.
func TestCoordinatorReportsToMonitor(t *testing.T) {
	m := New(&config.MonitorConfig{}, zaptest.NewLogger(t))
	monitorListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go m.Serve(monitorListener)
	t.Cleanup(m.Stop)

	coord := coordinator.New(&config.CoordinatorConfig{
		MonitorAddress: monitorListener.Addr().String(),
	}, zap.NewNop())
	coordListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go coord.Serve(coordListener)
	t.Cleanup(coord.Stop)

	require.Eventually(t, func() bool {
		return len(m.Coordinators()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, coordListener.Addr().String(), m.Coordinators()[0])

	// A node that registered and went away.
	nodeListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddress := nodeListener.Addr().String()
	nodeListener.Close()

	conn, err := shared.Dial(context.Background(), deadAddress)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, coord.RegisterNode("gone", shared.NewRemoteNode(deadAddress, conn)))

	assert.Equal(t, []types.NodeID{"gone"}, coord.SweepOnce(context.Background()))

	reports := m.Reports(0)
	require.Len(t, reports, 1)
	assert.Equal(t, types.NodeID("gone"), reports[0].NodeID)
}
