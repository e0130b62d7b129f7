package coordinator

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/config"
	"github.com/LucaPlaster/MyGeoEyes/pkg/metrics"
	"github.com/LucaPlaster/MyGeoEyes/pkg/protocol"
	"github.com/LucaPlaster/MyGeoEyes/pkg/shared"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStoreAndLocate(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b", "c")
	ctx := context.Background()
	data := testPayload(300)

	require.NoError(t, tc.coord.StoreObject(ctx, "img1", data, 3))
	assert.Equal(t, []string{"img1"}, tc.coord.ListObjects())

	sets, ok := tc.coord.ReplicaSets("img1")
	require.True(t, ok)
	require.Len(t, sets, 3)
	for i, set := range sets {
		assert.Len(t, set, 2, "part %d", i)
		assert.NotEqual(t, set[0], set[1], "part %d replicas must be distinct", i)
		for _, id := range set {
			part, ok := tc.nodes[id].part("img1", i)
			require.True(t, ok)
			assert.Equal(t, data[i*100:(i+1)*100], part)
		}
	}

	assert.Equal(t, data, tc.download(t, "img1"))
}

func TestStoreUnevenParts(t *testing.T) {
	tc := newTestCluster(t, 1, "a", "b")
	data := testPayload(10)

	require.NoError(t, tc.coord.StoreObject(context.Background(), "odd", data, 3))
	assert.Equal(t, data, tc.download(t, "odd"))

	objects := tc.coord.Objects()
	require.Len(t, objects, 1)
	assert.Equal(t, int64(10), objects[0].Size)
	assert.Equal(t, 3, objects[0].Parts)
	assert.Equal(t, []int{1, 1, 1}, objects[0].Replicas)
}

func TestStoreEmptyObject(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b")

	require.NoError(t, tc.coord.StoreObject(context.Background(), "empty", []byte{}, 1))
	assert.Empty(t, tc.download(t, "empty"))
}

func TestStoreWithoutMembers(t *testing.T) {
	tc := newTestCluster(t, 2)

	err := tc.coord.StoreObject(context.Background(), "img", testPayload(10), 2)
	assert.ErrorIs(t, err, ErrCapacityExhausted)
	assert.Empty(t, tc.coord.ListObjects())
}

func TestStoreInvalidArguments(t *testing.T) {
	tc := newTestCluster(t, 2, "a")
	ctx := context.Background()

	assert.ErrorIs(t, tc.coord.StoreObject(ctx, "img", testPayload(10), 0), ErrInvalidArgument)
	assert.ErrorIs(t, tc.coord.StoreObject(ctx, "img", testPayload(10), -1), ErrInvalidArgument)
	assert.ErrorIs(t, tc.coord.StoreObject(ctx, "", testPayload(10), 1), ErrInvalidArgument)
	assert.Empty(t, tc.coord.ListObjects())
}

func TestReplicationCappedByMembership(t *testing.T) {
	tc := newTestCluster(t, 3, "a", "b")

	require.NoError(t, tc.coord.StoreObject(context.Background(), "img", testPayload(40), 4))

	sets, _ := tc.coord.ReplicaSets("img")
	for i, set := range sets {
		assert.ElementsMatch(t, []types.NodeID{"a", "b"}, set, "part %d", i)
	}
}

func TestPlacementSpreadsParts(t *testing.T) {
	tc := newTestCluster(t, 1, "a", "b", "c")

	require.NoError(t, tc.coord.StoreObject(context.Background(), "img", testPayload(30), 3))

	// With R=1 and one shuffle per call, three parts land on three nodes.
	for id, node := range tc.nodes {
		assert.Equal(t, 1, node.partCount(), "node %s", id)
	}
}

func TestStoreSkipsUnreachableNode(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b", "c")
	tc.nodes["b"].setDown(true)

	data := testPayload(90)
	require.NoError(t, tc.coord.StoreObject(context.Background(), "img", data, 3))

	sets, _ := tc.coord.ReplicaSets("img")
	for i, set := range sets {
		assert.NotContains(t, set, types.NodeID("b"), "part %d", i)
		assert.NotEmpty(t, set)
	}
	assert.Contains(t, tc.monitor.reported(), types.NodeID("b"))

	// Placement failures are reported, never acted on.
	assert.Len(t, tc.coord.Members(), 3)

	tc.nodes["b"].setDown(false)
	assert.Equal(t, data, tc.download(t, "img"))
}

func TestStoreAbortsWhenPartUnplaced(t *testing.T) {
	tc := newTestCluster(t, 1, "a")
	tc.nodes["a"].rejectUploads = true

	sink := newFakeSink("watcher")
	require.NoError(t, tc.coord.Subscribe(types.EventObjectAdded, sink))

	err := tc.coord.StoreObject(context.Background(), "img", testPayload(20), 2)
	assert.ErrorIs(t, err, ErrPartialFailure)
	assert.Empty(t, tc.coord.ListObjects())
	assert.Empty(t, sink.received())
	assert.Equal(t, 1.0, testutil.ToFloat64(tc.coord.Metrics().StoreOperations.WithLabelValues(metrics.ResultPartial)))
}

func TestStoreOverwrite(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b", "c")
	ctx := context.Background()

	require.NoError(t, tc.coord.StoreObject(ctx, "img", testPayload(50), 5))
	replacement := []byte("second version")
	require.NoError(t, tc.coord.StoreObject(ctx, "img", replacement, 2))

	assert.Equal(t, []string{"img"}, tc.coord.ListObjects())
	assert.Equal(t, replacement, tc.download(t, "img"))

	sets, _ := tc.coord.ReplicaSets("img")
	assert.Len(t, sets, 2)
}

func TestGetPartLocationsUnknownObject(t *testing.T) {
	tc := newTestCluster(t, 2, "a")

	_, err := tc.coord.GetPartLocations(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupSkipsDeadReplica(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b")
	ctx := context.Background()
	data := testPayload(60)

	require.NoError(t, tc.coord.StoreObject(ctx, "img", data, 3))
	tc.nodes["a"].setDown(true)

	locations, err := tc.coord.GetPartLocations(ctx, "img")
	require.NoError(t, err)
	for _, loc := range locations {
		assert.Equal(t, types.NodeID("b"), loc.NodeID)
		assert.Equal(t, "b:9000", loc.Address)
	}
	assert.Equal(t, data, tc.download(t, "img"))

	// Lookup reports but does not edit the directory or membership.
	assert.Contains(t, tc.monitor.reported(), types.NodeID("a"))
	sets, _ := tc.coord.ReplicaSets("img")
	for _, set := range sets {
		assert.Contains(t, set, types.NodeID("a"))
	}
	assert.Len(t, tc.coord.Members(), 2)
}

func TestLookupReportsDepartedReplica(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b")
	ctx := context.Background()
	data := testPayload(40)

	require.NoError(t, tc.coord.StoreObject(ctx, "img", data, 2))
	require.True(t, tc.coord.UnregisterNode("a"))

	locations, err := tc.coord.GetPartLocations(ctx, "img")
	require.NoError(t, err)
	for _, loc := range locations {
		assert.Equal(t, types.NodeID("b"), loc.NodeID)
	}
	assert.Contains(t, tc.monitor.reported(), types.NodeID("a"))
}

func TestHungNodeBoundedByRPCTimeout(t *testing.T) {
	cfg := &config.CoordinatorConfig{
		ReplicationFactor: 2,
		RPCTimeout:        config.Duration(100 * time.Millisecond),
	}
	tc := newTestClusterWithConfig(t, cfg, "a", "b", "c")
	ctx := context.Background()
	data := testPayload(90)

	tc.nodes["c"].setHang(true)

	start := time.Now()
	require.NoError(t, tc.coord.StoreObject(ctx, "img", data, 3))
	assert.Less(t, time.Since(start), 2*time.Second)

	sets, _ := tc.coord.ReplicaSets("img")
	for i, set := range sets {
		assert.NotContains(t, set, types.NodeID("c"), "part %d", i)
		assert.NotEmpty(t, set, "part %d", i)
	}
	assert.Contains(t, tc.monitor.reported(), types.NodeID("c"))

	// A holder that hangs after the store costs a lookup one timeout per probe.
	tc.nodes["c"].setHang(false)
	require.NoError(t, tc.coord.StoreObject(ctx, "img2", data, 3))
	tc.nodes["c"].setHang(true)

	start = time.Now()
	locations, err := tc.coord.GetPartLocations(ctx, "img2")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	for _, loc := range locations {
		assert.NotEqual(t, types.NodeID("c"), loc.NodeID)
	}

	start = time.Now()
	assert.Equal(t, []types.NodeID{"c"}, tc.coord.SweepOnce(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, data, tc.download(t, "img2"))
}

func TestLookupAllReplicasDown(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b")
	ctx := context.Background()

	require.NoError(t, tc.coord.StoreObject(ctx, "img", testPayload(10), 1))
	tc.nodes["a"].setDown(true)
	tc.nodes["b"].setDown(true)

	_, err := tc.coord.GetPartLocations(ctx, "img")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"img"}, tc.coord.ListObjects())
}

func TestDeleteObject(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b", "c")
	ctx := context.Background()

	require.NoError(t, tc.coord.StoreObject(ctx, "img", testPayload(30), 3))

	result, err := tc.coord.DeleteObject(ctx, "img")
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Parts: 3, Removed: 6}, result)
	assert.Empty(t, tc.coord.ListObjects())
	for id, node := range tc.nodes {
		assert.Zero(t, node.partCount(), "node %s still holds parts", id)
	}

	_, err = tc.coord.DeleteObject(ctx, "img")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tc.coord.GetPartLocations(ctx, "img")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteWithUnreachableReplica(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b")
	ctx := context.Background()

	require.NoError(t, tc.coord.StoreObject(ctx, "img", testPayload(20), 2))
	tc.nodes["a"].setDown(true)

	result, err := tc.coord.DeleteObject(ctx, "img")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)
	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, tc.coord.ListObjects())
	assert.Equal(t, 1.0, testutil.ToFloat64(tc.coord.Metrics().DeleteOperations.WithLabelValues(metrics.ResultPartial)))
}

func TestRegisterNodeReplacesHandle(t *testing.T) {
	tc := newTestCluster(t, 2, "a")

	moved := newFakeNode("a:9100")
	require.NoError(t, tc.coord.RegisterNode("a", moved))

	members := tc.coord.Members()
	require.Len(t, members, 1)
	assert.Equal(t, "a:9100", members[0].Address)

	assert.ErrorIs(t, tc.coord.RegisterNode("", moved), ErrInvalidArgument)
	assert.ErrorIs(t, tc.coord.RegisterNode("x", nil), ErrInvalidArgument)
}

func TestUnregisterDoesNotRecover(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b", "c")
	ctx := context.Background()

	require.NoError(t, tc.coord.StoreObject(ctx, "img", testPayload(30), 3))
	before, _ := tc.coord.ReplicaSets("img")

	assert.True(t, tc.coord.UnregisterNode("a"))
	assert.False(t, tc.coord.UnregisterNode("a"))
	assert.Len(t, tc.coord.Members(), 2)

	after, _ := tc.coord.ReplicaSets("img")
	assert.Equal(t, before, after)

	// Lookup steps over the departed holder.
	locations, err := tc.coord.GetPartLocations(ctx, "img")
	require.NoError(t, err)
	for _, loc := range locations {
		assert.NotEqual(t, types.NodeID("a"), loc.NodeID)
	}
}

func TestSweepRecoversLostReplicas(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b", "c")
	ctx := context.Background()
	data := testPayload(300)

	require.NoError(t, tc.coord.StoreObject(ctx, "img", data, 3))
	tc.nodes["a"].setDown(true)

	removed := tc.coord.SweepOnce(ctx)
	assert.Equal(t, []types.NodeID{"a"}, removed)
	assert.Len(t, tc.coord.Members(), 2)
	assert.Contains(t, tc.monitor.reported(), types.NodeID("a"))

	sets, _ := tc.coord.ReplicaSets("img")
	for i, set := range sets {
		assert.ElementsMatch(t, []types.NodeID{"b", "c"}, set, "part %d", i)
		for _, id := range set {
			part, ok := tc.nodes[id].part("img", i)
			require.True(t, ok, "node %s lacks part %d", id, i)
			assert.Equal(t, data[i*100:(i+1)*100], part)
		}
	}
	assert.Equal(t, data, tc.download(t, "img"))

	// Nothing left to do on the next pass.
	assert.Empty(t, tc.coord.SweepOnce(ctx))
}

func TestRecoverWithoutCandidates(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b")
	ctx := context.Background()

	require.NoError(t, tc.coord.StoreObject(ctx, "img", testPayload(20), 2))
	tc.nodes["a"].setDown(true)

	require.Equal(t, []types.NodeID{"a"}, tc.coord.SweepOnce(ctx))

	sets, _ := tc.coord.ReplicaSets("img")
	for _, set := range sets {
		assert.Equal(t, []types.NodeID{"b"}, set)
	}
	assert.Zero(t, testutil.ToFloat64(tc.coord.Metrics().UnrecoverableParts))
}

func TestRecoverReport(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b", "c")
	ctx := context.Background()

	require.NoError(t, tc.coord.StoreObject(ctx, "img", testPayload(40), 4))
	tc.nodes["a"].setDown(true)
	require.True(t, tc.coord.UnregisterNode("a"))

	report := tc.coord.Recover(ctx, "a")
	assert.Equal(t, types.NodeID("a"), report.NodeID)
	assert.Equal(t, report.Affected, report.Restored)
	assert.Zero(t, report.UnderReplicated)
	assert.Zero(t, report.Unrecoverable)
	assert.Equal(t, float64(report.Restored), testutil.ToFloat64(tc.coord.Metrics().ReplicasRecovered))

	// R=2 over three nodes puts every part on two of them, so "a" held
	// at least one.
	assert.Positive(t, report.Affected)
}

func TestSweepIrrecoverableLoss(t *testing.T) {
	tc := newTestCluster(t, 1, "a")
	ctx := context.Background()

	require.NoError(t, tc.coord.StoreObject(ctx, "img", testPayload(20), 2))
	tc.nodes["a"].setDown(true)
	tc.addNode(t, "b")

	require.Equal(t, []types.NodeID{"a"}, tc.coord.SweepOnce(ctx))

	sets, ok := tc.coord.ReplicaSets("img")
	require.True(t, ok, "object stays listed after losing parts")
	for _, set := range sets {
		assert.Empty(t, set)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(tc.coord.Metrics().UnrecoverableParts))

	_, err := tc.coord.GetPartLocations(ctx, "img")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, tc.nodes["b"].partCount())
}

func TestSweepFailureThreshold(t *testing.T) {
	cfg := &config.CoordinatorConfig{ReplicationFactor: 2, FailureThreshold: 3}
	tc := newTestClusterWithConfig(t, cfg, "a", "b")
	ctx := context.Background()

	tc.nodes["a"].setDown(true)
	assert.Empty(t, tc.coord.SweepOnce(ctx))
	assert.Empty(t, tc.coord.SweepOnce(ctx))

	members := tc.coord.Members()
	require.Len(t, members, 2)
	assert.Equal(t, 2, members[0].Misses)

	// A successful probe clears the miss count.
	tc.nodes["a"].setDown(false)
	assert.Empty(t, tc.coord.SweepOnce(ctx))
	assert.Zero(t, tc.coord.Members()[0].Misses)

	tc.nodes["a"].setDown(true)
	assert.Empty(t, tc.coord.SweepOnce(ctx))
	assert.Empty(t, tc.coord.SweepOnce(ctx))
	assert.Equal(t, []types.NodeID{"a"}, tc.coord.SweepOnce(ctx))
	assert.Equal(t, 1.0, testutil.ToFloat64(tc.coord.Metrics().NodeFailures))
}

func TestSweepIgnoresCancelledContext(t *testing.T) {
	tc := newTestCluster(t, 2, "a")
	tc.nodes["a"].setDown(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, tc.coord.SweepOnce(ctx))
	assert.Len(t, tc.coord.Members(), 1)
}

func TestSweepLoopRemovesDeadNode(t *testing.T) {
	cfg := &config.CoordinatorConfig{
		ReplicationFactor: 2,
		SweepInterval:     config.Duration(20 * time.Millisecond),
	}
	tc := newTestClusterWithConfig(t, cfg, "a", "b", "c")

	require.NoError(t, tc.coord.StoreObject(context.Background(), "img", testPayload(30), 3))
	tc.nodes["c"].setDown(true)
	tc.coord.StartSweeper()

	assert.Eventually(t, func() bool {
		return len(tc.coord.Members()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		sets, _ := tc.coord.ReplicaSets("img")
		for _, set := range sets {
			if len(set) != 2 || containsNode(set, "c") {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifications(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b")
	ctx := context.Background()

	added := newFakeSink("added")
	both := newFakeSink("both")
	require.NoError(t, tc.coord.Subscribe(types.EventObjectAdded, added))
	require.NoError(t, tc.coord.Subscribe(types.EventObjectAdded, both))
	require.NoError(t, tc.coord.Subscribe(types.EventObjectDeleted, both))

	// Subscribing again keeps one subscription.
	require.NoError(t, tc.coord.Subscribe(types.EventObjectAdded, added))

	require.NoError(t, tc.coord.StoreObject(ctx, "img", testPayload(10), 1))
	_, err := tc.coord.DeleteObject(ctx, "img")
	require.NoError(t, err)

	assert.Equal(t, []types.Event{{Type: types.EventObjectAdded, Object: "img"}}, added.received())
	assert.Equal(t, []types.Event{
		{Type: types.EventObjectAdded, Object: "img"},
		{Type: types.EventObjectDeleted, Object: "img"},
	}, both.received())
}

func TestUnsubscribe(t *testing.T) {
	tc := newTestCluster(t, 2, "a")
	ctx := context.Background()

	sink := newFakeSink("watcher")
	require.NoError(t, tc.coord.Subscribe(types.EventObjectAdded, sink))
	require.NoError(t, tc.coord.Unsubscribe(types.EventObjectAdded, "watcher"))
	require.NoError(t, tc.coord.Unsubscribe(types.EventObjectAdded, "watcher"))
	require.NoError(t, tc.coord.Unsubscribe(types.EventObjectDeleted, "never-subscribed"))

	require.NoError(t, tc.coord.StoreObject(ctx, "img", testPayload(10), 1))
	assert.Empty(t, sink.received())
	assert.Empty(t, tc.coord.Subscribers()[types.EventObjectAdded])
}

func TestUnknownEventType(t *testing.T) {
	tc := newTestCluster(t, 2)
	sink := newFakeSink("watcher")

	assert.ErrorIs(t, tc.coord.Subscribe("OBJECT_RENAMED", sink), ErrUnknownEvent)
	assert.ErrorIs(t, tc.coord.Unsubscribe("OBJECT_RENAMED", "watcher"), ErrUnknownEvent)
	assert.Equal(t, []types.EventType{types.EventObjectAdded, types.EventObjectDeleted}, tc.coord.ListEventTypes())
}

func TestFailingSubscriberIsKept(t *testing.T) {
	tc := newTestCluster(t, 2, "a")
	ctx := context.Background()

	broken := newFakeSink("broken")
	broken.fail = true
	healthy := newFakeSink("healthy")
	require.NoError(t, tc.coord.Subscribe(types.EventObjectAdded, broken))
	require.NoError(t, tc.coord.Subscribe(types.EventObjectAdded, healthy))

	require.NoError(t, tc.coord.StoreObject(ctx, "one", testPayload(10), 1))
	assert.Len(t, healthy.received(), 1)
	assert.ElementsMatch(t, []string{"broken", "healthy"}, tc.coord.Subscribers()[types.EventObjectAdded])

	broken.mu.Lock()
	broken.fail = false
	broken.mu.Unlock()

	require.NoError(t, tc.coord.StoreObject(ctx, "two", testPayload(10), 1))
	assert.Equal(t, []types.Event{{Type: types.EventObjectAdded, Object: "two"}}, broken.received())

	notifications := tc.coord.Metrics().Notifications
	assert.Equal(t, 1.0, testutil.ToFloat64(notifications.WithLabelValues(string(types.EventObjectAdded), metrics.ResultFailure)))
	assert.Equal(t, 3.0, testutil.ToFloat64(notifications.WithLabelValues(string(types.EventObjectAdded), metrics.ResultSuccess)))
}

func TestConcurrentOperations(t *testing.T) {
	tc := newTestCluster(t, 2, "a", "b", "c", "d")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("img-%02d", i)
			assert.NoError(t, tc.coord.StoreObject(ctx, name, testPayload(100+i), 5))
			_, err := tc.coord.GetPartLocations(ctx, name)
			assert.NoError(t, err)
			tc.coord.ListObjects()
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		tc.coord.SweepOnce(ctx)
	}()
	wg.Wait()

	assert.Len(t, tc.coord.ListObjects(), 20)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("img-%02d", i)
		assert.Equal(t, testPayload(100+i), tc.download(t, name))
	}
	assert.Equal(t, 20.0, testutil.ToFloat64(tc.coord.Metrics().Objects))
}

func TestCoordinatorRPC(t *testing.T) {
	dialer := newFakeDialer()
	for _, id := range []string{"a", "b"} {
		node := newFakeNode(id + ":9000")
		dialer.nodes[node.address] = node
	}

	coord := NewWithDialer(&config.CoordinatorConfig{ReplicationFactor: 2}, zaptest.NewLogger(t), dialer)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go coord.Serve(listener)
	t.Cleanup(coord.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := shared.Dial(ctx, listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	client := protocol.NewCoordinatorClient(conn)

	for _, id := range []string{"a", "b"} {
		resp, err := client.RegisterNode(ctx, &protocol.RegisterNodeRequest{NodeId: id, Address: id + ":9000"})
		require.NoError(t, err)
		require.True(t, resp.Success, resp.Message)
	}

	resp, err := client.RegisterNode(ctx, &protocol.RegisterNodeRequest{NodeId: "z", Address: "nowhere:1"})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	storeResp, err := client.StoreObject(ctx, &protocol.StoreObjectRequest{Name: "img", Data: testPayload(50), NumParts: 5})
	require.NoError(t, err)
	require.True(t, storeResp.Success, storeResp.Message)

	bad, err := client.StoreObject(ctx, &protocol.StoreObjectRequest{Name: "img", Data: testPayload(5), NumParts: 0})
	require.NoError(t, err)
	assert.False(t, bad.Success)
	assert.NotEmpty(t, bad.Message)

	locResp, err := client.GetPartLocations(ctx, &protocol.GetPartLocationsRequest{Name: "img"})
	require.NoError(t, err)
	require.True(t, locResp.Found)
	require.Len(t, locResp.Locations, 5)
	for i, loc := range locResp.Locations {
		assert.Equal(t, int32(i), loc.Index)
		assert.Contains(t, []string{"a:9000", "b:9000"}, loc.Address)
	}

	missing, err := client.GetPartLocations(ctx, &protocol.GetPartLocationsRequest{Name: "nope"})
	require.NoError(t, err)
	assert.False(t, missing.Found)

	subResp, err := client.Subscribe(ctx, &protocol.SubscribeRequest{EventType: "OBJECT_DELETED", Address: "sub:1"})
	require.NoError(t, err)
	assert.True(t, subResp.Success)

	badSub, err := client.Subscribe(ctx, &protocol.SubscribeRequest{EventType: "NOPE", Address: "sub:1"})
	require.NoError(t, err)
	assert.False(t, badSub.Success)

	status, err := client.GetStatus(ctx, &protocol.GetStatusRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), status.ReplicationFactor)
	assert.Len(t, status.Members, 2)
	require.Len(t, status.Objects, 1)
	assert.Equal(t, []int32{2, 2, 2, 2, 2}, status.Objects[0].Replicas)
	assert.Equal(t, int32(1), status.Subscribers["OBJECT_DELETED"])

	delResp, err := client.DeleteObject(ctx, &protocol.DeleteObjectRequest{Name: "img"})
	require.NoError(t, err)
	assert.True(t, delResp.Success)
	assert.Equal(t, int32(10), delResp.Removed)
	assert.Equal(t, []types.Event{{Type: types.EventObjectDeleted, Object: "img"}}, dialer.sink("sub:1").received())

	list, err := client.ListObjects(ctx, &protocol.ListObjectsRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Names)

	events, err := client.ListEventTypes(ctx, &protocol.ListEventTypesRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"OBJECT_ADDED", "OBJECT_DELETED"}, events.EventTypes)

	unreg, err := client.UnregisterNode(ctx, &protocol.UnregisterNodeRequest{NodeId: "a"})
	require.NoError(t, err)
	assert.True(t, unreg.Success)
	assert.Len(t, coord.Members(), 1)
}
