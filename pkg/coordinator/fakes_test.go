package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/LucaPlaster/MyGeoEyes/pkg/config"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errConnRefused = errors.New("connection refused")

// fakeNode is an in-memory storage node that can be switched off or made to
// hang until the caller gives up.
type fakeNode struct {
	mu            sync.Mutex
	address       string
	parts         map[types.PartKey][]byte
	down          bool
	hang          bool
	rejectUploads bool
	uploads       int
}

func newFakeNode(address string) *fakeNode {
	return &fakeNode{address: address, parts: make(map[types.PartKey][]byte)}
}

func (n *fakeNode) Address() string {
	return n.address
}

// stall blocks a call on a hung node until its context ends.
func (n *fakeNode) stall(ctx context.Context) error {
	n.mu.Lock()
	hang := n.hang
	n.mu.Unlock()

	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (n *fakeNode) UploadPart(ctx context.Context, name string, index int, data []byte) (bool, error) {
	if err := n.stall(ctx); err != nil {
		return false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down {
		return false, errConnRefused
	}
	if n.rejectUploads {
		return false, nil
	}
	n.uploads++
	n.parts[types.PartKey{Object: name, Index: index}] = append([]byte(nil), data...)
	return true, nil
}

func (n *fakeNode) DownloadPart(ctx context.Context, name string, index int) ([]byte, bool, error) {
	if err := n.stall(ctx); err != nil {
		return nil, false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down {
		return nil, false, errConnRefused
	}
	data, ok := n.parts[types.PartKey{Object: name, Index: index}]
	return data, ok, nil
}

func (n *fakeNode) DeletePart(ctx context.Context, name string, index int) (bool, error) {
	if err := n.stall(ctx); err != nil {
		return false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down {
		return false, errConnRefused
	}
	key := types.PartKey{Object: name, Index: index}
	_, ok := n.parts[key]
	delete(n.parts, key)
	return ok, nil
}

func (n *fakeNode) Probe(ctx context.Context) (bool, error) {
	if err := n.stall(ctx); err != nil {
		return false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down {
		return false, errConnRefused
	}
	return true, nil
}

func (n *fakeNode) setDown(down bool) {
	n.mu.Lock()
	n.down = down
	n.mu.Unlock()
}

func (n *fakeNode) setHang(hang bool) {
	n.mu.Lock()
	n.hang = hang
	n.mu.Unlock()
}

func (n *fakeNode) part(name string, index int) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	data, ok := n.parts[types.PartKey{Object: name, Index: index}]
	return data, ok
}

func (n *fakeNode) partCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.parts)
}

// fakeSink records delivered events.
type fakeSink struct {
	mu     sync.Mutex
	id     string
	events []types.Event
	fail   bool
}

func newFakeSink(id string) *fakeSink {
	return &fakeSink{id: id}
}

func (s *fakeSink) ID() string {
	return s.id
}

func (s *fakeSink) Notify(ctx context.Context, event types.EventType, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errConnRefused
	}
	s.events = append(s.events, types.Event{Type: event, Object: object})
	return nil
}

func (s *fakeSink) received() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Event(nil), s.events...)
}

// fakeMonitor records failure reports.
type fakeMonitor struct {
	mu           sync.Mutex
	coordinators []string
	reports      []types.NodeID
}

func (m *fakeMonitor) RegisterCoordinator(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coordinators = append(m.coordinators, address)
	return nil
}

func (m *fakeMonitor) ReportNodeFailure(ctx context.Context, nodeID types.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, nodeID)
	return nil
}

func (m *fakeMonitor) reported() []types.NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.NodeID(nil), m.reports...)
}

// fakeDialer resolves addresses to in-memory fakes.
type fakeDialer struct {
	mu      sync.Mutex
	nodes   map[string]*fakeNode
	sinks   map[string]*fakeSink
	monitor *fakeMonitor
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		nodes:   make(map[string]*fakeNode),
		sinks:   make(map[string]*fakeSink),
		monitor: &fakeMonitor{},
	}
}

func (d *fakeDialer) DialNode(address string) (NodeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	node, ok := d.nodes[address]
	if !ok {
		return nil, fmt.Errorf("unknown node address %s", address)
	}
	return node, nil
}

func (d *fakeDialer) DialSink(address string) (NotificationSink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sink, ok := d.sinks[address]
	if !ok {
		sink = newFakeSink(address)
		d.sinks[address] = sink
	}
	return sink, nil
}

func (d *fakeDialer) sink(address string) *fakeSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sinks[address]
}

func (d *fakeDialer) DialMonitor(address string) (FailureSink, error) {
	return d.monitor, nil
}

type testCluster struct {
	coord   *Coordinator
	dialer  *fakeDialer
	monitor *fakeMonitor
	nodes   map[types.NodeID]*fakeNode
}

func newTestCluster(t *testing.T, replication int, nodeIDs ...string) *testCluster {
	return newTestClusterWithConfig(t, &config.CoordinatorConfig{ReplicationFactor: replication}, nodeIDs...)
}

func newTestClusterWithConfig(t *testing.T, cfg *config.CoordinatorConfig, nodeIDs ...string) *testCluster {
	t.Helper()

	dialer := newFakeDialer()
	coord := NewWithDialer(cfg, zaptest.NewLogger(t), dialer)
	coord.SetFailureSink(dialer.monitor)
	t.Cleanup(coord.Stop)

	tc := &testCluster{
		coord:   coord,
		dialer:  dialer,
		monitor: dialer.monitor,
		nodes:   make(map[types.NodeID]*fakeNode),
	}
	for _, id := range nodeIDs {
		tc.addNode(t, id)
	}
	return tc
}

func (tc *testCluster) addNode(t *testing.T, id string) *fakeNode {
	t.Helper()

	node := newFakeNode(id + ":9000")
	tc.dialer.mu.Lock()
	tc.dialer.nodes[node.address] = node
	tc.dialer.mu.Unlock()

	require.NoError(t, tc.coord.RegisterNode(types.NodeID(id), node))
	tc.nodes[types.NodeID(id)] = node
	return node
}

// download fetches every part from the located nodes and joins them.
func (tc *testCluster) download(t *testing.T, name string) []byte {
	t.Helper()

	locations, err := tc.coord.GetPartLocations(context.Background(), name)
	require.NoError(t, err)

	var data []byte
	for i, loc := range locations {
		require.Equal(t, i, loc.Index)
		node := tc.nodes[loc.NodeID]
		require.NotNil(t, node, "location names unknown node %s", loc.NodeID)
		part, ok := node.part(name, i)
		require.True(t, ok, "node %s lacks part %d", loc.NodeID, i)
		data = append(data, part...)
	}
	return data
}

func testPayload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
