package coordinator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/metrics"
	"github.com/LucaPlaster/MyGeoEyes/pkg/storage"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"go.uber.org/zap"
)

// DeleteResult counts replica deletions attempted by DeleteObject.
type DeleteResult struct {
	Parts   int
	Removed int
	Failed  int
}

// =============================================================================
// Placement
// =============================================================================

// StoreObject splits data into numParts parts and places each part on up to
// ReplicationFactor distinct members. The object is committed only when every
// part landed on at least one member. Storing an existing name replaces its
// part map; parts of the previous version are left on the nodes.
func (c *Coordinator) StoreObject(ctx context.Context, name string, data []byte, numParts int) error {
	start := time.Now()
	defer func() {
		c.metrics.StoreLatency.Observe(time.Since(start).Seconds())
	}()

	c.logger.Debug("StoreObject request",
		zap.String("name", name),
		zap.Int("size", len(data)),
		zap.Int("parts", numParts))

	if name == "" {
		c.metrics.StoreOperations.WithLabelValues(metrics.ResultFailure).Inc()
		return fmt.Errorf("%w: object name is empty", ErrInvalidArgument)
	}

	parts, err := storage.SplitIntoParts(data, numParts)
	if err != nil {
		c.metrics.StoreOperations.WithLabelValues(metrics.ResultFailure).Inc()
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	members := c.memberList()
	if len(members) == 0 {
		c.metrics.StoreOperations.WithLabelValues(metrics.ResultFailure).Inc()
		return ErrCapacityExhausted
	}

	// One shuffle per call; part i starts at offset i so parts spread across
	// the membership.
	c.shuffle(members)

	replicas := c.config.ReplicationFactor
	if replicas > len(members) {
		replicas = len(members)
	}

	partMap := make([][]types.NodeID, len(parts))
	for i, part := range parts {
		placed := make([]types.NodeID, 0, replicas)
		for r := 0; r < replicas; r++ {
			target := members[(i+r)%len(members)]
			if c.uploadPart(ctx, target, name, i, part) {
				placed = append(placed, target.ID)
			}
		}

		if len(placed) == 0 {
			c.metrics.StoreOperations.WithLabelValues(metrics.ResultPartial).Inc()
			c.logger.Warn("Store aborted, part has no replica",
				zap.String("name", name),
				zap.Int("part", i))
			return fmt.Errorf("%w: part %d of %q could not be placed on any node", ErrPartialFailure, i, name)
		}
		if len(placed) < replicas {
			c.logger.Warn("Part stored below replication factor",
				zap.String("name", name),
				zap.Int("part", i),
				zap.Int("replicas", len(placed)),
				zap.Int("wanted", replicas))
		}
		partMap[i] = placed
	}

	entry := &objectEntry{
		size:     int64(len(data)),
		parts:    partMap,
		storedAt: time.Now(),
	}

	c.objectMutex.Lock()
	_, replaced := c.objects[name]
	c.objects[name] = entry
	count := len(c.objects)
	c.objectMutex.Unlock()

	c.metrics.Objects.Set(float64(count))
	c.metrics.StoreOperations.WithLabelValues(metrics.ResultSuccess).Inc()

	c.logger.Info("Object stored",
		zap.String("name", name),
		zap.Int("size", len(data)),
		zap.Int("parts", len(parts)),
		zap.Int("replication", replicas),
		zap.Bool("replaced", replaced))

	c.notify(ctx, types.EventObjectAdded, name)
	return nil
}

// uploadPart pushes one part to one member. Transport errors are reported to
// the failure sink; the member stays registered.
func (c *Coordinator) uploadPart(ctx context.Context, m *Member, name string, index int, data []byte) bool {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ok, err := m.Handle.UploadPart(callCtx, name, index, data)
	if err != nil {
		c.metrics.PartUploads.WithLabelValues(metrics.ResultFailure).Inc()
		c.logger.Warn("Part upload failed",
			zap.String("node_id", string(m.ID)),
			zap.String("name", name),
			zap.Int("part", index),
			zap.Error(err))
		c.reportFailure(ctx, m.ID)
		return false
	}
	if !ok {
		c.metrics.PartUploads.WithLabelValues(metrics.ResultFailure).Inc()
		c.logger.Warn("Node rejected part",
			zap.String("node_id", string(m.ID)),
			zap.String("name", name),
			zap.Int("part", index))
		return false
	}

	c.metrics.PartUploads.WithLabelValues(metrics.ResultSuccess).Inc()
	return true
}

// =============================================================================
// Lookup
// =============================================================================

// GetPartLocations returns, for each part in index order, one replica that
// answered a probe. Replicas that are no longer members or do not answer are
// reported to the failure sink but stay in the directory; removal is left to
// the sweep.
func (c *Coordinator) GetPartLocations(ctx context.Context, name string) ([]types.PartLocation, error) {
	c.logger.Debug("GetPartLocations request", zap.String("name", name))

	c.objectMutex.RLock()
	entry, exists := c.objects[name]
	var parts [][]types.NodeID
	if exists {
		parts = append([][]types.NodeID(nil), entry.parts...)
	}
	c.objectMutex.RUnlock()

	if !exists {
		c.metrics.LookupOperations.WithLabelValues(metrics.ResultMissing).Inc()
		return nil, fmt.Errorf("%w: object %q", ErrNotFound, name)
	}

	locations := make([]types.PartLocation, len(parts))
	for i, replicas := range parts {
		location, ok := c.locatePart(ctx, name, i, replicas)
		if !ok {
			c.metrics.LookupOperations.WithLabelValues(metrics.ResultMissing).Inc()
			c.logger.Warn("No reachable replica for part",
				zap.String("name", name),
				zap.Int("part", i),
				zap.Int("replicas", len(replicas)))
			return nil, fmt.Errorf("%w: no reachable replica for part %d of %q", ErrNotFound, i, name)
		}
		locations[i] = location
	}

	c.metrics.LookupOperations.WithLabelValues(metrics.ResultSuccess).Inc()
	return locations, nil
}

func (c *Coordinator) locatePart(ctx context.Context, name string, index int, replicas []types.NodeID) (types.PartLocation, bool) {
	for _, id := range replicas {
		m := c.member(id)
		if m == nil {
			c.logger.Debug("Replica holder is not a member",
				zap.String("node_id", string(id)),
				zap.String("name", name),
				zap.Int("part", index))
			c.reportFailure(ctx, id)
			continue
		}

		if c.probe(ctx, m) {
			return types.PartLocation{Index: index, NodeID: m.ID, Address: m.Address}, true
		}
		c.reportFailure(ctx, m.ID)
	}
	return types.PartLocation{}, false
}

func (c *Coordinator) probe(ctx context.Context, m *Member) bool {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	alive, err := m.Handle.Probe(callCtx)
	if err != nil || !alive {
		c.metrics.ProbeFailures.Inc()
		c.logger.Debug("Probe failed",
			zap.String("node_id", string(m.ID)),
			zap.Bool("alive", alive),
			zap.Error(err))
		return false
	}
	return true
}

// ListObjects returns the committed object names in sorted order.
func (c *Coordinator) ListObjects() []string {
	c.objectMutex.RLock()
	names := make([]string, 0, len(c.objects))
	for name := range c.objects {
		names = append(names, name)
	}
	c.objectMutex.RUnlock()

	sort.Strings(names)
	return names
}

// =============================================================================
// Deletion
// =============================================================================

// DeleteObject removes an object from the directory and then asks every
// replica holder to drop its copy. Node-side failures are counted, not
// returned; leftover bytes are orphaned.
func (c *Coordinator) DeleteObject(ctx context.Context, name string) (DeleteResult, error) {
	c.logger.Debug("DeleteObject request", zap.String("name", name))

	c.objectMutex.Lock()
	entry, exists := c.objects[name]
	var parts [][]types.NodeID
	if exists {
		parts = append([][]types.NodeID(nil), entry.parts...)
		delete(c.objects, name)
	}
	count := len(c.objects)
	c.objectMutex.Unlock()

	if !exists {
		c.metrics.DeleteOperations.WithLabelValues(metrics.ResultMissing).Inc()
		return DeleteResult{}, fmt.Errorf("%w: object %q", ErrNotFound, name)
	}
	c.metrics.Objects.Set(float64(count))

	result := DeleteResult{Parts: len(parts)}
	for i, replicas := range parts {
		for _, id := range replicas {
			if c.deleteReplica(ctx, id, name, i) {
				result.Removed++
			} else {
				result.Failed++
			}
		}
	}

	if result.Failed > 0 {
		c.metrics.DeleteOperations.WithLabelValues(metrics.ResultPartial).Inc()
	} else {
		c.metrics.DeleteOperations.WithLabelValues(metrics.ResultSuccess).Inc()
	}

	c.logger.Info("Object deleted",
		zap.String("name", name),
		zap.Int("parts", result.Parts),
		zap.Int("replicas_removed", result.Removed),
		zap.Int("replicas_failed", result.Failed))

	c.notify(ctx, types.EventObjectDeleted, name)
	return result, nil
}

func (c *Coordinator) deleteReplica(ctx context.Context, id types.NodeID, name string, index int) bool {
	m := c.member(id)
	if m == nil {
		c.logger.Debug("Skipping replica on departed node",
			zap.String("node_id", string(id)),
			zap.String("name", name),
			zap.Int("part", index))
		return false
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ok, err := m.Handle.DeletePart(callCtx, name, index)
	if err != nil {
		c.logger.Warn("Part delete failed",
			zap.String("node_id", string(id)),
			zap.String("name", name),
			zap.Int("part", index),
			zap.Error(err))
		c.reportFailure(ctx, id)
		return false
	}
	if !ok {
		c.logger.Debug("Node did not hold part",
			zap.String("node_id", string(id)),
			zap.String("name", name),
			zap.Int("part", index))
	}
	return ok
}
