package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"go.uber.org/zap"
)

// RecoveryReport summarizes re-replication after one node failure.
type RecoveryReport struct {
	NodeID          types.NodeID
	Affected        int
	Restored        int
	Unrecoverable   int
	UnderReplicated int
}

type repairTask struct {
	name  string
	index int
	entry *objectEntry
}

func (c *Coordinator) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.SweepInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.SweepOnce(c.ctx)
		}
	}
}

// SweepOnce probes every member concurrently. A member that misses
// FailureThreshold consecutive probes is removed, reported to the failure
// sink and its parts are re-replicated. Returns the removed ids.
func (c *Coordinator) SweepOnce(ctx context.Context) []types.NodeID {
	c.sweepMutex.Lock()
	defer c.sweepMutex.Unlock()

	start := time.Now()
	defer func() {
		c.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	members := c.memberList()
	alive := make([]bool, len(members))

	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func(i int, m *Member) {
			defer wg.Done()
			alive[i] = c.probe(ctx, m)
		}(i, m)
	}
	wg.Wait()

	// Shutdown cancels in-flight probes; those are not node failures.
	if ctx.Err() != nil {
		return nil
	}

	var failed []*Member
	now := time.Now()

	c.memberMutex.Lock()
	for i, m := range members {
		if c.members[m.ID] != m {
			continue
		}
		m.lastProbe = now
		if alive[i] {
			m.misses = 0
			continue
		}
		m.misses++
		if m.misses >= c.config.FailureThreshold {
			failed = append(failed, m)
		} else {
			c.logger.Debug("Node missed probe",
				zap.String("node_id", string(m.ID)),
				zap.Int("misses", m.misses),
				zap.Int("threshold", c.config.FailureThreshold))
		}
	}
	c.memberMutex.Unlock()

	var removed []types.NodeID
	for _, m := range failed {
		if !c.removeMember(m) {
			continue
		}

		c.metrics.NodeFailures.Inc()
		c.logger.Warn("Node declared failed",
			zap.String("node_id", string(m.ID)),
			zap.String("address", m.Address))

		c.reportFailure(ctx, m.ID)
		c.Recover(ctx, m.ID)
		removed = append(removed, m.ID)
	}
	return removed
}

// Recover drops a failed node from every replica set and copies each
// under-replicated part from a surviving replica to other members until the
// replication factor is met or candidates run out.
func (c *Coordinator) Recover(ctx context.Context, failed types.NodeID) RecoveryReport {
	report := RecoveryReport{NodeID: failed}

	var tasks []repairTask
	var lost []types.PartKey

	c.objectMutex.Lock()
	for name, entry := range c.objects {
		for i, replicas := range entry.parts {
			if !containsNode(replicas, failed) {
				continue
			}
			remaining := withoutNode(replicas, failed)
			entry.parts[i] = remaining
			report.Affected++

			switch {
			case len(remaining) == 0:
				lost = append(lost, types.PartKey{Object: name, Index: i})
			case len(remaining) < c.config.ReplicationFactor:
				tasks = append(tasks, repairTask{name: name, index: i, entry: entry})
			}
		}
	}
	c.objectMutex.Unlock()

	for _, key := range lost {
		c.metrics.UnrecoverableParts.Inc()
		c.logger.Error("Part lost, no surviving replica",
			zap.String("node_id", string(failed)),
			zap.String("part", key.String()))
	}
	report.Unrecoverable = len(lost)

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].name != tasks[j].name {
			return tasks[i].name < tasks[j].name
		}
		return tasks[i].index < tasks[j].index
	})

	for _, task := range tasks {
		restored, complete := c.repairPart(ctx, task, failed)
		report.Restored += restored
		if !complete {
			report.UnderReplicated++
		}
	}

	if report.Affected > 0 {
		c.logger.Info("Recovery finished",
			zap.String("node_id", string(failed)),
			zap.Int("affected_parts", report.Affected),
			zap.Int("replicas_restored", report.Restored),
			zap.Int("under_replicated", report.UnderReplicated),
			zap.Int("unrecoverable", report.Unrecoverable))
	}
	return report
}

// repairPart restores one part. It reports how many replicas were added and
// whether the part reached the replication factor (or left the directory).
func (c *Coordinator) repairPart(ctx context.Context, t repairTask, failed types.NodeID) (int, bool) {
	replicas, current := c.currentReplicas(t)
	if !current {
		c.logger.Debug("Object changed during recovery, skipping part",
			zap.String("name", t.name),
			zap.Int("part", t.index))
		return 0, true
	}

	need := c.config.ReplicationFactor - len(replicas)
	if need <= 0 {
		return 0, true
	}

	data, ok := c.fetchPart(ctx, t, replicas)
	if !ok {
		c.metrics.RecoveryFailures.Inc()
		c.logger.Warn("No surviving replica could serve part",
			zap.String("name", t.name),
			zap.Int("part", t.index))
		return 0, false
	}

	restored := 0
	for _, candidate := range c.recoveryCandidates(replicas, failed) {
		if restored >= need {
			break
		}

		if !c.uploadPart(ctx, candidate, t.name, t.index, data) {
			c.metrics.RecoveryFailures.Inc()
			continue
		}

		if !c.appendReplica(t, candidate.ID) {
			// An overwrite may already own this part name on the target, so
			// the copy is only removed when the object is gone.
			if !c.hasObject(t.name) {
				c.discardPart(ctx, candidate, t)
			}
			return restored, true
		}

		restored++
		c.metrics.ReplicasRecovered.Inc()
		c.logger.Debug("Replica restored",
			zap.String("name", t.name),
			zap.Int("part", t.index),
			zap.String("target", string(candidate.ID)))
	}

	if restored < need {
		c.logger.Warn("Part remains under-replicated",
			zap.String("name", t.name),
			zap.Int("part", t.index),
			zap.Int("replicas", len(replicas)+restored),
			zap.Int("wanted", c.config.ReplicationFactor))
		return restored, false
	}
	return restored, true
}

// currentReplicas reads the replica set of a task's part if the object still
// maps to the same entry.
func (c *Coordinator) currentReplicas(t repairTask) ([]types.NodeID, bool) {
	c.objectMutex.RLock()
	defer c.objectMutex.RUnlock()

	if c.objects[t.name] != t.entry {
		return nil, false
	}
	return t.entry.parts[t.index], true
}

func (c *Coordinator) appendReplica(t repairTask, id types.NodeID) bool {
	c.objectMutex.Lock()
	defer c.objectMutex.Unlock()

	if c.objects[t.name] != t.entry {
		return false
	}

	current := t.entry.parts[t.index]
	if containsNode(current, id) {
		return true
	}
	updated := make([]types.NodeID, len(current), len(current)+1)
	copy(updated, current)
	t.entry.parts[t.index] = append(updated, id)
	return true
}

func (c *Coordinator) hasObject(name string) bool {
	c.objectMutex.RLock()
	defer c.objectMutex.RUnlock()
	_, exists := c.objects[name]
	return exists
}

func (c *Coordinator) fetchPart(ctx context.Context, t repairTask, replicas []types.NodeID) ([]byte, bool) {
	for _, id := range replicas {
		m := c.member(id)
		if m == nil {
			continue
		}

		callCtx, cancel := c.callContext(ctx)
		data, found, err := m.Handle.DownloadPart(callCtx, t.name, t.index)
		cancel()

		if err != nil {
			c.logger.Warn("Failed to read part from replica",
				zap.String("node_id", string(id)),
				zap.String("name", t.name),
				zap.Int("part", t.index),
				zap.Error(err))
			c.reportFailure(ctx, id)
			continue
		}
		if !found {
			c.logger.Warn("Replica is missing part",
				zap.String("node_id", string(id)),
				zap.String("name", t.name),
				zap.Int("part", t.index))
			continue
		}
		return data, true
	}
	return nil, false
}

// recoveryCandidates returns members holding no replica of the part, in
// random order.
func (c *Coordinator) recoveryCandidates(replicas []types.NodeID, failed types.NodeID) []*Member {
	members := c.memberList()
	candidates := members[:0]
	for _, m := range members {
		if m.ID == failed || containsNode(replicas, m.ID) {
			continue
		}
		candidates = append(candidates, m)
	}
	c.shuffle(candidates)
	return candidates
}

func (c *Coordinator) discardPart(ctx context.Context, m *Member, t repairTask) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := m.Handle.DeletePart(callCtx, t.name, t.index); err != nil {
		c.logger.Warn("Failed to discard stray replica",
			zap.String("node_id", string(m.ID)),
			zap.String("name", t.name),
			zap.Int("part", t.index),
			zap.Error(err))
	}
}
