package node

import (
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/connectivity"
)

// registrationLoop re-registers on every tick. Registration is idempotent on
// the coordinator, so this restores membership after the coordinator restarts
// or drops the node after missed probes.
func (n *Node) registrationLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.config.RegistrationInterval.Std())
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if n.coordinatorConnectionLost() {
				n.logger.Info("Coordinator connection lost, reconnecting")
				if err := n.connectToCoordinator(); err != nil {
					n.logger.Error("Failed to reconnect to coordinator", zap.Error(err))
					continue
				}
			}

			if err := n.registerWithCoordinator(); err != nil {
				failures++
				n.logger.Warn("Re-registration failed",
					zap.Error(err),
					zap.Int("consecutive_failures", failures))
				continue
			}
			if failures > 0 {
				n.logger.Info("Re-registered with coordinator", zap.Int("after_failures", failures))
			}
			failures = 0
		}
	}
}

func (n *Node) coordinatorConnectionLost() bool {
	n.connMutex.Lock()
	defer n.connMutex.Unlock()

	if n.coordinatorConn == nil {
		return true
	}
	return n.coordinatorConn.GetState() == connectivity.Shutdown
}
