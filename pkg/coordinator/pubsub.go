package coordinator

import (
	"context"
	"fmt"

	"github.com/LucaPlaster/MyGeoEyes/pkg/metrics"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"go.uber.org/zap"
)

// Subscribe adds sink to the subscribers of event. Subscribing the same sink
// id twice keeps a single subscription.
func (c *Coordinator) Subscribe(event types.EventType, sink NotificationSink) error {
	if !event.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if sink == nil || sink.ID() == "" {
		return fmt.Errorf("%w: subscriber is required", ErrInvalidArgument)
	}

	c.subMutex.Lock()
	sinks := c.subscriptions[event]
	for _, existing := range sinks {
		if existing.ID() == sink.ID() {
			c.subMutex.Unlock()
			c.logger.Debug("Already subscribed",
				zap.String("event", string(event)),
				zap.String("subscriber", sink.ID()))
			return nil
		}
	}
	c.subscriptions[event] = append(sinks, sink)
	count := len(c.subscriptions[event])
	c.subMutex.Unlock()

	c.metrics.Subscribers.WithLabelValues(string(event)).Set(float64(count))
	c.logger.Info("Subscriber added",
		zap.String("event", string(event)),
		zap.String("subscriber", sink.ID()))
	return nil
}

// Unsubscribe removes the subscription of sinkID to event. Removing an absent
// subscription is a no-op.
func (c *Coordinator) Unsubscribe(event types.EventType, sinkID string) error {
	if !event.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	c.subMutex.Lock()
	sinks := c.subscriptions[event]
	kept := make([]NotificationSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink.ID() != sinkID {
			kept = append(kept, sink)
		}
	}
	c.subscriptions[event] = kept
	removed := len(kept) != len(sinks)
	c.subMutex.Unlock()

	c.metrics.Subscribers.WithLabelValues(string(event)).Set(float64(len(kept)))
	if removed {
		c.logger.Info("Subscriber removed",
			zap.String("event", string(event)),
			zap.String("subscriber", sinkID))
	}
	return nil
}

func (c *Coordinator) ListEventTypes() []types.EventType {
	return types.EventTypes()
}

// Subscribers returns the subscriber ids of each event type.
func (c *Coordinator) Subscribers() map[types.EventType][]string {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()

	result := make(map[types.EventType][]string, len(c.subscriptions))
	for event, sinks := range c.subscriptions {
		ids := make([]string, len(sinks))
		for i, sink := range sinks {
			ids[i] = sink.ID()
		}
		result[event] = ids
	}
	return result
}

// notify delivers event to each current subscriber in turn. A failed
// delivery is logged and the subscriber is kept.
func (c *Coordinator) notify(ctx context.Context, event types.EventType, object string) {
	c.subMutex.RLock()
	sinks := append([]NotificationSink(nil), c.subscriptions[event]...)
	c.subMutex.RUnlock()

	for _, sink := range sinks {
		callCtx, cancel := c.callContext(ctx)
		err := sink.Notify(callCtx, event, object)
		cancel()

		if err != nil {
			c.metrics.Notifications.WithLabelValues(string(event), metrics.ResultFailure).Inc()
			c.logger.Warn("Notification failed",
				zap.String("event", string(event)),
				zap.String("object", object),
				zap.String("subscriber", sink.ID()),
				zap.Error(err))
			continue
		}
		c.metrics.Notifications.WithLabelValues(string(event), metrics.ResultSuccess).Inc()
	}
}
