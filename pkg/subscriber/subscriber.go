// Package subscriber implements a notification sink process. It subscribes to
// coordinator events on start, hands every delivered event to a handler and
// unsubscribes on stop.
package subscriber

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/config"
	"github.com/LucaPlaster/MyGeoEyes/pkg/protocol"
	"github.com/LucaPlaster/MyGeoEyes/pkg/shared"
	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Handler is called once per delivered event, on the gRPC handler goroutine.
type Handler func(types.Event)

type Subscriber struct {
	protocol.UnimplementedSubscriberServer

	config  config.SubscriberConfig
	logger  *zap.Logger
	handler Handler

	address    string
	subscribed []types.EventType

	coordinatorConn   *grpc.ClientConn
	coordinatorClient protocol.CoordinatorClient

	server *grpc.Server
	mu     sync.Mutex
}

func New(cfg *config.SubscriberConfig, logger *zap.Logger, handler Handler) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}

	conf := *cfg
	conf.ApplyDefaults()

	return &Subscriber{
		config:  conf,
		logger:  logger,
		handler: handler,
	}
}

// Address is the endpoint the coordinator delivers to and the identity of
// this subscriber's subscriptions.
func (s *Subscriber) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

func (s *Subscriber) Start() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(listener)
}

// Serve starts accepting notifications on listener, subscribes to the
// configured events and blocks until Stop.
func (s *Subscriber) Serve(listener net.Listener) error {
	server := grpc.NewServer(protocol.ServerOptions(0)...)
	protocol.RegisterSubscriberServer(server, s)

	s.mu.Lock()
	s.server = server
	s.address = shared.AdvertiseAddress(s.config.Address, listener.Addr())
	s.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	s.logger.Info("Subscriber listening",
		zap.String("address", s.Address()),
		zap.String("coordinator", s.config.CoordinatorAddress))

	if err := s.subscribe(); err != nil {
		server.Stop()
		<-serveErr
		return err
	}

	return <-serveErr
}

func (s *Subscriber) subscribe() error {
	ctx, cancel := context.WithTimeout(context.Background(), shared.DefaultGRPCTimeout)
	defer cancel()

	conn, err := shared.Dial(ctx, s.config.CoordinatorAddress)
	if err != nil {
		return fmt.Errorf("failed to connect to coordinator: %w", err)
	}
	client := protocol.NewCoordinatorClient(conn)

	s.mu.Lock()
	s.coordinatorConn = conn
	s.coordinatorClient = client
	s.mu.Unlock()

	events, err := s.resolveEvents(client)
	if err != nil {
		return err
	}

	for _, event := range events {
		callCtx, callCancel := context.WithTimeout(context.Background(), s.config.RPCTimeout.Std())
		resp, err := client.Subscribe(callCtx, &protocol.SubscribeRequest{
			EventType: string(event),
			Address:   s.Address(),
		})
		callCancel()

		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", event, err)
		}
		if !resp.Success {
			return fmt.Errorf("subscribe to %s rejected: %s", event, resp.Message)
		}

		s.logger.Info("Subscribed", zap.String("event", string(event)))

		s.mu.Lock()
		s.subscribed = append(s.subscribed, event)
		s.mu.Unlock()
	}
	return nil
}

// resolveEvents returns the configured events, or every event the
// coordinator offers when none are configured.
func (s *Subscriber) resolveEvents(client protocol.CoordinatorClient) ([]types.EventType, error) {
	names := s.config.Events
	if len(names) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.RPCTimeout.Std())
		defer cancel()

		resp, err := client.ListEventTypes(ctx, &protocol.ListEventTypesRequest{})
		if err != nil {
			return nil, fmt.Errorf("list event types: %w", err)
		}
		names = resp.EventTypes
	}

	events := make([]types.EventType, 0, len(names))
	for _, name := range names {
		event := types.EventType(name)
		if !event.Valid() {
			return nil, fmt.Errorf("unknown event type %q", name)
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *Subscriber) Subscribed() []types.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.EventType(nil), s.subscribed...)
}

// Stop unsubscribes from every event and shuts the server down.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	client, conn, server := s.coordinatorClient, s.coordinatorConn, s.server
	events := s.subscribed
	s.subscribed = nil
	address := s.address
	s.mu.Unlock()

	for _, event := range events {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.RPCTimeout.Std())
		_, err := client.Unsubscribe(ctx, &protocol.UnsubscribeRequest{
			EventType: string(event),
			Address:   address,
		})
		cancel()
		if err != nil {
			s.logger.Warn("Failed to unsubscribe",
				zap.String("event", string(event)),
				zap.Error(err))
		}
	}

	if conn != nil {
		conn.Close()
	}
	if server != nil {
		server.GracefulStop()
	}
}

func (s *Subscriber) Notify(ctx context.Context, req *protocol.NotifyRequest) (*protocol.NotifyResponse, error) {
	event := types.Event{
		Type:       types.EventType(req.EventType),
		Object:     req.ObjectName,
		OccurredAt: time.Now(),
	}
	if req.OccurredAt != nil {
		event.OccurredAt = req.OccurredAt.AsTime()
	}

	s.logger.Info("Event received",
		zap.String("event", string(event.Type)),
		zap.String("object", event.Object),
		zap.Time("occurred_at", event.OccurredAt))

	if s.handler != nil {
		s.handler(event)
	}
	return &protocol.NotifyResponse{}, nil
}
