package shared

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

const (
	// DefaultGRPCTimeout bounds dialing and one-off calls made outside the
	// coordinator's own per-call timeouts.
	DefaultGRPCTimeout = 10 * time.Second
)

// Dial opens a client connection to a geoeyes service. The connection is
// established lazily; failures surface on the first call.
func Dial(ctx context.Context, address string, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: false,
		}),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  1 * time.Second,
				Multiplier: 1.5,
				Jitter:     0.2,
				MaxDelay:   30 * time.Second,
			},
			MinConnectTimeout: 5 * time.Second,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.DialContext(ctx, address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}
	return conn, nil
}

// AdvertiseAddress keeps a configured host:port but falls back to the
// listener's address when the host is empty or the port was auto-assigned.
func AdvertiseAddress(configured string, actual net.Addr) string {
	host, port, err := net.SplitHostPort(configured)
	if err != nil || host == "" || port == "0" {
		return actual.String()
	}
	return configured
}

// ConnectionPool shares one connection per address between callers.
type ConnectionPool struct {
	connections map[string]*grpc.ClientConn
	mutex       sync.RWMutex
	dialOptions []grpc.DialOption
}

func NewConnectionPool(dialOptions ...grpc.DialOption) *ConnectionPool {
	return &ConnectionPool{
		connections: make(map[string]*grpc.ClientConn),
		dialOptions: dialOptions,
	}
}

// GetConnection returns a pooled connection or creates a new one.
func (p *ConnectionPool) GetConnection(address string) (*grpc.ClientConn, error) {
	p.mutex.RLock()
	conn, exists := p.connections[address]
	p.mutex.RUnlock()

	if exists && conn.GetState() != connectivity.Shutdown {
		return conn, nil
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Double-check after acquiring write lock
	conn, exists = p.connections[address]
	if exists && conn.GetState() != connectivity.Shutdown {
		return conn, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultGRPCTimeout)
	defer cancel()

	newConn, err := Dial(ctx, address, p.dialOptions...)
	if err != nil {
		return nil, err
	}
	p.connections[address] = newConn
	return newConn, nil
}

// Remove closes and forgets the connection to address.
func (p *ConnectionPool) Remove(address string) {
	p.mutex.Lock()
	conn, exists := p.connections[address]
	delete(p.connections, address)
	p.mutex.Unlock()

	if exists {
		conn.Close()
	}
}

func (p *ConnectionPool) Size() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return len(p.connections)
}

// CloseAll closes all connections in the pool
func (p *ConnectionPool) CloseAll() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, conn := range p.connections {
		conn.Close()
	}
	p.connections = make(map[string]*grpc.ClientConn)
}
