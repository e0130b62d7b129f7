package coordinator

import (
	"github.com/LucaPlaster/MyGeoEyes/pkg/shared"
)

// GRPCDialer hands out gRPC-backed handles over a shared connection pool.
type GRPCDialer struct {
	pool *shared.ConnectionPool
}

func NewGRPCDialer(pool *shared.ConnectionPool) *GRPCDialer {
	return &GRPCDialer{pool: pool}
}

func (d *GRPCDialer) DialNode(address string) (NodeHandle, error) {
	conn, err := d.pool.GetConnection(address)
	if err != nil {
		return nil, err
	}
	return shared.NewRemoteNode(address, conn), nil
}

func (d *GRPCDialer) DialSink(address string) (NotificationSink, error) {
	conn, err := d.pool.GetConnection(address)
	if err != nil {
		return nil, err
	}
	return shared.NewRemoteSink(address, conn), nil
}

func (d *GRPCDialer) DialMonitor(address string) (FailureSink, error) {
	conn, err := d.pool.GetConnection(address)
	if err != nil {
		return nil, err
	}
	return shared.NewRemoteMonitor(address, conn), nil
}

func (d *GRPCDialer) Close() error {
	d.pool.CloseAll()
	return nil
}
