package health

import "context"

// DBPinger checks search backend availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// BusChecker checks message bus connectivity.
type BusChecker interface {
	Ping(ctx context.Context) error
}
