package contracts

import "context"

// Store port (persistence for contracts)
type Store interface {
	Get(ctx context.Context, id string) (*Contract, error)
}
