package service

import "context"

// Lifecycle encodes the functionality necessary to control the full lifecycle
// of a data service.
type Lifecycle interface {
	Setup(ctx context.Context) error
	Teardown(ctx context.Context) error
}
