package counter

import (
	"context"
	"time"

	"github.com/i-egik/NameCount/platform/service"
)

// Counter is the durable copy of a counter value of a user.
type Counter struct {
	CounterID int64     `json:"counter_id" db:"counter_id"`
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Value     int64     `json:"value" db:"value"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Service for counter interactions.
type Service interface {
	service.Lifecycle

	Create(ctx context.Context, counterID, userID, value int64) (*Counter, error)
	Get(ctx context.Context, counterID, userID int64) (*Counter, error)
	Update(ctx context.Context, counterID, userID, value int64) (*Counter, error)
	UpdateOrCreate(ctx context.Context, counterID, userID, value int64) (*Counter, error)
}

// ServiceMiddleware is a chainable behaviour modifier for Service.
type ServiceMiddleware func(Service) Service
