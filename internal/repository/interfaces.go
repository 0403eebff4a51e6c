package repository

import (
	"context"

	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/domain"
)

// OrderRepository is a SQL order table that also stores each line's audit log.
type OrderRepository interface {
	datasource.Backend
	Insert(ctx context.Context, records []domain.OrderRecord) (int, error)
}
