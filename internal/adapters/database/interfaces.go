package database

import (
	"context"
)

// QueryTimeouts derives bounded contexts for request handlers and batch triggers
type QueryTimeouts interface {
	SimpleQueryContext(parent context.Context) (context.Context, context.CancelFunc)
	BatchQueryContext(parent context.Context) (context.Context, context.CancelFunc)
}

// Ensure PostgreSQLAdapter implements QueryTimeouts
var _ QueryTimeouts = (*PostgreSQLAdapter)(nil)
