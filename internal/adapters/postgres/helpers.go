package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// queryer picks the caller's transaction when given, the pool otherwise
type queryer struct {
	pool *pgxpool.Pool
}

func (q queryer) conn(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return q.pool
}

// nullText creates a pgtype.Text with empty string handling
func nullText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// pgNumericToDecimal converts pgtype.Numeric to decimal.Decimal
func pgNumericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	var dec decimal.Decimal
	str, err := n.MarshalJSON()
	if err != nil {
		return dec, fmt.Errorf("marshal numeric: %w", err)
	}
	// Remove quotes from JSON string
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	return decimal.NewFromString(string(str))
}

// nullNumericToDecimal returns nil for SQL NULL
func nullNumericToDecimal(n pgtype.Numeric) (*decimal.Decimal, error) {
	if !n.Valid {
		return nil, nil
	}
	dec, err := pgNumericToDecimal(n)
	if err != nil {
		return nil, err
	}
	return &dec, nil
}

// isUniqueViolation reports a 23505 on the named constraint
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

// classify maps connection-level failures to ErrStorageUnavailable and
// leaves query errors untouched. msg prefixes the wrapped error.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}

	var connectErr *pgconn.ConnectError
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &connectErr), pgconn.Timeout(err):
		return domain.WrapError(domain.ErrorCodeStorageUnavailable, msg, err)
	case errors.As(err, &pgErr):
		// Class 08 connection exceptions, 57P admin shutdown
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") {
			return domain.WrapError(domain.ErrorCodeStorageUnavailable, msg, err)
		}
	case errors.Is(err, pgx.ErrTxClosed):
		return domain.WrapError(domain.ErrorCodeStorageUnavailable, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// notFound turns pgx.ErrNoRows into the given domain error
func notFound(err error, notFoundErr *domain.DomainError, id string, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFoundErr.WithDetail("id", id)
	}
	return classify(err, msg)
}
