package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ascend/internal/domain"
	"ascend/internal/logger"
	"ascend/internal/metrics"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const retryBaseDelay = 25 * time.Millisecond

// WithRetry runs fn until it succeeds, returns a non-conflict error, or
// attempts run out. fn must open its own transaction so each attempt starts
// from fresh reads. Exhaustion is reported as domain.ErrConflict.
func WithRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			metrics.TxRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * retryBaseDelay):
			}
		}
		err = fn()
		if err == nil || !IsConflict(err) {
			return err
		}
		logger.Debug("[retry] attempt %d/%d conflicted: %v", i+1, attempts, err)
	}
	logger.Warn("[retry] giving up after %d attempts: %v", attempts, err)
	return fmt.Errorf("%w: %v", domain.ErrConflict, err)
}

// IsConflict reports whether err is a transient concurrency failure such as
// a lost slot or rank race, a unique-key collision, a deadlock or a
// serialization failure.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrSlotTaken) || errors.Is(err, domain.ErrStaleRank) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1205, 1213: // duplicate entry, lock wait timeout, deadlock
			return true
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01": // unique_violation, serialization_failure, deadlock_detected
			return true
		}
	}
	return false
}
