package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ascend/internal/domain"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"slot taken", domain.ErrSlotTaken, true},
		{"wrapped stale rank", fmt.Errorf("evaluate: %w", domain.ErrStaleRank), true},
		{"duplicate key", gorm.ErrDuplicatedKey, true},
		{"mysql deadlock", &mysqldrv.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysqldrv.MySQLError{Number: 1205}, true},
		{"mysql syntax", &mysqldrv.MySQLError{Number: 1064}, false},
		{"postgres serialization", &pgconn.PgError{Code: "40001"}, true},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, true},
		{"postgres fk", &pgconn.PgError{Code: "23503"}, false},
		{"eligibility", domain.ErrInsufficientBalance, false},
		{"not found", gorm.ErrRecordNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflict(tt.err); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after conflicts", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, 3, func() error {
			calls++
			if calls < 3 {
				return domain.ErrSlotTaken
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Errorf("Expected success on third call, got calls=%d err=%v", calls, err)
		}
	})

	t.Run("stops on other errors", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, 5, func() error {
			calls++
			return domain.ErrAlreadyPlaced
		})
		if !errors.Is(err, domain.ErrAlreadyPlaced) || calls != 1 {
			t.Errorf("Expected one call returning ErrAlreadyPlaced, got calls=%d err=%v", calls, err)
		}
	})

	t.Run("exhaustion is a conflict", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, 2, func() error {
			calls++
			return domain.ErrSlotTaken
		})
		if !errors.Is(err, domain.ErrConflict) || calls != 2 {
			t.Errorf("Expected ErrConflict after 2 calls, got calls=%d err=%v", calls, err)
		}
		if domain.KindOf(err) != domain.KindConflict {
			t.Errorf("Expected conflict kind, got %v", domain.KindOf(err))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := WithRetry(cctx, 3, func() error { return domain.ErrSlotTaken })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}
