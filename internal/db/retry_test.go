package db_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db"
)

func TestRetry(t *testing.T) {
	deadlock := &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	serialization := fmt.Errorf("repository: %w", &pgconn.PgError{Code: pgerrcode.SerializationFailure})
	plain := errors.New("boom")

	tests := []struct {
		name      string
		attempts  int
		failures  []error
		wantCalls int
		wantErr   error
	}{
		{name: "success_first_try", attempts: 3, failures: nil, wantCalls: 1},
		{name: "retries_deadlock", attempts: 3, failures: []error{deadlock}, wantCalls: 2},
		{name: "retries_wrapped_serialization", attempts: 3, failures: []error{serialization, serialization}, wantCalls: 3},
		{name: "gives_up_after_attempts", attempts: 2, failures: []error{deadlock, deadlock, deadlock}, wantCalls: 2, wantErr: deadlock},
		{name: "no_retry_on_plain_error", attempts: 3, failures: []error{plain}, wantCalls: 1, wantErr: plain},
		{name: "single_attempt_disables_retry", attempts: 1, failures: []error{deadlock}, wantCalls: 1, wantErr: deadlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := db.Retry(context.Background(), tt.attempts, time.Millisecond, func(ctx context.Context) error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := db.Retry(ctx, 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestConstraintClassifiers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "order_lines_pkey"})
	check := &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "products_stock_check"}

	assert.True(t, db.IsUniqueViolation(unique, ""))
	assert.True(t, db.IsUniqueViolation(unique, "order_lines_pkey"))
	assert.False(t, db.IsUniqueViolation(unique, "users_email_key"))
	assert.False(t, db.IsUniqueViolation(check, ""))

	assert.True(t, db.IsCheckViolation(check, "products_stock_check"))
	assert.False(t, db.IsCheckViolation(errors.New("plain"), ""))
}

func TestConn_FallsBackOutsideTransaction(t *testing.T) {
	_, ok := db.TxFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, db.Conn(context.Background(), nil))
}
