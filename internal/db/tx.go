package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/yuankeMiao/Marmotshop-backend/internal/config"
)

type txKey struct{}

// TxFromContext returns the transaction bound to ctx, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// Conn picks the transaction from ctx and falls back to q outside a unit of work.
func Conn(ctx context.Context, q Querier) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return q
}

// TxManager runs units of work. Repositories join the transaction through Conn.
type TxManager struct {
	pool *pgxpool.Pool
	cfg  config.TxConfig
}

func NewTxManager(pool *pgxpool.Pool, cfg config.TxConfig) *TxManager {
	return &TxManager{pool: pool, cfg: cfg}
}

// WithinTx commits when fn returns nil and rolls back on error or panic.
// A call nested inside another unit of work joins the outer transaction.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	return Retry(ctx, m.cfg.RetryAttempts, m.cfg.RetryBackoff, func(ctx context.Context) error {
		txCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
		return m.runOnce(txCtx, fn)
	})
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	started := time.Now()

	tx, beginErr := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if beginErr != nil {
		return fmt.Errorf("db: failed to begin transaction: %w", beginErr)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("Panic recovered inside unit of work, rolling back")
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			// ctx may already be expired; the rollback must still reach the server.
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Msg("Failed to commit transaction")
				err = fmt.Errorf("db: failed to commit transaction: %w", commitErr)
				return
			}
			log.Debug().Dur("elapsed", time.Since(started)).Msg("Transaction committed")
		}
	}()

	return fn(ContextWithTx(ctx, tx))
}
