package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

func runStatement(ctx context.Context) error {
	q, err := SessionFrom(ctx).Querier(ctx)
	if err != nil {
		return err
	}
	_, err = ExecuteUpdate(ctx, q, `UPDATE tickets SET quantity = 1`)
	return err
}

func TestTxManager_WithTx(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("commits and releases on success", func(t *testing.T) {
		src := newFakeSource()
		m := NewTxManagerWithSource(src)

		require.NoError(t, m.WithTx(ctx, runStatement))
		assert.Equal(t, 1, src.conn.tx.commits)
		assert.Zero(t, src.conn.tx.rollbacks)
		assert.Equal(t, 1, src.conn.released)
		assert.Equal(t, pgx.ReadCommitted, src.conn.opts.IsoLevel)
	})

	t.Run("rolls back and returns fn error unchanged", func(t *testing.T) {
		src := newFakeSource()
		m := NewTxManagerWithSource(src)

		err := m.WithTx(ctx, func(ctx context.Context) error {
			if err := runStatement(ctx); err != nil {
				return err
			}
			return domain.ErrInsufficientQuantity
		})
		assert.Equal(t, domain.ErrInsufficientQuantity, err)
		assert.Zero(t, src.conn.tx.commits)
		assert.Equal(t, 1, src.conn.tx.rollbacks)
		assert.Equal(t, 1, src.conn.released)
	})

	t.Run("rolls back on panic and re-panics", func(t *testing.T) {
		src := newFakeSource()
		m := NewTxManagerWithSource(src)

		assert.PanicsWithValue(t, "boom", func() {
			_ = m.WithTx(ctx, func(ctx context.Context) error {
				if err := runStatement(ctx); err != nil {
					return err
				}
				panic("boom")
			})
		})
		assert.Zero(t, src.conn.tx.commits)
		assert.Equal(t, 1, src.conn.tx.rollbacks)
		assert.Equal(t, 1, src.conn.released)
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		src := newFakeSource()
		m := NewTxManagerWithSource(src)

		err := m.WithTx(ctx, func(outer context.Context) error {
			if err := runStatement(outer); err != nil {
				return err
			}
			return m.WithTx(outer, func(inner context.Context) error {
				assert.Same(t, SessionFrom(outer), SessionFrom(inner))
				return runStatement(inner)
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, src.acquired)
		assert.Equal(t, 1, src.conn.begins)
		assert.Equal(t, 1, src.conn.tx.commits)
		assert.Len(t, src.conn.tx.statements, 2)
	})

	t.Run("no statements never touches the pool", func(t *testing.T) {
		src := newFakeSource()
		m := NewTxManagerWithSource(src)

		require.NoError(t, m.WithTx(ctx, func(context.Context) error { return nil }))
		assert.Zero(t, src.acquired)
	})

	t.Run("commit failure becomes a storage error", func(t *testing.T) {
		src := newFakeSource()
		src.conn.tx.commitErr = errors.New("connection lost")
		m := NewTxManagerWithSource(src)

		err := m.WithTx(ctx, runStatement)
		var se *domain.StorageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "commit", se.Op)
		assert.Equal(t, 1, src.conn.released)
	})

	t.Run("applies operation timeout", func(t *testing.T) {
		m := NewTxManagerWithSource(newFakeSource(), WithOperationTimeout(time.Minute))

		err := m.WithTx(ctx, func(ctx context.Context) error {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("logs failed rollback", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		src := newFakeSource()
		src.conn.tx.rollbackErr = errors.New("conn closed")
		m := NewTxManagerWithSource(src, WithLogger(zap.New(core)))

		err := m.WithTx(ctx, func(ctx context.Context) error {
			if err := runStatement(ctx); err != nil {
				return err
			}
			return domain.ErrInvalidQuantity
		})
		require.ErrorIs(t, err, domain.ErrInvalidQuantity)
		require.Equal(t, 1, logs.FilterMessage("rollback failed").Len())
	})
}
