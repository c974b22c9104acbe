package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/logger"
	"github.com/akozhevin/campuslink/internal/repository"
)

// Number of attempts for a serializable transaction before giving up
const maxTxAttempts = 16

// TxStatus byte reported by the backend when no transaction is open
const txStatusIdle = 'I'

var errDanglingTx = fmt.Errorf("%w: dangling transaction left on connection", apperrors.ErrInternal)

// TxManager runs units of work in serializable transactions with bounded
// retry on write-write conflicts. Each call pins one pooled connection for
// the whole unit of work and releases it on every exit path.
type TxManager struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

func NewTxManager(pool *pgxpool.Pool, log logger.Logger) *TxManager {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &TxManager{pool: pool, log: log}
}

var _ repository.TxRunner = (*TxManager)(nil)

func (m *TxManager) InSerializableTx(ctx context.Context, fn func(repository.Storage) error) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquiring connection: %v", apperrors.ErrInternal, err)
	}
	defer conn.Release()

	err = runSerializable(ctx,
		conn,
		func() byte { return conn.Conn().PgConn().TxStatus() },
		func(tx pgx.Tx) error { return fn(NewStorage(tx)) },
	)

	// A transaction left open would leak its locks to whoever gets this
	// connection next. Destroy the connection instead of returning it.
	if errors.Is(err, errDanglingTx) {
		m.log.Error("dangling transaction detected, closing connection", "error", err)
		_ = conn.Conn().Close(ctx)
	}

	return err
}

// txBeginner is the slice of *pgxpool.Conn the retry loop needs
type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// runSerializable retries fn from the beginning on conflict classification,
// up to maxTxAttempts times. Conflict exhaustion maps to apperrors.ErrConflict,
// anything else surfaces immediately. After every attempt the connection must
// report an idle transaction status; a violation is a programming error and
// aborts the whole call.
func runSerializable(ctx context.Context, conn txBeginner, txStatus func() byte, fn func(pgx.Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := runAttempt(ctx, conn, fn)

		if status := txStatus(); status != txStatusIdle {
			return fmt.Errorf("%w: tx status %q after attempt %d", errDanglingTx, status, attempt+1)
		}

		switch {
		case err == nil:
			return nil
		case isWriteConflict(err):
			continue
		default:
			return err
		}
	}

	return apperrors.ErrConflict
}

func runAttempt(ctx context.Context, conn txBeginner, fn func(pgx.Tx) error) (err error) {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", apperrors.ErrInternal, err)
	}

	defer func() {
		switch err {
		case nil:
			// Commit may itself report a serialization failure
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(tx)

	return err
}

// isWriteConflict reports whether the error is the datastore's
// deadlock or serialization-failure signal
func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}
