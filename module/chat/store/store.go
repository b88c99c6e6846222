package store

import (
	"context"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"PMessenger/tools/errs"
)

// Store is the durable message store: conversations, messages, attachments,
// receipts, and contact edges on Postgres. Every multi-row mutation runs in
// a single transaction so readers never observe a message missing its
// conversation-pointer update or vice versa.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects a pool and verifies the schema exists.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "connect postgres")
	}
	s := &Store{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrap(err, "commit tx")
	}
	return nil
}

// wrap maps storage failures onto the service taxonomy: missing rows become
// NotFound, connectivity-class failures become TransientStorage (retryable
// by the caller, not by us), everything else keeps its pgx context.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound.WithDetail(op)
	}
	if isTransient(err) {
		return errs.ErrTransientStorage.WithDetail(op + ": " + err.Error())
	}
	return pkgerrors.Wrap(err, op)
}

func isTransient(err error) bool {
	if pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	return pkgerrors.As(err, &netErr)
}
