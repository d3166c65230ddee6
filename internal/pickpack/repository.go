package pickpack

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocklane/stocklane/internal/outbox"
)

const uniqueViolation = "23505"

// Repository persists pick-pack data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used during creation:
// the duplicate check, the same-day sequence scan and the insert commit
// together, with the unique indexes as the backstop against races the
// read-committed scans cannot see.
type TxRepository interface {
	ExistsForOrder(ctx context.Context, orderID int64) (bool, error)
	CountPackNumbersForDay(ctx context.Context, prefix string) (int, error)
	Insert(ctx context.Context, pp *PickPack) error
	AppendEvents(ctx context.Context, events []outbox.Event) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("pickpack: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *txRepository) ExistsForOrder(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pick_packs WHERE order_id=$1)`, orderID).Scan(&exists)
	return exists, err
}

func (r *txRepository) CountPackNumbersForDay(ctx context.Context, prefix string) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM pick_packs WHERE pack_number LIKE $1`, prefix+"%").Scan(&count)
	return count, err
}

func (r *txRepository) Insert(ctx context.Context, pp *PickPack) error {
	err := r.tx.QueryRow(ctx, `INSERT INTO pick_packs
(order_id, warehouse_id, pack_number, status, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		pp.OrderID, pp.WarehouseID, pp.PackNumber, string(pp.Status), pp.Notes).
		Scan(&pp.ID, &pp.CreatedAt, &pp.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// two creators can race past the read-committed scans; the
			// constraint name tells which uniqueness actually broke
			switch pgErr.ConstraintName {
			case "pick_packs_order_id_key":
				return ErrDuplicatePickPack
			case "pick_packs_pack_number_key":
				return ErrPackNumberConflict
			}
		}
		return fmt.Errorf("pickpack: insert: %w", err)
	}

	for i := range pp.Items {
		item := &pp.Items[i]
		item.PickPackID = pp.ID
		err := r.tx.QueryRow(ctx, `INSERT INTO pick_pack_items
(pick_pack_id, order_item_id, product_id, quantity_to_pick)
VALUES ($1,$2,$3,$4) RETURNING id`,
			item.PickPackID, item.OrderItemID, item.ProductID, item.QuantityToPick).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("pickpack: insert item: %w", err)
		}
	}
	return nil
}

func (r *txRepository) AppendEvents(ctx context.Context, events []outbox.Event) error {
	return outbox.InsertTx(ctx, r.tx, events...)
}

// Get loads a pick-pack with its items.
func (r *Repository) Get(ctx context.Context, id int64) (PickPack, error) {
	var pp PickPack
	err := r.pool.QueryRow(ctx, `SELECT id, order_id, warehouse_id, pack_number, status, picked_by, packed_by, notes, created_at, updated_at
FROM pick_packs WHERE id=$1`, id).
		Scan(&pp.ID, &pp.OrderID, &pp.WarehouseID, &pp.PackNumber, &pp.Status, &pp.PickedBy, &pp.PackedBy, &pp.Notes, &pp.CreatedAt, &pp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PickPack{}, ErrPickPackNotFound
		}
		return PickPack{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, pick_pack_id, order_item_id, product_id, quantity_to_pick
FROM pick_pack_items WHERE pick_pack_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return PickPack{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var item PickPackItem
		if err := rows.Scan(&item.ID, &item.PickPackID, &item.OrderItemID, &item.ProductID, &item.QuantityToPick); err != nil {
			return PickPack{}, err
		}
		pp.Items = append(pp.Items, item)
	}
	return pp, rows.Err()
}

// GetByOrder loads the pick-pack for an order, if any.
func (r *Repository) GetByOrder(ctx context.Context, orderID int64) (PickPack, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM pick_packs WHERE order_id=$1`, orderID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PickPack{}, ErrPickPackNotFound
		}
		return PickPack{}, err
	}
	return r.Get(ctx, id)
}

// UpdateStatus advances the status with the previous status as the
// compare-and-swap predicate. Zero affected rows means the row moved under
// us or does not exist.
func (r *Repository) UpdateStatus(ctx context.Context, pp *PickPack, previous Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE pick_packs
SET status=$1, picked_by=$2, packed_by=$3, updated_at=NOW()
WHERE id=$4 AND status=$5`,
		string(pp.Status), pp.PickedBy, pp.PackedBy, pp.ID, string(previous))
	if err != nil {
		return fmt.Errorf("pickpack: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}
