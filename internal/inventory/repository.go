package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocklane/stocklane/internal/outbox"
	"github.com/stocklane/stocklane/internal/shared"
)

const uniqueViolation = "23505"

// inventoryColumns is the shared select list. Every read path filters
// deleted rows here, in one place, rather than per query.
const inventoryColumns = `id, product_id, warehouse_id, quantity, reserved_quantity,
minimum_stock_level, maximum_stock_level, unit_cost, location, last_counted_at,
version, deleted, created_at, updated_at`

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. An
// inventory mutation, its ledger row and its outbox events commit together
// or not at all.
type TxRepository interface {
	GetByID(ctx context.Context, id int64) (Inventory, error)
	GetByProductWarehouse(ctx context.Context, productID, warehouseID int64) (Inventory, error)
	Insert(ctx context.Context, inv *Inventory) error
	UpdateCAS(ctx context.Context, inv *Inventory) error
	InsertMovement(ctx context.Context, movement *StockMovement) error
	AppendEvents(ctx context.Context, events []outbox.Event) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("inventory: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInventory(row rowScanner) (Inventory, error) {
	var inv Inventory
	err := row.Scan(&inv.ID, &inv.ProductID, &inv.WarehouseID, &inv.Quantity, &inv.ReservedQuantity,
		&inv.MinimumStockLevel, &inv.MaximumStockLevel, &inv.UnitCost, &inv.Location, &inv.LastCountedAt,
		&inv.Version, &inv.Deleted, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Inventory{}, ErrInventoryNotFound
		}
		return Inventory{}, err
	}
	return inv, nil
}

func (r *txRepository) GetByID(ctx context.Context, id int64) (Inventory, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventories WHERE id=$1 AND deleted=FALSE`, id)
	return scanInventory(row)
}

func (r *txRepository) GetByProductWarehouse(ctx context.Context, productID, warehouseID int64) (Inventory, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventories
WHERE product_id=$1 AND warehouse_id=$2 AND deleted=FALSE`, productID, warehouseID)
	return scanInventory(row)
}

func (r *txRepository) Insert(ctx context.Context, inv *Inventory) error {
	err := r.tx.QueryRow(ctx, `INSERT INTO inventories
(product_id, warehouse_id, quantity, reserved_quantity, minimum_stock_level, maximum_stock_level,
 unit_cost, location, last_counted_at, version, deleted, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,1,FALSE,NOW(),NOW())
RETURNING id, version, created_at, updated_at`,
		inv.ProductID, inv.WarehouseID, inv.Quantity, inv.ReservedQuantity,
		inv.MinimumStockLevel, inv.MaximumStockLevel, inv.UnitCost, inv.Location, inv.LastCountedAt).
		Scan(&inv.ID, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyStocked
		}
		return fmt.Errorf("inventory: insert: %w", err)
	}
	return nil
}

// UpdateCAS saves the aggregate with a compare-and-swap on the version
// column. Zero affected rows means a concurrent writer won the race since
// our load; the caller must roll back, re-read and retry.
func (r *txRepository) UpdateCAS(ctx context.Context, inv *Inventory) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventories SET
quantity=$1, reserved_quantity=$2, minimum_stock_level=$3, maximum_stock_level=$4,
unit_cost=$5, location=$6, last_counted_at=$7, deleted=$8, version=version+1, updated_at=NOW()
WHERE id=$9 AND version=$10`,
		inv.Quantity, inv.ReservedQuantity, inv.MinimumStockLevel, inv.MaximumStockLevel,
		inv.UnitCost, inv.Location, inv.LastCountedAt, inv.Deleted, inv.ID, inv.Version)
	if err != nil {
		return fmt.Errorf("inventory: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	inv.Version++
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, movement *StockMovement) error {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements
(inventory_id, product_id, warehouse_id, movement_type, quantity_delta, quantity_before,
 quantity_after, performed_by, reference_id, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
RETURNING id, created_at`,
		movement.InventoryID, movement.ProductID, movement.WarehouseID, string(movement.MovementType),
		movement.QuantityDelta, movement.QuantityBefore, movement.QuantityAfter,
		movement.PerformedBy, movement.ReferenceID, movement.Notes).
		Scan(&movement.ID, &movement.CreatedAt)
	if err != nil {
		return fmt.Errorf("inventory: insert movement: %w", err)
	}
	return nil
}

func (r *txRepository) AppendEvents(ctx context.Context, events []outbox.Event) error {
	return outbox.InsertTx(ctx, r.tx, events...)
}

// GetByID loads one inventory row outside a transaction.
func (r *Repository) GetByID(ctx context.Context, id int64) (Inventory, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventories WHERE id=$1 AND deleted=FALSE`, id)
	return scanInventory(row)
}

// GetByProductWarehouse loads an inventory row by its natural key.
func (r *Repository) GetByProductWarehouse(ctx context.Context, productID, warehouseID int64) (Inventory, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventories
WHERE product_id=$1 AND warehouse_id=$2 AND deleted=FALSE`, productID, warehouseID)
	return scanInventory(row)
}

// ListByProduct returns every live inventory row for a product.
func (r *Repository) ListByProduct(ctx context.Context, productID int64) ([]Inventory, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+inventoryColumns+` FROM inventories
WHERE product_id=$1 AND deleted=FALSE ORDER BY warehouse_id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Inventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

// ListMovements returns the newest ledger rows for an inventory.
func (r *Repository) ListMovements(ctx context.Context, inventoryID int64, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, inventory_id, product_id, warehouse_id, movement_type,
quantity_delta, quantity_before, quantity_after, performed_by, reference_id, notes, created_at
FROM stock_movements WHERE inventory_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, inventoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.InventoryID, &m.ProductID, &m.WarehouseID, &m.MovementType,
			&m.QuantityDelta, &m.QuantityBefore, &m.QuantityAfter, &m.PerformedBy, &m.ReferenceID,
			&m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// LowStockFilter scopes the low-stock projection. A nil OwnerID means the
// unrestricted administrative view.
type LowStockFilter struct {
	OwnerID     *int64
	WarehouseID *int64
	Page        int
	PerPage     int
}

// LowStock lists live inventories at or below their minimum stock level,
// most urgent first.
func (r *Repository) LowStock(ctx context.Context, filter LowStockFilter) ([]LowStockAlert, shared.Pagination, error) {
	where := ` FROM inventories i
JOIN products p ON p.id = i.product_id
JOIN warehouses w ON w.id = i.warehouse_id
WHERE i.deleted = FALSE AND i.quantity <= i.minimum_stock_level`
	args := []any{}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		where += fmt.Sprintf(" AND p.owner_id = $%d", len(args))
	}
	if filter.WarehouseID != nil {
		args = append(args, *filter.WarehouseID)
		where += fmt.Sprintf(" AND i.warehouse_id = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, shared.Pagination{}, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)

	args = append(args, page.PerPage, page.Offset())
	query := `SELECT i.id, i.product_id, p.sku, p.name, i.warehouse_id, w.code,
i.quantity, i.reserved_quantity, i.minimum_stock_level` + where +
		fmt.Sprintf(" ORDER BY i.quantity ASC, i.id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	defer rows.Close()

	var alerts []LowStockAlert
	for rows.Next() {
		var a LowStockAlert
		if err := rows.Scan(&a.InventoryID, &a.ProductID, &a.ProductSKU, &a.ProductName,
			&a.WarehouseID, &a.WarehouseCode, &a.Quantity, &a.ReservedQuantity, &a.MinimumStockLevel); err != nil {
			return nil, shared.Pagination{}, err
		}
		alerts = append(alerts, a)
	}
	return alerts, page, rows.Err()
}

// StockReportLines returns the per-warehouse stock position for a product.
func (r *Repository) StockReportLines(ctx context.Context, productID int64) ([]StockReportLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.warehouse_id, w.code, i.quantity, i.reserved_quantity, i.unit_cost
FROM inventories i
JOIN warehouses w ON w.id = i.warehouse_id
WHERE i.product_id=$1 AND i.deleted=FALSE
ORDER BY i.warehouse_id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []StockReportLine
	for rows.Next() {
		var line StockReportLine
		if err := rows.Scan(&line.WarehouseID, &line.WarehouseCode, &line.Quantity,
			&line.ReservedQuantity, &line.UnitCost); err != nil {
			return nil, err
		}
		line.AvailableQuantity = line.Quantity - line.ReservedQuantity
		line.Value = float64(line.Quantity) * line.UnitCost
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
