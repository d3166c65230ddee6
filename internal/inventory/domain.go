package inventory

import (
	"errors"
	"time"
)

// MovementType enumerates ledger movement kinds.
type MovementType string

const (
	// MovementAdjustment records a manual quantity correction.
	MovementAdjustment MovementType = "ADJUSTMENT"
	// MovementReserved records a hold placed for an order.
	MovementReserved MovementType = "RESERVED"
	// MovementReleased records a hold returned to available stock.
	MovementReleased MovementType = "RELEASED"
	// MovementSale records a quantity decrease from a completed sale.
	MovementSale MovementType = "SALE"
	// MovementReturn records a quantity increase from a customer return.
	MovementReturn MovementType = "RETURN"
	// MovementTransfer used for warehouse transfer legs.
	MovementTransfer MovementType = "TRANSFER"
)

// StockMovement is one immutable ledger row. Rows are never updated or
// deleted; the ledger is the reconciliation source of truth.
type StockMovement struct {
	ID             int64        `json:"id"`
	InventoryID    int64        `json:"inventory_id"`
	ProductID      int64        `json:"product_id"`
	WarehouseID    int64        `json:"warehouse_id"`
	MovementType   MovementType `json:"movement_type"`
	QuantityDelta  int          `json:"quantity_delta"`
	QuantityBefore int          `json:"quantity_before"`
	QuantityAfter  int          `json:"quantity_after"`
	PerformedBy    int64        `json:"performed_by"`
	ReferenceID    *string      `json:"reference_id,omitempty"`
	Notes          *string      `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// LowStockAlert is one row of the low-stock projection.
type LowStockAlert struct {
	InventoryID       int64  `json:"inventory_id"`
	ProductID         int64  `json:"product_id"`
	ProductSKU        string `json:"product_sku"`
	ProductName       string `json:"product_name"`
	WarehouseID       int64  `json:"warehouse_id"`
	WarehouseCode     string `json:"warehouse_code"`
	Quantity          int    `json:"quantity"`
	ReservedQuantity  int    `json:"reserved_quantity"`
	MinimumStockLevel int    `json:"minimum_stock_level"`
}

// StockReportLine is the per-warehouse breakdown of a product report.
type StockReportLine struct {
	WarehouseID       int64   `json:"warehouse_id"`
	WarehouseCode     string  `json:"warehouse_code"`
	Quantity          int     `json:"quantity"`
	ReservedQuantity  int     `json:"reserved_quantity"`
	AvailableQuantity int     `json:"available_quantity"`
	UnitCost          float64 `json:"unit_cost"`
	Value             float64 `json:"value"`
}

// StockReport aggregates a product's stock position across all warehouses.
type StockReport struct {
	ProductID      int64             `json:"product_id"`
	TotalQuantity  int               `json:"total_quantity"`
	TotalReserved  int               `json:"total_reserved"`
	TotalAvailable int               `json:"total_available"`
	TotalValue     float64           `json:"total_value"`
	PerWarehouse   []StockReportLine `json:"per_warehouse"`
}

// ErrInventoryNotFound indicates a missing inventory row.
var ErrInventoryNotFound = errors.New("inventory: not found")

// ErrUnauthorized indicates the actor does not own the product.
var ErrUnauthorized = errors.New("inventory: actor does not own product")

// ErrInvalidQuantity indicates a non-positive quantity input.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInsufficientStock triggered when a reservation exceeds available stock.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidAdjustment triggered when an adjustment would push quantity
// below zero or below the reserved amount.
var ErrInvalidAdjustment = errors.New("inventory: adjustment would violate stock invariants")

// ErrInvalidStockLevels indicates max < min or a negative level.
var ErrInvalidStockLevels = errors.New("inventory: invalid stock levels")

// ErrInvalidUnitCost indicates a negative unit cost.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")

// ErrNotEmpty triggered when deleting an inventory that still holds stock.
var ErrNotEmpty = errors.New("inventory: cannot delete non-empty inventory")

// ErrVersionConflict indicates a concurrent writer saved first. Retryable:
// the caller must re-read and resubmit.
var ErrVersionConflict = errors.New("inventory: concurrent modification detected")

// ErrAlreadyStocked indicates the (product, warehouse) pair already has a row.
var ErrAlreadyStocked = errors.New("inventory: product already stocked in warehouse")
