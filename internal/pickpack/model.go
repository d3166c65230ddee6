package pickpack

import (
	"errors"
	"time"
)

// Status enumerates the fulfillment states. Transitions are linear:
// CREATED -> PICKING -> PICKED -> PACKING -> PACKED.
type Status string

const (
	StatusCreated Status = "CREATED"
	StatusPicking Status = "PICKING"
	StatusPicked  Status = "PICKED"
	StatusPacking Status = "PACKING"
	StatusPacked  Status = "PACKED"
)

// PickPack tracks the physical picking and packing of one order. At most one
// PickPack exists per order.
type PickPack struct {
	ID          int64          `json:"id"`
	OrderID     int64          `json:"order_id"`
	WarehouseID int64          `json:"warehouse_id"`
	PackNumber  string         `json:"pack_number"`
	Status      Status         `json:"status"`
	PickedBy    *int64         `json:"picked_by,omitempty"`
	PackedBy    *int64         `json:"packed_by,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Items       []PickPackItem `json:"items,omitempty"`
}

// PickPackItem snapshots one order line at creation time. Items are never
// re-synced with later order edits.
type PickPackItem struct {
	ID             int64 `json:"id"`
	PickPackID     int64 `json:"pick_pack_id"`
	OrderItemID    int64 `json:"order_item_id"`
	ProductID      int64 `json:"product_id"`
	QuantityToPick int   `json:"quantity_to_pick"`
}

// ErrPickPackNotFound indicates a missing pick-pack.
var ErrPickPackNotFound = errors.New("pickpack: not found")

// ErrDuplicatePickPack triggered when an order already has a pick-pack.
var ErrDuplicatePickPack = errors.New("pickpack: order already has a pick pack")

// ErrPackNumberConflict means a concurrent same-day creation minted the same
// sequence number. The caller retries; a fresh transaction scans a count that
// includes the winner's row.
var ErrPackNumberConflict = errors.New("pickpack: pack number conflict")

// ErrInvalidTransition indicates a status change outside the linear flow.
var ErrInvalidTransition = errors.New("pickpack: invalid status transition")

// ErrWarehouseInactive triggered when creating against an inactive warehouse.
var ErrWarehouseInactive = errors.New("pickpack: warehouse is not active")

// ErrEmptyOrder triggered when the order has no line items to pick.
var ErrEmptyOrder = errors.New("pickpack: order has no items")

// nextStatus maps each transition to its required current state.
var transitions = map[Status]Status{
	StatusPicking: StatusCreated,
	StatusPicked:  StatusPicking,
	StatusPacking: StatusPicked,
	StatusPacked:  StatusPacking,
}

// Transition advances the status, enforcing the linear state machine.
func (p *PickPack) Transition(next Status, actorID int64) error {
	required, ok := transitions[next]
	if !ok || p.Status != required {
		return ErrInvalidTransition
	}
	p.Status = next
	switch next {
	case StatusPicking:
		p.PickedBy = &actorID
	case StatusPacking:
		p.PackedBy = &actorID
	}
	return nil
}
