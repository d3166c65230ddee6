package inventory

import "time"

// Inventory tracks stock for one (product, warehouse) pair. All mutations go
// through the methods below so the invariants hold at every observable
// point: 0 <= ReservedQuantity <= Quantity, Quantity >= 0.
type Inventory struct {
	ID                int64      `json:"id"`
	ProductID         int64      `json:"product_id"`
	WarehouseID       int64      `json:"warehouse_id"`
	Quantity          int        `json:"quantity"`
	ReservedQuantity  int        `json:"reserved_quantity"`
	MinimumStockLevel int        `json:"minimum_stock_level"`
	MaximumStockLevel int        `json:"maximum_stock_level"`
	UnitCost          float64    `json:"unit_cost"`
	Location          string     `json:"location,omitempty"`
	LastCountedAt     *time.Time `json:"last_counted_at,omitempty"`
	Version           int64      `json:"version"`
	Deleted           bool       `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	events []DomainEvent
}

// AvailableQuantity returns stock not held against any order.
func (i *Inventory) AvailableQuantity() int {
	return i.Quantity - i.ReservedQuantity
}

// IsLowStock reports whether the row qualifies for low-stock alerting.
func (i *Inventory) IsLowStock() bool {
	return i.Quantity <= i.MinimumStockLevel
}

// Reserve places a hold for an unfulfilled order.
func (i *Inventory) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i.AvailableQuantity() < quantity {
		return ErrInsufficientStock
	}
	before := i.ReservedQuantity
	i.ReservedQuantity += quantity
	i.record(StockReservedEvent{
		InventoryID:    i.ID,
		ProductID:      i.ProductID,
		WarehouseID:    i.WarehouseID,
		Quantity:       quantity,
		ReservedBefore: before,
		ReservedAfter:  i.ReservedQuantity,
	})
	return nil
}

// Release returns held stock, clamped so the reservation never goes
// negative. Used when an order is cancelled before fulfillment.
func (i *Inventory) Release(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	before := i.ReservedQuantity
	i.ReservedQuantity -= quantity
	if i.ReservedQuantity < 0 {
		i.ReservedQuantity = 0
	}
	i.record(StockReleasedEvent{
		InventoryID:    i.ID,
		ProductID:      i.ProductID,
		WarehouseID:    i.WarehouseID,
		Quantity:       before - i.ReservedQuantity,
		ReservedBefore: before,
		ReservedAfter:  i.ReservedQuantity,
	})
	return nil
}

// AdjustQuantity applies a signed correction to the physical quantity. The
// result must stay >= ReservedQuantity (and therefore >= 0): a count can
// never show fewer units than are promised to orders.
func (i *Inventory) AdjustQuantity(delta int) error {
	if delta == 0 {
		return ErrInvalidQuantity
	}
	next := i.Quantity + delta
	if next < 0 || next < i.ReservedQuantity {
		return ErrInvalidAdjustment
	}
	before := i.Quantity
	i.Quantity = next
	i.record(StockAdjustedEvent{
		InventoryID:    i.ID,
		ProductID:      i.ProductID,
		WarehouseID:    i.WarehouseID,
		Delta:          delta,
		QuantityBefore: before,
		QuantityAfter:  i.Quantity,
		LowStock:       i.IsLowStock(),
	})
	return nil
}

// UpdateStockLevels sets the reorder thresholds.
func (i *Inventory) UpdateStockLevels(min, max int) error {
	if min < 0 || max < min {
		return ErrInvalidStockLevels
	}
	i.MinimumStockLevel = min
	i.MaximumStockLevel = max
	return nil
}

// UpdateUnitCost sets the unit cost.
func (i *Inventory) UpdateUnitCost(cost float64) error {
	if cost < 0 {
		return ErrInvalidUnitCost
	}
	i.UnitCost = cost
	return nil
}

// UpdateLocation sets the bin/shelf location text.
func (i *Inventory) UpdateLocation(location string) {
	i.Location = location
}

// MarkCounted stamps the physical-count reconciliation marker.
func (i *Inventory) MarkCounted(at time.Time) {
	at = at.UTC()
	i.LastCountedAt = &at
}

// MarkDeleted soft-deletes the row. Only permitted once both counters are
// zero; the row is never physically removed.
func (i *Inventory) MarkDeleted() error {
	if i.Quantity != 0 || i.ReservedQuantity != 0 {
		return ErrNotEmpty
	}
	i.Deleted = true
	i.record(InventoryDeletedEvent{
		InventoryID: i.ID,
		ProductID:   i.ProductID,
		WarehouseID: i.WarehouseID,
	})
	return nil
}

func (i *Inventory) record(evt DomainEvent) {
	i.events = append(i.events, evt)
}

// CollectEvents returns and clears the events raised since the last collect.
// The caller persists them atomically with the aggregate.
func (i *Inventory) CollectEvents() []DomainEvent {
	events := i.events
	i.events = nil
	return events
}
