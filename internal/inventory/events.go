package inventory

// Event topics published through the outbox.
const (
	TopicStockReserved    = "stock.reserved"
	TopicStockReleased    = "stock.released"
	TopicStockAdjusted    = "stock.adjusted"
	TopicInventoryDeleted = "inventory.deleted"
)

// DomainEvent is raised by the aggregate and persisted via the outbox.
type DomainEvent interface {
	Topic() string
}

// StockReservedEvent signals a hold placed for an order.
type StockReservedEvent struct {
	InventoryID    int64  `json:"inventory_id"`
	ProductID      int64  `json:"product_id"`
	WarehouseID    int64  `json:"warehouse_id"`
	Quantity       int    `json:"quantity"`
	ReservedBefore int    `json:"reserved_before"`
	ReservedAfter  int    `json:"reserved_after"`
	OrderID        string `json:"order_id,omitempty"`
}

func (StockReservedEvent) Topic() string { return TopicStockReserved }

// StockReleasedEvent signals a hold returned to available stock.
type StockReleasedEvent struct {
	InventoryID    int64  `json:"inventory_id"`
	ProductID      int64  `json:"product_id"`
	WarehouseID    int64  `json:"warehouse_id"`
	Quantity       int    `json:"quantity"`
	ReservedBefore int    `json:"reserved_before"`
	ReservedAfter  int    `json:"reserved_after"`
	OrderID        string `json:"order_id,omitempty"`
}

func (StockReleasedEvent) Topic() string { return TopicStockReleased }

// StockAdjustedEvent signals a physical quantity change.
type StockAdjustedEvent struct {
	InventoryID    int64 `json:"inventory_id"`
	ProductID      int64 `json:"product_id"`
	WarehouseID    int64 `json:"warehouse_id"`
	Delta          int   `json:"delta"`
	QuantityBefore int   `json:"quantity_before"`
	QuantityAfter  int   `json:"quantity_after"`
	LowStock       bool  `json:"low_stock"`
}

func (StockAdjustedEvent) Topic() string { return TopicStockAdjusted }

// InventoryDeletedEvent signals a soft-deleted inventory row.
type InventoryDeletedEvent struct {
	InventoryID int64 `json:"inventory_id"`
	ProductID   int64 `json:"product_id"`
	WarehouseID int64 `json:"warehouse_id"`
}

func (InventoryDeletedEvent) Topic() string { return TopicInventoryDeleted }
