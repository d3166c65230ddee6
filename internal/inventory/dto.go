package inventory

type createInventoryRequest struct {
	ProductID         int64   `json:"product_id" validate:"required,gt=0"`
	WarehouseID       int64   `json:"warehouse_id" validate:"required,gt=0"`
	Quantity          int     `json:"quantity" validate:"gte=0"`
	MinimumStockLevel int     `json:"minimum_stock_level" validate:"gte=0"`
	MaximumStockLevel int     `json:"maximum_stock_level" validate:"gtefield=MinimumStockLevel"`
	UnitCost          float64 `json:"unit_cost" validate:"gte=0"`
	Location          string  `json:"location" validate:"max=100"`
}

type reserveStockRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	OrderID     string `json:"order_id,omitempty" validate:"omitempty,max=64"`
}

type releaseStockRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	OrderID     string `json:"order_id,omitempty" validate:"omitempty,max=64"`
}

type adjustStockRequest struct {
	QuantityChange int     `json:"quantity_change" validate:"required"`
	Reason         string  `json:"reason,omitempty" validate:"omitempty,oneof=ADJUSTMENT SALE RETURN TRANSFER"`
	Notes          *string `json:"notes,omitempty" validate:"omitempty,max=500"`
	ReferenceID    *string `json:"reference_id,omitempty" validate:"omitempty,max=64"`
}

type patchInventoryRequest struct {
	MinimumStockLevel *int     `json:"minimum_stock_level,omitempty" validate:"omitempty,gte=0"`
	MaximumStockLevel *int     `json:"maximum_stock_level,omitempty" validate:"omitempty,gte=0"`
	UnitCost          *float64 `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	Location          *string  `json:"location,omitempty" validate:"omitempty,max=100"`
}

type lowStockResponse struct {
	Alerts     []LowStockAlert `json:"alerts"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}
