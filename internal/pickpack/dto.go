package pickpack

type createPickPackRequest struct {
	OrderID     int64  `json:"order_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Notes       string `json:"notes" validate:"max=500"`
}
