package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stocklane/stocklane/internal/masterdata/products"
	"github.com/stocklane/stocklane/internal/outbox"
	"github.com/stocklane/stocklane/internal/platform/cache"
	"github.com/stocklane/stocklane/internal/shared"
)

const readCacheTTL = 5 * time.Minute

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (Inventory, error)
	GetByProductWarehouse(ctx context.Context, productID, warehouseID int64) (Inventory, error)
	ListByProduct(ctx context.Context, productID int64) ([]Inventory, error)
	ListMovements(ctx context.Context, inventoryID int64, limit int) ([]StockMovement, error)
	LowStock(ctx context.Context, filter LowStockFilter) ([]LowStockAlert, shared.Pagination, error)
	StockReportLines(ctx context.Context, productID int64) ([]StockReportLine, error)
}

// CatalogPort resolves product ownership for the authorization guard.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// Service coordinates stock control operations.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	cache   *cache.Cache
	logger  *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalog CatalogPort, c *cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: catalog, cache: c, logger: logger}
}

// authorize enforces the ownership guard: a non-admin actor may only touch
// inventories of products they own.
func (s *Service) authorize(ctx context.Context, actor shared.Actor, productID int64) error {
	if actor.Admin {
		return nil
	}
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			return ErrInventoryNotFound
		}
		return err
	}
	if product.OwnerID != actor.ID {
		return ErrUnauthorized
	}
	return nil
}

// CreateInput describes stocking a product into a warehouse.
type CreateInput struct {
	ProductID         int64
	WarehouseID       int64
	Quantity          int
	MinimumStockLevel int
	MaximumStockLevel int
	UnitCost          float64
	Location          string
	Actor             shared.Actor
}

// Create stocks a product into a warehouse, creating the inventory row and
// its opening ledger entry.
func (s *Service) Create(ctx context.Context, input CreateInput) (Inventory, error) {
	if input.Quantity < 0 {
		return Inventory{}, ErrInvalidQuantity
	}
	if err := s.authorize(ctx, input.Actor, input.ProductID); err != nil {
		return Inventory{}, err
	}

	inv := Inventory{
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Quantity:    input.Quantity,
		Location:    input.Location,
	}
	if err := inv.UpdateStockLevels(input.MinimumStockLevel, input.MaximumStockLevel); err != nil {
		return Inventory{}, err
	}
	if err := inv.UpdateUnitCost(input.UnitCost); err != nil {
		return Inventory{}, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Insert(ctx, &inv); err != nil {
			return err
		}
		movement := &StockMovement{
			InventoryID:    inv.ID,
			ProductID:      inv.ProductID,
			WarehouseID:    inv.WarehouseID,
			MovementType:   MovementAdjustment,
			QuantityDelta:  inv.Quantity,
			QuantityBefore: 0,
			QuantityAfter:  inv.Quantity,
			PerformedBy:    input.Actor.ID,
			Notes:          strPtr("initial stock"),
		}
		return tx.InsertMovement(ctx, movement)
	})
	if err != nil {
		return Inventory{}, err
	}
	s.invalidate(ctx, inv)
	return inv, nil
}

// ReserveInput describes a reservation request.
type ReserveInput struct {
	ProductID   int64
	WarehouseID int64
	Quantity    int
	OrderID     string
	Actor       shared.Actor
}

// ReserveStock places a hold on available stock for an order. Fails with
// ErrInsufficientStock when the available quantity cannot cover the request
// and with ErrVersionConflict when a concurrent writer saved first.
func (s *Service) ReserveStock(ctx context.Context, input ReserveInput) error {
	if input.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	var inv Inventory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loaded, err := tx.GetByProductWarehouse(ctx, input.ProductID, input.WarehouseID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, input.Actor, loaded.ProductID); err != nil {
			return err
		}
		inv = loaded
		before := inv.ReservedQuantity
		if err := inv.Reserve(input.Quantity); err != nil {
			return err
		}
		movement := &StockMovement{
			InventoryID:    inv.ID,
			ProductID:      inv.ProductID,
			WarehouseID:    inv.WarehouseID,
			MovementType:   MovementReserved,
			QuantityDelta:  input.Quantity,
			QuantityBefore: before,
			QuantityAfter:  inv.ReservedQuantity,
			PerformedBy:    input.Actor.ID,
			ReferenceID:    refPtr(input.OrderID),
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		if err := tx.AppendEvents(ctx, s.toOutbox(inv.CollectEvents(), input.OrderID)); err != nil {
			return err
		}
		return tx.UpdateCAS(ctx, &inv)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, inv)
	return nil
}

// ReleaseInput describes a release request.
type ReleaseInput struct {
	ProductID   int64
	WarehouseID int64
	Quantity    int
	OrderID     string
	Actor       shared.Actor
}

// ReleaseStock returns held stock when an order is cancelled before
// fulfillment. Releasing more than is held clamps the reservation at zero.
func (s *Service) ReleaseStock(ctx context.Context, input ReleaseInput) error {
	if input.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	var inv Inventory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loaded, err := tx.GetByProductWarehouse(ctx, input.ProductID, input.WarehouseID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, input.Actor, loaded.ProductID); err != nil {
			return err
		}
		inv = loaded
		before := inv.ReservedQuantity
		if err := inv.Release(input.Quantity); err != nil {
			return err
		}
		movement := &StockMovement{
			InventoryID:    inv.ID,
			ProductID:      inv.ProductID,
			WarehouseID:    inv.WarehouseID,
			MovementType:   MovementReleased,
			QuantityDelta:  -(before - inv.ReservedQuantity),
			QuantityBefore: before,
			QuantityAfter:  inv.ReservedQuantity,
			PerformedBy:    input.Actor.ID,
			ReferenceID:    refPtr(input.OrderID),
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		if err := tx.AppendEvents(ctx, s.toOutbox(inv.CollectEvents(), input.OrderID)); err != nil {
			return err
		}
		return tx.UpdateCAS(ctx, &inv)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, inv)
	return nil
}

// AdjustInput describes a signed quantity correction.
type AdjustInput struct {
	InventoryID    int64
	QuantityChange int
	Reason         MovementType
	Notes          *string
	ReferenceID    *string
	Actor          shared.Actor
}

// AdjustStock applies a manual correction, sale or return to the physical
// quantity and returns the updated snapshot.
func (s *Service) AdjustStock(ctx context.Context, input AdjustInput) (Inventory, error) {
	if input.QuantityChange == 0 {
		return Inventory{}, ErrInvalidQuantity
	}
	reason := input.Reason
	if reason == "" {
		reason = MovementAdjustment
	}
	switch reason {
	case MovementAdjustment, MovementSale, MovementReturn, MovementTransfer:
	default:
		return Inventory{}, fmt.Errorf("%w: movement type %q", ErrInvalidQuantity, reason)
	}

	var inv Inventory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loaded, err := tx.GetByID(ctx, input.InventoryID)
		if err != nil {
			return err
		}
		inv = loaded
		if err := s.authorize(ctx, input.Actor, inv.ProductID); err != nil {
			return err
		}
		before := inv.Quantity
		if err := inv.AdjustQuantity(input.QuantityChange); err != nil {
			return err
		}
		movement := &StockMovement{
			InventoryID:    inv.ID,
			ProductID:      inv.ProductID,
			WarehouseID:    inv.WarehouseID,
			MovementType:   reason,
			QuantityDelta:  input.QuantityChange,
			QuantityBefore: before,
			QuantityAfter:  inv.Quantity,
			PerformedBy:    input.Actor.ID,
			ReferenceID:    input.ReferenceID,
			Notes:          input.Notes,
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		if err := tx.AppendEvents(ctx, s.toOutbox(inv.CollectEvents(), "")); err != nil {
			return err
		}
		return tx.UpdateCAS(ctx, &inv)
	})
	if err != nil {
		return Inventory{}, err
	}
	s.invalidate(ctx, inv)
	return inv, nil
}

// PatchInput carries optional field updates; nil fields are left untouched.
type PatchInput struct {
	InventoryID       int64
	MinimumStockLevel *int
	MaximumStockLevel *int
	UnitCost          *float64
	Location          *string
	Actor             shared.Actor
}

// PatchInventory applies only the supplied fields under the same
// transactional discipline as the quantity operations.
func (s *Service) PatchInventory(ctx context.Context, input PatchInput) (Inventory, error) {
	var inv Inventory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loaded, err := tx.GetByID(ctx, input.InventoryID)
		if err != nil {
			return err
		}
		inv = loaded
		if err := s.authorize(ctx, input.Actor, inv.ProductID); err != nil {
			return err
		}
		if input.MinimumStockLevel != nil || input.MaximumStockLevel != nil {
			min := inv.MinimumStockLevel
			max := inv.MaximumStockLevel
			if input.MinimumStockLevel != nil {
				min = *input.MinimumStockLevel
			}
			if input.MaximumStockLevel != nil {
				max = *input.MaximumStockLevel
			}
			if err := inv.UpdateStockLevels(min, max); err != nil {
				return err
			}
		}
		if input.UnitCost != nil {
			if err := inv.UpdateUnitCost(*input.UnitCost); err != nil {
				return err
			}
		}
		if input.Location != nil {
			inv.UpdateLocation(*input.Location)
		}
		movement := &StockMovement{
			InventoryID:    inv.ID,
			ProductID:      inv.ProductID,
			WarehouseID:    inv.WarehouseID,
			MovementType:   MovementAdjustment,
			QuantityDelta:  0,
			QuantityBefore: inv.Quantity,
			QuantityAfter:  inv.Quantity,
			PerformedBy:    input.Actor.ID,
			Notes:          strPtr("inventory settings updated"),
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		return tx.UpdateCAS(ctx, &inv)
	})
	if err != nil {
		return Inventory{}, err
	}
	s.invalidate(ctx, inv)
	return inv, nil
}

// DeleteInventory soft-deletes a zeroed-out inventory row.
func (s *Service) DeleteInventory(ctx context.Context, id int64, actor shared.Actor) error {
	var inv Inventory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loaded, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		inv = loaded
		if err := s.authorize(ctx, actor, inv.ProductID); err != nil {
			return err
		}
		if err := inv.MarkDeleted(); err != nil {
			return err
		}
		movement := &StockMovement{
			InventoryID:  inv.ID,
			ProductID:    inv.ProductID,
			WarehouseID:  inv.WarehouseID,
			MovementType: MovementAdjustment,
			PerformedBy:  actor.ID,
			Notes:        strPtr("inventory deleted"),
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		if err := tx.AppendEvents(ctx, s.toOutbox(inv.CollectEvents(), "")); err != nil {
			return err
		}
		return tx.UpdateCAS(ctx, &inv)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, inv)
	return nil
}

// UpdateLastCountDate stamps the physical-count reconciliation marker.
func (s *Service) UpdateLastCountDate(ctx context.Context, id int64, actor shared.Actor) error {
	var inv Inventory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loaded, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		inv = loaded
		if err := s.authorize(ctx, actor, inv.ProductID); err != nil {
			return err
		}
		inv.MarkCounted(time.Now())
		movement := &StockMovement{
			InventoryID:    inv.ID,
			ProductID:      inv.ProductID,
			WarehouseID:    inv.WarehouseID,
			MovementType:   MovementAdjustment,
			QuantityBefore: inv.Quantity,
			QuantityAfter:  inv.Quantity,
			PerformedBy:    actor.ID,
			Notes:          strPtr("physical count"),
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		return tx.UpdateCAS(ctx, &inv)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, inv)
	return nil
}

// GetInventory loads one inventory row through the cache.
func (s *Service) GetInventory(ctx context.Context, id int64) (Inventory, error) {
	var inv Inventory
	err := s.cache.GetOrCreate(ctx, fmt.Sprintf("inventory_%d", id), readCacheTTL, &inv,
		func(ctx context.Context) (interface{}, error) {
			return s.repo.GetByID(ctx, id)
		})
	return inv, err
}

// GetByProductWarehouse loads an inventory row by its natural key.
func (s *Service) GetByProductWarehouse(ctx context.Context, productID, warehouseID int64) (Inventory, error) {
	key := fmt.Sprintf("inventory_product_warehouse_%d_%d", productID, warehouseID)
	var inv Inventory
	err := s.cache.GetOrCreate(ctx, key, readCacheTTL, &inv,
		func(ctx context.Context) (interface{}, error) {
			return s.repo.GetByProductWarehouse(ctx, productID, warehouseID)
		})
	return inv, err
}

// ListByProduct returns every live inventory row for a product.
func (s *Service) ListByProduct(ctx context.Context, productID int64) ([]Inventory, error) {
	var result []Inventory
	err := s.cache.GetOrCreate(ctx, fmt.Sprintf("inventories_by_product_%d", productID), readCacheTTL, &result,
		func(ctx context.Context) (interface{}, error) {
			return s.repo.ListByProduct(ctx, productID)
		})
	return result, err
}

// ListMovements returns the newest ledger rows for an inventory the actor
// may see.
func (s *Service) ListMovements(ctx context.Context, inventoryID int64, limit int, actor shared.Actor) ([]StockMovement, error) {
	inv, err := s.repo.GetByID(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, inv.ProductID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, inventoryID, limit)
}

// GetLowStockAlerts lists inventories at or below their minimum level. Admin
// actors see every row; other actors only inventories of products they own.
func (s *Service) GetLowStockAlerts(ctx context.Context, actor shared.Actor, warehouseID *int64, page, perPage int) ([]LowStockAlert, shared.Pagination, error) {
	filter := LowStockFilter{WarehouseID: warehouseID, Page: page, PerPage: perPage}
	if !actor.Admin {
		owner := actor.ID
		filter.OwnerID = &owner
	}

	wh := int64(0)
	if warehouseID != nil {
		wh = *warehouseID
	}
	key := fmt.Sprintf("low_stock_alerts_%d_%d_%d_%d", actor.ID, wh, page, perPage)

	var payload struct {
		Alerts []LowStockAlert   `json:"alerts"`
		Page   shared.Pagination `json:"page"`
	}
	err := s.cache.GetOrCreate(ctx, key, readCacheTTL, &payload,
		func(ctx context.Context) (interface{}, error) {
			alerts, pagination, err := s.repo.LowStock(ctx, filter)
			if err != nil {
				return nil, err
			}
			return struct {
				Alerts []LowStockAlert   `json:"alerts"`
				Page   shared.Pagination `json:"page"`
			}{alerts, pagination}, nil
		})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return payload.Alerts, payload.Page, nil
}

// GetStockReportByProduct aggregates a product's position across all
// warehouses. Returns nil when the product has no live inventories.
func (s *Service) GetStockReportByProduct(ctx context.Context, productID int64, actor shared.Actor) (*StockReport, error) {
	if err := s.authorize(ctx, actor, productID); err != nil {
		return nil, err
	}

	var report *StockReport
	err := s.cache.GetOrCreate(ctx, fmt.Sprintf("stock_report_by_product_%d", productID), readCacheTTL, &report,
		func(ctx context.Context) (interface{}, error) {
			lines, err := s.repo.StockReportLines(ctx, productID)
			if err != nil {
				return nil, err
			}
			if len(lines) == 0 {
				return (*StockReport)(nil), nil
			}
			out := &StockReport{ProductID: productID, PerWarehouse: lines}
			for _, line := range lines {
				out.TotalQuantity += line.Quantity
				out.TotalReserved += line.ReservedQuantity
				out.TotalAvailable += line.AvailableQuantity
				out.TotalValue += line.Value
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// invalidate drops cached views touched by a mutation. Cache errors are
// logged, never surfaced: the cache is not load-bearing for correctness.
func (s *Service) invalidate(ctx context.Context, inv Inventory) {
	keys := []string{
		fmt.Sprintf("inventory_%d", inv.ID),
		fmt.Sprintf("inventory_product_warehouse_%d_%d", inv.ProductID, inv.WarehouseID),
		fmt.Sprintf("inventories_by_product_%d", inv.ProductID),
		fmt.Sprintf("stock_report_by_product_%d", inv.ProductID),
	}
	if err := s.cache.Remove(ctx, keys...); err != nil {
		s.logger.Error("cache invalidation failed", slog.Any("error", err))
	}
	if err := s.cache.RemoveMatch(ctx, "low_stock_alerts_*"); err != nil {
		s.logger.Error("cache invalidation failed", slog.Any("error", err))
	}
}

func (s *Service) toOutbox(events []DomainEvent, orderID string) []outbox.Event {
	out := make([]outbox.Event, 0, len(events))
	for _, evt := range events {
		if orderID != "" {
			switch e := evt.(type) {
			case StockReservedEvent:
				e.OrderID = orderID
				evt = e
			case StockReleasedEvent:
				e.OrderID = orderID
				evt = e
			}
		}
		record, err := outbox.NewEvent(evt.Topic(), evt)
		if err != nil {
			s.logger.Error("encode domain event failed", slog.Any("error", err))
			continue
		}
		out = append(out, record)
	}
	return out
}

func strPtr(s string) *string { return &s }

func refPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
