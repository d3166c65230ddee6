package pickpack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stocklane/stocklane/internal/masterdata/warehouses"
	"github.com/stocklane/stocklane/internal/orders"
	"github.com/stocklane/stocklane/internal/outbox"
	"github.com/stocklane/stocklane/internal/shared"
)

// TopicPickPackCreated is published through the outbox on creation.
const TopicPickPackCreated = "pickpack.created"

// PickPackCreatedEvent signals a new fulfillment record.
type PickPackCreatedEvent struct {
	PickPackID  int64  `json:"pick_pack_id"`
	OrderID     int64  `json:"order_id"`
	WarehouseID int64  `json:"warehouse_id"`
	PackNumber  string `json:"pack_number"`
	ItemCount   int    `json:"item_count"`
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (PickPack, error)
	GetByOrder(ctx context.Context, orderID int64) (PickPack, error)
	UpdateStatus(ctx context.Context, pp *PickPack, previous Status) error
}

// WarehousePort resolves warehouses for the active check.
type WarehousePort interface {
	Get(ctx context.Context, id int64) (warehouses.Warehouse, error)
}

// OrderPort reads the order whose lines are snapshotted.
type OrderPort interface {
	Get(ctx context.Context, id int64) (orders.Order, error)
}

// Service coordinates pick-pack fulfillment.
type Service struct {
	repo       RepositoryPort
	warehouses WarehousePort
	orders     OrderPort
	logger     *slog.Logger
	now        func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, wh WarehousePort, ord OrderPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, warehouses: wh, orders: ord, logger: logger, now: time.Now}
}

// CreateInput describes a pick-pack creation request.
type CreateInput struct {
	OrderID     int64
	WarehouseID int64
	Notes       string
	Actor       shared.Actor
}

// Create builds the fulfillment record for an order: verifies the warehouse
// is active, guards against a second pick-pack for the same order, assigns a
// same-day sequential pack number and snapshots every order line, all in one
// transaction. Stock is not reserved here; reservation happened at order
// placement.
func (s *Service) Create(ctx context.Context, input CreateInput) (PickPack, error) {
	warehouse, err := s.warehouses.Get(ctx, input.WarehouseID)
	if err != nil {
		return PickPack{}, err
	}
	if !warehouse.Active {
		return PickPack{}, ErrWarehouseInactive
	}

	order, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return PickPack{}, err
	}
	if len(order.Items) == 0 {
		return PickPack{}, ErrEmptyOrder
	}

	pp := PickPack{
		OrderID:     input.OrderID,
		WarehouseID: input.WarehouseID,
		Status:      StatusCreated,
		Notes:       input.Notes,
		Items:       make([]PickPackItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		pp.Items = append(pp.Items, PickPackItem{
			OrderItemID:    item.ID,
			ProductID:      item.ProductID,
			QuantityToPick: item.Quantity,
		})
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.ExistsForOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicatePickPack
		}

		prefix := fmt.Sprintf("PK-%s-", s.now().UTC().Format("20060102"))
		count, err := tx.CountPackNumbersForDay(ctx, prefix)
		if err != nil {
			return err
		}
		pp.PackNumber = fmt.Sprintf("%s%06d", prefix, count+1)

		if err := tx.Insert(ctx, &pp); err != nil {
			return err
		}

		evt, err := outbox.NewEvent(TopicPickPackCreated, PickPackCreatedEvent{
			PickPackID:  pp.ID,
			OrderID:     pp.OrderID,
			WarehouseID: pp.WarehouseID,
			PackNumber:  pp.PackNumber,
			ItemCount:   len(pp.Items),
		})
		if err != nil {
			return err
		}
		return tx.AppendEvents(ctx, []outbox.Event{evt})
	})
	if err != nil {
		return PickPack{}, err
	}
	return pp, nil
}

// Get loads a pick-pack with its items.
func (s *Service) Get(ctx context.Context, id int64) (PickPack, error) {
	return s.repo.Get(ctx, id)
}

// GetByOrder loads the pick-pack for an order.
func (s *Service) GetByOrder(ctx context.Context, orderID int64) (PickPack, error) {
	return s.repo.GetByOrder(ctx, orderID)
}

// StartPicking moves CREATED -> PICKING and records the picker.
func (s *Service) StartPicking(ctx context.Context, id int64, actor shared.Actor) (PickPack, error) {
	return s.transition(ctx, id, StatusPicking, actor)
}

// CompletePicking moves PICKING -> PICKED.
func (s *Service) CompletePicking(ctx context.Context, id int64, actor shared.Actor) (PickPack, error) {
	return s.transition(ctx, id, StatusPicked, actor)
}

// StartPacking moves PICKED -> PACKING and records the packer.
func (s *Service) StartPacking(ctx context.Context, id int64, actor shared.Actor) (PickPack, error) {
	return s.transition(ctx, id, StatusPacking, actor)
}

// CompletePacking moves PACKING -> PACKED.
func (s *Service) CompletePacking(ctx context.Context, id int64, actor shared.Actor) (PickPack, error) {
	return s.transition(ctx, id, StatusPacked, actor)
}

func (s *Service) transition(ctx context.Context, id int64, next Status, actor shared.Actor) (PickPack, error) {
	pp, err := s.repo.Get(ctx, id)
	if err != nil {
		return PickPack{}, err
	}
	previous := pp.Status
	if err := pp.Transition(next, actor.ID); err != nil {
		return PickPack{}, err
	}
	if err := s.repo.UpdateStatus(ctx, &pp, previous); err != nil {
		return PickPack{}, err
	}
	return pp, nil
}
