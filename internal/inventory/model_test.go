package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReserveReleaseAdjustScenario(t *testing.T) {
	inv := &Inventory{ID: 1, ProductID: 1, WarehouseID: 1, Quantity: 10}

	require.NoError(t, inv.Reserve(7))
	require.Equal(t, 7, inv.ReservedQuantity)
	require.Equal(t, 3, inv.AvailableQuantity())

	require.ErrorIs(t, inv.Reserve(5), ErrInsufficientStock)
	require.Equal(t, 7, inv.ReservedQuantity)

	require.ErrorIs(t, inv.AdjustQuantity(-10), ErrInvalidAdjustment)

	require.NoError(t, inv.Release(7))
	require.Equal(t, 0, inv.ReservedQuantity)

	require.NoError(t, inv.AdjustQuantity(-10))
	require.Equal(t, 0, inv.Quantity)
}

func TestInvariantsHoldAfterEveryMutation(t *testing.T) {
	inv := &Inventory{Quantity: 5}

	check := func() {
		require.GreaterOrEqual(t, inv.ReservedQuantity, 0)
		require.LessOrEqual(t, inv.ReservedQuantity, inv.Quantity)
		require.GreaterOrEqual(t, inv.Quantity, 0)
		require.Equal(t, inv.Quantity-inv.ReservedQuantity, inv.AvailableQuantity())
	}

	require.NoError(t, inv.Reserve(3))
	check()
	require.NoError(t, inv.AdjustQuantity(4))
	check()
	require.NoError(t, inv.Release(2))
	check()
	require.ErrorIs(t, inv.AdjustQuantity(-9), ErrInvalidAdjustment)
	check()
	require.NoError(t, inv.Release(100))
	check()
	require.Equal(t, 0, inv.ReservedQuantity)
}

func TestReleaseClampsAtZero(t *testing.T) {
	inv := &Inventory{Quantity: 10, ReservedQuantity: 4}
	require.NoError(t, inv.Release(9))
	require.Equal(t, 0, inv.ReservedQuantity)
}

func TestReserveRejectsNonPositive(t *testing.T) {
	inv := &Inventory{Quantity: 10}
	require.ErrorIs(t, inv.Reserve(0), ErrInvalidQuantity)
	require.ErrorIs(t, inv.Reserve(-3), ErrInvalidQuantity)
	require.ErrorIs(t, inv.Release(0), ErrInvalidQuantity)
}

func TestUpdateStockLevels(t *testing.T) {
	inv := &Inventory{}
	require.ErrorIs(t, inv.UpdateStockLevels(-1, 5), ErrInvalidStockLevels)
	require.ErrorIs(t, inv.UpdateStockLevels(10, 5), ErrInvalidStockLevels)
	require.NoError(t, inv.UpdateStockLevels(5, 50))
	require.Equal(t, 5, inv.MinimumStockLevel)
	require.Equal(t, 50, inv.MaximumStockLevel)
}

func TestUpdateUnitCost(t *testing.T) {
	inv := &Inventory{}
	require.ErrorIs(t, inv.UpdateUnitCost(-0.01), ErrInvalidUnitCost)
	require.NoError(t, inv.UpdateUnitCost(12.5))
	require.Equal(t, 12.5, inv.UnitCost)
}

func TestMarkDeletedGuard(t *testing.T) {
	inv := &Inventory{Quantity: 1}
	require.ErrorIs(t, inv.MarkDeleted(), ErrNotEmpty)

	inv = &Inventory{Quantity: 2, ReservedQuantity: 2}
	require.ErrorIs(t, inv.MarkDeleted(), ErrNotEmpty)

	inv = &Inventory{}
	require.NoError(t, inv.MarkDeleted())
	require.True(t, inv.Deleted)
}

func TestMarkCounted(t *testing.T) {
	inv := &Inventory{}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	inv.MarkCounted(now)
	require.NotNil(t, inv.LastCountedAt)
	require.Equal(t, now, *inv.LastCountedAt)
}

func TestCollectEvents(t *testing.T) {
	inv := &Inventory{Quantity: 10}
	require.NoError(t, inv.Reserve(4))
	require.NoError(t, inv.Release(2))

	events := inv.CollectEvents()
	require.Len(t, events, 2)
	require.Equal(t, TopicStockReserved, events[0].Topic())
	require.Equal(t, TopicStockReleased, events[1].Topic())

	require.Empty(t, inv.CollectEvents())
}

func TestIsLowStock(t *testing.T) {
	inv := &Inventory{Quantity: 5, MinimumStockLevel: 5}
	require.True(t, inv.IsLowStock())
	inv.Quantity = 6
	require.False(t, inv.IsLowStock())
}
