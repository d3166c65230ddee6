package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stocklane/stocklane/internal/inventory"
	"github.com/stocklane/stocklane/internal/shared"
)

const (
	// TaskLowStockScan triggers the periodic low stock sweep.
	TaskLowStockScan = "inventory:low_stock_scan"

	lowStockScanPageSize = 100
)

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low stock sweep.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// LowStockPort is the slice of the inventory service the job needs.
type LowStockPort interface {
	GetLowStockAlerts(ctx context.Context, actor shared.Actor, warehouseID *int64, page, perPage int) ([]inventory.LowStockAlert, shared.Pagination, error)
}

// LowStockScanJob walks every inventory below its minimum and mails a digest
// to the operations inbox.
type LowStockScanJob struct {
	inventories LowStockPort
	client      *Client
	recipient   string
	logger      *slog.Logger
	printer     *message.Printer
}

// NewLowStockScanJob constructs the job.
func NewLowStockScanJob(inventories LowStockPort, client *Client, recipient string, logger *slog.Logger) *LowStockScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockScanJob{
		inventories: inventories,
		client:      client,
		recipient:   recipient,
		logger:      logger,
		printer:     message.NewPrinter(language.English),
	}
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	scanner := shared.Actor{Admin: true}
	var all []inventory.LowStockAlert
	for page := 1; ; page++ {
		alerts, _, err := j.inventories.GetLowStockAlerts(ctx, scanner, nil, page, lowStockScanPageSize)
		if err != nil {
			return fmt.Errorf("low stock page %d: %w", page, err)
		}
		all = append(all, alerts...)
		if len(alerts) < lowStockScanPageSize {
			break
		}
	}

	if len(all) == 0 {
		j.logger.Info("low stock scan clean")
		return nil
	}

	body := j.composeDigest(all)
	subject := j.printer.Sprintf("Low stock alert: %d inventories below minimum", len(all))
	if _, err := j.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      j.recipient,
		Subject: subject,
		Body:    body,
	}); err != nil {
		return fmt.Errorf("enqueue digest: %w", err)
	}
	j.logger.Info("low stock digest queued", slog.Int("alerts", len(all)))
	return nil
}

func (j *LowStockScanJob) composeDigest(alerts []inventory.LowStockAlert) string {
	var b strings.Builder
	b.WriteString("The following inventories are at or below their minimum stock level:\n\n")
	for _, a := range alerts {
		b.WriteString(j.printer.Sprintf("- %s (%s) at %s: quantity %d, reserved %d, minimum %d\n",
			a.ProductName, a.ProductSKU, a.WarehouseCode,
			a.Quantity, a.ReservedQuantity, a.MinimumStockLevel))
	}
	return b.String()
}
