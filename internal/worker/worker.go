package worker

import (
	"context"
	"time"

	"market-service/internal/broker"
	"market-service/internal/inventory"
	"market-service/internal/models"
	"market-service/internal/store"
	"market-service/internal/util"

	"go.uber.org/zap"
)

// NotifyWorker consumes ListingSold events and notifies sellers that their
// item sold. Notification is best-effort; a failure never blocks settlement,
// which already completed before the event was published.
type NotifyWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotifyWorker creates a seller-notification worker
func NewNotifyWorker(consumer *broker.Consumer) *NotifyWorker {
	logger := util.GetLogger()
	eventHandler := broker.NewEventHandler(logger)

	w := &NotifyWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
	eventHandler.OnListingSold(w.notifySeller)
	return w
}

func (w *NotifyWorker) notifySeller(ctx context.Context, event *models.ListingSoldEvent) error {
	w.logger.Info("Item sold",
		zap.String("seller_id", event.SellerID.String()),
		zap.String("listing_id", event.ListingID.String()),
		zap.String("item_id", event.Item.ItemID),
		zap.Int("quantity", event.Item.Quantity),
		zap.String("price", event.Price.String()))
	return nil
}

// Start starts the worker
func (w *NotifyWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notify worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotifyWorker) Stop() error {
	w.logger.Info("Stopping notify worker")
	return w.consumer.Close()
}

// ReturnWorker periodically drains the return outbox: pending returns whose
// item hand-back failed (or was interrupted by a crash) are redelivered until
// they succeed.
type ReturnWorker struct {
	store     *store.Store
	inventory *inventory.Holdings
	interval  time.Duration
	logger    *zap.Logger
}

// NewReturnWorker creates a return-outbox redelivery worker
func NewReturnWorker(store *store.Store, inventory *inventory.Holdings, interval time.Duration) *ReturnWorker {
	return &ReturnWorker{
		store:     store,
		inventory: inventory,
		interval:  interval,
		logger:    util.GetLogger(),
	}
}

// Start runs the redelivery loop until the context is cancelled
func (w *ReturnWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting return worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Return worker context cancelled, stopping")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *ReturnWorker) drain(ctx context.Context) {
	returns, err := w.store.ListUndeliveredReturns(ctx)
	if err != nil {
		w.logger.Error("Failed to list undelivered returns", zap.Error(err))
		return
	}

	for _, r := range returns {
		accepted, err := w.inventory.GiveItem(ctx, r.OwnerID, r.Item)
		if err != nil {
			w.logger.Error("Failed to redeliver return",
				zap.String("listing_id", r.ListingID.String()),
				zap.Error(err))
			continue
		}
		if !accepted {
			if err := w.inventory.DepositFallback(ctx, r.OwnerID, r.Item); err != nil {
				w.logger.Error("Failed to stash return",
					zap.String("listing_id", r.ListingID.String()),
					zap.Error(err))
				continue
			}
		}

		if err := w.store.MarkReturnDelivered(ctx, r.ListingID); err != nil {
			w.logger.Error("Failed to mark return delivered",
				zap.String("listing_id", r.ListingID.String()),
				zap.Error(err))
			continue
		}

		util.ReturnsRedeliveredTotal.Inc()
		w.logger.Info("Redelivered pending return",
			zap.String("listing_id", r.ListingID.String()),
			zap.String("owner_id", r.OwnerID.String()))
	}
}
