package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/dedup"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/inventory"
)

// HandlerFunc processes one delivery. A nil error acks the message.
type HandlerFunc func(ctx context.Context, body []byte) error

// ErrMalformed marks deliveries that can never succeed and must not be
// requeued.
var ErrMalformed = errors.New("malformed event")

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

const StockReceivedConsumerName = "pos-stock-received"

// StockReceivedHandler adds delivered units to stock. The checkpoint read,
// the restock and the checkpoint advance share one transaction, so a
// redelivered event is applied exactly once.
func StockReceivedHandler(txs TxRunner, stock *inventory.PostgresRepository, checkpoints *dedup.Checkpoints, logger *zap.Logger, consumerName string) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		msg, err := parseStockReceived(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		partition := strconv.FormatInt(msg.Payload.ProductID, 10)
		var incomingSeq int64
		if msg.Envelope != nil {
			partition = msg.Envelope.PartitionKey
			incomingSeq = msg.Envelope.Sequence
		}

		return txs.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			local := checkpoints.WithExecutor(tx)

			if incomingSeq != 0 {
				last, found, err := local.Last(ctx, consumerName, partition)
				if err != nil {
					return err
				}
				switch dedup.Decide(last, found, incomingSeq) {
				case dedup.Duplicate:
					logger.Info("skip duplicate stock received",
						zap.String("partition", partition),
						zap.Int64("sequence", incomingSeq),
						zap.Int64("last", last))
					return nil
				case dedup.Gap:
					logger.Warn("sequence gap",
						zap.String("partition", partition),
						zap.Int64("sequence", incomingSeq),
						zap.Int64("last", last))
				}
			}

			onHand, err := stock.WithExecutor(tx).Restock(ctx, msg.Payload.ProductID, msg.Payload.Quantity)
			if err != nil {
				return err
			}

			if incomingSeq != 0 {
				if err := local.Advance(ctx, consumerName, partition, incomingSeq); err != nil {
					return err
				}
			}

			logger.Info("stock received",
				zap.Int64("product_id", msg.Payload.ProductID),
				zap.Int("quantity", msg.Payload.Quantity),
				zap.Int("on_hand", onHand))
			return nil
		})
	}
}

// requeue reports whether a failed delivery is worth trying again later.
func requeue(err error) bool {
	switch {
	case errors.Is(err, ErrMalformed),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInvalidQuantity):
		return false
	}
	return true
}
