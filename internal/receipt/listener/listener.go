// Package listener consumes finished extraction results from the receipt
// scanning pipeline and runs them through reconciliation.
package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/receipt"
	"github.com/campops/procurement-service/internal/receipt/dto"
	"github.com/campops/procurement-service/pkg/broker"
	"github.com/campops/procurement-service/pkg/logger"
	"go.uber.org/zap"
)

// ExtractionEventType tags the event the scanning pipeline emits once a
// document has been fully parsed.
const ExtractionEventType = "receipt.extraction.completed"

type ExtractionEvent struct {
	EventID   string              `json:"event_id"`
	EventType string              `json:"event_type"`
	Payload   dto.ExtractionInput `json:"payload"`
	Timestamp time.Time           `json:"timestamp"`
}

// extractionActor is the identity event-driven reconciles run under. The
// pipeline is trusted the same way a reviewer is.
var extractionActor = model.Actor{UserID: "system", Role: model.RoleAdmin}

type ExtractionListener struct {
	consumer *broker.KafkaConsumer
	uc       receipt.UseCase
	logger   logger.ZapLogger
}

func NewExtractionListener(consumer *broker.KafkaConsumer, uc receipt.UseCase, log logger.ZapLogger) *ExtractionListener {
	return &ExtractionListener{consumer: consumer, uc: uc, logger: log}
}

func (l *ExtractionListener) Start(ctx context.Context) {
	l.logger.Info("starting extraction listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stopping extraction listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

func (l *ExtractionListener) processMessage(ctx context.Context, value []byte) {
	var event ExtractionEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("failed to unmarshal extraction event", zap.Error(err))
		return
	}
	if event.EventType != ExtractionEventType {
		return
	}

	result, err := l.uc.Reconcile(ctx, extractionActor, &event.Payload)
	if err != nil {
		l.logger.Error("failed to reconcile extracted receipt",
			zap.String("event_id", event.EventID),
			zap.String("property_id", event.Payload.PropertyID),
			zap.Error(err))
		return
	}

	l.logger.Info("extracted receipt reconciled",
		zap.String("event_id", event.EventID),
		zap.String("receipt_id", result.Receipt.ID),
		zap.Int("matched_lines", result.MatchedLines),
		zap.Int("unmatched_lines", result.UnmatchedLines))
}
