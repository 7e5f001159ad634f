// Package realtime consumes the push-based change notification stream.
// A delivery only says "something changed in table X"; the kind and
// payload are deliberately ignored and the whole collection is
// refetched. That coarseness trades network chatter for the absence of
// client-side merge logic.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"prodash/pkg/mq"
)

// Invalidator is the store-side hook a change notification triggers.
type Invalidator interface {
	Invalidate()
}

// Listener binds one consumer per watched table.
type Listener struct {
	url       string
	logger    *zap.Logger
	consumers []*mq.Consumer
}

func NewListener(url string, logger *zap.Logger) *Listener {
	return &Listener{url: url, logger: logger}
}

// Watch subscribes to change notifications for table and routes every
// delivery, whatever it says, to inv.Invalidate.
func (l *Listener) Watch(table string, inv Invalidator) error {
	routingKey := "record.changed." + table
	queueName := fmt.Sprintf("dashboard.%s.changed.q", table)

	consumer, err := mq.NewConsumer(l.url, queueName, routingKey, l.logger)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", table, err)
	}

	consumer.SetHandler(func(ctx context.Context, data json.RawMessage) error {
		l.logger.Debug("Change notification received",
			zap.String("table", table),
			zap.Int("payload_size", len(data)),
		)
		inv.Invalidate()
		return nil
	})

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			l.logger.Error("Change notification consumer exited",
				zap.String("table", table),
				zap.Error(err),
			)
		}
	}()

	l.consumers = append(l.consumers, consumer)
	l.logger.Info("Watching table for changes",
		zap.String("table", table),
		zap.String("routing_key", routingKey),
	)
	return nil
}

// Stop shuts down every consumer.
func (l *Listener) Stop() {
	for _, c := range l.consumers {
		c.Stop()
	}
}
