package worker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"experienceboard/internal/model"
	"experienceboard/internal/platform/logger"
	"experienceboard/internal/platform/rabbitmq"
)

type OrphanStore interface {
	Create(ctx context.Context, orphan *model.OrphanedObject) error
}

// OrphanPersistWorker drains orphan reports into the orphaned_objects table.
type OrphanPersistWorker struct {
	conn      *amqp.Connection
	repo      OrphanStore
	queueName string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrphanPersistWorker(conn *amqp.Connection, repo OrphanStore, queueName string, log *logger.Logger) *OrphanPersistWorker {
	return &OrphanPersistWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
		log:       log.With("worker", "orphan_persist", "queue", queueName),
	}
}

func (w *OrphanPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	w.log.Info("orphan worker started")
	return nil
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (w *OrphanPersistWorker) handle(ctx context.Context, d amqp.Delivery) {
	w.process(ctx, d.Body, d.Redelivered, &d)
}

// process acks stored reports, drops undecodable ones, and requeues a store
// failure once before dropping it.
func (w *OrphanPersistWorker) process(ctx context.Context, body []byte, redelivered bool, ack acknowledger) {
	orphan, err := rabbitmq.DecodeOrphan(body)
	if err != nil {
		w.log.Warn("orphan worker decode failed", "error", err)
		_ = ack.Nack(false, false)
		return
	}

	if err := w.repo.Create(ctx, &orphan); err != nil {
		w.log.Error("orphan worker persist failed",
			"record_id", orphan.ExperienceID,
			"object_path", orphan.ObjectPath,
			"redelivered", redelivered,
			"error", err,
		)
		_ = ack.Nack(false, !redelivered)
		return
	}

	_ = ack.Ack(false)
}

func (w *OrphanPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
