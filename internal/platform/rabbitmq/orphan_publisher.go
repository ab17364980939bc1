package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"experienceboard/internal/model"
)

// OrphanPublisher sends orphaned storage object reports to the ledger queue
// and waits for the broker to confirm each one.
type OrphanPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewOrphanPublisher(conn *amqp.Connection, queueName string) *OrphanPublisher {
	return &OrphanPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *OrphanPublisher) Publish(ctx context.Context, orphan model.OrphanedObject) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := declareDurable(ch, p.queueName); err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable publisher confirms failed: %w", err)
	}

	payload, err := encodeOrphan(orphan)
	if err != nil {
		return err
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Type:         "attachment.orphan",
		},
	)
	if err != nil {
		return fmt.Errorf("publish orphan report failed: %w", err)
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait orphan report confirm failed: %w", err)
	}
	if !acked {
		return fmt.Errorf("orphan report nacked by broker")
	}
	return nil
}

func encodeOrphan(orphan model.OrphanedObject) ([]byte, error) {
	payload, err := json.Marshal(orphan)
	if err != nil {
		return nil, fmt.Errorf("marshal orphan report failed: %w", err)
	}
	return payload, nil
}

// DecodeOrphan is the inverse of the publisher's encoding.
func DecodeOrphan(body []byte) (model.OrphanedObject, error) {
	var orphan model.OrphanedObject
	if err := json.Unmarshal(body, &orphan); err != nil {
		return model.OrphanedObject{}, fmt.Errorf("decode orphan report failed: %w", err)
	}
	orphan.ID = 0
	orphan.ResolvedAt = nil
	return orphan, nil
}
