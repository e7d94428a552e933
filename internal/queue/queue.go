package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	AnalysisQueueName      = "analysis_jobs"
	ExchangeName           = "lawan_judol"
	DeadLetterQueueName    = "analysis_jobs_dlq"
	DeadLetterExchangeName = "lawan_judol_dlq"
)

// AnalysisMessage asks the worker to classify the comments of one video
type AnalysisMessage struct {
	AnalysisID string    `json:"analysis_id"`
	UserID     string    `json:"user_id"`
	VideoID    string    `json:"video_id"`
	QueuedAt   time.Time `json:"queued_at"`
}

// Handler processes one analysis message. Messages are delivered once; a
// handler error moves the message to the dead letter queue.
type Handler func(ctx context.Context, msg *AnalysisMessage) error

// Queue provides message queue operations
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logging.Logger
}

// New creates a new queue client and declares the topology
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	if logger == nil {
		logger = logging.Nop()
	}

	return &Queue{
		conn:    conn,
		channel: channel,
		logger:  logger.WithComponent("queue"),
	}, nil
}

func declareTopology(channel *amqp.Channel) error {
	for _, exchange := range []string{ExchangeName, DeadLetterExchangeName} {
		err := channel.ExchangeDeclare(
			exchange,
			"direct",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}
	}

	// Dead letter queue
	if _, err := channel.QueueDeclare(DeadLetterQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := channel.QueueBind(DeadLetterQueueName, AnalysisQueueName, DeadLetterExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	// Rejected messages are routed to the dead letter exchange
	_, err := channel.QueueDeclare(
		AnalysisQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange": DeadLetterExchangeName,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(AnalysisQueueName, AnalysisQueueName, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishAnalysis publishes an analysis job
func (q *Queue) PublishAnalysis(ctx context.Context, msg *AnalysisMessage) error {
	if msg.QueuedAt.IsZero() {
		msg.QueuedAt = time.Now()
	}

	body, err := encode(msg)
	if err != nil {
		return err
	}

	err = q.channel.PublishWithContext(ctx,
		ExchangeName,
		AnalysisQueueName,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    msg.AnalysisID,
			Body:         body,
			Timestamp:    msg.QueuedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish analysis: %w", err)
	}

	return nil
}

// ConsumeAnalyses starts consuming analysis jobs until ctx is done
func (q *Queue) ConsumeAnalyses(ctx context.Context, handler Handler) error {
	// One job at a time per worker
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		AnalysisQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-msgs:
				if !ok {
					return
				}
				q.dispatch(ctx, delivery, handler)
			}
		}
	}()

	return nil
}

func (q *Queue) dispatch(ctx context.Context, delivery amqp.Delivery, handler Handler) {
	msg, err := decode(delivery.Body)
	if err != nil {
		q.logger.ErrorWithErr("Discarding malformed analysis message", err)
		delivery.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		q.logger.WithJobID(msg.AnalysisID).ErrorWithErr("Analysis handler failed", err)
		delivery.Nack(false, false)
		return
	}
	delivery.Ack(false)
}

// GetQueueDepth returns the number of messages in the queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(AnalysisQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}

// GetDLQDepth returns the number of dead-lettered analyses
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	return info.Messages, nil
}

func encode(msg *AnalysisMessage) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return body, nil
}

func decode(body []byte) (*AnalysisMessage, error) {
	var msg AnalysisMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	if msg.AnalysisID == "" || msg.UserID == "" || msg.VideoID == "" {
		return nil, fmt.Errorf("analysis message is missing identifiers")
	}
	return &msg, nil
}
