package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LoadCompleted is published once a batch has been committed.
type LoadCompleted struct {
	RunID        string    `json:"runID"`
	Source       string    `json:"source"`
	InputRows    int       `json:"inputRows"`
	LoadedRows   int       `json:"loadedRows"`
	RejectedRows int       `json:"rejectedRows"`
	FinishedAt   time.Time `json:"finishedAt"`
}

type Notifier interface {
	Notify(ctx context.Context, event LoadCompleted) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, LoadCompleted) error { return nil }
func (Nop) Close() error                                 { return nil }

// ---------- SQS ----------

// QueueAPI is the subset of the SQS client the notifier needs.
type QueueAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSNotifier struct {
	client   QueueAPI
	queueURL string
	log      *zap.Logger
}

// NewSQSNotifier resolves the queue URL once, up front.
func NewSQSNotifier(ctx context.Context, client QueueAPI, queueName string, log *zap.Logger) (*SQSNotifier, error) {
	resp, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queueName)})
	if err != nil {
		return nil, fmt.Errorf("failed to get SQS queue URL: %w", err)
	}
	return &SQSNotifier{client: client, queueURL: aws.ToString(resp.QueueUrl), log: log}, nil
}

func (n *SQSNotifier) Notify(ctx context.Context, event LoadCompleted) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(msg)),
	})
	if err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}

	n.log.Info("Sent SQS message", zap.String("queue_url", n.queueURL), zap.String("run_id", event.RunID))
	return nil
}

func (n *SQSNotifier) Close() error { return nil }

// ---------- Kafka ----------

// MessageWriter is implemented by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaNotifier struct {
	writer  MessageWriter
	timeout time.Duration
	log     *zap.Logger
}

// NewKafkaWriter returns a producer for topic that balances by bytes.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
}

func NewKafkaNotifier(writer MessageWriter, log *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, timeout: 10 * time.Second, log: log}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event LoadCompleted) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RunID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write Kafka message: %w", err)
	}

	n.log.Info("Sent Kafka message", zap.String("run_id", event.RunID), zap.Int("bytes", len(value)))
	return nil
}

func (n *KafkaNotifier) Close() error { return n.writer.Close() }
