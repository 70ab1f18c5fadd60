package awsq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/sqs"

	"github.com/trickstertwo/xclaim"
)

// Queue is an SQS-backed queue transport. SQS has no native peek, so Peek
// is implemented as a zero-visibility receive: messages stay immediately
// available but their ApproximateReceiveCount ticks up, and that count
// feeds the dead-letter threshold. Repeated peeks of an undelivered
// message walk it toward the dead-letter queue; keep peeking occasional or
// raise MaxDequeueCount on queues that are peeked routinely.
type Queue struct {
	name   string
	client *sqs.SQS

	queueURL string
}

// NewQueue builds an SQS transport for cfg.Queue. The queue itself is
// created by Create, not here.
func NewQueue(cfg Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Queue == "" {
		return nil, fmt.Errorf("config: queue required")
	}
	sess, err := cfg.newSession()
	if err != nil {
		return nil, fmt.Errorf("awsq: create session: %w", err)
	}
	return &Queue{name: cfg.Queue, client: sqs.New(sess)}, nil
}

// Create ensures the queue exists. CreateQueue is idempotent for identical
// attributes, so repeated calls are safe.
func (q *Queue) Create(ctx context.Context) error {
	out, err := q.client.CreateQueueWithContext(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(q.name),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == sqs.ErrCodeQueueNameExists {
			return q.resolveURL(ctx)
		}
		return fmt.Errorf("awsq: create queue %q: %w", q.name, err)
	}
	q.queueURL = aws.StringValue(out.QueueUrl)
	return nil
}

func (q *Queue) resolveURL(ctx context.Context) error {
	out, err := q.client.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(q.name),
	})
	if err != nil {
		return fmt.Errorf("awsq: resolve queue url %q: %w", q.name, err)
	}
	q.queueURL = aws.StringValue(out.QueueUrl)
	return nil
}

func (q *Queue) url(ctx context.Context) (string, error) {
	if q.queueURL == "" {
		if err := q.resolveURL(ctx); err != nil {
			return "", err
		}
	}
	return q.queueURL, nil
}

func (q *Queue) Name() string { return q.name }

func (q *Queue) Enqueue(ctx context.Context, body string, delay time.Duration) (string, error) {
	url, err := q.url(ctx)
	if err != nil {
		return "", err
	}
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(body),
	}
	if delay > 0 {
		in.DelaySeconds = aws.Int64(int64(delay / time.Second))
	}
	out, err := q.client.SendMessageWithContext(ctx, in)
	if err != nil {
		return "", fmt.Errorf("awsq: send message: %w", err)
	}
	return aws.StringValue(out.MessageId), nil
}

func (q *Queue) Dequeue(ctx context.Context, max int, visibility time.Duration) ([]xclaim.QueuedMessage, error) {
	return q.receive(ctx, max, int64(visibility/time.Second))
}

func (q *Queue) receive(ctx context.Context, max int, visibilitySeconds int64) ([]xclaim.QueuedMessage, error) {
	url, err := q.url(ctx)
	if err != nil {
		return nil, err
	}
	// SQS caps a single receive at 10 messages.
	batch := int64(max)
	if batch > 10 {
		batch = 10
	}
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(url),
		MaxNumberOfMessages: aws.Int64(batch),
		AttributeNames:      []*string{aws.String(sqs.MessageSystemAttributeNameApproximateReceiveCount)},
		VisibilityTimeout:   aws.Int64(visibilitySeconds),
	}
	out, err := q.client.ReceiveMessageWithContext(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("awsq: receive messages: %w", err)
	}
	msgs := make([]xclaim.QueuedMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.ParseInt(
			aws.StringValue(m.Attributes[sqs.MessageSystemAttributeNameApproximateReceiveCount]), 10, 64)
		msgs = append(msgs, xclaim.QueuedMessage{
			ID:           aws.StringValue(m.MessageId),
			Body:         aws.StringValue(m.Body),
			DequeueCount: count,
			Receipt:      aws.StringValue(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

func (q *Queue) Peek(ctx context.Context, max int) ([]string, error) {
	msgs, err := q.receive(ctx, max, 0)
	if err != nil {
		return nil, err
	}
	bodies := make([]string, 0, len(msgs))
	for _, m := range msgs {
		bodies = append(bodies, m.Body)
	}
	return bodies, nil
}

func (q *Queue) Delete(ctx context.Context, _ string, receipt string) error {
	url, err := q.url(ctx)
	if err != nil {
		return err
	}
	_, err = q.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("awsq: delete message: %w", err)
	}
	return nil
}

func (q *Queue) ApproximateCount(ctx context.Context) (int, error) {
	url, err := q.url(ctx)
	if err != nil {
		return 0, err
	}
	out, err := q.client.GetQueueAttributesWithContext(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []*string{aws.String(sqs.QueueAttributeNameApproximateNumberOfMessages)},
	})
	if err != nil {
		return 0, fmt.Errorf("awsq: queue attributes: %w", err)
	}
	n, err := strconv.Atoi(aws.StringValue(out.Attributes[sqs.QueueAttributeNameApproximateNumberOfMessages]))
	if err != nil {
		return 0, fmt.Errorf("awsq: parse queue depth: %w", err)
	}
	return n, nil
}
