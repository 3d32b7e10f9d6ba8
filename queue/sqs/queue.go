// Package sqs implements queue.Queue on Amazon SQS.
package sqs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/poiesic/lectern/awsconf"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/queue"
)

// maxWaitSeconds is the SQS long-poll ceiling.
const maxWaitSeconds = 20

// Client is the subset of the SQS API the adapter uses.
type Client interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Queue implements queue.Queue.
type Queue struct {
	client     Client
	url        string
	visibility time.Duration
	logger     *slog.Logger
}

var _ queue.Queue = (*Queue)(nil)

// Option configures a Queue.
type Option func(*Queue) error

// WithVisibilityTimeout sets the visibility timeout requested on receive.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(q *Queue) error {
		if d < time.Second || d > 12*time.Hour {
			return fmt.Errorf("visibility timeout %s outside 1s..12h", d)
		}
		q.visibility = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		q.logger = logger
		return nil
	}
}

// New wraps client for the queue at url.
func New(client Client, url string, opts ...Option) (*Queue, error) {
	if client == nil {
		return nil, errors.New("sqs client is required")
	}
	if url == "" {
		return nil, errors.New("queue url is required")
	}
	q := &Queue{client: client, url: url, visibility: queue.DefaultVisibilityTimeout, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}
	q.logger = q.logger.With("component", "sqs_queue")
	return q, nil
}

// Open builds an SQS client from the AWS configuration. endpoint overrides
// the service endpoint, for local emulators.
func Open(ctx context.Context, awsOpts awsconf.Options, endpoint, url string, opts ...Option) (*Queue, error) {
	cfg, err := awsconf.Load(ctx, awsOpts)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
	})
	return New(client, url, opts...)
}

func (q *Queue) Send(ctx context.Context, envelope core.Envelope) error {
	body, err := envelope.Encode()
	if err != nil {
		return err
	}
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	q.logger.Debug("message sent", "task_id", envelope.TaskID, "message_id", aws.ToString(out.MessageId))
	return nil
}

// Receive issues one long poll. wait is capped at the SQS maximum of 20s.
func (q *Queue) Receive(ctx context.Context, wait time.Duration) (*queue.Message, error) {
	seconds := int32(wait / time.Second)
	seconds = max(0, min(seconds, maxWaitSeconds))

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(q.url),
		MaxNumberOfMessages:         1,
		WaitTimeSeconds:             seconds,
		VisibilityTimeout:           int32(q.visibility / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("receiving message: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	m := out.Messages[0]
	count, err := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil {
		count = 1
	}
	return &queue.Message{
		ID:           aws.ToString(m.MessageId),
		Body:         []byte(aws.ToString(m.Body)),
		Receipt:      aws.ToString(m.ReceiptHandle),
		ReceiveCount: count,
	}, nil
}

func (q *Queue) Ack(ctx context.Context, receipt string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receipt),
	})
	return translateError(err)
}

func (q *Queue) ExtendVisibility(ctx context.Context, receipt string, d time.Duration) error {
	_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.url),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: int32(d / time.Second),
	})
	return translateError(err)
}

// Depth reads ApproximateNumberOfMessages.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.url),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, fmt.Errorf("reading queue depth: %w", err)
	}
	raw := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	depth, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing queue depth %q: %w", raw, err)
	}
	return depth, nil
}

func (q *Queue) Close() error {
	return nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var (
		invalid     *types.ReceiptHandleIsInvalid
		notInflight *types.MessageNotInflight
	)
	if errors.As(err, &invalid) || errors.As(err, &notInflight) {
		return fmt.Errorf("%w: %w", queue.ErrReceiptExpired, err)
	}
	return err
}
