// Package amqp carries training jobs over RabbitMQ. The job record is
// saved to the job store before its message is published, so a poller
// can always see a submitted job.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"spendplan/internal/jobs"
	"spendplan/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishRetries = 3
)

type Client struct {
	url          string
	exchangeName string
	queueName    string
	store        jobs.JobStore
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time

	cancelConsume context.CancelFunc
	consumeDone   chan struct{}
}

// NewClient connects and declares the exchange and queue. store may be nil
// for a consumer that only needs the message contents.
func NewClient(url, exchangeName, queueName string, store jobs.JobStore, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		store:        store,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.conn, c.channel = conn, channel

	if err := c.setup(); err != nil {
		channel.Close()
		conn.Close()
		c.conn, c.channel = nil, nil
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on the direct exchange.
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	// One unacked training job per consumer.
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff doubles from one second and caps at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// PublishTraining stores job as pending and publishes its message.
func (c *Client) PublishTraining(ctx context.Context, job *jobs.TrainingJob) error {
	if c.isCircuitOpen() {
		return errors.New("publish training job: circuit breaker is open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	job.Prepare(uuid.NewString, time.Now())
	if c.store != nil {
		if err := c.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("save job: %w", err)
		}
	}

	body, err := NewTrainingMessage(job).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < publishRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
			if isConnectionError(lastErr) {
				if err := c.connect(); err != nil {
					lastErr = err
					continue
				}
			}
		}
		if lastErr = c.publish(ctx, body); lastErr == nil {
			c.recordSuccess()
			c.logger.InfoContext(ctx, "Published training job",
				log.FieldJobID, job.JobID,
				log.FieldUserID, job.UserID,
				"exchange", c.exchangeName,
				"queue", c.queueName)
			return nil
		}
		c.recordFailure()
		c.logger.WarnContext(ctx, "Publish attempt failed",
			log.FieldJobID, job.JobID, "attempt", attempt+1, log.FieldError, lastErr)
	}
	return fmt.Errorf("publish message: %w", lastErr)
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return amqp091.ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Start consumes training messages in the background until ctx is done or
// Stop is called.
func (c *Client) Start(ctx context.Context, handler jobs.JobHandler) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return amqp091.ErrClosed
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancelConsume = cancel
	c.consumeDone = make(chan struct{})
	c.logger.InfoContext(ctx, "Started consuming training jobs", "queue", c.queueName)

	go func() {
		defer close(c.consumeDone)
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping message consumption", "reason", ctx.Err())
				return
			case d, ok := <-msgs:
				if !ok {
					c.logger.Warn("Message channel closed")
					return
				}
				c.handleDelivery(ctx, d, handler)
			}
		}
	}()
	return nil
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler jobs.JobHandler) {
	msg, err := TrainingMessageFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err)
		_ = d.Nack(false, false) // reject and don't requeue
		return
	}

	job := c.loadJob(ctx, msg)
	now := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &now
	c.save(ctx, job)

	err = handler(ctx, job)
	done := time.Now()
	job.CompletedAt = &done

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		c.save(ctx, job)
		_ = d.Ack(false)
		c.logger.InfoContext(ctx, "Training job completed", log.FieldJobID, job.JobID, log.FieldRunID, job.RunID)

	case job.RetryCount >= job.MaxRetries:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		c.save(ctx, job)
		_ = d.Ack(false)
		c.logger.ErrorContext(ctx, "Training job failed", log.FieldJobID, job.JobID, log.FieldError, err)

	default:
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		c.save(ctx, job)
		c.logger.WarnContext(ctx, "Training job will be retried",
			log.FieldJobID, job.JobID, "attempt", job.RetryCount, log.FieldError, err)

		select {
		case <-ctx.Done():
		case <-time.After(exponentialBackoff(job.RetryCount - 1)):
		}
		_ = d.Nack(false, true) // reject and requeue
	}
}

func (c *Client) loadJob(ctx context.Context, msg *TrainingMessage) *jobs.TrainingJob {
	if c.store == nil {
		return msg.job()
	}
	job, err := c.store.GetJob(ctx, msg.JobID)
	if err != nil {
		c.logger.WarnContext(ctx, "Job not in store, using message", log.FieldJobID, msg.JobID, log.FieldError, err)
		return msg.job()
	}
	return job
}

func (c *Client) save(ctx context.Context, job *jobs.TrainingJob) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveJob(ctx, job); err != nil {
		c.logger.WarnContext(ctx, "Failed to save job state", log.FieldJobID, job.JobID, log.FieldError, err)
	}
}

// Stop ends consumption and waits for the in-flight delivery.
func (c *Client) Stop(ctx context.Context) error {
	if c.cancelConsume == nil {
		return nil
	}
	c.cancelConsume()
	select {
	case <-c.consumeDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, fmt.Errorf("channel: %w", err))
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, fmt.Errorf("connection: %w", err))
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}

var (
	_ jobs.Publisher = (*Client)(nil)
	_ jobs.Consumer  = (*Client)(nil)
)
