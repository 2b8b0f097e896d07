package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	ledgerrpc "github.com/defistate/reserve-ledger-go/api/jsonrpc"
	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrReconnectsExhausted is sent on Err when MaxReconnects is reached.
var ErrReconnectsExhausted = errors.New("reconnect attempts exhausted")

// -----------------------------------------------------------------------------
// StreamProcessor
// -----------------------------------------------------------------------------

// StreamProcessor parses stream frames, keeps the latest record and
// broadcasts it. It does no networking.
type StreamProcessor struct {
	lastState *engine.ReserveState
	stateCh   chan engine.ReserveState
	logger    Logger
}

// NewStreamProcessor creates a processor whose State channel holds bufferSize records.
func NewStreamProcessor(logger Logger, bufferSize uint) *StreamProcessor {
	return &StreamProcessor{
		logger:  logger,
		stateCh: make(chan engine.ReserveState, bufferSize),
	}
}

// State returns a read-only channel for receiving new records.
func (sp *StreamProcessor) State() <-chan engine.ReserveState {
	return sp.stateCh
}

// Last returns the most recently processed record, if any.
func (sp *StreamProcessor) Last() (engine.ReserveState, bool) {
	if sp.lastState == nil {
		return engine.ReserveState{}, false
	}
	return *sp.lastState, true
}

// ProcessMessage decodes one raw frame and, for a valid frame, publishes the
// record it carries.
func (sp *StreamProcessor) ProcessMessage(rawData json.RawMessage) error {
	processingStart := time.Now()
	var event SubscriptionEvent

	if err := json.Unmarshal(rawData, &event); err != nil {
		return fmt.Errorf("failed to unmarshal subscription event: %w", err)
	}

	switch event.Type {
	case engine.StreamEventFull:
		return sp.handleFullState(event, processingStart)
	default:
		return fmt.Errorf("received unknown event type: %q", event.Type)
	}
}

func (sp *StreamProcessor) handleFullState(event SubscriptionEvent, start time.Time) error {
	var state engine.ReserveState
	if err := json.Unmarshal(event.Payload, &state); err != nil {
		return fmt.Errorf("failed to unmarshal full state payload: %w", err)
	}

	sp.logMetrics(state, time.Since(start), event.SentAt)

	sp.lastState = &state
	sp.stateCh <- state
	return nil
}

func (sp *StreamProcessor) logMetrics(state engine.ReserveState, processingDur time.Duration, sentAt int64) {
	clientFinishTime := time.Now()
	clientStartTime := clientFinishTime.Add(-processingDur)
	transportTime := clientStartTime.Sub(time.Unix(0, sentAt))

	sp.logger.Debug("State Processed",
		"token_reserve", state.TokenReserve,
		"base_reserve", state.BaseReserve,
		"latency_transport_ms", transportTime.Milliseconds(),
		"latency_proc_ms", processingDur.Milliseconds(),
	)
}

// -----------------------------------------------------------------------------
// Client (Networking Wrapper)
// -----------------------------------------------------------------------------

// Client keeps a state subscription open, reconnecting with exponential
// backoff, and feeds every frame to a StreamProcessor.
type Client struct {
	processor     *StreamProcessor
	errCh         chan error
	logger        Logger
	maxReconnects uint
	initialDelay  time.Duration
	maxDelay      time.Duration
}

// NewClient validates cfg and starts the connection loop. The loop stops when
// ctx is canceled.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := &Client{
		processor:     NewStreamProcessor(cfg.Logger, cfg.BufferSize),
		errCh:         make(chan error, 1),
		logger:        cfg.Logger,
		maxReconnects: cfg.MaxReconnects,
		initialDelay:  initialReconnectDelay,
		maxDelay:      maxReconnectDelay,
	}
	if cfg.InitialReconnectDelay > 0 {
		client.initialDelay = cfg.InitialReconnectDelay
	}
	if cfg.MaxReconnectDelay > 0 {
		client.maxDelay = cfg.MaxReconnectDelay
	}

	go client.run(ctx, cfg.URL)
	return client, nil
}

// State delegates to the processor's state channel.
func (c *Client) State() <-chan engine.ReserveState {
	return c.processor.State()
}

// Err returns a read-only channel for receiving fatal (unrecoverable) errors.
// It is closed when the client stops.
func (c *Client) Err() <-chan error {
	return c.errCh
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialDelay
	b.MaxInterval = c.maxDelay
	return b
}

// run handles the networking lifecycle and feeds data to the processor.
func (c *Client) run(ctx context.Context, url string) {
	defer close(c.errCh)

	b := c.newBackOff()
	var failures uint

	for {
		if ctx.Err() != nil {
			c.logger.Info("Client context canceled, shutting down.")
			return
		}

		c.logger.Info("Attempting to connect to RPC server", "url", url)
		rpcClient, err := rpc.DialContext(ctx, url)
		if err == nil {
			c.logger.Info("Successfully connected to RPC server.")
			b.Reset()
			failures = 0

			err = c.subscribeAndProcess(ctx, rpcClient)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context canceled, shutting down.")
				return
			}
		}

		failures++
		if c.maxReconnects > 0 && failures >= c.maxReconnects {
			c.errCh <- fmt.Errorf("%w after %d attempts: %v", ErrReconnectsExhausted, failures, err)
			return
		}

		delay := b.NextBackOff()
		c.logger.Error("Connection lost, will retry...", "error", err, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.logger.Info("Client context canceled, shutting down.")
			return
		}
	}
}

func (c *Client) subscribeAndProcess(ctx context.Context, rpcClient *rpc.Client) error {
	defer rpcClient.Close()

	rawCh := make(chan json.RawMessage)
	sub, err := rpcClient.Subscribe(ctx, ledgerrpc.Namespace, rawCh, ledgerrpc.StateSubscriptionMethod)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Successfully subscribed. Waiting for data...")
	for {
		select {
		case rawData := <-rawCh:
			if err := c.processor.ProcessMessage(rawData); err != nil {
				c.logger.Error("Error processing message", "error", err)
			}
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed by server")
			}
			return err
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping subscription.")
			return ctx.Err()
		}
	}
}
