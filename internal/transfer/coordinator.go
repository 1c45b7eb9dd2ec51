package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescale/twinpane/internal/constants"
	"github.com/rescale/twinpane/internal/events"
	"github.com/rescale/twinpane/internal/logging"
)

// State is the coordinator's lifecycle state. Terminal statuses are
// reported through the Outcome; the coordinator itself returns to Idle.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Handle refers to a started transfer.
type Handle struct {
	id      string
	req     Request
	started time.Time
	done    chan struct{}
	cancel  context.CancelFunc
	outcome Outcome
}

// ID is a unique identifier for the transfer.
func (h *Handle) ID() string { return h.id }

// Request returns what was asked for.
func (h *Handle) Request() Request { return h.req }

// Done is closed when the transfer has reached a terminal status and the
// coordinator is Idle again.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the transfer finishes and returns its outcome.
func (h *Handle) Wait() Outcome {
	<-h.done
	return h.outcome
}

// Record is a finished transfer kept in the coordinator's history.
type Record struct {
	ID         string
	Request    Request
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Outcome
}

// Coordinator runs at most one transfer at a time on its own goroutine and
// publishes transfer_* events.
type Coordinator struct {
	engine *Engine
	bus    *events.EventBus
	logger *logging.Logger

	mu      sync.Mutex
	state   State
	current *Handle
	last    *Outcome
	history []Record
}

// NewCoordinator creates an idle coordinator. bus and logger may be nil.
func NewCoordinator(engine *Engine, bus *events.EventBus, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Coordinator{
		engine: engine,
		bus:    bus,
		logger: logger.Component("coordinator"),
		state:  StateIdle,
	}
}

// Start launches req. It fails with ErrAlreadyRunning unless Idle.
// sink, when non-nil, receives every Progress synchronously on the transfer
// goroutine; the same progress is also published on the bus.
// Cancelling ctx cancels the transfer like Cancel does.
func (c *Coordinator) Start(ctx context.Context, req Request, sink ProgressFunc) (*Handle, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:      uuid.NewString(),
		req:     req,
		started: time.Now(),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	c.state = StateRunning
	c.current = h
	c.mu.Unlock()

	base := events.TransferEvent{
		TransferID: h.id,
		Direction:  string(req.Direction),
		SourcePath: req.SourcePath,
		DestPath:   req.DestPath,
	}
	c.bus.PublishTransfer(events.EventTransferStarted, base)
	c.logger.Debug().Str("id", h.id).Str("request", req.String()).Msg("Transfer started")

	onProgress := func(p Progress) {
		if sink != nil {
			sink(p)
		}
		ev := base
		ev.Path, ev.BytesTransferred, ev.BytesTotal = p.Path, p.BytesTransferred, p.BytesTotal
		c.bus.PublishTransfer(events.EventTransferProgress, ev)
	}
	onItem := func(it Item) {
		ev := base
		ev.Path, ev.BytesTransferred, ev.Error = it.Path, it.Bytes, it.Err
		c.bus.PublishTransfer(events.EventTransferItem, ev)
	}

	go func() {
		defer cancel()
		out := c.engine.transfer(runCtx, req, onProgress, onItem)
		h.outcome = out

		c.mu.Lock()
		c.state = StateIdle
		c.current = nil
		c.last = &out
		c.history = append(c.history, Record{
			ID:         h.id,
			Request:    req,
			StartedAt:  h.started,
			FinishedAt: time.Now(),
			Outcome:    out,
		})
		if len(c.history) > constants.TransferHistorySize {
			c.history = c.history[len(c.history)-constants.TransferHistorySize:]
		}
		c.mu.Unlock()

		fin := base
		fin.Status = string(out.Status)
		fin.Attempted, fin.Succeeded, fin.Failed = out.Attempted, out.Succeeded, out.Failed()
		fin.Bytes, fin.Duration, fin.Error = out.Bytes, out.Duration, out.Err
		c.bus.PublishTransfer(events.EventTransferFinished, fin)

		close(h.done)
	}()

	return h, nil
}

// Run starts req and waits for it.
func (c *Coordinator) Run(ctx context.Context, req Request, sink ProgressFunc) (Outcome, error) {
	h, err := c.Start(ctx, req, sink)
	if err != nil {
		return Outcome{}, err
	}
	return h.Wait(), nil
}

// Cancel asks the running transfer to stop before its next leaf.
// It returns false when nothing is running.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	c.current.cancel()
	return true
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the running transfer's handle, if any.
func (c *Coordinator) Current() (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current != nil
}

// LastOutcome returns the outcome of the most recently finished transfer.
func (c *Coordinator) LastOutcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Outcome{}, false
	}
	return *c.last, true
}

// History returns finished transfers, oldest first.
func (c *Coordinator) History() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Record, len(c.history))
	copy(result, c.history)
	return result
}
