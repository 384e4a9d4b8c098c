package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/agentdir/logging"
)

// Common errors.
var (
	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more handlers failed during shutdown.
	ErrHandlerFailed = errors.New("one or more handlers failed")
)

// Shutdown phases, drained in ascending order. Handlers in the same
// phase run concurrently.
const (
	// PhaseTransport stops accepting client connections first.
	PhaseTransport = 10

	// PhaseSupervisor stops the lifecycle sweeps.
	PhaseSupervisor = 20

	// PhaseBus flushes and closes event dispatch.
	PhaseBus = 30

	// PhaseCheckpoint writes the final store snapshot.
	PhaseCheckpoint = 40

	// PhaseState closes persistence connections last.
	PhaseState = 50
)

// Handler is one component's shutdown hook. The context is cancelled
// when the overall timeout is reached.
type Handler func(ctx context.Context) error

type registration struct {
	name    string
	phase   int
	handler Handler
}

// Coordinator drains registered components in phase order on shutdown.
type Coordinator struct {
	timeout time.Duration
	log     *logging.Logger

	mu       sync.Mutex
	handlers []registration

	once sync.Once
	done chan struct{}
	err  error
}

// NewCoordinator creates a coordinator with the given overall timeout.
// Zero means 30 seconds.
func NewCoordinator(timeout time.Duration, log *logging.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logging.New()
	}
	return &Coordinator{
		timeout: timeout,
		log:     log.WithComponent("shutdown"),
		done:    make(chan struct{}),
	}
}

// Register adds a handler at the given phase.
func (c *Coordinator) Register(name string, phase int, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, phase: phase, handler: handler})
}

// HandleSignals triggers shutdown on SIGTERM or SIGINT.
func (c *Coordinator) HandleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-ch
		c.log.Info("signal received", map[string]interface{}{"signal": sig.String()})
		c.Shutdown(context.Background())
	}()
}

// Shutdown drains all phases. Repeat calls return the first result.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		c.err = c.drain(ctx)
		close(c.done)
	})
	<-c.done
	return c.err
}

// Done is closed when shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown result, valid once Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Coordinator) drain(ctx context.Context) error {
	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	var failed bool
	for start := 0; start < len(handlers); {
		end := start
		for end < len(handlers) && handlers[end].phase == handlers[start].phase {
			end++
		}

		select {
		case <-ctx.Done():
			return ErrTimeout
		default:
		}

		if c.runPhase(ctx, handlers[start:end]) {
			failed = true
		}
		start = end
	}

	if failed {
		return ErrHandlerFailed
	}
	return nil
}

// runPhase runs one phase's handlers concurrently and reports whether
// any failed. Failures are logged and never stop later phases: a
// half-drained process still needs its checkpoint written.
func (c *Coordinator) runPhase(ctx context.Context, regs []registration) bool {
	var wg sync.WaitGroup
	errs := make([]error, len(regs))

	for i, reg := range regs {
		wg.Add(1)
		go func(i int, reg registration) {
			defer wg.Done()
			started := time.Now()
			errs[i] = reg.handler(ctx)
			fields := map[string]interface{}{
				"handler":  reg.name,
				"duration": time.Since(started).String(),
			}
			if errs[i] != nil {
				fields["error"] = errs[i].Error()
				c.log.Error("handler failed", fields)
			} else {
				c.log.Debug("handler drained", fields)
			}
		}(i, reg)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return true
		}
	}
	return false
}
