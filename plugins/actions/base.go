// Package actions implements the "warwick" action module: the set of
// schedulable Actions wired into opsd via opsconfig.RegisterActionModule.
// Every action embeds base, which supplies the lifecycle bookkeeping common
// to all of them — a run-once worker goroutine, an idempotent Abort, and the
// default no-op hooks an action only needs to override when it cares.
package actions

import (
	"sync"

	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"go.uber.org/zap"
)

// ModuleName is the actions_module identifier this package registers under.
const ModuleName = "warwick"

type base struct {
	name   string
	logger *zap.Logger

	mu       sync.Mutex
	state    opsmodel.ActionState
	started  bool
	aborted  chan struct{}
	abortSet sync.Once
}

func newBase(name string, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		name:    name,
		logger:  logger.With(zap.String("action", name)),
		state:   opsmodel.ActionPending,
		aborted: make(chan struct{}),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) State() opsmodel.ActionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *base) setState(s opsmodel.ActionState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Abort requests graceful stop. Idempotent: the run goroutine observes the
// closed channel exactly once, however many times Abort is called.
func (b *base) Abort() {
	b.abortSet.Do(func() { close(b.aborted) })
}

func (b *base) isAborted() bool {
	select {
	case <-b.aborted:
		return true
	default:
		return false
	}
}

// startOnce runs fn in its own goroutine at most once, regardless of how
// many times Start is called — the worker loop may call Start again before
// noticing the action has left the Pending/Running states.
func (b *base) startOnce(fn func()) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()
	go fn()
}

// DomeIsOpenChanged default: most actions don't react to it directly and
// instead poll dome state at their own checkpoints.
func (b *base) DomeIsOpenChanged(open bool) {}

// TaskLabels default: nothing to show beyond the action's name.
func (b *base) TaskLabels() []opsmodel.TaskLabel { return nil }

// NotifyProcessedFrame default: not a pipeline-driven action.
func (b *base) NotifyProcessedFrame(headers map[string]interface{}) map[string]interface{} {
	return nil
}

// NotifyGuideProfile default: not a guiding action.
func (b *base) NotifyGuideProfile(headers map[string]interface{}, x, y []float64) map[string]interface{} {
	return nil
}
