// Package cartsync keeps a local cart snapshot in step with the backend.
//
// Every quantity edit is evaluated against the local snapshot first. Accepted
// edits are applied locally at once and committed per line after a quiet
// period; every commit, failed or not, is followed by a full reload so the
// backend stays the source of truth. Commits of one Session never overlap.
package cartsync

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	"github.com/angelmondragon/pcstore-storefront/pkg/debounce"
	"github.com/angelmondragon/pcstore-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	"github.com/angelmondragon/pcstore-storefront/pkg/metrics"
)

const (
	DefaultDebounce      = 500 * time.Millisecond
	DefaultCommitTimeout = 10 * time.Second

	// GenericFailureMessage is shown when a failed mutation carries no server message.
	GenericFailureMessage = "Something went wrong, please try again."
)

// Remote is the backend side of one screen.
type Remote interface {
	Fetch(ctx context.Context) ([]cartpolicy.Line, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
}

// Notifier receives the messages shown to the shopper.
type Notifier interface {
	Notify(level enums.NotificationLevel, message string)
}

type Options struct {
	// Screen labels logs and metrics, e.g. "cart" or "build".
	Screen        string
	Debounce      time.Duration
	CommitTimeout time.Duration
	Logger        *logger.Logger
	Metrics       *metrics.CartMetrics
	Notifier      Notifier
	// Context carries log fields into commits fired by timers. It is never cancelled by the Session.
	Context context.Context
}

// View is what a screen renders.
type View struct {
	Lines     []cartpolicy.Line `json:"lines"`
	Total     string            `json:"total"`
	ItemCount int               `json:"itemCount"`
	Pending   []string          `json:"pending"`
	Loaded    bool              `json:"loaded"`
	Version   uint64            `json:"version"`
}

type Session struct {
	remote    Remote
	screen    string
	timeout   time.Duration
	logg      *logger.Logger
	metrics   *metrics.CartMetrics
	notifier  Notifier
	baseCtx   context.Context
	debouncer *debounce.Debouncer

	// commitMu serializes every backend mutation of the session.
	commitMu sync.Mutex

	mu       sync.RWMutex
	snapshot cartpolicy.Snapshot
	pending  map[string]int
	loaded   bool
	version  uint64
	closed   bool
	// fetchSeq numbers fetches in the order they start; appliedSeq is the newest one applied.
	fetchSeq   uint64
	appliedSeq uint64
}

func New(remote Remote, opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = DefaultCommitTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.New(logger.Options{ServiceName: "storefront", Output: io.Discard})
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &Session{
		remote:    remote,
		screen:    opts.Screen,
		timeout:   opts.CommitTimeout,
		logg:      opts.Logger,
		metrics:   opts.Metrics,
		notifier:  opts.Notifier,
		baseCtx:   opts.Logger.WithScreen(opts.Context, opts.Screen),
		debouncer: debounce.New(opts.Debounce),
		pending:   make(map[string]int),
	}
}

// Snapshot returns a copy of the local state, optimistic edits included.
func (s *Session) Snapshot() cartpolicy.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := make([]string, 0, len(s.pending))
	for _, line := range s.snapshot.Lines {
		if _, ok := s.pending[line.ProductID]; ok {
			pending = append(pending, line.ProductID)
		}
	}
	return View{
		Lines:     s.snapshot.Clone().Lines,
		Total:     s.snapshot.Total().String(),
		ItemCount: s.snapshot.ItemCount(),
		Pending:   pending,
		Loaded:    s.loaded,
		Version:   s.version,
	}
}

// Reload replaces local state with the backend's. Edits accepted locally but not yet
// committed are re-applied on top when they still pass the policy against the fresh lines.
// On failure the local state is left untouched. A fetch that started before the one
// last applied is discarded and the current state is returned.
func (s *Session) Reload(ctx context.Context) (cartpolicy.Snapshot, error) {
	return s.reload(s.logCtx(ctx))
}

func (s *Session) reload(ctx context.Context) (cartpolicy.Snapshot, error) {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	lines, err := s.remote.Fetch(ctx)
	s.metrics.IncReconciliation(s.screen, err)
	if err != nil {
		s.logg.Error(ctx, "reload failed", err)
		return s.Snapshot(), err
	}

	var dropped []cartpolicy.Result
	s.mu.Lock()
	if seq < s.appliedSeq {
		out := s.snapshot.Clone()
		s.mu.Unlock()
		s.logg.Debug(ctx, "stale reload discarded")
		return out, nil
	}
	s.appliedSeq = seq
	next := cartpolicy.NewSnapshot(lines)
	for lineID, qty := range s.pending {
		res := cartpolicy.Evaluate(next, lineID, qty)
		if res.Rejected {
			delete(s.pending, lineID)
			s.debouncer.Cancel(lineID)
			if res.Reason != cartpolicy.ReasonLineNotFound {
				dropped = append(dropped, res)
			}
			continue
		}
		s.pending[lineID] = res.AcceptedQuantity
		next = next.WithQuantity(lineID, res.AcceptedQuantity)
	}
	s.snapshot = next
	s.loaded = true
	s.version++
	out := s.snapshot.Clone()
	s.mu.Unlock()

	for _, res := range dropped {
		s.notify(enums.NotificationLevelWarning, rejectionMessage(res))
	}
	return out, nil
}

// SetQuantity evaluates requested for lineID. A rejected edit leaves state untouched and
// sends nothing. An accepted edit is applied locally and its commit is debounced.
func (s *Session) SetQuantity(ctx context.Context, lineID string, requested int) (cartpolicy.Result, error) {
	return s.apply(ctx, func(snap cartpolicy.Snapshot) cartpolicy.Result {
		return cartpolicy.Evaluate(snap, lineID, requested)
	})
}

// SetQuantityRaw is SetQuantity for text typed into a quantity field.
func (s *Session) SetQuantityRaw(ctx context.Context, lineID, raw string) (cartpolicy.Result, error) {
	return s.apply(ctx, func(snap cartpolicy.Snapshot) cartpolicy.Result {
		return cartpolicy.EvaluateRaw(snap, lineID, raw)
	})
}

func (s *Session) apply(ctx context.Context, evaluate func(cartpolicy.Snapshot) cartpolicy.Result) (cartpolicy.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return cartpolicy.Result{}, pkgerrors.New(pkgerrors.CodeStateConflict, "session is closed")
	}
	if !s.loaded {
		s.mu.Unlock()
		return cartpolicy.Result{}, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s is not loaded", s.screen))
	}

	res := evaluate(s.snapshot)
	s.metrics.IncEdit(s.screen, res.Reason.String())
	if !res.Changed() {
		s.mu.Unlock()
		return res, nil
	}
	// Scheduling under mu keeps Close from flushing between the check above and the arm.
	lineID := res.LineID
	if !s.debouncer.Schedule(lineID, func() { _ = s.commit(s.baseCtx, lineID) }) {
		s.mu.Unlock()
		return cartpolicy.Result{}, pkgerrors.New(pkgerrors.CodeStateConflict, "session is closed")
	}
	s.snapshot = s.snapshot.WithQuantity(lineID, res.AcceptedQuantity)
	s.pending[lineID] = res.AcceptedQuantity
	s.mu.Unlock()

	if res.Reason == cartpolicy.ReasonStockAdjusted {
		s.notify(enums.NotificationLevelWarning,
			fmt.Sprintf("Only %d left in stock, quantity adjusted.", res.AcceptedQuantity))
	}
	s.logg.Debug(s.logg.WithField(s.logCtx(ctx), "product_id", lineID), "quantity edit accepted")
	return res, nil
}

// commit sends the pending quantity for lineID, then reloads whatever the outcome.
func (s *Session) commit(ctx context.Context, lineID string) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	qty, ok := s.pending[lineID]
	delete(s.pending, lineID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	ctx, cancel := s.detached(ctx)
	defer cancel()
	ctx = s.logg.WithField(ctx, "product_id", lineID)

	start := time.Now()
	err := s.remote.UpdateQuantity(ctx, lineID, qty)
	s.metrics.ObserveCommit(s.screen, time.Since(start), err)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("quantity commit failed: %v", err))
		s.notify(enums.NotificationLevelError, pkgerrors.UserMessage(err, GenericFailureMessage))
	}

	if _, reloadErr := s.reload(ctx); reloadErr != nil {
		err = multierr.Append(err, reloadErr)
	}
	return err
}

// Mutate runs a non-quantity mutation such as delete, add or reset, then reloads.
// The mutation takes its turn behind any commit in progress.
func (s *Session) Mutate(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "session is closed")
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	ctx, cancel := s.detached(s.logg.WithField(s.logCtx(ctx), "op", op))
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveCommit(s.screen, time.Since(start), err)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("%s failed: %v", op, err))
		s.notify(enums.NotificationLevelError, pkgerrors.UserMessage(err, GenericFailureMessage))
	}

	_, reloadErr := s.reload(ctx)
	if err != nil {
		return err
	}
	return reloadErr
}

// Flush commits every pending edit now and waits for commits already started by timers.
func (s *Session) Flush(ctx context.Context) error {
	var err error
	for _, lineID := range s.debouncer.Keys() {
		if s.debouncer.Cancel(lineID) {
			err = multierr.Append(err, s.commit(s.logCtx(ctx), lineID))
		}
	}
	s.debouncer.Wait()
	return err
}

func (s *Session) hasPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending) > 0
}

// Close flushes pending edits and stops accepting new ones.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	err := s.Flush(ctx)
	s.debouncer.Stop()
	s.debouncer.Wait()
	return err
}

func (s *Session) notify(level enums.NotificationLevel, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(level, message)
}

// detached keeps the values of ctx but not its cancellation, so a shopper leaving the
// page cannot abort a commit halfway.
func (s *Session) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func (s *Session) logCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return s.baseCtx
	}
	return s.logg.WithScreen(ctx, s.screen)
}

func rejectionMessage(res cartpolicy.Result) string {
	switch res.Reason {
	case cartpolicy.ReasonOutOfStock:
		return "An item in your cart is now out of stock."
	case cartpolicy.ReasonBudgetExceeded:
		return "Your cart total would exceed the maximum order value."
	case cartpolicy.ReasonItemCapExceeded:
		return fmt.Sprintf("You can order at most %d of one item.", cartpolicy.PerItemMax)
	default:
		return "Your quantity change could not be applied."
	}
}
