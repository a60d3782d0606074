package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"secret-evoting/models"
)

// Metrics receives the duration and outcome of every command the runner executes.
type Metrics interface {
	ObserveAction(action, outcome string, took time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ObserveAction(string, string, time.Duration) {}

// Options configures a Runner.
type Options struct {
	Settings      Settings
	AlertShowTime time.Duration
	QueueSize     int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner owns the workflow state. A single goroutine applies events in
// order; commands run on their own goroutines and report back as events.
type Runner struct {
	opts     Options
	receipts Receipts
	metrics  Metrics
	logger   *zap.Logger

	eventCh    chan Event
	shutdownCh chan struct{}
	stopOnce   sync.Once
	loopWg     sync.WaitGroup
	commandWg  sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	// owned by the loop goroutine
	state       State
	contracts   Contracts
	fetchCancel context.CancelFunc

	mu      sync.RWMutex
	current State
	subs    map[uint64]chan State
	nextSub uint64
	stopped bool
}

func NewRunner(opts Options, receipts Receipts, metrics Metrics, logger *zap.Logger) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.AlertShowTime <= 0 {
		opts.AlertShowTime = 10 * time.Second
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	initial := Initial(opts.Settings, opts.Now())
	// Replaced by Start. Commands never see a nil context.
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		opts:       opts,
		receipts:   receipts,
		metrics:    metrics,
		logger:     logger,
		eventCh:    make(chan Event, opts.QueueSize),
		shutdownCh: make(chan struct{}),
		state:      initial,
		current:    initial,
		subs:       make(map[uint64]chan State),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins processing events, including any dispatched before it.
// Commands run under ctx.
func (r *Runner) Start(ctx context.Context) {
	unstarted := r.cancel
	r.ctx, r.cancel = context.WithCancel(ctx)
	unstarted()
	r.loopWg.Add(1)
	go r.loop()
}

// Stop cancels running commands and waits for the loop and commands to exit.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.shutdownCh)
		r.cancel()
		r.loopWg.Wait()
		r.commandWg.Wait()

		r.mu.Lock()
		r.stopped = true
		for id, ch := range r.subs {
			close(ch)
			delete(r.subs, id)
		}
		r.mu.Unlock()
	})
}

// Dispatch queues ev. It blocks while the queue is full.
func (r *Runner) Dispatch(ev Event) error {
	select {
	case <-r.shutdownCh:
		return ErrStopped
	default:
	}
	select {
	case r.eventCh <- ev:
		return nil
	case <-r.shutdownCh:
		return ErrStopped
	}
}

// syncEvent reports the state right after its event was applied.
type syncEvent struct {
	Event
	done chan State
}

// Apply dispatches ev and returns the state right after it was applied.
// Commands it started may still be running.
func (r *Runner) Apply(ctx context.Context, ev Event) (State, error) {
	done := make(chan State, 1)
	if err := r.Dispatch(syncEvent{Event: ev, done: done}); err != nil {
		return r.State(), err
	}
	select {
	case s := <-done:
		return s, nil
	case <-ctx.Done():
		return r.State(), ctx.Err()
	case <-r.shutdownCh:
		return r.State(), ErrStopped
	}
}

// State returns the state after the last applied event.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Subscribe returns a channel that always holds the latest state. Slow
// readers skip intermediate states. The channel is closed by cancel or Stop.
func (r *Runner) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	r.mu.Lock()
	if r.stopped {
		ch <- r.current
		close(ch)
		r.mu.Unlock()
		return ch, func() {}
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	ch <- r.current
	r.mu.Unlock()

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[id]; ok {
			close(ch)
			delete(r.subs, id)
		}
	}
}

// WaitFor blocks until cond holds for the current state.
func (r *Runner) WaitFor(ctx context.Context, cond func(State) bool) (State, error) {
	ch, cancel := r.Subscribe()
	defer cancel()
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return r.State(), ErrStopped
			}
			if cond(s) {
				return s, nil
			}
		case <-ctx.Done():
			return r.State(), ctx.Err()
		}
	}
}

// Settled reports whether no search, vote or create is in flight.
func Settled(s State) bool {
	return !s.Loading && !s.Voting && !s.Creating
}

func (r *Runner) loop() {
	defer r.loopWg.Done()
	for {
		select {
		case <-r.shutdownCh:
			if r.fetchCancel != nil {
				r.fetchCancel()
			}
			return
		case ev := <-r.eventCh:
			if se, ok := ev.(syncEvent); ok {
				r.apply(se.Event)
				se.done <- r.state
				continue
			}
			r.apply(ev)
		}
	}
}

func (r *Runner) apply(ev Event) {
	if t, ok := ev.(timed); ok {
		ev = t.at(r.opts.Now())
	}
	if wu, ok := ev.(WalletUpdated); ok {
		r.contracts = wu.Contracts
		if !wu.Session.Connected() {
			r.contracts = nil
		}
	}

	next, cmds := Reduce(r.state, ev)
	r.state = next
	r.logger.Debug("Workflow event applied",
		zap.String("event", ev.eventName()),
		zap.Stringer("phase", next.Phase),
		zap.Int("commands", len(cmds)))

	r.publish(next)
	for _, cmd := range cmds {
		r.execute(cmd)
	}
}

func (r *Runner) publish(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = s
	for _, ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (r *Runner) execute(cmd Command) {
	switch c := cmd.(type) {
	case FetchSnapshot:
		if r.fetchCancel != nil {
			r.fetchCancel()
		}
		ctx, cancel := context.WithCancel(r.ctx)
		r.fetchCancel = cancel
		contracts := r.contracts
		r.spawn(func() { r.fetch(ctx, contracts, c) })

	case CancelFetch:
		if r.fetchCancel != nil {
			r.fetchCancel()
			r.fetchCancel = nil
		}

	case SubmitVote:
		contracts := r.contracts
		r.spawn(func() { r.vote(contracts, c) })

	case PersistReceipt:
		r.spawn(func() { r.persistReceipt(c) })

	case Instantiate:
		contracts := r.contracts
		r.spawn(func() { r.instantiate(contracts, c) })

	case ExpireAlert:
		r.spawn(func() {
			t := time.NewTimer(r.opts.AlertShowTime)
			defer t.Stop()
			select {
			case <-t.C:
				_ = r.Dispatch(AlertExpired{ID: c.ID})
			case <-r.shutdownCh:
			}
		})
	}
}

func (r *Runner) spawn(fn func()) {
	r.commandWg.Add(1)
	go func() {
		defer r.commandWg.Done()
		fn()
	}()
}

func (r *Runner) fetch(ctx context.Context, contracts Contracts, c FetchSnapshot) {
	start := time.Now()
	var (
		snap *models.Snapshot
		err  error
	)
	if contracts == nil {
		err = ErrWalletNotConnected
	} else {
		snap, err = LoadSnapshot(ctx, contracts, r.receipts, c.Ref, c.Wallet, r.opts.Now)
	}
	if ctx.Err() != nil {
		r.metrics.ObserveAction("search", "cancelled", time.Since(start))
		return
	}
	if err != nil {
		r.metrics.ObserveAction("search", "error", time.Since(start))
		r.logger.Warn("Snapshot fetch failed", zap.String("contract", c.Ref.Address), zap.Error(err))
		_ = r.Dispatch(SnapshotFailed{Seq: c.Seq, Err: err})
		return
	}
	r.metrics.ObserveAction("search", "ok", time.Since(start))
	_ = r.Dispatch(SnapshotLoaded{Seq: c.Seq, Ref: c.Ref, Wallet: c.Wallet, Snapshot: snap})
}

func (r *Runner) vote(contracts Contracts, c SubmitVote) {
	start := time.Now()
	if contracts == nil {
		r.metrics.ObserveAction("vote", "error", time.Since(start))
		_ = r.Dispatch(VoteFailed{Err: ErrWalletNotConnected})
		return
	}
	res, err := contracts.SubmitVote(r.ctx, c.Contract, c.CandidateID)
	if err == nil && (res == nil || res.Code != 0) {
		err = errors.New("vote transaction not accepted")
	}
	if err != nil {
		r.metrics.ObserveAction("vote", "error", time.Since(start))
		r.logger.Warn("Vote failed",
			zap.String("contract", c.Contract),
			zap.Int("candidate_id", c.CandidateID),
			zap.Error(err))
		_ = r.Dispatch(VoteFailed{Err: err})
		return
	}
	r.metrics.ObserveAction("vote", "ok", time.Since(start))
	r.logger.Info("Vote submitted",
		zap.String("contract", c.Contract),
		zap.Int("candidate_id", c.CandidateID),
		zap.String("tx_hash", res.TxHash))
	_ = r.Dispatch(VoteSucceeded{Wallet: c.Wallet, Contract: c.Contract, Result: res})
}

func (r *Runner) persistReceipt(c PersistReceipt) {
	if err := r.receipts.MarkVoted(r.ctx, c.Wallet, c.Contract); err != nil {
		r.logger.Error("Failed to store vote receipt",
			zap.String("wallet", c.Wallet),
			zap.String("contract", c.Contract),
			zap.Error(err))
	}
}

func (r *Runner) instantiate(contracts Contracts, c Instantiate) {
	start := time.Now()
	if contracts == nil {
		r.metrics.ObserveAction("create", "error", time.Since(start))
		_ = r.Dispatch(CreateFailed{Err: ErrWalletNotConnected})
		return
	}
	addr, res, err := contracts.Instantiate(r.ctx, c.Msg, c.Label)
	if err != nil {
		r.metrics.ObserveAction("create", "error", time.Since(start))
		r.logger.Warn("Contract instantiation failed", zap.String("label", c.Label), zap.Error(err))
		_ = r.Dispatch(CreateFailed{Err: err})
		return
	}
	r.metrics.ObserveAction("create", "ok", time.Since(start))
	r.logger.Info("Contract instantiated",
		zap.String("label", c.Label),
		zap.String("address", addr),
		zap.String("tx_hash", txHash(res)))
	_ = r.Dispatch(CreateSucceeded{Address: addr, Result: res})
}

func txHash(res *models.TxResult) string {
	if res == nil {
		return ""
	}
	return res.TxHash
}
