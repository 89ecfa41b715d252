package presenter

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/analyzer"
	"github.com/fleveque/tongue-service/internal/model"
)

// Analyzer is the part of analyzer.Client a session needs.
type Analyzer interface {
	AnalyzeWithID(ctx context.Context, requestID string, photo []byte) (*model.AnalysisRecord, error)
}

// Outcome says how a pending analysis ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota + 1
	OutcomeFailed
	// OutcomeCancelled: the store was restored to its pre-call snapshot.
	OutcomeCancelled
	// OutcomeSuperseded: a newer Start replaced this request; nothing was written.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Result is the single resolution of a Pending.
type Result struct {
	RequestID string
	Outcome   Outcome
	Record    *model.AnalysisRecord
	Err       error // an analyzer.Error when Outcome is OutcomeFailed
}

// Pending is an analysis started by Session.Start.
type Pending struct {
	id      string
	prev    State
	cancel  context.CancelFunc
	once    sync.Once
	done    chan struct{}
	result  Result
	session *Session
}

// ID returns the request id sent with the analysis.
func (p *Pending) ID() string { return p.id }

// Done is closed once the pending analysis has resolved.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the analysis resolves and returns its result.
func (p *Pending) Wait() Result {
	<-p.done
	return p.result
}

// Cancel abandons the request. If it was still the current one the store
// goes back to its pre-call state; a later transport reply is discarded.
func (p *Pending) Cancel() {
	p.cancel()
	p.session.settle(p, nil, context.Canceled)
}

// resolve is the only place a Pending gets its result.
func (p *Pending) resolve(r Result) {
	p.once.Do(func() {
		p.result = r
		close(p.done)
	})
}

// Session serializes analyses against one Store. Only the most recent Start
// may write to the store.
type Session struct {
	store    *Store
	analyzer Analyzer
	logger   *zap.Logger

	mu      sync.Mutex
	current *Pending
}

// NewSession creates a session that feeds results from a into store.
func NewSession(store *Store, a Analyzer, logger *zap.Logger) *Session {
	return &Session{store: store, analyzer: a, logger: logger}
}

// Store returns the session's store.
func (s *Session) Store() *Store { return s.store }

// Start begins an analysis of photo. A request still in flight is
// superseded: it is cancelled and its reply will never reach the store.
func (s *Session) Start(ctx context.Context, photo []byte) *Pending {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pending{
		id:      uuid.NewString(),
		cancel:  cancel,
		done:    make(chan struct{}),
		session: s,
	}

	s.mu.Lock()
	if prev := s.current; prev != nil {
		// Cancelling the new request must go back to the last settled state.
		p.prev = prev.prev
		prev.cancel()
		prev.resolve(Result{RequestID: prev.id, Outcome: OutcomeSuperseded})
		s.logger.Debug("analysis superseded", zap.String("request_id", prev.id))
	} else {
		p.prev = s.store.Snapshot()
	}
	s.current = p
	s.store.BeginAnalysis()
	s.mu.Unlock()

	go func() {
		rec, err := s.analyzer.AnalyzeWithID(ctx, p.id, photo)
		if err != nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		s.settle(p, rec, err)
	}()

	return p
}

// settle applies the outcome of p to the store if p is still current.
func (s *Session) settle(p *Pending, rec *model.AnalysisRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != p {
		p.resolve(Result{RequestID: p.id, Outcome: OutcomeSuperseded})
		return
	}
	s.current = nil
	p.cancel()

	switch {
	case err == context.Canceled || err == context.DeadlineExceeded:
		s.store.restore(p.prev)
		p.resolve(Result{RequestID: p.id, Outcome: OutcomeCancelled, Err: err})
		s.logger.Info("analysis cancelled", zap.String("request_id", p.id))

	case err != nil:
		kind := analyzer.AsError(err)
		s.store.FailAnalysis(kind.Error())
		p.resolve(Result{RequestID: p.id, Outcome: OutcomeFailed, Err: kind})

	default:
		if rec == nil {
			kind := analyzer.ErrInvalidResponse
			s.store.FailAnalysis(kind.Error())
			p.resolve(Result{RequestID: p.id, Outcome: OutcomeFailed, Err: kind})
			return
		}
		s.store.CompleteAnalysis(*rec)
		out := rec.Clone()
		p.resolve(Result{RequestID: p.id, Outcome: OutcomeCompleted, Record: &out})
	}
}
