// Package presenter holds the observable state a UI renders for the current
// analysis, and the session that drives it from the analysis client.
package presenter

import (
	"sync"

	"github.com/fleveque/tongue-service/internal/model"
)

// State is one immutable snapshot of the store.
type State struct {
	IsAnalyzing   bool                  `json:"isAnalyzing"`
	CurrentResult *model.AnalysisRecord `json:"currentResult"`
	LastError     *string               `json:"lastError"`
}

func (s State) clone() State {
	out := s
	if s.CurrentResult != nil {
		rec := s.CurrentResult.Clone()
		out.CurrentResult = &rec
	}
	if s.LastError != nil {
		msg := *s.LastError
		out.LastError = &msg
	}
	return out
}

// Observer receives every snapshot after a transition. Observers run
// synchronously, in transition order, and must not call transition methods.
type Observer func(State)

// Store is the result store. Each transition is a single update; observers
// and Snapshot never see a half-applied one.
type Store struct {
	// writeMu orders transitions together with their notifications.
	writeMu sync.Mutex

	mu        sync.RWMutex
	state     State
	observers map[int]Observer
	nextID    int
}

// NewStore returns an idle store with no result.
func NewStore() *Store {
	return &Store{observers: make(map[int]Observer)}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// BeginAnalysis marks an analysis in flight and clears the last error.
// The previous result stays visible until a new one replaces it.
func (s *Store) BeginAnalysis() {
	s.apply(func(st *State) {
		st.IsAnalyzing = true
		st.LastError = nil
	})
}

// CompleteAnalysis publishes rec as the current result.
func (s *Store) CompleteAnalysis(rec model.AnalysisRecord) {
	rec = rec.Clone()
	s.apply(func(st *State) {
		st.CurrentResult = &rec
		st.IsAnalyzing = false
	})
}

// FailAnalysis records the user-facing message of a failed analysis.
func (s *Store) FailAnalysis(message string) {
	s.apply(func(st *State) {
		st.LastError = &message
		st.IsAnalyzing = false
	})
}

// restore puts back a snapshot taken before a cancelled call.
func (s *Store) restore(prev State) {
	prev = prev.clone()
	s.apply(func(st *State) {
		*st = prev
	})
}

func (s *Store) apply(update func(*State)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	update(&s.state)
	snap := s.state.clone()
	observers := make([]Observer, 0, len(s.observers))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.observers[id]; ok {
			observers = append(observers, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap.clone())
	}
}
