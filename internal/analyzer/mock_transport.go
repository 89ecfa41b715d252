package analyzer

import (
	"context"
	"sync"

	"github.com/fleveque/tongue-service/internal/model"
)

// MockTransport answers every request with a canned record or error. It is
// used by tests and by the CLI's offline mode.
type MockTransport struct {
	mu       sync.Mutex
	record   model.AnalysisRecord
	err      error
	invalid  error
	requests []Request
}

// NewMockTransport returns a transport that succeeds with rec.
func NewMockTransport(rec model.AnalysisRecord) *MockTransport {
	return &MockTransport{record: rec}
}

// NewFailingMockTransport returns a transport whose every round trip fails with kind.
func NewFailingMockTransport(kind Error) *MockTransport {
	return &MockTransport{record: model.NewAnalysisRecord(), err: kind}
}

// SampleRecord is the deterministic record served in mock mode.
func SampleRecord() model.AnalysisRecord {
	notes := "Sample analysis generated without contacting a backend."
	return model.AnalysisRecord{
		Zones: map[model.Zone]string{
			model.ZoneTip:    "Tip: slightly red, mild heat in the heart",
			model.ZoneSides:  "Sides: normal color",
			model.ZoneCenter: "Center: thin white coating",
			model.ZoneBack:   "Back: slightly thicker coating",
		},
		Diagnosis:       "Balanced constitution with mild heat",
		Recommendations: []string{"Drink more water", "Reduce spicy food", "Keep a regular sleep schedule"},
		Confidence:      0.85,
		ImageQuality:    model.DefaultImageQuality,
		AdditionalNotes: &notes,
	}
}

// SetValidateError makes Validate fail with err.
func (m *MockTransport) SetValidateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalid = err
}

func (m *MockTransport) Name() string { return "mock" }

func (m *MockTransport) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalid
}

func (m *MockTransport) RoundTrip(ctx context.Context, req *Request) (*model.AnalysisRecord, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	rec, err := m.record.Clone(), m.err
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, ErrNetworkFailure
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Requests returns a copy of the requests seen so far.
func (m *MockTransport) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
