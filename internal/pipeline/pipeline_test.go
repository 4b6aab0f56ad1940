package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/delhiflow-client/internal/adapter/predict"
	"github.com/couchcryptid/delhiflow-client/internal/domain"
	"github.com/couchcryptid/delhiflow-client/internal/observability"
	"github.com/couchcryptid/delhiflow-client/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	mu      sync.Mutex
	batches [][]domain.RawEvent
	errs    []error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	m.mu.Lock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return nil, err
	}
	if len(m.batches) > 0 {
		b := m.batches[0]
		m.batches = m.batches[1:]
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()
	// block until context cancelled to simulate waiting for messages
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	if m.err != nil {
		return domain.OutputEvent{}, m.err
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.OutputEvent
	failures int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

type fakeAssessor struct {
	err error
}

func (f *fakeAssessor) AssessRequest(_ context.Context, req domain.AssessmentRequest) (domain.Assessment, error) {
	if f.err != nil {
		return domain.Assessment{}, f.err
	}
	loc, _ := req.Coordinates()
	lp := domain.LocationPrediction{Prediction: &domain.Prediction{Class: 2, Label: "High", Confidence: 88}}
	return domain.NewAssessment(req.ID, loc, lp, "predict_location"), nil
}

// flakyAssessor returns errs in order; the last one repeats. A nil entry
// succeeds.
type flakyAssessor struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (f *flakyAssessor) AssessRequest(ctx context.Context, req domain.AssessmentRequest) (domain.Assessment, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		if len(f.errs) > 1 {
			f.errs = f.errs[1:]
		}
	}
	f.mu.Unlock()
	if err != nil {
		return domain.Assessment{}, err
	}
	return (&fakeAssessor{}).AssessRequest(ctx, req)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeRawEvent(t, "req-1", 28.61, 77.2)

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discard(), metrics, 10)
	require.Error(t, p.CheckReadiness(context.Background()))

	runFor(t, p, 300*time.Millisecond)

	require.Equal(t, 1, ldr.count())
	assert.Equal(t, raw.Value, ldr.loaded[0].Value)
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.MessagesProduced), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, discard(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, ldr.count())
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	committed := 0
	raw := makeRawEvent(t, "req-2", 28.61, 77.2)
	raw.Commit = func(context.Context) error {
		committed++
		return nil
	}

	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}}, &mockTransformer{err: errors.New("bad data")}, ldr, discard(), metrics, 10)

	runFor(t, p, 300*time.Millisecond)

	assert.Zero(t, ldr.count())
	assert.Equal(t, 1, committed, "poison messages are committed")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var order []string
	raw := makeRawEvent(t, "req-3", 28.61, 77.2)
	raw.Commit = func(context.Context) error {
		order = append(order, "commit")
		return nil
	}

	ldr := &orderingLoader{order: &order}
	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}}, &mockTransformer{}, ldr, discard(), newTestMetrics(), 10)

	runFor(t, p, 300*time.Millisecond)
	assert.Equal(t, []string{"load", "commit"}, order)
}

type orderingLoader struct {
	order *[]string
}

func (o *orderingLoader) LoadBatch(context.Context, []domain.OutputEvent) error {
	*o.order = append(*o.order, "load")
	return nil
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	committed := false
	raw := makeRawEvent(t, "req-4", 28.61, 77.2)
	raw.Commit = func(context.Context) error {
		committed = true
		return nil
	}

	ldr := &mockLoader{failures: 1}
	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}}, &mockTransformer{}, ldr, discard(), newTestMetrics(), 10)

	runFor(t, p, 300*time.Millisecond)
	assert.False(t, committed)
	assert.Zero(t, ldr.count())
}

func TestPipeline_Run_RecoversAfterExtractError(t *testing.T) {
	raw := makeRawEvent(t, "req-5", 28.61, 77.2)
	ext := &mockExtractor{
		errs:    []error{errors.New("coordinator not available")},
		batches: [][]domain.RawEvent{{raw}},
	}
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockTransformer{}, ldr, discard(), newTestMetrics(), 10)

	runFor(t, p, time.Second)
	assert.Equal(t, 1, ldr.count())
}

type slowTransformer struct {
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (s *slowTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	s.mu.Lock()
	s.inFlight++
	s.peak = max(s.peak, s.inFlight)
	s.mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return domain.OutputEvent{Key: raw.Key}, nil
}

func TestPipeline_Run_ConcurrentAssessmentKeepsOrder(t *testing.T) {
	batch := make([]domain.RawEvent, 6)
	for i := range batch {
		batch[i] = makeRawEvent(t, string(rune('a'+i)), 28.61, 77.2)
	}
	tfm := &slowTransformer{}
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{batch}}, tfm, ldr, discard(), newTestMetrics(), 10).
		WithConcurrency(3)

	runFor(t, p, time.Second)

	require.Equal(t, 6, ldr.count())
	for i, out := range ldr.loaded {
		assert.Equal(t, string(rune('a'+i)), string(out.Key))
	}
	assert.LessOrEqual(t, tfm.peak, 3)
	assert.Greater(t, tfm.peak, 1)
}

func TestPipeline_Run_BackendOutageIsNotCommitted(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "transport error", err: &predict.TransportError{Err: errors.New("connection refused")}},
		{name: "server error", err: &predict.APIError{Service: "Prediction", StatusCode: 503, Detail: "model loading"}},
		{name: "rate limited", err: &predict.APIError{Service: "Prediction", StatusCode: 429, Detail: "slow down"}},
		{name: "timeout", err: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			committed := 0
			raw := makeRawEvent(t, "req-8", 28.61, 77.2)
			raw.Commit = func(context.Context) error {
				committed++
				return nil
			}

			ldr := &mockLoader{}
			metrics := newTestMetrics()
			tfm := pipeline.NewTransformer(&flakyAssessor{errs: []error{tt.err}}, discard())
			p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}}, tfm, ldr, discard(), metrics, 10)

			runFor(t, p, 300*time.Millisecond)

			assert.Zero(t, committed, "requests are not committed while the backend is down")
			assert.Zero(t, ldr.count())
			assert.Zero(t, testutil.ToFloat64(metrics.TransformErrors))
			assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.TransformRetries), 1.0)
		})
	}
}

func TestPipeline_Run_RetriesUntilBackendRecovers(t *testing.T) {
	var order []string
	raw := makeRawEvent(t, "req-9", 28.61, 77.2)
	raw.Commit = func(context.Context) error {
		order = append(order, "commit")
		return nil
	}

	outage := &predict.TransportError{Err: errors.New("connection refused")}
	assessor := &flakyAssessor{errs: []error{outage, outage, nil}}
	ldr := &orderingLoader{order: &order}
	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}}, pipeline.NewTransformer(assessor, discard()), ldr, discard(), newTestMetrics(), 10)

	// Two backoffs: 200ms then 400ms.
	runFor(t, p, 1500*time.Millisecond)

	assert.Equal(t, 3, assessor.calls)
	assert.Equal(t, []string{"load", "commit"}, order)
}

func TestPipeline_Run_ClientErrorIsCommitted(t *testing.T) {
	committed := 0
	raw := makeRawEvent(t, "req-10", 28.61, 77.2)
	raw.Commit = func(context.Context) error {
		committed++
		return nil
	}

	badRequest := &predict.APIError{Service: "Prediction", StatusCode: 422, Detail: "latitude out of range"}
	tfm := pipeline.NewTransformer(&flakyAssessor{errs: []error{badRequest}}, discard())
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}}, tfm, &mockLoader{}, discard(), metrics, 10)

	runFor(t, p, 300*time.Millisecond)

	assert.Equal(t, 1, committed)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
	assert.Zero(t, testutil.ToFloat64(metrics.TransformRetries))
}

func TestAssessmentTransformer_Transform(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2025, time.August, 14, 9, 30, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	raw := makeRawEvent(t, "req-6", 28.6139, 77.209)
	tfm := pipeline.NewTransformer(&fakeAssessor{}, discard())

	out, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("req-6"), out.Key)
	assert.Equal(t, "High", out.Headers["risk"])

	var got domain.Assessment
	require.NoError(t, json.Unmarshal(out.Value, &got))

	type summary struct {
		ID         string
		Risk       domain.RiskLevel
		Location   domain.Coordinates
		AssessedAt time.Time
	}
	want := summary{
		ID:         "req-6",
		Risk:       domain.RiskHigh,
		Location:   domain.Coordinates{Latitude: 28.6139, Longitude: 77.209},
		AssessedAt: fake.Now(),
	}
	if diff := cmp.Diff(want, summary{ID: got.ID, Risk: got.Risk, Location: got.Location, AssessedAt: got.AssessedAt}); diff != "" {
		t.Fatalf("assessment mismatch (-want +got):\n%s", diff)
	}
}

func TestAssessmentTransformer_Errors(t *testing.T) {
	tfm := pipeline.NewTransformer(&fakeAssessor{}, discard())
	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	assert.Error(t, err)

	failing := pipeline.NewTransformer(&fakeAssessor{err: domain.ErrAddressNotFound}, discard())
	_, err = failing.Transform(context.Background(), makeRawEvent(t, "req-7", 1, 2))
	assert.ErrorIs(t, err, domain.ErrAddressNotFound)
}

func TestTeeLoader(t *testing.T) {
	primary := &mockLoader{}
	mirror := &mockLoader{failures: 1}
	tee := pipeline.NewTeeLoader(primary, discard(), mirror)

	events := []domain.OutputEvent{{Key: []byte("a")}}
	require.NoError(t, tee.LoadBatch(context.Background(), events), "secondary failures are ignored")
	assert.Equal(t, 1, primary.count())

	failingPrimary := &mockLoader{failures: 1}
	mirror2 := &mockLoader{}
	tee = pipeline.NewTeeLoader(failingPrimary, discard(), mirror2)
	require.Error(t, tee.LoadBatch(context.Background(), events))
	assert.Zero(t, mirror2.count(), "nothing is mirrored when the primary fails")
}

// --- helpers ---

func makeRawEvent(t *testing.T, id string, lat, lon float64) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.AssessmentRequest{Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)
	return domain.RawEvent{
		Key:   []byte(id),
		Value: data,
	}
}
