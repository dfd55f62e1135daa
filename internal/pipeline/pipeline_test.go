package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/model-imagery-service/internal/domain"
	"github.com/couchcryptid/model-imagery-service/internal/grib"
	"github.com/couchcryptid/model-imagery-service/internal/observability"
)

// --- mocks ---

// mockSource serves the same synthetic GRIB message for every model and
// counts probes.
type mockSource struct {
	name     string
	ready    map[string]bool // keyed by "<slug>/<hour>"; missing means not ready
	probeErr error
	fetchErr error
	data     []byte
	idx      string
	probes   int
}

func (s *mockSource) Name() string { return s.name }

func (s *mockSource) ProbeRun(_ context.Context, m domain.Model, cycle time.Time) (bool, error) {
	s.probes++
	if s.probeErr != nil {
		return false, s.probeErr
	}
	return s.ready[probeKey(m, cycle)], nil
}

func (s *mockSource) FetchInventory(_ context.Context, m domain.Model, _ time.Time, _ int) (grib.Inventory, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return grib.ParseInventory(strings.NewReader(s.idx))
}

func (s *mockSource) FetchRange(_ context.Context, _ domain.Model, _ time.Time, _ int, _, _ int64) ([]byte, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.data, nil
}

func probeKey(m domain.Model, cycle time.Time) string {
	return fmt.Sprintf("%s/%s", m.Slug, cycle.UTC().Format("2006010215"))
}

type mockCatalog struct {
	mu        sync.Mutex
	published map[string]bool
	records   []domain.Run
	err       error
}

func (c *mockCatalog) WasPublished(run domain.Run) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	return c.published[run.ID()], nil
}

func (c *mockCatalog) Record(run domain.Run, _, _ string, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.published == nil {
		c.published = map[string]bool{}
	}
	c.published[run.ID()] = true
	c.records = append(c.records, run)
	return nil
}

type mockPublisher struct {
	mu         sync.Mutex
	images     map[string][]byte
	indexCount int
	err        error
}

func (p *mockPublisher) PublishImage(m domain.Model, png []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	if p.images == nil {
		p.images = map[string][]byte{}
	}
	p.images[m.Slug] = png
	return "sha-" + m.Slug, nil
}

func (p *mockPublisher) PublishIndex(_ domain.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexCount++
	return nil
}

type mockNotifier struct {
	mu   sync.Mutex
	runs []domain.PublishedRun
	err  error
}

func (n *mockNotifier) NotifyPublished(_ context.Context, runs []domain.PublishedRun) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.runs = append(n.runs, runs...)
	return nil
}

// --- helpers ---

var testCycleTime = time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)

func newTestField() ([]byte, string) {
	spec := grib.EncodeSpec{
		RefTime:  testCycleTime,
		Ni:       17,
		Nj:       12,
		Lat1:     48,
		Lon1:     -82,
		Di:       1,
		Dj:       1,
		DecScale: 1,
		Values:   make([]float64, 17*12),
	}
	for i := range spec.Values {
		spec.Values[i] = 280 + float64(i%10) // Kelvin, ~45F
	}
	data, err := grib.EncodeLatLonSimple(spec)
	if err != nil {
		panic(err)
	}
	return data, grib.InventoryFor(spec)
}

func newReadySource(name string) *mockSource {
	data, idx := newTestField()
	ready := map[string]bool{}
	for _, m := range domain.Models() {
		ready[probeKey(m, testCycleTime)] = true
	}
	return &mockSource{name: name, ready: ready, data: data, idx: idx}
}

func newTestPipeline(t *testing.T, sources []RunSource, cat *mockCatalog, pub *mockPublisher, not Notifier) *Pipeline {
	t.Helper()
	fakeClock := clockwork.NewFakeClockAt(testCycleTime.Add(30 * time.Minute))
	SetClock(fakeClock)
	domain.SetClock(fakeClock)
	t.Cleanup(func() {
		SetClock(nil)
		domain.SetClock(nil)
	})

	return New(sources, cat, pub, not,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(),
		Options{RefreshInterval: 6 * time.Hour, LookbackHours: 12, RenderWidth: 160},
	)
}

// --- tests ---

func TestPipeline_RunCycle_PublishesAllModels(t *testing.T) {
	src := newReadySource("s3")
	cat := &mockCatalog{}
	pub := &mockPublisher{}
	not := &mockNotifier{}
	p := newTestPipeline(t, []RunSource{src}, cat, pub, not)

	err := p.runCycle(context.Background())
	require.NoError(t, err)

	assert.Len(t, pub.images, 5)
	assert.Contains(t, pub.images, "hrrr")
	assert.Contains(t, pub.images, "gfs")
	assert.Equal(t, 1, pub.indexCount)
	assert.Len(t, not.runs, 5)
	assert.Len(t, cat.records, 5)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_RunCycle_SkipsCurrentRuns(t *testing.T) {
	src := newReadySource("s3")
	cat := &mockCatalog{}
	pub := &mockPublisher{}
	p := newTestPipeline(t, []RunSource{src}, cat, pub, nil)

	require.NoError(t, p.runCycle(context.Background()))
	assert.Equal(t, 1, pub.indexCount)

	// Second cycle: everything already published, no new images, no new index.
	require.NoError(t, p.runCycle(context.Background()))
	assert.Len(t, cat.records, 5)
	assert.Equal(t, 1, pub.indexCount)
}

func TestPipeline_RunCycle_NoReadyRuns(t *testing.T) {
	data, idx := newTestField()
	src := &mockSource{name: "s3", ready: map[string]bool{}, data: data, idx: idx}
	cat := &mockCatalog{}
	pub := &mockPublisher{}
	p := newTestPipeline(t, []RunSource{src}, cat, pub, nil)

	err := p.runCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, pub.images)
	assert.Zero(t, pub.indexCount)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_RunCycle_AllModelsFailed(t *testing.T) {
	src := newReadySource("s3")
	src.fetchErr = errors.New("upstream down")
	cat := &mockCatalog{}
	pub := &mockPublisher{}
	p := newTestPipeline(t, []RunSource{src}, cat, pub, nil)

	err := p.runCycle(context.Background())
	assert.ErrorContains(t, err, "models failed")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_RunCycle_PartialFailureKeepsGoing(t *testing.T) {
	good := newReadySource("s3")
	// HRRR has no ready run; the other four still publish.
	delete(good.ready, probeKey(mustModel(t, "hrrr"), testCycleTime))
	cat := &mockCatalog{}
	pub := &mockPublisher{}
	p := newTestPipeline(t, []RunSource{good}, cat, pub, nil)

	err := p.runCycle(context.Background())
	require.NoError(t, err)

	assert.Len(t, pub.images, 4)
	assert.NotContains(t, pub.images, "hrrr")
}

func TestPipeline_Discover_FallsBackToSecondSource(t *testing.T) {
	data, idx := newTestField()
	primary := &mockSource{name: "s3", ready: map[string]bool{}, data: data, idx: idx}
	secondary := newReadySource("nomads")
	cat := &mockCatalog{}
	pub := &mockPublisher{}
	p := newTestPipeline(t, []RunSource{primary, secondary}, cat, pub, nil)

	run, source, found, err := p.discover(context.Background(), mustModel(t, "gfs"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "nomads", source.Name())
	assert.Equal(t, testCycleTime, run.Cycle)
}

func TestPipeline_Discover_ProbeErrorSurfacesWhenNothingFound(t *testing.T) {
	src := &mockSource{name: "s3", probeErr: errors.New("dns failure")}
	cat := &mockCatalog{}
	pub := &mockPublisher{}
	p := newTestPipeline(t, []RunSource{src}, cat, pub, nil)

	_, _, found, err := p.discover(context.Background(), mustModel(t, "nam"))
	assert.False(t, found)
	assert.ErrorContains(t, err, "dns failure")
}

func TestPipeline_Discover_PrefersNewestCycle(t *testing.T) {
	data, idx := newTestField()
	gfs := mustModel(t, "gfs")
	older := testCycleTime.Add(-6 * time.Hour)
	src := &mockSource{
		name: "s3",
		ready: map[string]bool{
			probeKey(gfs, older):         true,
			probeKey(gfs, testCycleTime): true,
		},
		data: data,
		idx:  idx,
	}
	cat := &mockCatalog{}
	pub := &mockPublisher{}
	p := newTestPipeline(t, []RunSource{src}, cat, pub, nil)

	run, _, found, err := p.discover(context.Background(), gfs)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testCycleTime, run.Cycle)
}

func TestPipeline_NotifierFailureIsNotFatal(t *testing.T) {
	src := newReadySource("s3")
	cat := &mockCatalog{}
	pub := &mockPublisher{}
	not := &mockNotifier{err: errors.New("broker down")}
	p := newTestPipeline(t, []RunSource{src}, cat, pub, not)

	err := p.runCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, pub.images, 5)
}

func TestPipeline_Run_StopsOnCancel(t *testing.T) {
	src := newReadySource("s3")
	cat := &mockCatalog{}
	pub := &mockPublisher{}
	p := newTestPipeline(t, []RunSource{src}, cat, pub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// First cycle runs immediately; give it a moment, then cancel.
	require.Eventually(t, func() bool {
		return p.CheckReadiness(context.Background()) == nil
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
	assert.Len(t, pub.images, 5)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(4*time.Second, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(5*time.Second, 5*time.Second))
}

func mustModel(t *testing.T, slug string) domain.Model {
	t.Helper()
	m, ok := domain.ModelBySlug(slug)
	require.True(t, ok)
	return m
}
