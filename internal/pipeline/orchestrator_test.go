package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandscope/overview-service/internal/enrich"
	"github.com/brandscope/overview-service/internal/model"
	"github.com/brandscope/overview-service/internal/store"
	"github.com/brandscope/overview-service/pkg/zoho"
)

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu     sync.Mutex
	runs   map[string]*model.Run
	phases []model.RunPhase
}

func newMemStore() *memStore {
	return &memStore{runs: make(map[string]*model.Run)}
}

func (m *memStore) CreateRun(_ context.Context, company model.Company) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := &model.Run{ID: uuid.New().String(), Company: company, Status: model.RunStatusQueued}
	m.runs[run.ID] = run
	return run, nil
}

func (m *memStore) SetRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return store.ErrRunNotFound
	}
	run.Status = status
	return nil
}

func (m *memStore) FinishRun(_ context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return store.ErrRunNotFound
	}
	run.Status = status
	run.Result = result
	return nil
}

func (m *memStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, store.ErrRunNotFound
	}
	return run, nil
}

func (m *memStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Run
	for _, r := range m.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) CreatePhase(_ context.Context, runID, name string) (*model.RunPhase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phase := model.RunPhase{ID: uuid.New().String(), RunID: runID, Name: name, Status: model.PhaseStatusRunning}
	m.phases = append(m.phases, phase)
	return &phase, nil
}

func (m *memStore) CompletePhase(_ context.Context, phaseID string, result *model.PhaseResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.phases {
		if m.phases[i].ID == phaseID {
			m.phases[i].Status = result.Status
			m.phases[i].Result = result
			return nil
		}
	}
	return store.ErrRunNotFound
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

type stubScraperDep struct {
	result model.ScrapeResult
}

func (s *stubScraperDep) Fetch(context.Context, string) model.ScrapeResult { return s.result }

type stubEnricher struct {
	results map[string]enrich.SourceResult
}

func (s *stubEnricher) Gather(context.Context, model.Company) map[string]enrich.SourceResult {
	return s.results
}

type stubEngine struct {
	analysis *model.AnalysisRecord
	geo      *model.Geolocation
	err      error

	geolocateCalls int
}

func (s *stubEngine) Analyze(context.Context, model.Company, model.ScrapeResult, map[string]enrich.SourceResult) (*model.AnalysisRecord, error) {
	return s.analysis, s.err
}

func (s *stubEngine) Geolocate(context.Context, model.Company, *model.AnalysisRecord) *model.Geolocation {
	s.geolocateCalls++
	if s.geo != nil {
		return s.geo
	}
	geo := &model.Geolocation{}
	NormalizeGeolocation(geo)
	return geo
}

type stubCRM struct {
	mu      sync.Mutex
	updates map[string]model.FieldMapping
	err     error
}

func (s *stubCRM) GetRecord(context.Context, string) (*zoho.Record, error) {
	return nil, eris.New("not implemented")
}

func (s *stubCRM) SearchRecords(context.Context, string, int) ([]zoho.Record, error) {
	return nil, eris.New("not implemented")
}

func (s *stubCRM) UpdateRecord(_ context.Context, id string, fields model.FieldMapping) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = make(map[string]model.FieldMapping)
	}
	s.updates[id] = fields
	return nil
}

func TestOrchestrator_FullRun(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	engine := &stubEngine{analysis: fullAnalysis(), geo: fullGeolocation()}
	orch := NewOrchestrator(nil, st,
		&stubScraperDep{result: model.ScrapeResult{URL: "https://acme.example", Content: "# Acme", Available: true}},
		&stubEnricher{results: map[string]enrich.SourceResult{
			"news": {Source: "news", Available: true, Data: map[string]any{"results": []map[string]any{{"title": "t"}}}},
		}},
		engine, nil, nil)

	result, err := orch.Run(context.Background(), model.Company{Name: "Acme Dynamics", Website: "https://acme.example"})
	require.NoError(t, err)

	assert.False(t, result.InsufficientData)
	assert.Equal(t, 1, engine.geolocateCalls)
	require.NotNil(t, result.Fields)
	for _, name := range model.CRMFieldNames {
		assert.Contains(t, result.Fields, name)
	}
	assert.NotEqual(t, model.SentinelDataNotFound, result.Fields[model.FieldOverview])
	assert.False(t, result.CRMUpdated, "no CRM client wired")

	run, err := st.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}

func TestOrchestrator_GenericNameShortCircuits(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	engine := &stubEngine{analysis: fullAnalysis()}
	orch := NewOrchestrator(nil, st,
		&stubScraperDep{result: model.ScrapeResult{Available: true, Content: "rich content"}},
		&stubEnricher{}, engine, nil, nil)

	result, err := orch.Run(context.Background(), model.Company{Name: "Tech Corp", Website: "https://techcorp.example"})
	require.NoError(t, err)

	assert.True(t, result.InsufficientData)
	assert.NotEmpty(t, result.Reason)
	assert.Len(t, result.Suggestions, 4)
	assert.Equal(t, 0, engine.geolocateCalls, "geolocation skipped on insufficiency")
	assert.Nil(t, result.Fields)

	run, err := st.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusInsufficient, run.Status)
}

func TestOrchestrator_InsufficientAnalysisShortCircuits(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	engine := &stubEngine{analysis: &model.AnalysisRecord{
		InsufficientData: true,
		Reason:           "company not found",
	}}
	orch := NewOrchestrator(nil, st, &stubScraperDep{}, &stubEnricher{}, engine, nil, nil)

	result, err := orch.Run(context.Background(), model.Company{Name: "Acme Dynamics"})
	require.NoError(t, err)

	assert.True(t, result.InsufficientData)
	assert.Equal(t, "company not found", result.Reason)
	assert.Equal(t, 0, engine.geolocateCalls)
	assert.NotEmpty(t, result.Message)
}

func TestOrchestrator_AnalysisFailureAborts(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	engine := &stubEngine{err: eris.New("all models down")}
	orch := NewOrchestrator(nil, st, &stubScraperDep{}, &stubEnricher{}, engine, nil, nil)

	_, err := orch.Run(context.Background(), model.Company{Name: "Acme Dynamics"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis failed")
}

func TestOrchestrator_CRMWriteBack(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	crm := &stubCRM{}
	engine := &stubEngine{analysis: fullAnalysis(), geo: fullGeolocation()}
	orch := NewOrchestrator(nil, st, &stubScraperDep{}, &stubEnricher{}, engine, crm, nil)

	result, err := orch.Run(context.Background(), model.Company{
		ID:   "crm-1001",
		Name: "Acme Dynamics",
	})
	require.NoError(t, err)
	assert.True(t, result.CRMUpdated)
	require.Contains(t, crm.updates, "crm-1001")
	assert.Equal(t, result.Fields[model.FieldOverview], crm.updates["crm-1001"][model.FieldOverview])
}

func TestOrchestrator_CRMWriteFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	crm := &stubCRM{err: zoho.ErrInsufficientData}
	engine := &stubEngine{analysis: fullAnalysis(), geo: fullGeolocation()}
	sink := &recordingSink{}
	orch := NewOrchestrator(nil, st, &stubScraperDep{}, &stubEnricher{}, engine, crm, sink)

	result, err := orch.Run(context.Background(), model.Company{ID: "crm-1", Name: "Acme Dynamics"})
	require.NoError(t, err)
	assert.False(t, result.CRMUpdated)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	assert.Equal(t, "CRM write failed", sink.events[0].Title)
}

func TestOrchestrator_ScrapeFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	engine := &stubEngine{analysis: fullAnalysis()}
	orch := NewOrchestrator(nil, st,
		&stubScraperDep{result: model.ScrapeResult{Available: false}},
		&stubEnricher{}, engine, nil, nil)

	result, err := orch.Run(context.Background(), model.Company{Name: "Acme Dynamics"})
	require.NoError(t, err)
	assert.False(t, result.InsufficientData)
	require.NotNil(t, result.Scrape)
	assert.False(t, result.Scrape.Available)
}
