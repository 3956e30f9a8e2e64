package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandscope/overview-service/internal/enrich"
	"github.com/brandscope/overview-service/internal/model"
	"github.com/brandscope/overview-service/internal/resilience"
	"github.com/brandscope/overview-service/pkg/anthropic"
)

// mockAnthropicClient returns canned responses per model, failing for models
// in the failing set.
type mockAnthropicClient struct {
	mu       sync.Mutex
	response string
	failing  map[string]error
	calls    []string
	prompts  []string
}

func (m *mockAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req.Model)
	if len(req.Messages) > 0 {
		m.prompts = append(m.prompts, req.Messages[0].Content)
	}
	if err, ok := m.failing[req.Model]; ok {
		return nil, err
	}
	return &anthropic.MessageResponse{
		Model:   req.Model,
		Content: []anthropic.ContentBlock{{Type: "text", Text: m.response}},
	}, nil
}

func newTestAnalyzer(client anthropic.Client, models ...string) *Analyzer {
	a := NewAnalyzer(client, models, 1024, 2)
	// Retries should not slow the suite down.
	a.retry.InitialBackoff = time.Millisecond
	a.retry.MaxBackoff = time.Millisecond
	return a
}

func TestAnalyzer_ValidJSON(t *testing.T) {
	t.Parallel()

	client := &mockAnthropicClient{
		response: `{"overview": "Acme Dynamics builds warehouse robots for logistics.", "products": ["Picking arm"]}`,
	}
	analyzer := newTestAnalyzer(client, "model-a")

	record, err := analyzer.Analyze(context.Background(),
		model.Company{Name: "Acme Dynamics", Website: "https://acme.example"},
		model.ScrapeResult{Available: true, URL: "https://acme.example", Content: "# Acme"},
		nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme Dynamics builds warehouse robots for logistics.", record.Overview)
	assert.Equal(t, []string{"Picking arm"}, record.Products)
	// Normalization filled the rest.
	assert.Equal(t, model.SentinelNotPublic, record.AnnualRevenue)
}

func TestAnalyzer_ModelFallback(t *testing.T) {
	t.Parallel()

	client := &mockAnthropicClient{
		response: `{"overview": "From the fallback model, with plenty of detail."}`,
		failing: map[string]error{
			"model-a": resilience.NewTransientError(eris.New("overloaded"), 529),
		},
	}
	analyzer := newTestAnalyzer(client, "model-a", "model-b")

	record, err := analyzer.Analyze(context.Background(), model.Company{Name: "Acme"}, model.ScrapeResult{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "From the fallback model, with plenty of detail.", record.Overview)

	// model-a retried twice, then model-b succeeded.
	assert.Equal(t, []string{"model-a", "model-a", "model-b"}, client.calls)
}

func TestAnalyzer_AllModelsFail(t *testing.T) {
	t.Parallel()

	client := &mockAnthropicClient{
		failing: map[string]error{
			"model-a": eris.New("bad request"),
			"model-b": eris.New("bad request"),
		},
	}
	analyzer := newTestAnalyzer(client, "model-a", "model-b")

	_, err := analyzer.Analyze(context.Background(), model.Company{Name: "Acme"}, model.ScrapeResult{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all models failed")
}

func TestAnalyzer_MalformedResponseDegrades(t *testing.T) {
	t.Parallel()

	client := &mockAnthropicClient{response: "The company appears to exist but I could not structure the data."}
	analyzer := newTestAnalyzer(client, "model-a")

	record, err := analyzer.Analyze(context.Background(), model.Company{Name: "Acme"}, model.ScrapeResult{}, nil)
	require.NoError(t, err, "malformed output is recovered, not surfaced")
	assert.True(t, record.ParsingError)
	assert.NotEmpty(t, record.RawResponse)
}

func TestAnalyzer_PromptIncludesSignals(t *testing.T) {
	t.Parallel()

	client := &mockAnthropicClient{response: `{"overview": "x"}`}
	analyzer := newTestAnalyzer(client, "model-a")

	enrichment := map[string]enrich.SourceResult{
		"news": {
			Source:    "news",
			Available: true,
			Data: map[string]any{"results": []map[string]any{
				{"title": "Acme raises Series C", "snippet": "Robotics funding round"},
			}},
		},
		"financial": {Source: "financial", Available: false},
	}

	_, err := analyzer.Analyze(context.Background(),
		model.Company{Name: "Acme Dynamics", Website: "https://acme.example", Industry: "Robotics"},
		model.ScrapeResult{Available: true, URL: "https://acme.example", Content: "Warehouse automation"},
		enrichment)
	require.NoError(t, err)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "Company: Acme Dynamics")
	assert.Contains(t, prompt, "Website: https://acme.example")
	assert.Contains(t, prompt, "Warehouse automation")
	assert.Contains(t, prompt, "Acme raises Series C")
	assert.NotContains(t, prompt, "financial:", "unavailable sources are excluded")
}

func TestAnalyzer_GeolocateSuccess(t *testing.T) {
	t.Parallel()

	client := &mockAnthropicClient{
		response: `{"headquarters": "Austin, TX", "markets": ["North America"]}`,
	}
	analyzer := newTestAnalyzer(client, "model-a")

	geo := analyzer.Geolocate(context.Background(), model.Company{Name: "Acme"}, fullAnalysis())
	require.NotNil(t, geo)
	assert.Equal(t, "Austin, TX", geo.Headquarters)
	assert.Equal(t, []string{"North America"}, geo.Markets)
}

func TestAnalyzer_GeolocateFailureDefaults(t *testing.T) {
	t.Parallel()

	client := &mockAnthropicClient{
		failing: map[string]error{"model-a": eris.New("down")},
	}
	analyzer := newTestAnalyzer(client, "model-a")

	geo := analyzer.Geolocate(context.Background(), model.Company{Name: "Acme"}, nil)
	require.NotNil(t, geo)
	assert.Equal(t, model.SentinelNotSpecified, geo.Headquarters)
	assert.Empty(t, geo.Markets)
}
