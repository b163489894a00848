package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/ar-collections-go/internal/domain"
	"github.com/boddenberg/ar-collections-go/internal/handler"
	"github.com/boddenberg/ar-collections-go/internal/infra/cache"
	"github.com/boddenberg/ar-collections-go/internal/infra/client"
	"github.com/boddenberg/ar-collections-go/internal/infra/observability"
	"github.com/boddenberg/ar-collections-go/internal/infra/resilience"
	"github.com/boddenberg/ar-collections-go/internal/port"
	"github.com/boddenberg/ar-collections-go/internal/prompt"
	"github.com/boddenberg/ar-collections-go/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newAPI wires the full stack. A nil generator leaves drafts unconfigured.
func newAPI(t *testing.T, gen port.TextGenerator, cfg handler.RouterConfig) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	renderer, err := prompt.NewRenderer()
	require.NoError(t, err)

	draftCache := cache.New[domain.DraftResponse](time.Minute)
	t.Cleanup(draftCache.Close)

	drafts := service.NewDrafts(
		gen,
		renderer,
		draftCache,
		resilience.NewBulkhead(4),
		resilience.NewLimiter(resilience.Config{}),
		service.DraftsConfig{Credential: "OPENAI_API_KEY", MaxTokens: 600, BatchConcurrency: 4},
		metrics,
		logger,
	)
	return handler.NewRouter(service.NewCollections(metrics, logger), drafts, metrics, logger, cfg)
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/ar/priority", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPriority_EndToEnd(t *testing.T) {
	router := newAPI(t, nil, handler.RouterConfig{})

	csv := "customer,amount,days_past_due,segment\nA,10000,45,Enterprise\nB,2000,5,SMB\nC,5000,0,Startup\n"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "invoices.csv", csv))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err := uuid.Parse(rec.Header().Get("X-Upload-Id"))
	assert.NoError(t, err)

	var resp domain.PriorityResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Invoices, 3)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, 17000.0, resp.TotalOverdue)

	assert.Equal(t, domain.InvoiceView{ID: 1, Customer: "A", Amount: 10000, DaysOverdue: 45, PriorityScore: 16.27, Segment: "Enterprise"}, resp.Invoices[0])
	assert.Equal(t, domain.InvoiceView{ID: 2, Customer: "B", Amount: 2000, DaysOverdue: 5, PriorityScore: 0.23, Segment: "SMB"}, resp.Invoices[1])
	assert.Equal(t, domain.InvoiceView{ID: 3, Customer: "C", Amount: 5000, DaysOverdue: 0, PriorityScore: 0, Segment: "Startup"}, resp.Invoices[2])
}

func TestPriority_MissingColumn(t *testing.T) {
	router := newAPI(t, nil, handler.RouterConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "invoices.csv", "customer,amount,segment\nA,10,SMB\n"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "CSV must have columns")
	assert.Contains(t, rec.Body.String(), "days_past_due")
}

func TestPriority_HeaderOnly(t *testing.T) {
	router := newAPI(t, nil, handler.RouterConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "invoices.csv", "customer,amount,days_past_due,segment\n"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"invoices":[],"total_overdue":0,"count":0}`, rec.Body.String())
}

func TestPriority_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name    string
		content string
		status  int
	}{
		{"bad amount", "customer,amount,days_past_due,segment\nA,ten,5,SMB\n", http.StatusUnprocessableEntity},
		{"bad days", "customer,amount,days_past_due,segment\nA,10,soon,SMB\n", http.StatusUnprocessableEntity},
		{"empty upload", "", http.StatusBadRequest},
		{"not utf-8", "customer,amount,days_past_due,segment\n\xff\xfe\xfd,1,1,SMB\n", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newAPI(t, nil, handler.RouterConfig{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, "invoices.csv", tc.content))

			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestPriority_MissingFileField(t *testing.T) {
	router := newAPI(t, nil, handler.RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/ar/priority", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPriority_TotalBeyondFloatRange(t *testing.T) {
	router := newAPI(t, nil, handler.RouterConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "invoices.csv", "customer,amount,days_past_due,segment\nA,1e308,0,SMB\nB,1e308,0,SMB\n"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body["error"], "Error processing file: "), "error = %q", body["error"])
	assert.Contains(t, body["error"], "total_overdue")
}

func TestPriority_AmountBeyondFloatRange(t *testing.T) {
	router := newAPI(t, nil, handler.RouterConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "invoices.csv", "customer,amount,days_past_due,segment\nA,1e309,0,SMB\n"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPriority_TooLarge(t *testing.T) {
	router := newAPI(t, nil, handler.RouterConfig{MaxUploadBytes: 64})

	csv := "customer,amount,days_past_due,segment\n" + strings.Repeat("A,10000,45,Enterprise\n", 20)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "invoices.csv", csv))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDraft_NotConfigured(t *testing.T) {
	router := newAPI(t, nil, handler.RouterConfig{})

	body := `{"customer_name":"Acme","amount_due":1200.5,"days_overdue":40,"segment":"SMB"}`
	req := httptest.NewRequest(http.MethodPost, "/ar/draft", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "OPENAI_API_KEY not configured")
}

func TestDraft_BadBody(t *testing.T) {
	router := newAPI(t, &stubGenerator{}, handler.RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/ar/draft", strings.NewReader(`{"customer_name":`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestDraft_OpenAIFlow runs POST /ar/draft against a fake OpenAI endpoint.
func TestDraft_OpenAIFlow(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"model": "gpt-4o-mini",
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"subject":"Past due invoice","body":"Hi Acme team, ...","tone":"direct","tone_rationale":"SMB customers value brevity."}`,
				},
			}},
			"usage": map[string]any{"prompt_tokens": 210, "completion_tokens": 90, "total_tokens": 300},
		})
	}))
	defer llm.Close()

	gen := client.NewOpenAIClient(llm.Client(), llm.URL, "sk-test", "gpt-4o-mini", resilience.NewCircuitBreaker("openai-test"))
	router := newAPI(t, gen, handler.RouterConfig{})

	body := `{"customer_name":"Acme","amount_due":1200.5,"days_overdue":40,"segment":"SMB"}`
	req := httptest.NewRequest(http.MethodPost, "/ar/draft", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var draft domain.DraftResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&draft))
	assert.Equal(t, "Past due invoice", draft.Subject)
	assert.Equal(t, "direct", draft.Tone)

	// Metrics endpoint reflects the call.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ar/metrics/drafts", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.DraftMetrics
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, int64(1), snap.TotalRequests)
	assert.Equal(t, int64(210), snap.PromptTokens)
	assert.Equal(t, int64(90), snap.CompletionTokens)
}

func TestDraft_UpstreamFailure(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer llm.Close()

	gen := client.NewOpenAIClient(llm.Client(), llm.URL, "sk-test", "gpt-4o-mini", resilience.NewCircuitBreaker("openai-test"))
	router := newAPI(t, gen, handler.RouterConfig{})

	body := `{"customer_name":"Acme","amount_due":1200.5,"days_overdue":40,"segment":"SMB"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ar/draft", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "draft generation failed")
}

func TestDraftBatch(t *testing.T) {
	router := newAPI(t, &stubGenerator{}, handler.RouterConfig{})

	body := `{"requests":[
		{"customer_name":"Acme","amount_due":100,"days_overdue":10,"segment":"Enterprise"},
		{"customer_name":"","amount_due":100,"days_overdue":10,"segment":"SMB"}
	]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ar/drafts", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.BatchDraftResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	assert.NotNil(t, resp.Results[0].Draft)
	assert.Contains(t, resp.Results[1].Error, "customer_name")
}

func TestDraftBatch_TooLarge(t *testing.T) {
	router := newAPI(t, &stubGenerator{}, handler.RouterConfig{})

	reqs := make([]domain.DraftRequest, service.MaxBatchSize+1)
	payload, err := json.Marshal(domain.BatchDraftRequest{Requests: reqs})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ar/drafts", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubGenerator struct{}

func (stubGenerator) Provider() string { return "stub" }

func (stubGenerator) Generate(_ context.Context, _ *domain.GenerationRequest) (*domain.GenerationResult, error) {
	return &domain.GenerationResult{
		Content: `{"subject":"Reminder","body":"...","tone":"formal","tone_rationale":"..."}`,
		Usage:   domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}
