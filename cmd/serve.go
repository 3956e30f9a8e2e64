package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brandscope/overview-service/internal/model"
	"github.com/brandscope/overview-service/internal/store"
	"github.com/brandscope/overview-service/pkg/zoho"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for overview generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		router := buildRouter(serverDeps{
			runner:           env.Orchestrator,
			crm:              env.CRM,
			store:            env.Store,
			baseCtx:          ctx,
			batchConcurrency: cfg.Batch.MaxConcurrentCompanies,
			requestTimeout:   time.Duration(cfg.Pipeline.RequestTimeoutSecs) * time.Second,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runner is the orchestration surface the HTTP handlers need.
type runner interface {
	Run(ctx context.Context, company model.Company) (*model.OverviewResult, error)
}

// serverDeps holds the dependencies the router handlers close over.
type serverDeps struct {
	runner           runner
	crm              zoho.Client // nil when Zoho is not configured
	store            store.Store // nil disables the runs endpoints
	baseCtx          context.Context
	batchConcurrency int
	requestTimeout   time.Duration
}

type generateRequest struct {
	CompanyName string `json:"company_name"`
	Website     string `json:"website"`
	CRMRecordID string `json:"crm_record_id"`
}

type batchRequest struct {
	Companies []generateRequest `json:"companies"`
}

type searchRequest struct {
	Criteria string `json:"criteria"`
	Limit    int    `json:"limit"`
}

type apiResponse struct {
	Success          bool   `json:"success"`
	InsufficientData bool   `json:"insufficientData,omitempty"`
	Data             any    `json:"data,omitempty"`
	Error            string `json:"error,omitempty"`
}

// buildRouter assembles the HTTP API. Dependencies may be nil where noted on
// serverDeps; the corresponding endpoints then reject requests cleanly.
func buildRouter(deps serverDeps) *chi.Mux {
	if deps.baseCtx == nil {
		deps.baseCtx = context.Background()
	}
	if deps.batchConcurrency <= 0 {
		deps.batchConcurrency = 1
	}
	if deps.requestTimeout <= 0 {
		deps.requestTimeout = 5 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/generate", deps.handleGenerate)
	r.Post("/api/generate/batch", deps.handleGenerateBatch)
	r.Post("/api/generate/search", deps.handleGenerateSearch)
	r.Post("/webhook/lead-created", deps.handleLeadCreated)

	r.Get("/api/runs", deps.handleListRuns)
	r.Get("/api/runs/{id}", deps.handleGetRun)

	return r
}

func (d serverDeps) handleGenerate(w http.ResponseWriter, req *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	company, err := d.resolveCompany(req.Context(), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), d.requestTimeout)
	defer cancel()

	result, err := d.runner.Run(ctx, company)
	if err != nil {
		zap.L().Error("generate failed",
			zap.String("company", company.Name),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "overview generation failed")
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success:          true,
		InsufficientData: result.InsufficientData,
		Data:             result,
	})
}

func (d serverDeps) handleGenerateBatch(w http.ResponseWriter, req *http.Request) {
	var body batchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Companies) == 0 {
		writeError(w, http.StatusBadRequest, "companies is required")
		return
	}

	companies := make([]model.Company, 0, len(body.Companies))
	for _, item := range body.Companies {
		company, err := d.resolveCompany(req.Context(), item)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		companies = append(companies, company)
	}

	d.runPooled(w, req, companies)
}

func (d serverDeps) handleGenerateSearch(w http.ResponseWriter, req *http.Request) {
	if d.crm == nil {
		writeError(w, http.StatusServiceUnavailable, "CRM is not configured")
		return
	}

	var body searchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Criteria == "" {
		writeError(w, http.StatusBadRequest, "criteria is required")
		return
	}

	records, err := d.crm.SearchRecords(req.Context(), body.Criteria, body.Limit)
	if err != nil {
		zap.L().Error("CRM search failed", zap.String("criteria", body.Criteria), zap.Error(err))
		writeError(w, http.StatusBadGateway, "CRM search failed")
		return
	}
	if len(records) == 0 {
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: []apiResponse{}})
		return
	}

	companies := make([]model.Company, 0, len(records))
	for _, record := range records {
		companies = append(companies, record.Company())
	}

	d.runPooled(w, req, companies)
}

// handleLeadCreated accepts a CRM webhook and runs the overview
// asynchronously, acknowledging the event immediately.
func (d serverDeps) handleLeadCreated(w http.ResponseWriter, req *http.Request) {
	var body struct {
		RecordID string `json:"record_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.RecordID == "" {
		writeError(w, http.StatusBadRequest, "record_id is required")
		return
	}
	if d.crm == nil {
		writeError(w, http.StatusServiceUnavailable, "CRM is not configured")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(d.baseCtx, d.requestTimeout)
		defer cancel()

		record, err := d.crm.GetRecord(ctx, body.RecordID)
		if err != nil {
			zap.L().Error("webhook record fetch failed",
				zap.String("record_id", body.RecordID),
				zap.Error(err),
			)
			return
		}

		result, err := d.runner.Run(ctx, record.Company())
		if err != nil {
			zap.L().Error("webhook overview failed",
				zap.String("record_id", body.RecordID),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("webhook overview complete",
			zap.String("record_id", body.RecordID),
			zap.Bool("insufficient_data", result.InsufficientData),
			zap.Bool("crm_updated", result.CRMUpdated),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"record_id": body.RecordID,
	})
}

func (d serverDeps) handleListRuns(w http.ResponseWriter, req *http.Request) {
	if d.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store is not configured")
		return
	}

	filter := store.RunFilter{
		Status:      model.RunStatus(req.URL.Query().Get("status")),
		CompanyName: req.URL.Query().Get("company"),
		Limit:       50,
	}
	if raw := req.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	runs, err := d.store.ListRuns(req.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: runs})
}

func (d serverDeps) handleGetRun(w http.ResponseWriter, req *http.Request) {
	if d.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store is not configured")
		return
	}

	run, err := d.store.GetRun(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		if eris.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		zap.L().Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: run})
}

// resolveCompany turns a request item into a Company, fetching the CRM record
// when a record ID is supplied.
func (d serverDeps) resolveCompany(ctx context.Context, req generateRequest) (model.Company, error) {
	if req.CRMRecordID != "" {
		if d.crm == nil {
			return model.Company{}, eris.New("crm_record_id requires a configured CRM")
		}
		record, err := d.crm.GetRecord(ctx, req.CRMRecordID)
		if err != nil {
			return model.Company{}, eris.Wrapf(err, "fetch CRM record %s", req.CRMRecordID)
		}
		return record.Company(), nil
	}

	if req.CompanyName == "" {
		return model.Company{}, eris.New("company_name is required")
	}
	return model.Company{Name: req.CompanyName, Website: req.Website}, nil
}

// runPooled generates overviews for the companies with a bounded pool and
// writes the per-company envelopes in input order.
func (d serverDeps) runPooled(w http.ResponseWriter, req *http.Request, companies []model.Company) {
	ctx, cancel := context.WithTimeout(req.Context(), d.requestTimeout)
	defer cancel()

	results := make([]apiResponse, len(companies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.batchConcurrency)

	for i, company := range companies {
		g.Go(func() error {
			result, err := d.runner.Run(gctx, company)
			if err != nil {
				zap.L().Error("batch item failed",
					zap.String("company", company.Name),
					zap.Error(err),
				)
				results[i] = apiResponse{Error: "overview generation failed"}
				return nil
			}
			results[i] = apiResponse{
				Success:          true,
				InsufficientData: result.InsufficientData,
				Data:             result,
			}
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: results})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiResponse{Success: false, Error: msg})
}
