// Package store persists overview runs and their phase history.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/brandscope/overview-service/internal/model"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status      model.RunStatus `json:"status,omitempty"`
	CompanyName string          `json:"company_name,omitempty"`
	Limit       int             `json:"limit,omitempty"`
	Offset      int             `json:"offset,omitempty"`
}

// Store defines persistence for the overview pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, company model.Company) (*model.Run, error)
	SetRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	// FinishRun records the terminal status and result in one write.
	FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
