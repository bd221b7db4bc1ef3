package task

import (
	"context"
	"fmt"
	"time"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/domain"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/store"
	"github.com/google/uuid"
)

// Drafter produces report prose during the writer stage of report
// generation. The real implementation lives behind this seam (an LLM-backed
// adapter in production); when absent the handler fabricates a draft.
type Drafter interface {
	// DraftReport writes report prose from the opaque task params.
	DraftReport(ctx context.Context, params map[string]any) (string, error)
}

// stageHandler is the unit of work for one task type: a pure sequence of
// stage/progress updates ending in a type-specific result or an error.
// Handlers must observe ctx at every suspension point and unwind without
// further persistence once it is cancelled; the terminal cancelled write is
// owned exclusively by CancelTask.
type stageHandler func(ctx context.Context, o *Orchestrator, t *domain.Task) (map[string]any, error)

// handlerFor maps a task type to its handler. The switch is exhaustive over
// the closed type set; anything else reports no handler.
func handlerFor(taskType domain.TaskType) (stageHandler, bool) {
	switch taskType {
	case domain.TaskTypeDocumentProcessing:
		return runDocumentProcessing, true
	case domain.TaskTypeReportGeneration:
		return runReportGeneration, true
	case domain.TaskTypeReportRefinement:
		return runReportRefinement, true
	case domain.TaskTypeReportExport:
		return runReportExport, true
	default:
		return nil, false
	}
}

// reportProgress persists one atomic (progress, stage, message) update.
// It is a suspension point: a pending cancellation is observed here, before
// anything is written.
func (o *Orchestrator) reportProgress(
	ctx context.Context,
	id uuid.UUID,
	progress float64,
	stage domain.TaskStage,
	message string,
	aux *store.TaskUpdate,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	progress = clampProgress(progress)
	update := store.TaskUpdate{
		Progress: &progress,
		Message:  &message,
	}
	if stage != "" {
		update.Stage = &stage
	}
	if aux != nil {
		update.EstimatedTimeRemaining = aux.EstimatedTimeRemaining
		update.Quality = aux.Quality
		update.Iterations = aux.Iterations
		update.CanProceed = aux.CanProceed
	}

	_, err := o.store.Update(ctx, id, update)
	return err
}

// workStep simulates one slice of stage work. It is interruptible: a
// cancellation signal cuts the sleep short and surfaces as ctx.Err().
func (o *Orchestrator) workStep(ctx context.Context) error {
	timer := time.NewTimer(o.config.StepDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runDocumentProcessing drives extraction and analysis of uploaded source
// material: extraction -> analysis -> analysis (refine).
func runDocumentProcessing(ctx context.Context, o *Orchestrator, t *domain.Task) (map[string]any, error) {
	docCount := paramCount(t.Params, "document_ids")

	eta := estimate(o.config.StepDelay, 3)
	if err := o.reportProgress(ctx, t.ID, 10, domain.TaskStageExtraction,
		"Extracting text from uploaded documents", &store.TaskUpdate{EstimatedTimeRemaining: &eta}); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	if err := o.reportProgress(ctx, t.ID, 45, domain.TaskStageAnalysis,
		"Analyzing extracted content", nil); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	if err := o.reportProgress(ctx, t.ID, 80, domain.TaskStageAnalysis,
		"Refining analysis results", nil); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	return map[string]any{
		"processed_count":      docCount,
		"extracted_unit_count": docCount * 12,
	}, nil
}

// runReportGeneration drives a full report build:
// analysis -> writer -> reviewer -> formatting.
func runReportGeneration(ctx context.Context, o *Orchestrator, t *domain.Task) (map[string]any, error) {
	eta := estimate(o.config.StepDelay, 4)
	if err := o.reportProgress(ctx, t.ID, 10, domain.TaskStageAnalysis,
		"Analyzing source material", &store.TaskUpdate{EstimatedTimeRemaining: &eta}); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	if err := o.reportProgress(ctx, t.ID, 35, domain.TaskStageWriter,
		"Drafting report content", nil); err != nil {
		return nil, err
	}
	draft := ""
	if o.config.Drafter != nil {
		var err error
		draft, err = o.config.Drafter.DraftReport(ctx, t.Params)
		if err != nil {
			return nil, fmt.Errorf("drafting failed: %w", err)
		}
	} else if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	quality := 0.87
	iterations := 1
	canProceed := true
	if err := o.reportProgress(ctx, t.ID, 65, domain.TaskStageReviewer,
		"Reviewing draft quality", &store.TaskUpdate{
			Quality:    &quality,
			Iterations: &iterations,
			CanProceed: &canProceed,
		}); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	if err := o.reportProgress(ctx, t.ID, 90, domain.TaskStageFormatting,
		"Formatting report", nil); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	wordCount := len(draft)
	if wordCount == 0 {
		wordCount = 2400
	}

	return map[string]any{
		"report_id":     uuid.New().String(),
		"word_count":    wordCount,
		"section_count": 6,
	}, nil
}

// runReportRefinement applies requested edits to an existing report:
// analysis -> refinement -> formatting.
func runReportRefinement(ctx context.Context, o *Orchestrator, t *domain.Task) (map[string]any, error) {
	reportID, _ := t.Params["report_id"].(string)
	if reportID == "" {
		reportID = uuid.New().String()
	}

	if err := o.reportProgress(ctx, t.ID, 15, domain.TaskStageAnalysis,
		"Analyzing refinement instructions", nil); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	if err := o.reportProgress(ctx, t.ID, 55, domain.TaskStageRefinement,
		"Applying refinements", nil); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	if err := o.reportProgress(ctx, t.ID, 90, domain.TaskStageFormatting,
		"Reformatting refined report", nil); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	refinements := paramCount(t.Params, "instructions")

	return map[string]any{
		"report_id":           reportID,
		"version_id":          uuid.New().String(),
		"refinements_applied": refinements,
	}, nil
}

// runReportExport renders a report into its final file format:
// formatting -> finalization.
func runReportExport(ctx context.Context, o *Orchestrator, t *domain.Task) (map[string]any, error) {
	format, _ := t.Params["format"].(string)
	if format == "" {
		format = "pdf"
	}

	if err := o.reportProgress(ctx, t.ID, 25, domain.TaskStageFormatting,
		"Rendering report for export", nil); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	if err := o.reportProgress(ctx, t.ID, 75, domain.TaskStageFinalization,
		"Finalizing export file", nil); err != nil {
		return nil, err
	}
	if err := o.workStep(ctx); err != nil {
		return nil, err
	}

	return map[string]any{
		"file_url": fmt.Sprintf("/exports/%s.%s", t.ID, format),
		"format":   format,
		"size":     184320,
	}, nil
}

// paramCount reports the length of a list-valued param, defaulting to 1 when
// the key is absent or not a list. Params are opaque; this is the only shape
// handlers ever assume, and only for their own payloads.
func paramCount(params map[string]any, key string) int {
	if params == nil {
		return 1
	}
	if list, ok := params[key].([]any); ok && len(list) > 0 {
		return len(list)
	}
	return 1
}

// estimate returns a rough seconds-remaining figure for n pending steps.
func estimate(stepDelay time.Duration, steps int) float64 {
	return (stepDelay * time.Duration(steps)).Seconds()
}
