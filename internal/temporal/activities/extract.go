package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Caia-Tech/caia-extract/internal/orchestrator"
	"github.com/Caia-Tech/caia-extract/internal/pipeline"
	"github.com/Caia-Tech/caia-extract/internal/temporal/workflows"
	"github.com/Caia-Tech/caia-extract/pkg/ocr"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// ExtractionActivities runs batch documents through the orchestrator
type ExtractionActivities struct {
	orchestrator *orchestrator.Orchestrator
	events       pipeline.Publisher
}

// NewExtractionActivities creates the activities; events may be nil
func NewExtractionActivities(orch *orchestrator.Orchestrator, events pipeline.Publisher) *ExtractionActivities {
	return &ExtractionActivities{orchestrator: orch, events: events}
}

// ExtractDocumentActivity extracts one document. Input problems are not
// retried; engine failures are.
func (a *ExtractionActivities) ExtractDocumentActivity(ctx context.Context, input workflows.DocumentInput) (workflows.DocumentOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Extracting document", "filename", input.Filename, "size", len(input.Content), "strategy", input.Strategy)

	if len(input.Content) == 0 {
		return workflows.DocumentOutput{}, invalidInput(fmt.Errorf("document %q is empty", input.Filename))
	}
	strategy, err := orchestrator.ParseStrategy(input.Strategy)
	if err != nil {
		return workflows.DocumentOutput{}, invalidInput(err)
	}
	if strategy == orchestrator.StrategyCompare {
		return workflows.DocumentOutput{}, invalidInput(orchestrator.ErrCompareStrategy)
	}

	report, err := a.orchestrator.Extract(ctx, ocr.Input{
		Data:     input.Content,
		Filename: input.Filename,
		MaxPages: input.MaxPages,
		DPI:      input.DPI,
	}, strategy)
	if err != nil {
		return workflows.DocumentOutput{}, classify(err)
	}

	payload, err := json.Marshal(report.Extraction)
	if err != nil {
		return workflows.DocumentOutput{}, fmt.Errorf("failed to encode extraction: %w", err)
	}

	ext := report.Extraction
	output := workflows.DocumentOutput{
		ExtractionID: ext.ID,
		DocumentType: ext.DocumentType,
		Engine:       ext.Engine,
		Strategy:     string(report.Recognition.Strategy),
		Profile:      report.Recognition.Profile,
		Corrections:  len(ext.Corrections),
		Extraction:   payload,
	}
	if ext.Result != nil {
		output.Size = ext.Result.Len()
	}

	logger.Info("Document extracted", "filename", input.Filename, "document_type", output.DocumentType, "engine", output.Engine)
	return output, nil
}

// RecordBatchActivity announces a finished batch on the event bus
func (a *ExtractionActivities) RecordBatchActivity(ctx context.Context, result workflows.BatchResult) error {
	logger := activity.GetLogger(ctx)
	if a.events == nil {
		logger.Debug("No event publisher configured, batch not recorded", "batch_id", result.BatchID)
		return nil
	}

	event := pipeline.NewEvent(pipeline.EventBatchCompleted, nil).
		With("batch_id", result.BatchID).
		With("succeeded", result.Succeeded).
		With("failed", result.Failed)
	if err := a.events.Publish(event); err != nil {
		return fmt.Errorf("failed to publish batch event: %w", err)
	}
	return nil
}

// classify decides retryability: engines may come back, bad documents
// will not get better
func classify(err error) error {
	var agg *orchestrator.AggregateError
	if errors.As(err, &agg) {
		return fmt.Errorf("failed to extract document: %w", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pdfErr *ocr.PDFError
	if errors.As(err, &pdfErr) {
		return temporal.NewNonRetryableApplicationError(err.Error(), "PDFError", err)
	}
	return invalidInput(err)
}

func invalidInput(err error) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), "InvalidInputError", err)
}
