package workflows

import (
	"encoding/json"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Activity names as registered on the worker
const (
	ExtractDocumentActivityName = "ExtractDocumentActivity"
	RecordBatchActivityName     = "RecordBatchActivity"
)

// DocumentInput is one document of a batch
type DocumentInput struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
	Strategy string `json:"strategy,omitempty"` // empty uses the batch strategy
	MaxPages int    `json:"max_pages,omitempty"`
	DPI      int    `json:"dpi,omitempty"`
}

// BatchInput represents the input for the batch extraction workflow
type BatchInput struct {
	BatchID   string          `json:"batch_id"`
	Strategy  string          `json:"strategy,omitempty"`
	Documents []DocumentInput `json:"documents"`
}

// DocumentOutput summarizes a successful extraction. Extraction holds the
// full extraction as JSON.
type DocumentOutput struct {
	ExtractionID string          `json:"extraction_id"`
	DocumentType string          `json:"document_type"`
	Engine       string          `json:"engine"`
	Strategy     string          `json:"strategy"`
	Profile      string          `json:"profile,omitempty"`
	Size         int             `json:"size"`
	Corrections  int             `json:"corrections"`
	Extraction   json.RawMessage `json:"extraction"`
}

// DocumentOutcome is the per-document entry of a batch result
type DocumentOutcome struct {
	Filename string          `json:"filename"`
	Output   *DocumentOutput `json:"output,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// BatchResult is what the batch workflow returns
type BatchResult struct {
	BatchID   string            `json:"batch_id"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Documents []DocumentOutcome `json:"documents"`
}

// BatchExtractionWorkflow extracts the documents one after the other. A
// document that fails after its retries is recorded and the batch moves on.
func BatchExtractionWorkflow(ctx workflow.Context, input BatchInput) (*BatchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting batch extraction", "batch_id", input.BatchID, "documents", len(input.Documents))

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			InitialInterval:        1 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			NonRetryableErrorTypes: []string{"InvalidInputError", "PDFError"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	result := &BatchResult{
		BatchID:   input.BatchID,
		Documents: make([]DocumentOutcome, 0, len(input.Documents)),
	}

	for _, doc := range input.Documents {
		if doc.Strategy == "" {
			doc.Strategy = input.Strategy
		}

		var output DocumentOutput
		err := workflow.ExecuteActivity(ctx, ExtractDocumentActivityName, doc).Get(ctx, &output)
		if err != nil {
			logger.Warn("Document extraction failed", "filename", doc.Filename, "error", err)
			result.Failed++
			result.Documents = append(result.Documents, DocumentOutcome{Filename: doc.Filename, Error: err.Error()})
			continue
		}

		result.Succeeded++
		result.Documents = append(result.Documents, DocumentOutcome{Filename: doc.Filename, Output: &output})
	}

	// Recording is best effort; the extractions are already done
	recordCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	})
	if err := workflow.ExecuteActivity(recordCtx, RecordBatchActivityName, *result).Get(recordCtx, nil); err != nil {
		logger.Warn("Failed to record batch", "batch_id", input.BatchID, "error", err)
	}

	logger.Info("Batch extraction completed",
		"batch_id", input.BatchID,
		"succeeded", result.Succeeded,
		"failed", result.Failed)
	return result, nil
}
