package api

import (
	"fmt"
	"time"

	"github.com/Caia-Tech/caia-extract/internal/orchestrator"
	"github.com/Caia-Tech/caia-extract/internal/temporal/workflows"
	"github.com/Caia-Tech/caia-extract/pkg/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
)

// maxBatchDocuments bounds one batch; document bytes travel in the
// workflow history
const maxBatchDocuments = 20

// BatchResponse represents the response for a started batch
type BatchResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Documents  int    `json:"documents"`
	Strategy   string `json:"strategy"`
}

// BatchStatusResponse represents the status of a batch workflow
type BatchStatusResponse struct {
	WorkflowID string                 `json:"workflow_id"`
	Status     string                 `json:"status"`
	StartTime  time.Time              `json:"start_time"`
	CloseTime  *time.Time             `json:"close_time,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Result     *workflows.BatchResult `json:"result,omitempty"`
}

// StartBatch starts a batch extraction workflow over the uploaded files
func (h *Handlers) StartBatch(c *fiber.Ctx) error {
	if h.temporal == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Batch extraction is not configured",
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, fmt.Errorf("invalid multipart form: %w", err))
	}
	files := form.File["files"]
	if len(files) == 0 {
		return badRequest(c, fmt.Errorf("no files uploaded"))
	}
	if len(files) > maxBatchDocuments {
		return badRequest(c, fmt.Errorf("too many files: %d, maximum is %d", len(files), maxBatchDocuments))
	}

	strategy, err := h.parseStrategy(c.FormValue("strategy"))
	if err != nil {
		return badRequest(c, err)
	}
	if strategy == orchestrator.StrategyCompare {
		return badRequest(c, orchestrator.ErrCompareStrategy)
	}
	maxPages, err := formInt(c, "max_pages")
	if err != nil {
		return badRequest(c, err)
	}
	dpi, err := formInt(c, "dpi")
	if err != nil {
		return badRequest(c, err)
	}

	workflowID := fmt.Sprintf("batch-%s", uuid.New().String())
	input := workflows.BatchInput{
		BatchID:   workflowID,
		Strategy:  string(strategy),
		Documents: make([]workflows.DocumentInput, 0, len(files)),
	}
	for _, file := range files {
		content, err := h.readFile(file)
		if err != nil {
			return badRequest(c, err)
		}
		input.Documents = append(input.Documents, workflows.DocumentInput{
			Filename: file.Filename,
			Content:  content,
			MaxPages: maxPages,
			DPI:      dpi,
		})
	}

	logger := logging.GetWorkflowLogger(workflowID, "BatchExtractionWorkflow")

	we, err := h.temporal.ExecuteWorkflow(c.UserContext(), client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: h.config.TaskQueue,
	}, workflows.BatchExtractionWorkflow, input)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start batch workflow")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to start batch extraction",
			"details": err.Error(),
		})
	}

	logger.Info().
		Int("documents", len(input.Documents)).
		Str("strategy", input.Strategy).
		Msg("Started batch extraction workflow")

	return c.Status(fiber.StatusAccepted).JSON(BatchResponse{
		WorkflowID: we.GetID(),
		RunID:      we.GetRunID(),
		Documents:  len(input.Documents),
		Strategy:   input.Strategy,
	})
}

// GetBatch returns the status of a batch workflow, with its result once
// it completed
func (h *Handlers) GetBatch(c *fiber.Ctx) error {
	if h.temporal == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Batch extraction is not configured",
		})
	}

	workflowID := c.Params("id")
	resp, err := h.temporal.DescribeWorkflowExecution(c.UserContext(), workflowID, "")
	if err != nil {
		logger := logging.GetWorkflowLogger(workflowID, "")
		logger.Warn().Err(err).Msg("Failed to describe batch workflow")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":       "Batch not found",
			"workflow_id": workflowID,
		})
	}

	info := resp.GetWorkflowExecutionInfo()
	response := BatchStatusResponse{
		WorkflowID: workflowID,
		Status:     info.GetStatus().String(),
		StartTime:  info.GetStartTime().AsTime(),
	}
	if info.GetCloseTime() != nil {
		closeTime := info.GetCloseTime().AsTime()
		response.CloseTime = &closeTime
	}

	switch response.Status {
	case "Completed":
		var result workflows.BatchResult
		if err := h.temporal.GetWorkflow(c.UserContext(), workflowID, "").Get(c.UserContext(), &result); err != nil {
			response.Error = err.Error()
		} else {
			response.Result = &result
		}
	case "Failed":
		response.Error = "Workflow failed - check Temporal UI for details"
	}

	return c.JSON(response)
}
