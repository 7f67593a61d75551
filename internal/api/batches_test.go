package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Caia-Tech/caia-extract/internal/temporal/workflows"
	"github.com/Caia-Tech/caia-extract/pkg/ocr"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestStartBatch_NotConfigured(t *testing.T) {
	s := newTestServer(t, nil, &stubEngine{name: ocr.NameTesseract, text: "x"})

	resp, err := s.app.Test(multipartRequest(t, "/api/v1/batches", []upload{{"files", "a.png", pngFile(t)}}, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/batches/batch-1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestStartBatch(t *testing.T) {
	temporal := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("batch-123")
	run.On("GetRunID").Return("run-456")

	temporal.On("ExecuteWorkflow",
		mock.Anything,
		mock.MatchedBy(func(opts client.StartWorkflowOptions) bool { return opts.TaskQueue == "test-queue" }),
		mock.Anything,
		mock.MatchedBy(func(in workflows.BatchInput) bool {
			return len(in.Documents) == 2 &&
				in.Strategy == "PRECISE" &&
				in.Documents[0].Filename == "a.png" &&
				in.Documents[1].MaxPages == 3
		}),
	).Return(run, nil)

	s := newTestServer(t, temporal, &stubEngine{name: ocr.NameTesseract, text: "x"})

	req := multipartRequest(t, "/api/v1/batches",
		[]upload{{"files", "a.png", pngFile(t)}, {"files", "b.png", pngFile(t)}},
		map[string]string{"strategy": "preciso", "max_pages": "3"})
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "batch-123", body["workflow_id"])
	assert.Equal(t, "run-456", body["run_id"])
	assert.Equal(t, float64(2), body["documents"])
	temporal.AssertExpectations(t)
}

func TestStartBatch_BadRequests(t *testing.T) {
	temporal := &mocks.Client{}
	s := newTestServer(t, temporal, &stubEngine{name: ocr.NameTesseract, text: "x"})

	tests := []struct {
		name    string
		uploads []upload
		fields  map[string]string
	}{
		{"no files", nil, map[string]string{"strategy": "FAST"}},
		{"compare", []upload{{"files", "a.png", pngFile(t)}}, map[string]string{"strategy": "COMPARE"}},
		{"unknown strategy", []upload{{"files", "a.png", pngFile(t)}}, map[string]string{"strategy": "TURBO"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.app.Test(multipartRequest(t, "/api/v1/batches", tt.uploads, tt.fields))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
	temporal.AssertNotCalled(t, "ExecuteWorkflow")
}

func TestGetBatch_Running(t *testing.T) {
	temporal := &mocks.Client{}
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	temporal.On("DescribeWorkflowExecution", mock.Anything, "batch-1", "").Return(
		&workflowservice.DescribeWorkflowExecutionResponse{
			WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
				Status:    enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING,
				StartTime: timestamppb.New(started),
			},
		}, nil)

	s := newTestServer(t, temporal, &stubEngine{name: ocr.NameTesseract, text: "x"})

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/batches/batch-1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "Running", body["status"])
	assert.Nil(t, body["result"])
	assert.Nil(t, body["close_time"])
}

func TestGetBatch_Completed(t *testing.T) {
	temporal := &mocks.Client{}
	now := time.Now().UTC()
	temporal.On("DescribeWorkflowExecution", mock.Anything, "batch-2", "").Return(
		&workflowservice.DescribeWorkflowExecutionResponse{
			WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
				Status:    enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED,
				StartTime: timestamppb.New(now.Add(-time.Minute)),
				CloseTime: timestamppb.New(now),
			},
		}, nil)

	run := &mocks.WorkflowRun{}
	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		result := args.Get(1).(*workflows.BatchResult)
		*result = workflows.BatchResult{BatchID: "batch-2", Succeeded: 1, Failed: 1}
	}).Return(nil)
	temporal.On("GetWorkflow", mock.Anything, "batch-2", "").Return(run)

	s := newTestServer(t, temporal, &stubEngine{name: ocr.NameTesseract, text: "x"})

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/batches/batch-2", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "Completed", body["status"])
	assert.NotNil(t, body["close_time"])
	result := body["result"].(map[string]interface{})
	assert.Equal(t, float64(1), result["succeeded"])
	assert.Equal(t, float64(1), result["failed"])
}

func TestGetBatch_NotFound(t *testing.T) {
	temporal := &mocks.Client{}
	temporal.On("DescribeWorkflowExecution", mock.Anything, "missing", "").Return(nil, assert.AnError)

	s := newTestServer(t, temporal, &stubEngine{name: ocr.NameTesseract, text: "x"})

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/batches/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
