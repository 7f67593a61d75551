package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func newBatchEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	env.RegisterActivityWithOptions(
		func(context.Context, DocumentInput) (DocumentOutput, error) { return DocumentOutput{}, nil },
		activity.RegisterOptions{Name: ExtractDocumentActivityName},
	)
	env.RegisterActivityWithOptions(
		func(context.Context, BatchResult) error { return nil },
		activity.RegisterOptions{Name: RecordBatchActivityName},
	)
	return env
}

func byFilename(name string) interface{} {
	return mock.MatchedBy(func(in DocumentInput) bool { return in.Filename == name })
}

func TestBatchExtractionWorkflow(t *testing.T) {
	env := newBatchEnv(t)

	env.OnActivity(ExtractDocumentActivityName, mock.Anything, byFilename("factura.png")).Return(
		DocumentOutput{ExtractionID: "ext-1", DocumentType: "generic", Engine: "tesseract", Size: 4}, nil)
	env.OnActivity(ExtractDocumentActivityName, mock.Anything, byFilename("cartera.pdf")).Return(
		DocumentOutput{ExtractionID: "ext-2", DocumentType: "aging_report", Engine: "paddleocr", Size: 12}, nil)
	env.OnActivity(RecordBatchActivityName, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(BatchExtractionWorkflow, BatchInput{
		BatchID: "batch-1",
		Documents: []DocumentInput{
			{Filename: "factura.png", Content: []byte("img")},
			{Filename: "cartera.pdf", Content: []byte("%PDF")},
		},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result BatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "batch-1", result.BatchID)
	assert.Equal(t, 2, result.Succeeded)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, "factura.png", result.Documents[0].Filename)
	assert.Equal(t, "ext-1", result.Documents[0].Output.ExtractionID)
	assert.Equal(t, "aging_report", result.Documents[1].Output.DocumentType)
}

func TestBatchExtractionWorkflow_FailureDoesNotStopBatch(t *testing.T) {
	env := newBatchEnv(t)

	env.OnActivity(ExtractDocumentActivityName, mock.Anything, byFilename("roto.pdf")).Return(
		DocumentOutput{}, temporal.NewNonRetryableApplicationError("malformed PDF", "PDFError", nil)).Once()
	env.OnActivity(ExtractDocumentActivityName, mock.Anything, byFilename("carta.png")).Return(
		DocumentOutput{ExtractionID: "ext-3", DocumentType: "generic"}, nil)
	env.OnActivity(RecordBatchActivityName, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(BatchExtractionWorkflow, BatchInput{
		BatchID: "batch-2",
		Documents: []DocumentInput{
			{Filename: "roto.pdf", Content: []byte("%PDF")},
			{Filename: "carta.png", Content: []byte("img")},
		},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result BatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Documents[0].Error, "malformed PDF")
	assert.Nil(t, result.Documents[0].Output)
	assert.Equal(t, "ext-3", result.Documents[1].Output.ExtractionID)
}

func TestBatchExtractionWorkflow_RetriesTransientFailures(t *testing.T) {
	env := newBatchEnv(t)

	env.OnActivity(ExtractDocumentActivityName, mock.Anything, mock.Anything).Return(
		DocumentOutput{}, errors.New("engine busy")).Once()
	env.OnActivity(ExtractDocumentActivityName, mock.Anything, mock.Anything).Return(
		DocumentOutput{ExtractionID: "ext-4"}, nil).Once()
	env.OnActivity(RecordBatchActivityName, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(BatchExtractionWorkflow, BatchInput{
		BatchID:   "batch-3",
		Documents: []DocumentInput{{Filename: "a.png", Content: []byte("img")}},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result BatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, "ext-4", result.Documents[0].Output.ExtractionID)
}

func TestBatchExtractionWorkflow_BatchStrategyIsDefault(t *testing.T) {
	env := newBatchEnv(t)

	var strategies []string
	env.OnActivity(ExtractDocumentActivityName, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in DocumentInput) (DocumentOutput, error) {
			strategies = append(strategies, in.Strategy)
			return DocumentOutput{Strategy: in.Strategy}, nil
		})
	env.OnActivity(RecordBatchActivityName, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(BatchExtractionWorkflow, BatchInput{
		BatchID:  "batch-4",
		Strategy: "FAST",
		Documents: []DocumentInput{
			{Filename: "a.png", Content: []byte("img")},
			{Filename: "b.png", Content: []byte("img"), Strategy: "PRECISE"},
		},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, []string{"FAST", "PRECISE"}, strategies)
}

func TestBatchExtractionWorkflow_RecordFailureIsIgnored(t *testing.T) {
	env := newBatchEnv(t)

	env.OnActivity(ExtractDocumentActivityName, mock.Anything, mock.Anything).Return(DocumentOutput{ExtractionID: "ext-5"}, nil)
	env.OnActivity(RecordBatchActivityName, mock.Anything, mock.Anything).Return(errors.New("bus closed"))

	env.ExecuteWorkflow(BatchExtractionWorkflow, BatchInput{
		BatchID:   "batch-5",
		Documents: []DocumentInput{{Filename: "a.png", Content: []byte("img")}},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
}

func TestBatchExtractionWorkflow_Empty(t *testing.T) {
	env := newBatchEnv(t)
	env.OnActivity(RecordBatchActivityName, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(BatchExtractionWorkflow, BatchInput{BatchID: "batch-6"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result BatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Empty(t, result.Documents)
}
