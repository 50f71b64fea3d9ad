package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/splflow/service/flow"
	"go.temporal.io/sdk/client"
)

// Client starts flow workflows on Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// StartFlow starts SPLFlowWorkflow without waiting for it to finish.
func (c *Client) StartFlow(ctx context.Context, input SPLFlowInput) (client.WorkflowRun, error) {
	if input.RunID == "" {
		input.RunID = flow.NewRunID()
	}

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(input.RunID),
		TaskQueue: c.taskQueue,
	}, SPLFlowWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start workflow for run %s: %w", input.RunID, err)
	}

	c.logger.InfoContext(ctx, "started flow workflow",
		"run_id", input.RunID,
		"workflow_id", run.GetID(),
		"temporal_run_id", run.GetRunID(),
	)
	return run, nil
}

// RunFlow starts SPLFlowWorkflow and waits for its report.
func (c *Client) RunFlow(ctx context.Context, input SPLFlowInput) (*flow.Report, error) {
	run, err := c.StartFlow(ctx, input)
	if err != nil {
		return nil, err
	}

	var report flow.Report
	if err := run.Get(ctx, &report); err != nil {
		return nil, fmt.Errorf("workflow %s failed: %w", run.GetID(), err)
	}
	return &report, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
