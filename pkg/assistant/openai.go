package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"chatrelay/pkg/config"
)

// OpenAIClient implements API on the OpenAI Assistants backend
// (threads + runs).
type OpenAIClient struct {
	client         osdk.Client
	assistantID    string
	requestTimeout time.Duration
}

// NewOpenAIClient validates assistant configuration and constructs a client.
func NewOpenAIClient(cfg config.AssistantConfig) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}

	assistantID := strings.TrimSpace(cfg.AssistantID)
	if assistantID == "" {
		return nil, errors.New("ASSISTANT_ID is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	return &OpenAIClient{
		client:         osdk.NewClient(opts...),
		assistantID:    assistantID,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *OpenAIClient) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "ping")
	startedAt := time.Now()

	if _, err := c.client.Models.List(ctx); err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Errorf("ping failed: %w", err)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "create_thread")
	startedAt := time.Now()

	thread, err := c.client.Beta.Threads.New(ctx, osdk.BetaThreadNewParams{})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("create thread failed: %w", err)
	}
	if thread == nil || strings.TrimSpace(thread.ID) == "" {
		return "", errors.New("create thread returned empty id")
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "thread_id", thread.ID)

	return thread.ID, nil
}

func (c *OpenAIClient) DeleteThread(ctx context.Context, threadID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "delete_thread")
	startedAt := time.Now()

	if _, err := c.client.Beta.Threads.Delete(ctx, threadID); err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "thread_id", threadID, "error", err)
		return fmt.Errorf("delete thread failed: %w", err)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "thread_id", threadID)

	return nil
}

func (c *OpenAIClient) AddMessage(ctx context.Context, threadID string, text string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "add_message")
	startedAt := time.Now()

	_, err := c.client.Beta.Threads.Messages.New(ctx, threadID, osdk.BetaThreadMessageNewParams{
		Role:    osdk.BetaThreadMessageNewParamsRoleUser,
		Content: osdk.BetaThreadMessageNewParamsContentUnion{OfString: osdk.String(text)},
	})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "thread_id", threadID, "error", err)
		return fmt.Errorf("add message failed: %w", err)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "thread_id", threadID, "text_length", len(text))

	return nil
}

func (c *OpenAIClient) StartRun(ctx context.Context, threadID string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "start_run")
	startedAt := time.Now()

	run, err := c.client.Beta.Threads.Runs.New(ctx, threadID, osdk.BetaThreadRunNewParams{
		AssistantID: c.assistantID,
	})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "thread_id", threadID, "error", err)
		return "", fmt.Errorf("start run failed: %w", err)
	}
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return "", errors.New("start run returned empty id")
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "thread_id", threadID, "run_id", run.ID)

	return run.ID, nil
}

func (c *OpenAIClient) RunState(ctx context.Context, threadID string, runID string) (RunState, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	run, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run failed: %w", err)
	}

	state := RunState{Status: RunStatus(run.Status)}
	if run.LastError.Message != "" {
		state.FailureReason = run.LastError.Message
	}

	return state, nil
}

func (c *OpenAIClient) CancelRun(ctx context.Context, threadID string, runID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "cancel_run")

	if _, err := c.client.Beta.Threads.Runs.Cancel(ctx, threadID, runID); err != nil {
		log.Debug("backend request failed", "thread_id", threadID, "run_id", runID, "error", err)
		return fmt.Errorf("cancel run failed: %w", err)
	}
	log.Debug("backend request completed", "thread_id", threadID, "run_id", runID)

	return nil
}

func (c *OpenAIClient) LatestReply(ctx context.Context, threadID string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "latest_reply")
	startedAt := time.Now()

	page, err := c.client.Beta.Threads.Messages.List(ctx, threadID, osdk.BetaThreadMessageListParams{
		Order: osdk.BetaThreadMessageListParamsOrderDesc,
		Limit: osdk.Int(1),
	})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "thread_id", threadID, "error", err)
		return "", fmt.Errorf("list messages failed: %w", err)
	}
	if page == nil || len(page.Data) == 0 {
		return "", errors.New("thread has no messages")
	}

	var text strings.Builder
	for _, content := range page.Data[0].Content {
		if content.Type == "text" {
			text.WriteString(content.Text.Value)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("latest message has no text content")
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "thread_id", threadID, "text_length", text.Len())

	return text.String(), nil
}

func backendLogger() *slog.Logger {
	return slog.Default().With("component", "assistant.openai")
}

func (c *OpenAIClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}
