package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/wolfman30/vetchat-ai-platform/pkg/logging"
)

// ModelChainClient tries an ordered list of candidate models against one
// underlying client. The first success wins. A model-unavailable failure
// (unknown or unsupported model) advances to the next candidate; any other
// failure aborts immediately so auth and quota problems surface right away.
type ModelChainClient struct {
	client LLMClient
	models []string
	logger *logging.Logger
}

// NewModelChainClient creates a chain over the given candidate model IDs.
func NewModelChainClient(client LLMClient, models []string, logger *logging.Logger) *ModelChainClient {
	if client == nil {
		panic("conversation: chain requires an llm client")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ModelChainClient{
		client: client,
		models: models,
		logger: logger,
	}
}

// Complete runs the request through the candidate models in order.
func (c *ModelChainClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if len(c.models) == 0 {
		return c.client.Complete(ctx, req)
	}

	var lastErr error
	for _, model := range c.models {
		req.Model = model
		resp, err := c.client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !modelUnavailable(err) {
			return LLMResponse{}, err
		}
		c.logger.Warn("model unavailable, trying next candidate", "model", model, "error", err.Error())
		lastErr = err
	}

	return LLMResponse{}, fmt.Errorf("conversation: no candidate model available: %w", lastErr)
}

// modelUnavailable classifies errors that mean "this model does not exist or
// is not supported for this method", as opposed to auth/network failures.
func modelUnavailable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 400
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "is not supported")
}
