package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// ModelConfig carries the sampling parameters of an agent's model.
type ModelConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"maxTokens"`
	TopP             float64 `json:"topP"`
	FrequencyPenalty float64 `json:"frequencyPenalty"`
	PresencePenalty  float64 `json:"presencePenalty"`
}

// Agent is a configured AI participant available for sessions.
type Agent struct {
	ID           int         `json:"id"`
	Name         string      `json:"name"`
	Role         string      `json:"role"`
	SystemPrompt string      `json:"systemPrompt"`
	ModelType    string      `json:"modelType"`
	ModelConfig  ModelConfig `json:"modelConfig"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// AgentInput is the create/update payload for an agent.
type AgentInput struct {
	Name         string      `json:"name"`
	Role         string      `json:"role"`
	SystemPrompt string      `json:"systemPrompt"`
	ModelType    string      `json:"modelType"`
	ModelConfig  ModelConfig `json:"modelConfig"`
}

// AIModel describes one model selectable for agents.
type AIModel struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	MaxTokens    int     `json:"maxTokens"`
	CostPerToken float64 `json:"costPerToken"`
	Provider     string  `json:"provider"`
}

// AgentTestResult is the outcome of a dry-run prompt against an agent.
type AgentTestResult struct {
	Success        bool   `json:"success"`
	Response       string `json:"response,omitempty"`
	Error          string `json:"error,omitempty"`
	ProcessingTime int64  `json:"processingTime"`
}

// ListAgentsParams filters and pages the agent list.
type ListAgentsParams struct {
	Page   int
	Limit  int
	Search string
	Role   string
}

func (p ListAgentsParams) encode() string {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Role != "" {
		q.Set("role", p.Role)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListAgents returns one page of agents.
func (c *Client) ListAgents(ctx context.Context, params ListAgentsParams) (*Paginated[Agent], error) {
	var page Paginated[Agent]
	if err := c.do(ctx, "GET", "/agents"+params.encode(), nil, &page, apperrors.ErrCodeAgentGet); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAgent fetches one agent by id.
func (c *Client) GetAgent(ctx context.Context, id int) (*Agent, error) {
	var agent Agent
	if err := c.do(ctx, "GET", fmt.Sprintf("/agents/%d", id), nil, &agent, apperrors.ErrCodeAgentGet); err != nil {
		return nil, err
	}
	return &agent, nil
}

// CreateAgent registers a new agent.
func (c *Client) CreateAgent(ctx context.Context, input AgentInput) (*Agent, error) {
	var agent Agent
	if err := c.do(ctx, "POST", "/agents", input, &agent, apperrors.ErrCodeAgentCreate); err != nil {
		return nil, err
	}
	return &agent, nil
}

// UpdateAgent replaces an agent's configuration.
func (c *Client) UpdateAgent(ctx context.Context, id int, input AgentInput) (*Agent, error) {
	var agent Agent
	if err := c.do(ctx, "PUT", fmt.Sprintf("/agents/%d", id), input, &agent, apperrors.ErrCodeAgentUpdate); err != nil {
		return nil, err
	}
	return &agent, nil
}

// DeleteAgent removes an agent. Agents referenced by active sessions are
// rejected server-side.
func (c *Client) DeleteAgent(ctx context.Context, id int) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/agents/%d", id), nil, nil, apperrors.ErrCodeAgentDelete)
}

// DuplicateAgent clones an agent, optionally under a new name.
func (c *Client) DuplicateAgent(ctx context.Context, id int, name string) (*Agent, error) {
	body := map[string]string{}
	if name != "" {
		body["name"] = name
	}
	var agent Agent
	if err := c.do(ctx, "POST", fmt.Sprintf("/agents/%d/duplicate", id), body, &agent, apperrors.ErrCodeAgentCreate); err != nil {
		return nil, err
	}
	return &agent, nil
}

// TestAgent runs a single prompt against the agent's configured model.
func (c *Client) TestAgent(ctx context.Context, id int, prompt string) (*AgentTestResult, error) {
	var result AgentTestResult
	body := map[string]string{"prompt": prompt}
	if err := c.do(ctx, "POST", fmt.Sprintf("/agents/%d/test", id), body, &result, apperrors.ErrCodeAgentGet); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListModels returns the models agents can be configured with.
func (c *Client) ListModels(ctx context.Context) ([]AIModel, error) {
	var models []AIModel
	if err := c.do(ctx, "GET", "/agents/models", nil, &models, apperrors.ErrCodeAgentGet); err != nil {
		return nil, err
	}
	return models, nil
}
