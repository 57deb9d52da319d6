package brainstorm

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// Session input limits enforced before any command is dispatched.
const (
	MinTopicLength      = 10
	MaxTopicLength      = 200
	MinAgentsPerSession = 2
	MaxAgentsPerSession = 6
)

// ValidateSessionInput checks topic and roster constraints for session
// creation and start commands. All violations are collected before the
// command is rejected.
func ValidateSessionInput(topic string, agentIDs []int) error {
	var result *multierror.Error

	if len(topic) < MinTopicLength {
		result = multierror.Append(result,
			fmt.Errorf("topic must be at least %d characters", MinTopicLength))
	}
	if len(topic) > MaxTopicLength {
		result = multierror.Append(result,
			fmt.Errorf("topic must be at most %d characters", MaxTopicLength))
	}
	if len(agentIDs) < MinAgentsPerSession {
		result = multierror.Append(result,
			fmt.Errorf("a session needs at least %d agents", MinAgentsPerSession))
	}
	if len(agentIDs) > MaxAgentsPerSession {
		result = multierror.Append(result,
			fmt.Errorf("a session allows at most %d agents", MaxAgentsPerSession))
	}
	seen := make(map[int]bool, len(agentIDs))
	for _, id := range agentIDs {
		if id <= 0 {
			result = multierror.Append(result, fmt.Errorf("agent id %d is invalid", id))
			continue
		}
		if seen[id] {
			result = multierror.Append(result, fmt.Errorf("agent id %d appears twice", id))
		}
		seen[id] = true
	}

	if err := result.ErrorOrNil(); err != nil {
		return apperrors.New(apperrors.ErrCodeValidation, "invalid session input", err)
	}
	return nil
}
