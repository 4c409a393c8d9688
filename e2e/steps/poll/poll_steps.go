// Package poll holds the step definitions driving the poll queue endpoints.
package poll

import (
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the main test context these steps need.
type TestContext interface {
	POST(registrarID, path string, body map[string]any) error
	GET(registrarID, path string) error
	LastStatus() int
	LastBodyField(path string) (any, error)
}

// RegisterSteps registers poll-queue step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &pollSteps{tc: tc}

	ctx.Step(`^registrar "([^"]*)" lists its poll messages$`, steps.listMessages)
	ctx.Step(`^registrar "([^"]*)" has a poll message of type "([^"]*)"$`, steps.hasMessageOfType)
	ctx.Step(`^registrar "([^"]*)" acknowledges its first poll message$`, steps.ackFirstMessage)
	ctx.Step(`^registrar "([^"]*)" has no poll messages$`, steps.hasNoMessages)
}

type pollSteps struct {
	tc TestContext
}

func (s *pollSteps) listMessages(registrarID string) error {
	return s.tc.GET(registrarID, "/v1/poll")
}

func (s *pollSteps) messages(registrarID string) ([]any, error) {
	if err := s.listMessages(registrarID); err != nil {
		return nil, err
	}
	raw, err := s.tc.LastBodyField("messages")
	if err != nil {
		return nil, err
	}
	msgs, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("messages is not a list: %v", raw)
	}
	return msgs, nil
}

func (s *pollSteps) hasMessageOfType(registrarID, messageType string) error {
	msgs, err := s.messages(registrarID)
	if err != nil {
		return err
	}
	for _, raw := range msgs {
		msg, ok := raw.(map[string]any)
		if ok && msg["type"] == messageType {
			return nil
		}
	}
	return fmt.Errorf("registrar %s has no %q poll message among %d messages", registrarID, messageType, len(msgs))
}

func (s *pollSteps) ackFirstMessage(registrarID string) error {
	msgs, err := s.messages(registrarID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("registrar %s has no poll messages to acknowledge", registrarID)
	}
	first, ok := msgs[0].(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected poll message shape: %v", msgs[0])
	}
	id, ok := first["id"].(string)
	if !ok {
		return fmt.Errorf("poll message has no id: %v", first)
	}
	return s.tc.POST(registrarID, "/v1/poll/"+id+"/ack", nil)
}

func (s *pollSteps) hasNoMessages(registrarID string) error {
	msgs, err := s.messages(registrarID)
	if err != nil {
		return err
	}
	if len(msgs) != 0 {
		return fmt.Errorf("expected no poll messages for %s, got %d", registrarID, len(msgs))
	}
	return nil
}
