package e2e

import (
	"fmt"

	"github.com/cucumber/godog"

	pollsteps "github.com/unstoppabledomains/nomulus/e2e/steps/poll"
	transfersteps "github.com/unstoppabledomains/nomulus/e2e/steps/transfer"
)

// RegisterSteps registers all step definitions from the modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	registerCommonSteps(ctx, tc)
	transfersteps.RegisterSteps(ctx, tc)
	pollsteps.RegisterSteps(ctx, tc)
}

func registerCommonSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Step(`^a fresh registry with the standard fixtures$`, func() error {
		return tc.Reset()
	})
	ctx.Step(`^the response status is (\d+)$`, func(expected int) error {
		if tc.LastStatus() != expected {
			return fmt.Errorf("expected status %d, got %d (body: %v)", expected, tc.LastStatus(), tc.lastBody)
		}
		return nil
	})
	ctx.Step(`^the response error is "([^"]*)"$`, func(code string) error {
		got, err := tc.LastBodyField("error")
		if err != nil {
			return err
		}
		if got != code {
			return fmt.Errorf("expected error %q, got %v", code, got)
		}
		return nil
	})
	ctx.Step(`^(\d+) days pass$`, func(days int) error {
		tc.AdvanceDays(days)
		return nil
	})
}
