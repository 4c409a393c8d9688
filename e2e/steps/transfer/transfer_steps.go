// Package transfer holds the step definitions driving the transfer
// endpoints.
package transfer

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

// RegisterSteps registers transfer-related step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &transferSteps{tc: tc}

	ctx.Step(`^registrar "([^"]*)" requests a transfer of domain "([^"]*)" with auth info "([^"]*)"$`, steps.requestTransfer)
	ctx.Step(`^registrar "([^"]*)" approves the transfer of domain "([^"]*)"$`, steps.approveTransfer)
	ctx.Step(`^registrar "([^"]*)" rejects the transfer of domain "([^"]*)"$`, steps.rejectTransfer)
	ctx.Step(`^registrar "([^"]*)" cancels the transfer of domain "([^"]*)"$`, steps.cancelTransfer)
	ctx.Step(`^registrar "([^"]*)" fetches domain "([^"]*)"$`, steps.fetchDomain)
	ctx.Step(`^the transfer status is "([^"]*)"$`, steps.transferStatusIs)
	ctx.Step(`^the transfer cost is "([^"]*)" ([A-Z]{3})$`, steps.transferCostIs)
	ctx.Step(`^the domain is sponsored by "([^"]*)"$`, steps.domainSponsoredBy)
}

type transferSteps struct {
	tc TestContext
}

func (s *transferSteps) requestTransfer(registrarID, domainID, authInfo string) error {
	return s.tc.POST(registrarID, "/v1/domains/"+domainID+"/transfer", map[string]any{
		"auth_info": authInfo,
	})
}

func (s *transferSteps) approveTransfer(registrarID, domainID string) error {
	return s.tc.POST(registrarID, "/v1/domains/"+domainID+"/transfer/approve", nil)
}

func (s *transferSteps) rejectTransfer(registrarID, domainID string) error {
	return s.tc.POST(registrarID, "/v1/domains/"+domainID+"/transfer/reject", nil)
}

func (s *transferSteps) cancelTransfer(registrarID, domainID string) error {
	return s.tc.POST(registrarID, "/v1/domains/"+domainID+"/transfer/cancel", nil)
}

func (s *transferSteps) fetchDomain(registrarID, domainID string) error {
	return s.tc.GET(registrarID, "/v1/domains/"+domainID)
}

func (s *transferSteps) transferStatusIs(expected string) error {
	got, err := s.tc.LastBodyField("transfer.status")
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("expected transfer status %q, got %v", expected, got)
	}
	return nil
}

func (s *transferSteps) transferCostIs(amount, currency string) error {
	gotAmount, err := s.tc.LastBodyField("cost.amount")
	if err != nil {
		return err
	}
	gotCurrency, err := s.tc.LastBodyField("cost.currency")
	if err != nil {
		return err
	}
	if gotAmount != amount || gotCurrency != currency {
		return fmt.Errorf("expected cost %s %s, got %v %v", amount, currency, gotAmount, gotCurrency)
	}
	return nil
}

// domainSponsoredBy reads the sponsor from the last response, which can be
// either a bare resource or a transfer response wrapping one.
func (s *transferSteps) domainSponsoredBy(expected string) error {
	got, err := s.tc.LastBodyField("sponsor_registrar_id")
	if err != nil {
		got, err = s.tc.LastBodyField("resource.sponsor_registrar_id")
	}
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("expected sponsor %q, got %v", expected, got)
	}
	return nil
}
