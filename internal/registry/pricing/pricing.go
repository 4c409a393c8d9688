// Package pricing quotes the money side of registry operations. The engine
// is a collaborator interface so the transfer core stays independent of
// where prices come from; the shipped implementation is a static per-TLD
// table.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	dErrors "github.com/unstoppabledomains/nomulus/pkg/domain-errors"
)

// Engine quotes transfer costs.
type Engine interface {
	// TransferPrice is the amount billed to the gaining registrar for a
	// one-year transfer of a domain on tld at the given time. When the
	// transfer subsumes an in-grace autorenew the quote additionally covers
	// the renewal year the cancelled autorenew would have charged.
	TransferPrice(ctx context.Context, tld string, at time.Time, subsumesAutorenew bool) (models.Money, error)
}

// TLDPrice is one row of the static table.
type TLDPrice struct {
	Currency string
	Transfer decimal.Decimal
	Renew    decimal.Decimal
}

// Static is a fixed in-process price table keyed by TLD.
type Static struct {
	prices map[string]TLDPrice
}

// NewStatic builds a static engine over the given table.
func NewStatic(prices map[string]TLDPrice) *Static {
	return &Static{prices: prices}
}

// DefaultTable covers the development TLDs.
func DefaultTable() map[string]TLDPrice {
	return map[string]TLDPrice{
		"example": {
			Currency: "USD",
			Transfer: decimal.RequireFromString("11.00"),
			Renew:    decimal.RequireFromString("11.00"),
		},
		"test": {
			Currency: "USD",
			Transfer: decimal.RequireFromString("8.00"),
			Renew:    decimal.RequireFromString("8.00"),
		},
	}
}

func (s *Static) TransferPrice(_ context.Context, tld string, _ time.Time, subsumesAutorenew bool) (models.Money, error) {
	row, ok := s.prices[tld]
	if !ok {
		return models.Money{}, dErrors.Newf(dErrors.CodeNotFound, "no prices configured for TLD %q", tld)
	}
	amount := row.Transfer
	if subsumesAutorenew {
		amount = amount.Add(row.Renew)
	}
	return models.Money{Amount: amount, Currency: row.Currency}, nil
}
