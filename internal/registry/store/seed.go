package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/pkg/authinfo"
)

// SeedDev loads a small fixture set so a fresh instance is usable
// immediately: two active registrars sharing the example TLD, one domain and
// one contact sponsored by registrar-a, and the domain's autorenew
// recurrence. The auth info for both objects is "hunter2".
func SeedDev(ctx context.Context, s Store) error {
	now := time.Now().UTC().Truncate(time.Second)
	authHash := authinfo.MustHash("hunter2")

	registrarA := models.Registrar{
		ID:          "registrar-a",
		Name:        "Registrar A",
		State:       models.RegistrarActive,
		AllowedTLDs: []string{"example"},
		BillingAccounts: map[string]string{
			"USD": "registrar-a-usd",
		},
	}
	registrarB := models.Registrar{
		ID:          "registrar-b",
		Name:        "Registrar B",
		State:       models.RegistrarActive,
		AllowedTLDs: []string{"example"},
		BillingAccounts: map[string]string{
			"USD": "registrar-b-usd",
		},
	}

	recurrence := models.BillingRecurrence{
		ID:           uuid.NewString(),
		DomainRepoID: "dom-1",
		DomainName:   "ship.example",
		TLD:          "example",
		RegistrarID:  registrarA.ID,
		EventTime:    now.AddDate(1, 0, 0),
		EndTime:      models.EndOfTime,
	}
	domain := models.Domain{
		RepoID:              "dom-1",
		Name:                "ship.example",
		TLD:                 "example",
		CurrentSponsorID:    registrarA.ID,
		Statuses:            models.NewStatusSet(models.StatusOK),
		AuthInfo:            authHash,
		CreationTime:        now,
		ExpirationTime:      now.AddDate(1, 0, 0),
		AutorenewRecurrence: recurrence.EntityKey(),
	}
	contact := models.Contact{
		RepoID:           "con-1",
		ContactID:        "sh8013",
		CurrentSponsorID: registrarA.ID,
		Statuses:         models.NewStatusSet(models.StatusOK),
		AuthInfo:         authHash,
		CreationTime:     now,
	}

	return s.RunInTransaction(ctx, func(tx Transaction) error {
		tx.Put(registrarA, registrarB, recurrence, domain, contact)
		return nil
	})
}
