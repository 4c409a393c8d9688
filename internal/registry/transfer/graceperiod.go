package transfer

import (
	"time"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
)

// projectExpiration rolls a domain expiration forward through the autorenews
// that fire at or before asOf. An autorenew fires when the expiration
// passes, provided the firing instant is strictly before the recurrence's
// end time; each firing extends the expiration by one year.
//
// It returns the projected expiration and the instant of the last autorenew
// firing, zero if none fired.
func projectExpiration(expiration time.Time, rec models.BillingRecurrence, asOf time.Time) (time.Time, time.Time) {
	var lastFiring time.Time
	for !expiration.After(asOf) && expiration.Before(rec.EndTime) {
		lastFiring = expiration
		expiration = expiration.AddDate(1, 0, 0)
	}
	return expiration, lastFiring
}

// subsumesAutorenew reports whether an approval at the given instant lands
// inside the grace window of the last autorenew firing. When it does, the
// transfer cancels that autorenew charge and absorbs its year instead of
// adding another.
func subsumesAutorenew(lastFiring, at time.Time, graceLength time.Duration) bool {
	return !lastFiring.IsZero() && at.Before(lastFiring.Add(graceLength))
}

// cappedExpiration extends an expiration by the given number of years,
// clamped so it never lands more than maxYears past the approval moment. An
// extension landing exactly at the cap is allowed.
func cappedExpiration(expiration time.Time, years int, approvedAt time.Time, maxYears int) time.Time {
	extended := expiration.AddDate(years, 0, 0)
	limit := approvedAt.AddDate(maxYears, 0, 0)
	if extended.After(limit) {
		return limit
	}
	return extended
}

// approvalExpiration computes the expiration a domain will have when its
// pending transfer is approved at the given instant: project autorenews to
// that instant, then add the transfer period unless a subsumed autorenew
// already covers it.
func approvalExpiration(domainExpiration time.Time, rec models.BillingRecurrence, years int, at time.Time, cfg Config) (newExpiration time.Time, subsumed bool) {
	projected, lastFiring := projectExpiration(domainExpiration, rec, at)
	if years == 0 {
		return projected, false
	}
	if subsumesAutorenew(lastFiring, at, cfg.AutorenewGraceLength) {
		return projected, true
	}
	return cappedExpiration(projected, years, at, cfg.MaxRegistrationYears), false
}
