// Package eligibility screens animals against maximum-residue-limit rules
// before they may receive medicated feed.
package eligibility

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/domain/models"
)

// Checker computes MRL statuses and splits a requested animal set into
// eligible and ineligible subsets. Non-medicated feed bypasses it entirely.
type Checker struct {
	logger *zap.Logger
}

// NewChecker constructs a Checker.
func NewChecker(logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{logger: logger}
}

// CalculateMRLStatus derives an animal's current residue standing.
func (c *Checker) CalculateMRLStatus(animal models.Animal, now time.Time) models.AnimalMRLResult {
	if animal.InWithdrawal && animal.WithdrawalEndDate != nil && animal.WithdrawalEndDate.After(now) {
		return models.AnimalMRLResult{
			TagID:  animal.TagID,
			Status: models.MRLStatusActiveWithdrawal,
			Message: fmt.Sprintf("withdrawal period active until %s",
				animal.WithdrawalEndDate.Format("2006-01-02")),
		}
	}

	if animal.IsNew {
		return models.AnimalMRLResult{
			TagID:   animal.TagID,
			Status:  models.MRLStatusNew,
			Message: "newly registered animal, no treatment history",
		}
	}

	return models.AnimalMRLResult{
		TagID:   animal.TagID,
		Status:  models.MRLStatusSafe,
		Message: "no residue restriction",
	}
}

// CheckEligibility evaluates every animal and returns the full split. The
// caller applies the all-or-nothing policy; returning the complete ineligible
// list lets a farmer correct the whole request in one go.
func (c *Checker) CheckEligibility(animals []models.Animal, now time.Time) models.EligibilityResult {
	var result models.EligibilityResult
	for _, animal := range animals {
		status := c.CalculateMRLStatus(animal, now)
		if status.Status.Eligible() {
			result.Eligible = append(result.Eligible, animal)
			continue
		}
		c.logger.Debug("animal ineligible for medicated feed",
			zap.String("tag_id", animal.TagID),
			zap.String("mrl_status", string(status.Status)))
		result.Ineligible = append(result.Ineligible, status)
	}
	return result
}
