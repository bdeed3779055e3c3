package administration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mamadbah2/amutrack/internal/domain/models"
)

// ErrForbidden indicates the caller may not act on the record or feed.
var ErrForbidden = errors.New("caller may not act on this record")

// ErrInvalidTransition indicates the record is not in a status the requested
// operation accepts.
var ErrInvalidTransition = errors.New("operation not allowed in current status")

// ErrMissingReason indicates a rejection without a reason.
var ErrMissingReason = errors.New("rejection reason is required")

// ErrValidation indicates a malformed request payload.
var ErrValidation = errors.New("invalid request")

// IneligibleAnimalsError reports every animal that failed the MRL screening.
// The request is refused as a whole; no partial administration happens.
type IneligibleAnimalsError struct {
	Animals []models.AnimalMRLResult
}

func (e *IneligibleAnimalsError) Error() string {
	tags := make([]string, 0, len(e.Animals))
	for _, a := range e.Animals {
		tags = append(tags, fmt.Sprintf("%s (%s)", a.TagID, a.Status))
	}
	return "ineligible animals: " + strings.Join(tags, ", ")
}
