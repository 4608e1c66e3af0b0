package article

import (
	"time"

	"github.com/mx-space/press/internal/models"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusScheduled Status = "Scheduled"
	StatusPublished Status = "Published"
)

// StatusOf derives the editorial state at now. Unpublished is always Draft; a
// published article whose effective date lies in the future is Scheduled.
func StatusOf(a models.ArticleModel, now time.Time) Status {
	if !a.Published {
		return StatusDraft
	}
	if a.EffectiveDate(now).After(now) {
		return StatusScheduled
	}
	return StatusPublished
}
