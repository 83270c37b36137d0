package source

import (
	"strconv"
	"strings"

	"mangatrack/pkg/models"
)

// NormalizeChapterNumber maps raw chapter labels ("Chapter 10", "10.50",
// "Extra") to a canonical string. Numeric values come back in canonical
// decimal form so "10.50" and "10.5" compare equal; anything non-numeric is
// returned cleaned but otherwise untouched. Idempotent by construction.
func NormalizeChapterNumber(raw string) string {
	s := strings.TrimSpace(raw)

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "chapter") {
		s = strings.TrimSpace(s[len("chapter"):])
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}

// NormalizeStatus maps the wildly varying status vocabulary of external
// sources onto the canonical enum. Substrings are matched in priority
// order; anything unrecognized (including empty input) counts as ongoing,
// which is the safe default for a series we keep polling.
func NormalizeStatus(raw string) models.Status {
	s := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case strings.Contains(s, "ongoing"), strings.Contains(s, "publishing"), strings.Contains(s, "releasing"):
		return models.StatusOngoing
	case strings.Contains(s, "completed"), strings.Contains(s, "finished"):
		return models.StatusCompleted
	case strings.Contains(s, "hiatus"), strings.Contains(s, "on hold"):
		return models.StatusHiatus
	case strings.Contains(s, "cancelled"), strings.Contains(s, "discontinued"):
		return models.StatusCancelled
	default:
		return models.StatusOngoing
	}
}
