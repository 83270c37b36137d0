package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mangatrack/pkg/models"
)

func TestNormalizeChapterNumber(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Chapter 10":    "10",
		"chapter 10.5":  "10.5",
		"CHAPTER  7":    "7",
		"10.50":         "10.5",
		"  42 ":         "42",
		"0":             "0",
		"Extra":         "Extra",
		"Chapter Extra": "Extra",
		"":              "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeChapterNumber(raw), "raw=%q", raw)
	}
}

func TestNormalizeChapterNumberIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"Chapter 10", "10.50", "Extra", "Chapter 10.5", "", "one-shot", "  9 "}
	for _, raw := range inputs {
		once := NormalizeChapterNumber(raw)
		assert.Equal(t, once, NormalizeChapterNumber(once), "raw=%q", raw)
	}
}

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]models.Status{
		"Ongoing":        models.StatusOngoing,
		"publishing":     models.StatusOngoing,
		"Releasing":      models.StatusOngoing,
		"Completed":      models.StatusCompleted,
		"Finished":       models.StatusCompleted,
		"  hiatus ":      models.StatusHiatus,
		"On Hold":        models.StatusHiatus,
		"Cancelled":      models.StatusCancelled,
		"discontinued":   models.StatusCancelled,
		"":               models.StatusOngoing,
		"weird nonsense": models.StatusOngoing,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeStatus(raw), "raw=%q", raw)
	}
}
