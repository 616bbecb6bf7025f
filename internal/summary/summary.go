// Package summary derives per-day aggregates from the event log.
package summary

import (
	"math"
	"sort"

	"github.com/julianstephens/quitlog/internal/constants"
	"github.com/julianstephens/quitlog/internal/models"
)

// Project recomputes the summary for owner on date from scratch. Events for
// other owners or dates are ignored, so callers may pass a superset. The
// result depends only on its arguments.
func Project(owner, date string, events []models.Event, settings models.Settings) models.DailySummary {
	sum := models.DailySummary{
		ID:      models.SummaryID(owner, date),
		Owner:   owner,
		Date:    date,
		TopTags: []models.SituationTag{},
	}

	tagCounts := make(map[models.SituationTag]int)
	for _, e := range events {
		if e.Owner != owner || e.LocalDate != date {
			continue
		}
		switch e.Kind {
		case models.EventOccurred:
			sum.Smoked++
		case models.EventUrge:
			sum.Urges++
		case models.EventResisted:
			sum.Resisted++
		}
		for _, tag := range e.Tags {
			tagCounts[tag]++
		}
	}

	sum.MoneySaved = roundCents(float64(sum.Resisted) * settings.PricePerCigarette())
	sum.MinutesSaved = sum.Resisted * settings.MinutesPerCigarette
	sum.TopTags = topTags(tagCounts, constants.MaxTopTags)
	sum.GoalMet = sum.Smoked <= settings.DailyTarget
	return sum
}

// topTags orders tags by count descending, then name, and keeps at most n.
func topTags(counts map[models.SituationTag]int, n int) []models.SituationTag {
	tags := make([]models.SituationTag, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > n {
		tags = tags[:n]
	}
	return tags
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Dates returns the distinct local dates present in events for owner, sorted.
func Dates(owner string, events []models.Event) []string {
	seen := make(map[string]bool)
	var dates []string
	for _, e := range events {
		if e.Owner != owner || seen[e.LocalDate] {
			continue
		}
		seen[e.LocalDate] = true
		dates = append(dates, e.LocalDate)
	}
	sort.Strings(dates)
	return dates
}
