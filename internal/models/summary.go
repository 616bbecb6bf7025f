package models

// DailySummary is the per-owner, per-day aggregate derived from events.
// It is always recomputed from scratch, never patched in place.
type DailySummary struct {
	ID           string         `json:"id"` // owner + "_" + date
	Owner        string         `json:"owner"`
	Date         string         `json:"date"` // YYYY-MM-DD
	Smoked       int            `json:"smoked"`
	Urges        int            `json:"urges"`
	Resisted     int            `json:"resisted"`
	MoneySaved   float64        `json:"money_saved"`
	MinutesSaved int            `json:"minutes_saved"`
	TopTags      []SituationTag `json:"top_tags"`
	GoalMet      bool           `json:"goal_met"`
}

func (s DailySummary) RecordID() string { return s.ID }
func (s DailySummary) OwnerID() string  { return s.Owner }
func (s DailySummary) Store() StoreName { return StoreSummaries }

// SummaryID builds the deterministic composite key for an owner's day.
func SummaryID(owner, date string) string {
	return owner + "_" + date
}
