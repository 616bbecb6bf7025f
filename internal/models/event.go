package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type EventKind string

const (
	EventOccurred EventKind = "occurred" // smoked
	EventUrge     EventKind = "urge"     // craved
	EventResisted EventKind = "resisted" // resisted a craving
)

// ParseEventKind accepts the canonical kind names plus the user-facing verbs.
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "occurred", "smoked", "smoke":
		return EventOccurred, nil
	case "urge", "craved", "craving":
		return EventUrge, nil
	case "resisted", "resist":
		return EventResisted, nil
	default:
		return "", fmt.Errorf("unknown event kind %q (expected occurred, urge or resisted)", s)
	}
}

// SituationTag labels the context an event happened in.
type SituationTag string

const (
	TagAfterMeal SituationTag = "after_meal"
	TagAlcohol   SituationTag = "alcohol"
	TagBoredom   SituationTag = "boredom"
	TagCoffee    SituationTag = "coffee"
	TagDriving   SituationTag = "driving"
	TagMorning   SituationTag = "morning"
	TagSocial    SituationTag = "social"
	TagStress    SituationTag = "stress"
	TagWork      SituationTag = "work"
	TagOther     SituationTag = "other"
)

var knownTags = map[SituationTag]bool{
	TagAfterMeal: true,
	TagAlcohol:   true,
	TagBoredom:   true,
	TagCoffee:    true,
	TagDriving:   true,
	TagMorning:   true,
	TagSocial:    true,
	TagStress:    true,
	TagWork:      true,
	TagOther:     true,
}

// NormalizeTags validates tags against the known vocabulary and returns them
// as a sorted set. A nil or empty input yields an empty, non-nil slice.
func NormalizeTags(tags []string) ([]SituationTag, error) {
	seen := make(map[SituationTag]bool, len(tags))
	out := make([]SituationTag, 0, len(tags))
	for _, raw := range tags {
		tag := SituationTag(strings.ToLower(strings.TrimSpace(raw)))
		if tag == "" {
			continue
		}
		if !knownTags[tag] {
			return nil, fmt.Errorf("unknown situation tag %q", raw)
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Event is a single logged action. LocalDate is fixed when the event is
// created and is the grouping key for daily summaries.
type Event struct {
	ID         string         `json:"id"`
	Owner      string         `json:"owner"`
	Kind       EventKind      `json:"kind"`
	OccurredAt int64          `json:"occurred_at"` // epoch milliseconds
	LocalDate  string         `json:"local_date"`  // YYYY-MM-DD in the device timezone at creation
	Tags       []SituationTag `json:"tags"`
	CreatedAt  int64          `json:"created_at"` // epoch milliseconds
	UpdatedAt  int64          `json:"updated_at"` // epoch milliseconds
}

func (e Event) RecordID() string { return e.ID }
func (e Event) OwnerID() string  { return e.Owner }
func (e Event) Store() StoreName { return StoreEvents }

// Time returns OccurredAt as a time.Time in the local zone.
func (e Event) Time() time.Time { return time.UnixMilli(e.OccurredAt) }

func (e Event) HasTag(t SituationTag) bool {
	for _, tag := range e.Tags {
		if tag == t {
			return true
		}
	}
	return false
}

func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id cannot be empty")
	}
	if e.Owner == "" {
		return fmt.Errorf("event owner cannot be empty")
	}
	switch e.Kind {
	case EventOccurred, EventUrge, EventResisted:
	default:
		return fmt.Errorf("invalid event kind %q", e.Kind)
	}
	if e.OccurredAt <= 0 {
		return fmt.Errorf("event occurred_at must be set")
	}
	if _, err := time.Parse("2006-01-02", e.LocalDate); err != nil {
		return fmt.Errorf("invalid local_date (expected YYYY-MM-DD): %w", err)
	}
	return nil
}
