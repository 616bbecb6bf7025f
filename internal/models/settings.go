package models

import (
	"fmt"
	"time"

	"github.com/julianstephens/quitlog/internal/constants"
)

// Settings holds one owner's preferences. There is exactly one per owner;
// the owner doubles as the record id.
type Settings struct {
	Owner                string  `json:"owner"`
	NotificationsEnabled bool    `json:"notifications_enabled"` // master switch for push notifications
	DailyReminder        string  `json:"daily_reminder"`        // HH:MM time of the daily check-in reminder
	CravingAlerts        bool    `json:"craving_alerts"`        // whether to send encouragement after an urge
	DailyTarget          int     `json:"daily_target"`          // max cigarettes per day for the goal to be met
	PricePerPack         float64 `json:"price_per_pack"`        // in the user's currency
	PackSize             int     `json:"pack_size"`             // cigarettes per pack
	MinutesPerCigarette  int     `json:"minutes_per_cigarette"` // time spent per cigarette
	Timezone             string  `json:"timezone"`              // IANA timezone name or "Local"
	QuitDate             string  `json:"quit_date,omitempty"`   // YYYY-MM-DD
	UpdatedAt            int64   `json:"updated_at"`            // epoch milliseconds
}

func (s Settings) RecordID() string { return s.Owner }
func (s Settings) OwnerID() string  { return s.Owner }
func (s Settings) Store() StoreName { return StoreSettings }

// PricePerCigarette returns the unit price, or 0 when the pack size is unset.
func (s Settings) PricePerCigarette() float64 {
	if s.PackSize <= 0 {
		return 0
	}
	return s.PricePerPack / float64(s.PackSize)
}

func (s *Settings) Validate() error {
	if s.Owner == "" {
		return fmt.Errorf("settings owner cannot be empty")
	}
	if s.DailyTarget < 0 {
		return fmt.Errorf("daily target cannot be negative")
	}
	if s.PricePerPack < 0 {
		return fmt.Errorf("price per pack cannot be negative")
	}
	if s.PackSize < 1 {
		return fmt.Errorf("pack size must be at least 1")
	}
	if s.MinutesPerCigarette < 0 {
		return fmt.Errorf("minutes per cigarette cannot be negative")
	}
	if s.DailyReminder != "" {
		if _, err := time.Parse("15:04", s.DailyReminder); err != nil {
			return fmt.Errorf("invalid daily reminder (expected HH:MM): %w", err)
		}
	}
	if s.QuitDate != "" {
		if _, err := time.Parse("2006-01-02", s.QuitDate); err != nil {
			return fmt.Errorf("invalid quit date (expected YYYY-MM-DD): %w", err)
		}
	}
	if s.Timezone != "" && s.Timezone != "Local" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
	}
	return nil
}

// DefaultSettings returns the settings created the first time an owner is seen.
func DefaultSettings(owner string) Settings {
	return Settings{
		Owner:                owner,
		NotificationsEnabled: constants.DefaultNotificationsEnabled,
		DailyReminder:        constants.DefaultDailyReminder,
		CravingAlerts:        constants.DefaultCravingAlerts,
		DailyTarget:          constants.DefaultDailyTarget,
		PricePerPack:         constants.DefaultPricePerPack,
		PackSize:             constants.DefaultPackSize,
		MinutesPerCigarette:  constants.DefaultMinutesPerCigarette,
		Timezone:             constants.DefaultTimezone,
	}
}
