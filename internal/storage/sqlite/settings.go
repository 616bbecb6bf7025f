package sqlite

import (
	"fmt"
	"strconv"

	"github.com/julianstephens/quitlog/internal/constants"
	apperrors "github.com/julianstephens/quitlog/internal/errors"
	"github.com/julianstephens/quitlog/internal/models"
)

// GetSettings loads an owner's settings. found is false when the owner has
// never been initialized.
func (s *Store) GetSettings(owner string) (models.Settings, bool, error) {
	rows, err := s.db.Query("SELECT key, value FROM settings WHERE owner = ?", owner)
	if err != nil {
		return models.Settings{}, false, apperrors.Local("get settings", err)
	}
	defer rows.Close()

	settings := models.Settings{Owner: owner}
	count := 0
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Settings{}, false, apperrors.Local("get settings", err)
		}
		if err := applySetting(&settings, key, value); err != nil {
			return models.Settings{}, false, apperrors.Local("get settings", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return models.Settings{}, false, apperrors.Local("get settings", err)
	}

	if count == 0 {
		return models.Settings{}, false, nil
	}
	return settings, true, nil
}

func applySetting(settings *models.Settings, key, value string) error {
	var err error
	switch key {
	case constants.SettingNotificationsEnabled:
		settings.NotificationsEnabled = value == "true"
	case constants.SettingDailyReminder:
		settings.DailyReminder = value
	case constants.SettingCravingAlerts:
		settings.CravingAlerts = value == "true"
	case constants.SettingDailyTarget:
		settings.DailyTarget, err = strconv.Atoi(value)
	case constants.SettingPricePerPack:
		settings.PricePerPack, err = strconv.ParseFloat(value, 64)
	case constants.SettingPackSize:
		settings.PackSize, err = strconv.Atoi(value)
	case constants.SettingMinutesPerCigarette:
		settings.MinutesPerCigarette, err = strconv.Atoi(value)
	case constants.SettingTimezone:
		settings.Timezone = value
	case constants.SettingQuitDate:
		settings.QuitDate = value
	case "updated_at":
		settings.UpdatedAt, err = strconv.ParseInt(value, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	return nil
}

func (s *Store) putSettings(settings models.Settings) error {
	if err := settings.Validate(); err != nil {
		return apperrors.Local("put settings", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Local("put settings", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO settings (owner, key, value) VALUES (?, ?, ?)")
	if err != nil {
		return apperrors.Local("put settings", err)
	}
	defer stmt.Close()

	values := [][2]string{
		{constants.SettingNotificationsEnabled, strconv.FormatBool(settings.NotificationsEnabled)},
		{constants.SettingDailyReminder, settings.DailyReminder},
		{constants.SettingCravingAlerts, strconv.FormatBool(settings.CravingAlerts)},
		{constants.SettingDailyTarget, strconv.Itoa(settings.DailyTarget)},
		{constants.SettingPricePerPack, strconv.FormatFloat(settings.PricePerPack, 'f', -1, 64)},
		{constants.SettingPackSize, strconv.Itoa(settings.PackSize)},
		{constants.SettingMinutesPerCigarette, strconv.Itoa(settings.MinutesPerCigarette)},
		{constants.SettingTimezone, settings.Timezone},
		{constants.SettingQuitDate, settings.QuitDate},
		{"updated_at", strconv.FormatInt(settings.UpdatedAt, 10)},
	}
	for _, kv := range values {
		if _, err := stmt.Exec(settings.Owner, kv[0], kv[1]); err != nil {
			return apperrors.Local("put settings", fmt.Errorf("saving %s: %w", kv[0], err))
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Local("put settings", err)
	}
	return nil
}
