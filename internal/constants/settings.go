package constants

const (
	// Settings keys
	SettingNotificationsEnabled = "notifications_enabled"
	SettingDailyReminder        = "daily_reminder"
	SettingCravingAlerts        = "craving_alerts"
	SettingDailyTarget          = "daily_target"
	SettingPricePerPack         = "price_per_pack"
	SettingPackSize             = "pack_size"
	SettingMinutesPerCigarette  = "minutes_per_cigarette"
	SettingTimezone             = "timezone"
	SettingQuitDate             = "quit_date"

	// Default Settings Values
	DefaultNotificationsEnabled = true
	DefaultDailyReminder        = "09:00"
	DefaultCravingAlerts        = true
	DefaultDailyTarget          = 0
	DefaultPricePerPack         = 0.0
	DefaultPackSize             = 20
	DefaultMinutesPerCigarette  = 7
	DefaultTimezone             = "Local" // Use system local timezone by default
)
