package settings

import (
	"fmt"

	"github.com/julianstephens/quitlog/internal/cli"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	NotificationsEnabled *bool    `help:"Enable or disable notifications."`
	CravingAlerts        *bool    `help:"Send encouragement after an urge."`
	DailyReminder        *string  `help:"Daily check-in reminder time (HH:MM)."`
	DailyTarget          *int     `help:"Maximum cigarettes per day for the goal to be met."`
	PricePerPack         *float64 `help:"Price of one pack."`
	PackSize             *int     `help:"Cigarettes per pack."`
	MinutesPerCigarette  *int     `help:"Minutes spent per cigarette."`
	Timezone             *string  `help:"IANA timezone name, or Local."`
	QuitDate             *string  `help:"Quit date (YYYY-MM-DD)."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Sync.EnsureSettings(ctx.Context(), ctx.Owner)
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if c.List {
		ctx.Println("Current Settings:")
		ctx.Printf("  Owner:                 %s\n", settings.Owner)
		ctx.Printf("  Timezone:              %s\n", settings.Timezone)
		ctx.Printf("  Quit Date:             %s\n", orDash(settings.QuitDate))
		ctx.Println("\nGoal Settings:")
		ctx.Printf("  Daily Target:          %d\n", settings.DailyTarget)
		ctx.Printf("  Price Per Pack:        %.2f\n", settings.PricePerPack)
		ctx.Printf("  Pack Size:             %d\n", settings.PackSize)
		ctx.Printf("  Minutes Per Cigarette: %d\n", settings.MinutesPerCigarette)
		ctx.Println("\nNotification Settings:")
		ctx.Printf("  Notifications Enabled: %v\n", settings.NotificationsEnabled)
		ctx.Printf("  Daily Reminder:        %s\n", orDash(settings.DailyReminder))
		ctx.Printf("  Craving Alerts:        %v\n", settings.CravingAlerts)
		return nil
	}

	updated := false
	if c.NotificationsEnabled != nil {
		settings.NotificationsEnabled = *c.NotificationsEnabled
		updated = true
	}
	if c.CravingAlerts != nil {
		settings.CravingAlerts = *c.CravingAlerts
		updated = true
	}
	if c.DailyReminder != nil {
		settings.DailyReminder = *c.DailyReminder
		updated = true
	}
	if c.DailyTarget != nil {
		settings.DailyTarget = *c.DailyTarget
		updated = true
	}
	if c.PricePerPack != nil {
		settings.PricePerPack = *c.PricePerPack
		updated = true
	}
	if c.PackSize != nil {
		settings.PackSize = *c.PackSize
		updated = true
	}
	if c.MinutesPerCigarette != nil {
		settings.MinutesPerCigarette = *c.MinutesPerCigarette
		updated = true
	}
	if c.Timezone != nil {
		settings.Timezone = *c.Timezone
		updated = true
	}
	if c.QuitDate != nil {
		settings.QuitDate = *c.QuitDate
		updated = true
	}

	if !updated {
		ctx.Println("No changes specified. Use --list to view settings or flags to update them.")
		return nil
	}

	if _, err := ctx.Sync.SaveSettings(ctx.Context(), settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	ctx.Println("Settings updated successfully.")
	ctx.Println(cli.MutedStyle.Render("Existing daily summaries keep their old values until `quitlog summary rebuild`."))
	ctx.ReportWrite()
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
