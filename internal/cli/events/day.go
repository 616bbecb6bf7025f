package events

import (
	"fmt"
	"time"

	"github.com/julianstephens/quitlog/internal/cli"
	"github.com/julianstephens/quitlog/internal/models"
	"github.com/julianstephens/quitlog/internal/utils"
)

type DayCmd struct {
	Date string `arg:"" optional:"" help:"Date to show (YYYY-MM-DD). Defaults to today."`
}

func (c *DayCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Sync.EnsureSettings(ctx.Context(), ctx.Owner)
	if err != nil {
		return err
	}

	date := c.Date
	if date == "" {
		if date, err = utils.GetTodayInTimezone(settings.Timezone); err != nil {
			return err
		}
	} else if _, err := utils.ParseDateInLocation(date, time.UTC); err != nil {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}

	sum, found, err := ctx.Store.GetSummary(models.SummaryID(ctx.Owner, date))
	if err != nil {
		return err
	}
	if !found {
		ctx.Printf("No activity recorded for %s.\n", date)
		return nil
	}

	ctx.Println(cli.HeaderStyle.Render("Summary for " + date))
	ctx.Printf("  Smoked:        %d (target %d)\n", sum.Smoked, settings.DailyTarget)
	ctx.Printf("  Urges:         %d\n", sum.Urges)
	ctx.Printf("  Resisted:      %d\n", sum.Resisted)
	ctx.Printf("  Money saved:   %.2f\n", sum.MoneySaved)
	ctx.Printf("  Minutes saved: %d\n", sum.MinutesSaved)
	ctx.Printf("  Top tags:      %s\n", cli.FormatTags(sum.TopTags))
	if sum.GoalMet {
		ctx.Printf("  Goal:          %s\n", cli.OKStyle.Render("met"))
	} else {
		ctx.Printf("  Goal:          %s\n", cli.DangerStyle.Render("missed"))
	}
	return nil
}

type RebuildCmd struct{}

func (c *RebuildCmd) Run(ctx *cli.Context) error {
	n, err := ctx.Sync.RebuildSummaries(ctx.Context(), ctx.Owner)
	if err != nil {
		return fmt.Errorf("failed to rebuild summaries: %w", err)
	}
	ctx.Printf("✓ Rebuilt %d daily summaries\n", n)
	ctx.ReportWrite()
	return nil
}
