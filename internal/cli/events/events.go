package events

import (
	"errors"
	"fmt"
	"sort"

	"github.com/julianstephens/quitlog/internal/cli"
	"github.com/julianstephens/quitlog/internal/models"
	"github.com/julianstephens/quitlog/internal/syncer"
	"github.com/julianstephens/quitlog/internal/utils"
)

type LogCmd struct {
	Kind string   `arg:"" help:"What happened: occurred (smoked), urge or resisted."`
	Tag  []string `short:"t" help:"Situation tag (repeatable or comma-separated): after_meal, alcohol, boredom, coffee, driving, morning, social, stress, work, other."`
	At   string   `help:"When it happened: HH:MM today or RFC3339. Defaults to now."`
}

func (c *LogCmd) Run(ctx *cli.Context) error {
	kind, err := models.ParseEventKind(c.Kind)
	if err != nil {
		return err
	}

	settings, err := ctx.Sync.EnsureSettings(ctx.Context(), ctx.Owner)
	if err != nil {
		return err
	}
	occurredAt, err := utils.ParseOccurredAt(c.At, settings.Timezone)
	if err != nil {
		return err
	}

	event, err := ctx.Sync.RecordEvent(ctx.Context(), ctx.Owner, kind, occurredAt, cli.SplitTags(c.Tag))
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	ctx.Printf("✓ Recorded %s at %s on %s (%s)\n", event.Kind, cli.FormatEventTime(event, settings.Timezone), event.LocalDate, event.ID)
	ctx.ReportWrite()
	return nil
}

type TagsCmd struct {
	ID   string   `arg:"" help:"Event ID."`
	Tags []string `arg:"" optional:"" help:"Replacement tags. Omit to clear all tags."`
}

func (c *TagsCmd) Run(ctx *cli.Context) error {
	event, err := ctx.Sync.UpdateEventTags(ctx.Context(), c.ID, cli.SplitTags(c.Tags))
	if err != nil {
		if errors.Is(err, syncer.ErrEventNotFound) {
			return fmt.Errorf("no event with id %s", c.ID)
		}
		return fmt.Errorf("failed to update tags: %w", err)
	}
	ctx.Printf("✓ Tags for %s: %s\n", event.ID, cli.FormatTags(event.Tags))
	ctx.ReportWrite()
	return nil
}

type DeleteCmd struct {
	ID string `arg:"" help:"Event ID."`
}

func (c *DeleteCmd) Run(ctx *cli.Context) error {
	ctx.PerformAutomaticBackup()

	if err := ctx.Sync.DeleteEvent(ctx.Context(), c.ID); err != nil {
		if errors.Is(err, syncer.ErrEventNotFound) {
			return fmt.Errorf("no event with id %s", c.ID)
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}
	ctx.Printf("✓ Deleted event %s\n", c.ID)
	ctx.ReportWrite()
	return nil
}

type ListCmd struct {
	Date string `help:"Only events on this date (YYYY-MM-DD)."`
	Kind string `help:"Only events of this kind."`
}

func (c *ListCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Sync.EnsureSettings(ctx.Context(), ctx.Owner)
	if err != nil {
		return err
	}

	var events []models.Event
	switch {
	case c.Date != "":
		events, err = ctx.Store.EventsByOwnerAndDate(ctx.Owner, c.Date)
	case c.Kind != "":
		kind, kerr := models.ParseEventKind(c.Kind)
		if kerr != nil {
			return kerr
		}
		events, err = ctx.Store.EventsByOwnerAndKind(ctx.Owner, kind)
	default:
		events, err = ctx.Store.EventsByOwner(ctx.Owner)
	}
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	if c.Date != "" && c.Kind != "" {
		kind, err := models.ParseEventKind(c.Kind)
		if err != nil {
			return err
		}
		filtered := events[:0]
		for _, e := range events {
			if e.Kind == kind {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	if len(events) == 0 {
		ctx.Println("No events found.")
		return nil
	}

	// Store order is not guaranteed; show chronologically.
	sort.SliceStable(events, func(i, j int) bool { return events[i].OccurredAt < events[j].OccurredAt })

	ctx.Println(cli.HeaderStyle.Render(fmt.Sprintf("%-10s  %-5s  %-8s  %-24s  %s", "DATE", "TIME", "KIND", "TAGS", "ID")))
	for _, e := range events {
		ctx.Printf("%-10s  %-5s  %-8s  %-24s  %s\n",
			e.LocalDate, cli.FormatEventTime(e, settings.Timezone), e.Kind, cli.FormatTags(e.Tags), e.ID)
	}
	return nil
}
