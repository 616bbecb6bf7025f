package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/julianstephens/quitlog/internal/errors"
	"github.com/julianstephens/quitlog/internal/models"
)

const summaryColumns = "id, owner, date, smoked, urges, resisted, money_saved, minutes_saved, top_tags, goal_met"

func scanSummary(row rowScanner) (models.DailySummary, error) {
	var sum models.DailySummary
	var topTags string
	var goalMet int
	err := row.Scan(&sum.ID, &sum.Owner, &sum.Date, &sum.Smoked, &sum.Urges, &sum.Resisted,
		&sum.MoneySaved, &sum.MinutesSaved, &topTags, &goalMet)
	if err != nil {
		return models.DailySummary{}, err
	}
	if err := json.Unmarshal([]byte(topTags), &sum.TopTags); err != nil {
		return models.DailySummary{}, fmt.Errorf("failed to parse top_tags for summary %s: %w", sum.ID, err)
	}
	if sum.TopTags == nil {
		sum.TopTags = []models.SituationTag{}
	}
	sum.GoalMet = goalMet != 0
	return sum, nil
}

func (s *Store) putSummary(sum models.DailySummary) error {
	if sum.ID == "" || sum.Owner == "" || sum.Date == "" {
		return apperrors.Local("put summary", fmt.Errorf("summary id, owner and date are required"))
	}
	if sum.TopTags == nil {
		sum.TopTags = []models.SituationTag{}
	}
	topTags, err := json.Marshal(sum.TopTags)
	if err != nil {
		return apperrors.Local("put summary", err)
	}
	goalMet := 0
	if sum.GoalMet {
		goalMet = 1
	}

	_, err = s.db.Exec(`
		INSERT INTO summaries (`+summaryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			smoked = excluded.smoked,
			urges = excluded.urges,
			resisted = excluded.resisted,
			money_saved = excluded.money_saved,
			minutes_saved = excluded.minutes_saved,
			top_tags = excluded.top_tags,
			goal_met = excluded.goal_met`,
		sum.ID, sum.Owner, sum.Date, sum.Smoked, sum.Urges, sum.Resisted,
		sum.MoneySaved, sum.MinutesSaved, string(topTags), goalMet)
	if err != nil {
		return apperrors.Local("put summary", err)
	}
	return nil
}

func (s *Store) GetSummary(id string) (models.DailySummary, bool, error) {
	row := s.db.QueryRow("SELECT "+summaryColumns+" FROM summaries WHERE id = ?", id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DailySummary{}, false, nil
	}
	if err != nil {
		return models.DailySummary{}, false, apperrors.Local("get summary", err)
	}
	return sum, true, nil
}

func (s *Store) SummariesByOwner(owner string) ([]models.DailySummary, error) {
	rows, err := s.db.Query("SELECT "+summaryColumns+" FROM summaries WHERE owner = ? ORDER BY date", owner)
	if err != nil {
		return nil, apperrors.Local("summaries by owner", err)
	}
	defer rows.Close()

	summaries := []models.DailySummary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, apperrors.Local("summaries by owner", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Local("summaries by owner", err)
	}
	return summaries, nil
}
