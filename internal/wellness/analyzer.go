package wellness

import (
	"context"
	"time"

	"github.com/2beens/fitsync/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type analyzerRepo interface {
	List(ctx context.Context, userID string, params ListParams) ([]Record, error)
	UpsertDailyTotals(ctx context.Context, totals DailyTotals) error
	ListDailyTotals(ctx context.Context, userID string, from, to time.Time) ([]DailyTotals, error)
}

// Analyzer folds a user's records into daily totals. Summaries are
// always recomputed from raw records, the daily_nutrition snapshot is
// only a byproduct read by the summary history.
type Analyzer struct {
	repo analyzerRepo
}

func NewAnalyzer(repo analyzerRepo) *Analyzer {
	return &Analyzer{
		repo: repo,
	}
}

// DailySummary computes the totals of the UTC calendar day of date.
func (a *Analyzer) DailySummary(ctx context.Context, userID string, date time.Time) (_ *DailySummary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "wellness.dailySummary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	dayStart := DayOf(date)
	dayEnd := dayStart.Add(24 * time.Hour)
	records, err := a.repo.List(ctx, userID, ListParams{
		From: &dayStart,
		To:   &dayEnd,
	})
	if err != nil {
		return nil, err
	}

	summary := &DailySummary{
		Date:    dayStart.Format(time.DateOnly),
		Records: records,
	}
	for _, r := range records {
		switch r.Type {
		case TypeMeal:
			summary.CaloriesIn += r.Metrics.Calories()
		case TypeActivity:
			summary.CaloriesOut += r.Metrics.Calories()
			summary.Steps += r.Metrics.Quantity()
			summary.XP += r.Metrics.XPEarned()
		case TypeSleep:
			summary.SleepHours += r.Metrics.Duration() / 60
			summary.XP += r.Metrics.XPEarned()
		default:
			// unknown types contribute no totals but stay in the record list
		}
	}
	summary.NetCalories = summary.CaloriesIn - summary.CaloriesOut

	if len(records) > 0 {
		// refresh the snapshot, a failure here never fails the summary
		if upsertErr := a.repo.UpsertDailyTotals(ctx, DailyTotals{
			Date:   dayStart,
			UserID: userID,
			Totals: summary.SummaryTotals,
		}); upsertErr != nil {
			log.Errorf("upsert daily totals for user %s, day %s: %s", userID, summary.Date, upsertErr)
		}
	}

	span.SetAttributes(attribute.Int("records.count", len(records)))
	return summary, nil
}

// SummaryHistory returns the stored daily totals snapshots within the
// inclusive [from, to] day range, oldest first.
func (a *Analyzer) SummaryHistory(ctx context.Context, userID string, from, to time.Time) (_ []DailyTotals, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "wellness.summaryHistory")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	history, err := a.repo.ListDailyTotals(ctx, userID, DayOf(from), DayOf(to))
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []DailyTotals{}
	}
	return history, nil
}
