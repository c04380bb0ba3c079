package wellness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzer_DailySummary(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepo()
	analyzer := NewAnalyzer(repo)
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := repo.Add(ctx, Record{
		UserID:    "user-1",
		Type:      TypeMeal,
		Category:  "breakfast",
		Timestamp: day.Add(8 * time.Hour),
		Metrics:   Metrics{"calories": 350},
	})
	require.NoError(t, err)
	_, err = repo.Add(ctx, Record{
		UserID:    "user-1",
		Type:      TypeActivity,
		Category:  "running",
		Timestamp: day.Add(17 * time.Hour),
		Metrics:   Metrics{"calories": 200, "quantity": 1000, "xpEarned": 25},
	})
	require.NoError(t, err)

	summary, err := analyzer.DailySummary(ctx, "user-1", day.Add(13*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "2024-03-10", summary.Date)
	assert.Equal(t, float64(350), summary.CaloriesIn)
	assert.Equal(t, float64(200), summary.CaloriesOut)
	assert.Equal(t, float64(150), summary.NetCalories)
	assert.Equal(t, float64(1000), summary.Steps)
	assert.Equal(t, float64(25), summary.XP)
	assert.Equal(t, float64(0), summary.SleepHours)

	// records ordered by timestamp descending
	require.Len(t, summary.Records, 2)
	assert.Equal(t, TypeActivity, summary.Records[0].Type)
	assert.Equal(t, TypeMeal, summary.Records[1].Type)
}

func TestAnalyzer_DailySummary_sleepAndUnknownTypes(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepo()
	analyzer := NewAnalyzer(repo)
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := repo.Add(ctx, Record{
		UserID:    "user-1",
		Type:      TypeSleep,
		Timestamp: day.Add(23 * time.Hour),
		Metrics:   Metrics{"duration": 420, "xpEarned": 10},
	})
	require.NoError(t, err)
	_, err = repo.Add(ctx, Record{
		UserID:    "user-1",
		Type:      "meditation",
		Timestamp: day.Add(7 * time.Hour),
		Metrics:   Metrics{"calories": 50, "duration": 20},
	})
	require.NoError(t, err)

	summary, err := analyzer.DailySummary(ctx, "user-1", day)
	require.NoError(t, err)

	assert.Equal(t, float64(7), summary.SleepHours)
	assert.Equal(t, float64(10), summary.XP)
	// unknown type contributes no totals but is in the record list
	assert.Equal(t, float64(0), summary.CaloriesIn)
	assert.Equal(t, float64(0), summary.CaloriesOut)
	assert.Len(t, summary.Records, 2)
}

func TestAnalyzer_DailySummary_negativeNetCalories(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepo()
	analyzer := NewAnalyzer(repo)
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := repo.Add(ctx, Record{
		UserID:    "user-1",
		Type:      TypeMeal,
		Timestamp: day.Add(8 * time.Hour),
		Metrics:   Metrics{"calories": 100},
	})
	require.NoError(t, err)
	_, err = repo.Add(ctx, Record{
		UserID:    "user-1",
		Type:      TypeActivity,
		Timestamp: day.Add(10 * time.Hour),
		Metrics:   Metrics{"calories": 600},
	})
	require.NoError(t, err)

	summary, err := analyzer.DailySummary(ctx, "user-1", day)
	require.NoError(t, err)
	assert.Equal(t, float64(-500), summary.NetCalories)
}

func TestAnalyzer_DailySummary_emptyDay(t *testing.T) {
	repo := NewMockRepo()
	analyzer := NewAnalyzer(repo)

	summary, err := analyzer.DailySummary(context.Background(), "user-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, SummaryTotals{}, summary.SummaryTotals)
	assert.Empty(t, summary.Records)
}

func TestAnalyzer_DailySummary_idempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepo()
	analyzer := NewAnalyzer(repo)
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := repo.Add(ctx, Record{
		UserID:    "user-1",
		Type:      TypeMeal,
		Timestamp: day.Add(8 * time.Hour),
		Metrics:   Metrics{"calories": 350},
	})
	require.NoError(t, err)

	first, err := analyzer.DailySummary(ctx, "user-1", day)
	require.NoError(t, err)
	second, err := analyzer.DailySummary(ctx, "user-1", day)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalyzer_SummaryHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepo()
	analyzer := NewAnalyzer(repo)
	day1 := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	_, err := repo.Add(ctx, Record{
		UserID:    "user-1",
		Type:      TypeMeal,
		Timestamp: day1.Add(8 * time.Hour),
		Metrics:   Metrics{"calories": 350},
	})
	require.NoError(t, err)
	_, err = repo.Add(ctx, Record{
		UserID:    "user-1",
		Type:      TypeMeal,
		Timestamp: day2.Add(8 * time.Hour),
		Metrics:   Metrics{"calories": 500},
	})
	require.NoError(t, err)

	// summaries refresh the snapshots the history is read from
	_, err = analyzer.DailySummary(ctx, "user-1", day1)
	require.NoError(t, err)
	_, err = analyzer.DailySummary(ctx, "user-1", day2)
	require.NoError(t, err)

	history, err := analyzer.SummaryHistory(ctx, "user-1", day1, day2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, day1, history[0].Date)
	assert.Equal(t, float64(350), history[0].Totals.CaloriesIn)
	assert.Equal(t, float64(500), history[1].Totals.CaloriesIn)
}

func TestAnalyzer_SummaryHistory_empty(t *testing.T) {
	repo := NewMockRepo()
	analyzer := NewAnalyzer(repo)

	history, err := analyzer.SummaryHistory(
		context.Background(), "user-1",
		time.Now().Add(-48*time.Hour), time.Now(),
	)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}
