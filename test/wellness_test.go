package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/2beens/fitsync/internal/wellness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) doJSON(t *testing.T, req *http.Request, expectedStatusCode int, out any) {
	t.Helper()
	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, expectedStatusCode, resp.StatusCode)
	if out == nil {
		return
	}
	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(respBytes, out))
}

func (s *IntegrationTestSuite) TestWellnessRecordsCRUD() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	user := doSignup(ctx, t, "records-crud@fitsync.io", "testpass")
	storagePath := "/storage/" + user.UserID

	addBody := []byte(`{
		"type": "meal",
		"category": "breakfast",
		"timestamp": "2024-03-10T08:00:00Z",
		"metrics": {"calories": 350},
		"metadata": {"confidence": 0.9, "tags": ["homemade"]}
	}`)

	var added wellness.Record
	s.doJSON(t,
		storageRequest(ctx, t, "POST", storagePath+"/record", user.Token, addBody),
		http.StatusCreated, &added,
	)
	require.NotEmpty(t, added.ID)
	assert.Equal(t, user.UserID, added.UserID)
	assert.Equal(t, float64(350), added.Metrics.Calories())

	// full round trip through the opaque payload
	var listResp struct {
		Records []wellness.Record `json:"records"`
		Total   int               `json:"total"`
	}
	s.doJSON(t,
		storageRequest(ctx, t, "GET", storagePath+"/records", user.Token, nil),
		http.StatusOK, &listResp,
	)
	require.Equal(t, 1, listResp.Total)
	got := listResp.Records[0]
	assert.Equal(t, added.ID, got.ID)
	assert.Equal(t, "breakfast", got.Category)
	assert.Equal(t, 0.9, got.Metadata["confidence"])

	// another user cannot read or delete it
	intruder := doSignup(ctx, t, "records-intruder@fitsync.io", "testpass")
	s.doJSON(t,
		storageRequest(ctx, t, "GET", storagePath+"/records", intruder.Token, nil),
		http.StatusForbidden, nil,
	)
	s.doJSON(t,
		storageRequest(ctx, t, "DELETE", storagePath+"/record/"+added.ID, intruder.Token, nil),
		http.StatusForbidden, nil,
	)

	// delete and a second delete is a miss
	s.doJSON(t,
		storageRequest(ctx, t, "DELETE", storagePath+"/record/"+added.ID, user.Token, nil),
		http.StatusOK, nil,
	)
	s.doJSON(t,
		storageRequest(ctx, t, "DELETE", storagePath+"/record/"+added.ID, user.Token, nil),
		http.StatusNotFound, nil,
	)
}

func (s *IntegrationTestSuite) TestWellnessListFilters() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	user := doSignup(ctx, t, "records-filters@fitsync.io", "testpass")
	storagePath := "/storage/" + user.UserID
	day := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(
			`{"type": "meal", "timestamp": "%s", "metrics": {"calories": %d}}`,
			day.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), 100+i,
		)
		s.doJSON(t,
			storageRequest(ctx, t, "POST", storagePath+"/record", user.Token, []byte(body)),
			http.StatusCreated, nil,
		)
	}

	var listResp struct {
		Records []wellness.Record `json:"records"`
		Total   int               `json:"total"`
	}

	// descending order
	s.doJSON(t,
		storageRequest(ctx, t, "GET", storagePath+"/records", user.Token, nil),
		http.StatusOK, &listResp,
	)
	require.Equal(t, 5, listResp.Total)
	for i := 1; i < len(listResp.Records); i++ {
		assert.True(t, !listResp.Records[i-1].Timestamp.Before(listResp.Records[i].Timestamp))
	}

	// limit caps the result
	s.doJSON(t,
		storageRequest(ctx, t, "GET", storagePath+"/records?limit=2", user.Token, nil),
		http.StatusOK, &listResp,
	)
	assert.Equal(t, 2, listResp.Total)

	// inclusive range bounds
	from := day.Add(1 * time.Hour).Format(time.RFC3339)
	to := day.Add(3 * time.Hour).Format(time.RFC3339)
	s.doJSON(t,
		storageRequest(ctx, t, "GET",
			fmt.Sprintf("%s/records?from=%s&to=%s", storagePath, from, to), user.Token, nil),
		http.StatusOK, &listResp,
	)
	assert.Equal(t, 3, listResp.Total)
}

func (s *IntegrationTestSuite) TestDailySummary() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	user := doSignup(ctx, t, "summary@fitsync.io", "testpass")
	storagePath := "/storage/" + user.UserID

	records := []string{
		`{"type": "meal", "category": "breakfast", "timestamp": "2024-03-10T08:00:00Z", "metrics": {"calories": 350}}`,
		`{"type": "activity", "category": "running", "timestamp": "2024-03-10T17:00:00Z", "metrics": {"calories": 200, "quantity": 1000, "xpEarned": 25}}`,
		`{"type": "sleep", "timestamp": "2024-03-10T23:00:00Z", "metrics": {"duration": 420, "xpEarned": 10}}`,
		// next day, must not leak into the summary
		`{"type": "meal", "timestamp": "2024-03-11T08:00:00Z", "metrics": {"calories": 999}}`,
	}
	for _, body := range records {
		s.doJSON(t,
			storageRequest(ctx, t, "POST", storagePath+"/record", user.Token, []byte(body)),
			http.StatusCreated, nil,
		)
	}

	var summary wellness.DailySummary
	s.doJSON(t,
		storageRequest(ctx, t, "GET", storagePath+"/daily-summary?date=2024-03-10", user.Token, nil),
		http.StatusOK, &summary,
	)

	assert.Equal(t, "2024-03-10", summary.Date)
	assert.Equal(t, float64(350), summary.CaloriesIn)
	assert.Equal(t, float64(200), summary.CaloriesOut)
	assert.Equal(t, float64(150), summary.NetCalories)
	assert.Equal(t, float64(1000), summary.Steps)
	assert.Equal(t, float64(35), summary.XP)
	assert.Equal(t, float64(7), summary.SleepHours)
	assert.Len(t, summary.Records, 3)

	// summary history reads the refreshed snapshot
	var historyResp struct {
		History []wellness.DailyTotals `json:"history"`
		Total   int                    `json:"total"`
	}
	s.doJSON(t,
		storageRequest(ctx, t, "GET",
			storagePath+"/summary-history?from=2024-03-09&to=2024-03-11", user.Token, nil),
		http.StatusOK, &historyResp,
	)
	require.Equal(t, 1, historyResp.Total)
	assert.Equal(t, float64(350), historyResp.History[0].Totals.CaloriesIn)
}

func (s *IntegrationTestSuite) TestMigration() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	user := doSignup(ctx, t, "migration@fitsync.io", "testpass")

	migrateBody := []byte(`{"records": [
		{"id": "client_sleep_1", "type": "sleep", "timestamp": "2024-03-10T22:30:00Z", "metrics": {"duration": 420, "xpEarned": 10}},
		{"id": "client_meal_1", "type": "meal", "timestamp": "2024-03-10T08:00:00Z", "metrics": {"calories": 350}},
		{"id": "client_bad_1", "type": "", "timestamp": "2024-03-10T09:00:00Z"}
	]}`)

	var outcome wellness.MigrationOutcome
	s.doJSON(t,
		storageRequest(ctx, t, "POST", "/storage/migrate", user.Token, migrateBody),
		http.StatusOK, &outcome,
	)
	assert.Equal(t, 3, outcome.TotalProcessed)
	assert.Equal(t, 2, outcome.TotalInserted)
	assert.Equal(t, 0, outcome.DuplicatesSkipped)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "client_bad_1")

	// re-migrating the same batch with fresh ids inserts nothing
	remigrateBody := []byte(`{"records": [
		{"id": "resync_sleep_1", "type": "sleep", "timestamp": "2024-03-10T23:45:00Z", "metrics": {"duration": 420, "xpEarned": 10}},
		{"id": "resync_meal_1", "type": "meal", "timestamp": "2024-03-10T12:00:00Z", "metrics": {"calories": 350}}
	]}`)
	s.doJSON(t,
		storageRequest(ctx, t, "POST", "/storage/migrate", user.Token, remigrateBody),
		http.StatusOK, &outcome,
	)
	assert.Equal(t, 2, outcome.TotalProcessed)
	assert.Equal(t, 0, outcome.TotalInserted)
	assert.Equal(t, 2, outcome.DuplicatesSkipped)
	assert.Empty(t, outcome.Errors)

	// migrated records are visible through the regular list
	var listResp struct {
		Records []wellness.Record `json:"records"`
		Total   int               `json:"total"`
	}
	s.doJSON(t,
		storageRequest(ctx, t, "GET", "/storage/"+user.UserID+"/records", user.Token, nil),
		http.StatusOK, &listResp,
	)
	assert.Equal(t, 2, listResp.Total)
}

func (s *IntegrationTestSuite) TestMiscEndpoints() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", serverEndpoint+"/version", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "test-version-info", string(respBytes))
}
