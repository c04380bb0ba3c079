package wellness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitsync/internal/auth"
	"github.com/2beens/fitsync/internal/telemetry/metrics"
	"github.com/2beens/fitsync/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type recordsRepo interface {
	Add(ctx context.Context, record Record) (*Record, error)
	List(ctx context.Context, userID string, params ListParams) ([]Record, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
}

type Handler struct {
	repo     recordsRepo
	migrator *Migrator
	analyzer *Analyzer
	metrics  *metrics.Manager
}

func NewHandler(
	repo recordsRepo,
	migrator *Migrator,
	analyzer *Analyzer,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:     repo,
		migrator: migrator,
		analyzer: analyzer,
		metrics:  metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/storage/migrate", handler.HandleMigrate).Methods("POST", "OPTIONS").Name("migrate-records")
	router.HandleFunc("/storage/{userId}/record", handler.HandleAdd).Methods("POST", "OPTIONS").Name("new-record")
	router.HandleFunc("/storage/{userId}/records", handler.HandleList).Methods("GET", "OPTIONS").Name("list-records")
	router.HandleFunc("/storage/{userId}/record/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-record")
	router.HandleFunc("/storage/{userId}/daily-summary", handler.HandleDailySummary).Methods("GET", "OPTIONS").Name("daily-summary")
	router.HandleFunc("/storage/{userId}/summary-history", handler.HandleSummaryHistory).Methods("GET", "OPTIONS").Name("summary-history")
}

// sessionUser checks that the path user matches the session user.
// Writes the error response itself and returns false on mismatch.
func sessionUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	pathUserID := mux.Vars(r)["userId"]
	sessionUserID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return "", false
	}
	if pathUserID != "" && pathUserID != sessionUserID {
		log.Tracef("[wellness handler] user %s tried to access storage of %s", sessionUserID, pathUserID)
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return sessionUserID, true
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var record Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		log.Errorf("add record failed, decode json error: %s", err)
		http.Error(w, "error, invalid record json", http.StatusBadRequest)
		return
	}
	if record.Type == "" {
		http.Error(w, "error, record type empty", http.StatusBadRequest)
		return
	}
	if record.Timestamp.IsZero() {
		http.Error(w, "error, record timestamp empty", http.StatusBadRequest)
		return
	}

	record.UserID = userID
	addedRecord, err := handler.repo.Add(r.Context(), record)
	if err != nil {
		log.Errorf("failed to add record for user %s: %s", userID, err)
		http.Error(w, "error, failed to add record", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterRecords.Inc()

	recordJson, err := json.Marshal(addedRecord)
	if err != nil {
		log.Errorf("marshal added record: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, recordJson, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var params ListParams
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			http.Error(w, "error, invalid limit", http.StatusBadRequest)
			return
		}
		params.Limit = &limit
	}
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		from, err := parseInstant(fromStr)
		if err != nil {
			http.Error(w, "error, invalid from instant", http.StatusBadRequest)
			return
		}
		params.From = &from
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		to, err := parseInstant(toStr)
		if err != nil {
			http.Error(w, "error, invalid to instant", http.StatusBadRequest)
			return
		}
		params.To = &to
	}

	records, err := handler.repo.List(r.Context(), userID, params)
	if err != nil {
		log.Errorf("list records for user %s: %s", userID, err)
		http.Error(w, "failed to get records", http.StatusInternalServerError)
		return
	}

	if len(records) == 0 {
		records = []Record{}
	}

	recordsJson, err := json.Marshal(records)
	if err != nil {
		log.Errorf("marshal records error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resJson := fmt.Sprintf(`{"records": %s, "total": %d}`, recordsJson, len(records))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, []byte(resJson))
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	deleted, err := handler.repo.Delete(r.Context(), userID, id)
	if err != nil {
		log.Errorf("failed to delete record %s for user %s: %s", id, userID, err)
		http.Error(w, "error, record not deleted, internal server error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "error, record not found", http.StatusNotFound)
		return
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%s", id))
}

func (handler *Handler) HandleDailySummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	date := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		var err error
		if date, err = parseInstant(dateStr); err != nil {
			http.Error(w, "error, invalid date", http.StatusBadRequest)
			return
		}
	}

	summary, err := handler.analyzer.DailySummary(r.Context(), userID, date)
	if err != nil {
		log.Errorf("daily summary for user %s: %s", userID, err)
		http.Error(w, "failed to get daily summary", http.StatusInternalServerError)
		return
	}

	if summary.Records == nil {
		summary.Records = []Record{}
	}
	summaryJson, err := json.Marshal(summary)
	if err != nil {
		log.Errorf("marshal daily summary: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, summaryJson)
}

func (handler *Handler) HandleSummaryHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" || toStr == "" {
		http.Error(w, "error, from and to dates required", http.StatusBadRequest)
		return
	}
	from, err := parseInstant(fromStr)
	if err != nil {
		http.Error(w, "error, invalid from date", http.StatusBadRequest)
		return
	}
	to, err := parseInstant(toStr)
	if err != nil {
		http.Error(w, "error, invalid to date", http.StatusBadRequest)
		return
	}

	history, err := handler.analyzer.SummaryHistory(r.Context(), userID, from, to)
	if err != nil {
		log.Errorf("summary history for user %s: %s", userID, err)
		http.Error(w, "failed to get summary history", http.StatusInternalServerError)
		return
	}

	historyJson, err := json.Marshal(history)
	if err != nil {
		log.Errorf("marshal summary history: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	resJson := fmt.Sprintf(`{"history": %s, "total": %d}`, historyJson, len(history))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, []byte(resJson))
}

type migrateRequest struct {
	Records []Record `json:"records"`
}

func (handler *Handler) HandleMigrate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var migrateReq migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&migrateReq); err != nil {
		log.Errorf("migrate failed, decode json error: %s", err)
		http.Error(w, "error, invalid migration json", http.StatusBadRequest)
		return
	}

	outcome := handler.migrator.Migrate(r.Context(), userID, migrateReq.Records)

	log.Printf(
		"migration for user %s done: processed %d, inserted %d, duplicates %d, errors %d",
		userID, outcome.TotalProcessed, outcome.TotalInserted,
		outcome.DuplicatesSkipped, len(outcome.Errors),
	)

	outcomeJson, err := json.Marshal(outcome)
	if err != nil {
		log.Errorf("marshal migration outcome: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, outcomeJson)
}

// parseInstant accepts both a full RFC3339 instant and a bare
// ISO calendar date.
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("unrecognized instant format")
}
