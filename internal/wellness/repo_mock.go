package wellness

import (
	"context"
	"errors"
	"sort"
	"time"
)

// repoMock is an in-memory repo used across the package tests. It
// mirrors the postgres repo semantics: insert, insert-or-ignore by id,
// descending list, owner-scoped delete and the totals snapshot.
type repoMock struct {
	records     map[string]*Record
	dailyTotals map[string]DailyTotals

	failAdds           bool
	failFingerprintFor string
}

func NewMockRepo() *repoMock {
	return &repoMock{
		records:     make(map[string]*Record),
		dailyTotals: make(map[string]DailyTotals),
	}
}

func totalsKey(userID string, day time.Time) string {
	return userID + "||" + day.Format(time.DateOnly)
}

func (r *repoMock) Add(_ context.Context, record Record) (*Record, error) {
	if r.failAdds {
		return nil, errors.New("storage fault")
	}
	if record.ID == "" {
		record.ID = NewRecordID(time.Now())
	}
	record.Timestamp = record.Timestamp.UTC()
	r.records[record.ID] = &record
	delete(r.dailyTotals, totalsKey(record.UserID, DayOf(record.Timestamp)))
	return &record, nil
}

func (r *repoMock) InsertIfAbsent(_ context.Context, record Record) (bool, error) {
	if r.failAdds {
		return false, errors.New("storage fault")
	}
	if record.ID == "" {
		record.ID = NewRecordID(time.Now())
	}
	if _, ok := r.records[record.ID]; ok {
		return false, nil
	}
	record.Timestamp = record.Timestamp.UTC()
	r.records[record.ID] = &record
	delete(r.dailyTotals, totalsKey(record.UserID, DayOf(record.Timestamp)))
	return true, nil
}

func (r *repoMock) List(_ context.Context, userID string, params ListParams) ([]Record, error) {
	var records []Record
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if params.From != nil && rec.Timestamp.Before(*params.From) {
			continue
		}
		if params.To != nil && rec.Timestamp.After(*params.To) {
			continue
		}
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if params.Limit != nil && len(records) > *params.Limit {
		records = records[:*params.Limit]
	}
	return records, nil
}

func (r *repoMock) Delete(_ context.Context, userID, id string) (bool, error) {
	rec, ok := r.records[id]
	if !ok || rec.UserID != userID {
		return false, nil
	}
	delete(r.records, id)
	delete(r.dailyTotals, totalsKey(userID, DayOf(rec.Timestamp)))
	return true, nil
}

func (r *repoMock) FindByFingerprint(_ context.Context, fp Fingerprint) (bool, error) {
	if r.failFingerprintFor != "" && r.failFingerprintFor == fp.Type {
		return false, errors.New("storage fault")
	}
	for _, rec := range r.records {
		if rec.Fingerprint() == fp {
			return true, nil
		}
	}
	return false, nil
}

func (r *repoMock) UpsertDailyTotals(_ context.Context, totals DailyTotals) error {
	r.dailyTotals[totalsKey(totals.UserID, totals.Date)] = totals
	return nil
}

func (r *repoMock) ListDailyTotals(_ context.Context, userID string, from, to time.Time) ([]DailyTotals, error) {
	var allTotals []DailyTotals
	for _, t := range r.dailyTotals {
		if t.UserID != userID || t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		allTotals = append(allTotals, t)
	}
	sort.Slice(allTotals, func(i, j int) bool {
		return allTotals[i].Date.Before(allTotals[j].Date)
	})
	return allTotals, nil
}
