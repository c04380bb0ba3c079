package wellness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/2beens/fitsync/internal/telemetry/tracing"
	"github.com/2beens/fitsync/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	// ErrNoRowsAffected signals a storage layer fault: an insert that
	// reported no effect where one was expected.
	ErrNoRowsAffected = errors.New("no rows affected")
)

type ListParams struct {
	From  *time.Time
	To    *time.Time
	Limit *int
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// NewRecordID makes a caller-independent record id. Collisions are
// possible in theory, the id-level insert-or-ignore guard in the
// migration path covers that.
func NewRecordID(now time.Time) string {
	randPart, err := pkg.GenerateRandomString(9)
	if err != nil {
		// crypto/rand failing is a broken host, fall back to the clock
		randPart = strconv.FormatInt(now.UnixNano(), 36)
	}
	return fmt.Sprintf("record_%d_%s", now.UnixMilli(), randPart)
}

// Add stores the record and invalidates the daily totals snapshot of
// its day, both within one transaction. Assigns an id when absent.
func (r *Repo) Add(ctx context.Context, record Record) (_ *Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.wellness.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if record.ID == "" {
		record.ID = NewRecordID(time.Now())
	}
	record.Timestamp = record.Timestamp.UTC()

	payloadJson, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record payload: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(
		ctx,
		`INSERT INTO records
				(id, user_id, type, category, payload, timestamp, calories, xp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`,
		record.ID, record.UserID, record.Type, record.Category,
		payloadJson, record.Timestamp, record.Metrics.Calories(), record.Metrics.XPEarned(),
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNoRowsAffected
	}

	if err = invalidateDailyTotalsTx(ctx, tx, record.UserID, DayOf(record.Timestamp)); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	span.SetAttributes(attribute.String("record.id", record.ID))
	return &record, nil
}

// InsertIfAbsent is the insert-or-ignore primitive of the migration
// path, keyed by primary id. Reports whether a row was inserted.
func (r *Repo) InsertIfAbsent(ctx context.Context, record Record) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.wellness.insertIfAbsent")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if record.ID == "" {
		record.ID = NewRecordID(time.Now())
	}
	record.Timestamp = record.Timestamp.UTC()

	payloadJson, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("marshal record payload: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(
		ctx,
		`INSERT INTO records
				(id, user_id, type, category, payload, timestamp, calories, xp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING;`,
		record.ID, record.UserID, record.Type, record.Category,
		payloadJson, record.Timestamp, record.Metrics.Calories(), record.Metrics.XPEarned(),
	)
	if err != nil {
		return false, err
	}

	inserted := tag.RowsAffected() > 0
	if inserted {
		if err = invalidateDailyTotalsTx(ctx, tx, record.UserID, DayOf(record.Timestamp)); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	span.SetAttributes(attribute.Bool("record.inserted", inserted))
	return inserted, nil
}

// List returns the user's records ordered by timestamp descending.
// Both range bounds are inclusive.
func (r *Repo) List(ctx context.Context, userID string, params ListParams) (_ []Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.wellness.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	query := `
		SELECT payload FROM records
		WHERE user_id = $1
			AND ($2::timestamptz IS NULL OR timestamp >= $2)
			AND ($3::timestamptz IS NULL OR timestamp <= $3)
		ORDER BY timestamp DESC`
	args := []any{userID, params.From, params.To}
	if params.Limit != nil {
		query += ` LIMIT $4`
		args = append(args, *params.Limit)
	}

	rows, err := r.db.Query(ctx, query+";", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var payloadJson []byte
		if err := rows.Scan(&payloadJson); err != nil {
			return nil, err
		}
		var record Record
		if err := json.Unmarshal(payloadJson, &record); err != nil {
			return nil, fmt.Errorf("unmarshal record payload: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("records.count", len(records)))
	return records, nil
}

// Delete removes the record scoped by both owner and id. A miss is not
// an error, just a false return.
func (r *Repo) Delete(ctx context.Context, userID, id string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.wellness.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("record.id", id))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var recordDay time.Time
	err = tx.QueryRow(
		ctx,
		`DELETE FROM records WHERE user_id = $1 AND id = $2 RETURNING timestamp;`,
		userID, id,
	).Scan(&recordDay)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		if err = tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("commit tx: %w", err)
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err = invalidateDailyTotalsTx(ctx, tx, userID, DayOf(recordDay)); err != nil {
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	return true, nil
}

// FindByFingerprint reports whether any stored record matches the
// duplicate fingerprint of the migration engine.
func (r *Repo) FindByFingerprint(ctx context.Context, fp Fingerprint) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.wellness.findByFingerprint")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("fingerprint", fp.String()))

	var found bool
	err = r.db.QueryRow(
		ctx,
		`SELECT EXISTS (
			SELECT 1 FROM records
			WHERE user_id = $1
				AND type = $2
				AND date(timestamp AT TIME ZONE 'UTC') = $3
				AND calories = $4
		);`,
		fp.UserID, fp.Type, fp.Day, fp.Calories,
	).Scan(&found)
	if err != nil {
		return false, err
	}

	return found, nil
}

// UpsertDailyTotals stores the precomputed totals snapshot for a day.
func (r *Repo) UpsertDailyTotals(ctx context.Context, totals DailyTotals) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.wellness.upsertDailyTotals")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	totalsJson, err := json.Marshal(totals.Totals)
	if err != nil {
		return fmt.Errorf("marshal daily totals: %w", err)
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO daily_nutrition (date, user_id, totals, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (date, user_id) DO UPDATE
				SET totals = EXCLUDED.totals, created_at = NOW();`,
		totals.Date, totals.UserID, totalsJson,
	)
	return err
}

// ListDailyTotals returns the stored totals snapshots of a user within
// the inclusive [from, to] day range, oldest first.
func (r *Repo) ListDailyTotals(ctx context.Context, userID string, from, to time.Time) (_ []DailyTotals, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.wellness.listDailyTotals")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT date, totals FROM daily_nutrition
			WHERE user_id = $1 AND date >= $2 AND date <= $3
			ORDER BY date ASC;`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allTotals []DailyTotals
	for rows.Next() {
		var day time.Time
		var totalsJson []byte
		if err := rows.Scan(&day, &totalsJson); err != nil {
			return nil, err
		}
		var totals SummaryTotals
		if err := json.Unmarshal(totalsJson, &totals); err != nil {
			return nil, fmt.Errorf("unmarshal daily totals: %w", err)
		}
		allTotals = append(allTotals, DailyTotals{
			Date:   day,
			UserID: userID,
			Totals: totals,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return allTotals, nil
}

func invalidateDailyTotalsTx(ctx context.Context, tx pgx.Tx, userID string, day time.Time) error {
	_, err := tx.Exec(
		ctx,
		`DELETE FROM daily_nutrition WHERE user_id = $1 AND date = $2;`,
		userID, day,
	)
	return err
}
