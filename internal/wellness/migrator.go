package wellness

import (
	"context"
	"fmt"
	"sync"

	"github.com/2beens/fitsync/internal/telemetry/metrics"
	"github.com/2beens/fitsync/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type migratorRepo interface {
	FindByFingerprint(ctx context.Context, fp Fingerprint) (bool, error)
	InsertIfAbsent(ctx context.Context, record Record) (bool, error)
}

// Migrator bulk-ingests client-asserted record batches exactly once.
// Batches of the same user are serialized through a per-user lock so
// two concurrent migrations cannot both pass the fingerprint check
// before either insert lands.
type Migrator struct {
	repo    migratorRepo
	metrics *metrics.Manager

	mutexesMux sync.Mutex
	userMutex  map[string]*sync.Mutex
}

func NewMigrator(repo migratorRepo, metricsManager *metrics.Manager) *Migrator {
	return &Migrator{
		repo:      repo,
		metrics:   metricsManager,
		userMutex: make(map[string]*sync.Mutex),
	}
}

func (m *Migrator) lockForUser(userID string) *sync.Mutex {
	m.mutexesMux.Lock()
	defer m.mutexesMux.Unlock()
	mu, ok := m.userMutex[userID]
	if !ok {
		mu = &sync.Mutex{}
		m.userMutex[userID] = mu
	}
	return mu
}

// Migrate processes the batch sequentially, in input order. A bad
// record is recorded in the outcome errors and never aborts the batch.
func (m *Migrator) Migrate(ctx context.Context, userID string, records []Record) (outcome MigrationOutcome) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "wellness.migrate")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(records)))

	userMu := m.lockForUser(userID)
	userMu.Lock()
	defer userMu.Unlock()

	outcome.Errors = []string{}
	for _, record := range records {
		outcome.TotalProcessed++

		record.UserID = userID
		if err := m.processOne(ctx, record, &outcome); err != nil {
			outcome.Errors = append(
				outcome.Errors,
				fmt.Sprintf("error processing record %s: %s", record.ID, err),
			)
			log.Errorf("migrate record %s for user %s: %s", record.ID, userID, err)
		}
	}

	m.metrics.CounterMigratedRecords.Add(float64(outcome.TotalInserted))
	m.metrics.CounterDuplicatesSkipped.Add(float64(outcome.DuplicatesSkipped))

	span.SetAttributes(
		attribute.Int("batch.inserted", outcome.TotalInserted),
		attribute.Int("batch.duplicates", outcome.DuplicatesSkipped),
		attribute.Int("batch.errors", len(outcome.Errors)),
	)
	return outcome
}

func (m *Migrator) processOne(ctx context.Context, record Record, outcome *MigrationOutcome) error {
	if record.Type == "" {
		return fmt.Errorf("record type missing")
	}
	if record.Timestamp.IsZero() {
		return fmt.Errorf("record timestamp missing")
	}

	found, err := m.repo.FindByFingerprint(ctx, record.Fingerprint())
	if err != nil {
		return fmt.Errorf("fingerprint check: %w", err)
	}
	if found {
		outcome.DuplicatesSkipped++
		return nil
	}

	inserted, err := m.repo.InsertIfAbsent(ctx, record)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if inserted {
		outcome.TotalInserted++
	} else {
		// fingerprint missed but the id already exists in the store
		outcome.IDCollisions++
	}
	return nil
}
