package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/pkg/platform/sentinel"
	"github.com/unstoppabledomains/nomulus/pkg/requestcontext"
)

// JSONB key names the poll-message queries filter on. flush marshals
// entities with their struct JSON tags, so these must be the
// models.PollMessage tags, not the Go field names.
const (
	pollPayloadRegistrarID = "registrar_id"
	pollPayloadEventTime   = "event_time"
)

var postgresSchema = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS entities (
    kind       TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    payload    JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (kind, id)
);

CREATE INDEX IF NOT EXISTS entities_poll_registrar_idx
    ON entities ((payload->>'%s'), (payload->>'%s'))
    WHERE kind = 'poll-message';
`, pollPayloadRegistrarID, pollPayloadEventTime)

// serializationFailure is the SQLSTATE Postgres raises when a serializable
// transaction cannot be retried safely by the server.
const serializationFailure = "40001"

const maxTxAttempts = 3

// Postgres stores entities as one JSONB row per key and runs every flow
// inside a SERIALIZABLE transaction, retrying on serialization failures.
type Postgres struct {
	db    *sql.DB
	clock Clock
}

// PostgresOption configures a Postgres store.
type PostgresOption func(*Postgres)

// WithPostgresClock overrides the wall clock.
func WithPostgresClock(clock Clock) PostgresOption {
	return func(p *Postgres) { p.clock = clock }
}

// NewPostgres wraps an open connection pool and ensures the schema exists.
func NewPostgres(ctx context.Context, db *sql.DB, opts ...PostgresOption) (*Postgres, error) {
	p := &Postgres{db: db, clock: SystemClock{}}
	for _, opt := range opts {
		opt(p)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	now, ok := requestcontext.Time(ctx)
	if !ok {
		now = p.clock.Now()
	}
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := p.runOnce(ctx, now, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("transaction retries exhausted: %w", lastErr)
}

func (p *Postgres) runOnce(ctx context.Context, now time.Time, fn func(tx Transaction) error) error {
	sqlTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &postgresTx{sqlTx: sqlTx, now: now}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := tx.flush(ctx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == serializationFailure
}

type postgresTx struct {
	sqlTx   *sql.Tx
	now     time.Time
	puts    []models.Entity
	deletes []models.Key
}

func (tx *postgresTx) Now() time.Time { return tx.now }

func (tx *postgresTx) Load(ctx context.Context, key models.Key) (models.Entity, error) {
	// Staged writes win over the table, giving read-your-writes inside
	// the transaction.
	for i := len(tx.puts) - 1; i >= 0; i-- {
		if tx.puts[i].EntityKey() == key {
			return tx.puts[i], nil
		}
	}
	for _, deleted := range tx.deletes {
		if deleted == key {
			return nil, sentinel.ErrNotFound
		}
	}
	var payload []byte
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT payload FROM entities WHERE kind = $1 AND id = $2 FOR UPDATE`,
		string(key.Kind), key.ID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return decodeEntity(key.Kind, payload)
}

func (tx *postgresTx) Put(entities ...models.Entity) {
	tx.puts = append(tx.puts, entities...)
}

func (tx *postgresTx) Delete(keys ...models.Key) {
	tx.deletes = append(tx.deletes, keys...)
}

func (tx *postgresTx) PendingPollMessages(ctx context.Context, registrarID string) ([]models.PollMessage, error) {
	query := fmt.Sprintf(`SELECT payload FROM entities
		 WHERE kind = $1 AND payload->>'%s' = $2
		 ORDER BY payload->>'%s'`, pollPayloadRegistrarID, pollPayloadEventTime)
	rows, err := tx.sqlTx.QueryContext(ctx, query,
		string(models.KindPollMessage), registrarID,
	)
	if err != nil {
		return nil, fmt.Errorf("query poll messages: %w", err)
	}
	defer rows.Close()

	var out []models.PollMessage
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan poll message: %w", err)
		}
		var pm models.PollMessage
		if err := json.Unmarshal(payload, &pm); err != nil {
			return nil, fmt.Errorf("decode poll message: %w", err)
		}
		if pm.EventTime.After(tx.now) {
			continue
		}
		out = append(out, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate poll messages: %w", err)
	}
	return mergeStagedPollMessages(out, tx.puts, tx.deletes, registrarID, tx.now), nil
}

// mergeStagedPollMessages overlays the transaction's staged writes on the
// committed rows so callers see a consistent view mid-flow.
func mergeStagedPollMessages(committed []models.PollMessage, puts []models.Entity, deletes []models.Key, registrarID string, now time.Time) []models.PollMessage {
	deleted := make(map[models.Key]struct{}, len(deletes))
	for _, key := range deletes {
		deleted[key] = struct{}{}
	}
	staged := make(map[models.Key]models.PollMessage)
	for _, e := range puts {
		if pm, ok := e.(models.PollMessage); ok {
			staged[pm.EntityKey()] = pm
		}
	}
	var out []models.PollMessage
	for _, pm := range committed {
		key := pm.EntityKey()
		if _, gone := deleted[key]; gone {
			continue
		}
		if override, ok := staged[key]; ok {
			pm = override
			delete(staged, key)
		}
		if pm.RegistrarID != registrarID || pm.EventTime.After(now) {
			continue
		}
		out = append(out, pm)
	}
	for _, pm := range staged {
		if pm.RegistrarID != registrarID || pm.EventTime.After(now) {
			continue
		}
		if _, gone := deleted[pm.EntityKey()]; gone {
			continue
		}
		out = append(out, pm)
	}
	sortPollMessages(out)
	return out
}

func sortPollMessages(msgs []models.PollMessage) {
	for i := 1; i < len(msgs); i++ {
		for j := i; j > 0 && msgs[j].EventTime.Before(msgs[j-1].EventTime); j-- {
			msgs[j], msgs[j-1] = msgs[j-1], msgs[j]
		}
	}
}

func (tx *postgresTx) flush(ctx context.Context) error {
	for _, key := range tx.deletes {
		if _, err := tx.sqlTx.ExecContext(ctx,
			`DELETE FROM entities WHERE kind = $1 AND id = $2`,
			string(key.Kind), key.ID,
		); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	for _, e := range tx.puts {
		key := e.EntityKey()
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if _, err := tx.sqlTx.ExecContext(ctx,
			`INSERT INTO entities (kind, id, payload, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (kind, id) DO UPDATE
			 SET payload = EXCLUDED.payload, updated_at = now()`,
			string(key.Kind), key.ID, payload,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
	}
	return nil
}

func decodeEntity(kind models.Kind, payload []byte) (models.Entity, error) {
	decode := func(v models.Entity) (models.Entity, error) {
		if err := json.Unmarshal(payload, v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return v, nil
	}
	switch kind {
	case models.KindDomain:
		var v models.Domain
		if _, err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case models.KindContact:
		var v models.Contact
		if _, err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case models.KindRegistrar:
		var v models.Registrar
		if _, err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case models.KindBillingEvent:
		var v models.BillingEvent
		if _, err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case models.KindBillingRecurrence:
		var v models.BillingRecurrence
		if _, err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case models.KindBillingCancellation:
		var v models.BillingCancellation
		if _, err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case models.KindPollMessage:
		var v models.PollMessage
		if _, err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case models.KindHistoryEntry:
		var v models.HistoryEntry
		if _, err := decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
}
