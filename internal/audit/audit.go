// Package audit keeps an append-only record of credential issuance and
// account lookups. Records form a hash chain for tamper detection, so a
// reviewer can prove the issuance history was not edited after the fact.
//
// Only masked key material is ever written here. Secret keys and session
// tokens never reach this package.
package audit

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// EventType categorizes issuance log entries.
type EventType string

const (
	EventCredentialIssued EventType = "credential_issued"
	EventAccountLookup    EventType = "account_lookup"
	EventLookupMiss       EventType = "lookup_miss"
	EventBridgeHop        EventType = "bridge_hop"
	EventConfigFallback   EventType = "config_fallback"
)

const schema = `CREATE TABLE IF NOT EXISTS issuance_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp    TEXT NOT NULL,
	instance_id  TEXT NOT NULL,
	request_id   TEXT DEFAULT '',
	account_id   TEXT DEFAULT '',
	event_type   TEXT NOT NULL,
	detail       TEXT DEFAULT '{}',
	record_hash  TEXT NOT NULL
)`

// Open opens (or creates) the issuance database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening issuance db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating issuance schema: %w", err)
	}
	return db, nil
}

// Logger writes tamper-evident issuance records. One logger instance
// corresponds to one bot process; its instance id separates concurrent
// deployments sharing a database file.
type Logger struct {
	db         *sql.DB
	mu         sync.Mutex
	lastHash   string
	instanceID string
}

// NewLogger creates an issuance logger with a fresh instance id.
func NewLogger(db *sql.DB) (*Logger, error) {
	return NewLoggerForInstance(db, uuid.NewString())
}

// NewLoggerForInstance resumes the hash chain of an existing instance.
func NewLoggerForInstance(db *sql.DB, instanceID string) (*Logger, error) {
	al := &Logger{
		db:         db,
		instanceID: instanceID,
	}

	var lastHash sql.NullString
	err := db.QueryRow(
		"SELECT record_hash FROM issuance_log WHERE instance_id = ? ORDER BY id DESC LIMIT 1",
		instanceID,
	).Scan(&lastHash)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("recovering issuance chain: %w", err)
	}
	if lastHash.Valid {
		al.lastHash = lastHash.String
	}

	return al, nil
}

// InstanceID returns the id new records are written under.
func (al *Logger) InstanceID() string { return al.instanceID }

// Log appends an issuance event. The record is immutable once written.
func (al *Logger) Log(eventType EventType, requestID, accountID string, detail any) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	detailJSON, err := json.Marshal(detail)
	if err != nil {
		detailJSON = []byte(fmt.Sprintf(`{"error":"failed to marshal detail: %s"}`, err))
	}

	now := time.Now().UTC()
	recordHash := al.computeHash(now, eventType, accountID, string(detailJSON))

	_, err = al.db.Exec(
		`INSERT INTO issuance_log (timestamp, instance_id, request_id, account_id, event_type, detail, record_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		now.Format(time.RFC3339Nano),
		al.instanceID,
		requestID,
		accountID,
		string(eventType),
		string(detailJSON),
		recordHash,
	)
	if err != nil {
		return fmt.Errorf("inserting issuance record: %w", err)
	}

	al.lastHash = recordHash
	return nil
}

// computeHash links the chain: SHA-256(previousHash + timestamp + eventType + accountID + detail)
func (al *Logger) computeHash(ts time.Time, eventType EventType, accountID, detail string) string {
	data := al.lastHash + ts.Format(time.RFC3339Nano) + string(eventType) + accountID + detail
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

// Verify checks the integrity of the issuance chain for one instance.
func Verify(db *sql.DB, instanceID string) (bool, int, error) {
	rows, err := db.Query(
		"SELECT timestamp, event_type, account_id, detail, record_hash FROM issuance_log WHERE instance_id = ? ORDER BY id ASC",
		instanceID,
	)
	if err != nil {
		return false, 0, fmt.Errorf("querying issuance log: %w", err)
	}
	defer rows.Close()

	var previousHash string
	count := 0

	for rows.Next() {
		var ts, eventType, accountID, detail, recordHash string
		if err := rows.Scan(&ts, &eventType, &accountID, &detail, &recordHash); err != nil {
			return false, count, fmt.Errorf("scanning issuance row: %w", err)
		}

		data := previousHash + ts + eventType + accountID + detail
		h := sha256.Sum256([]byte(data))
		expected := hex.EncodeToString(h[:])

		if expected != recordHash {
			return false, count, fmt.Errorf("issuance chain broken at record %d", count+1)
		}

		previousHash = recordHash
		count++
	}

	return true, count, rows.Err()
}
