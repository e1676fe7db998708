// oreon/sentinel · watchthelight <wtl>

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oreonproject/sentinel/pkg/threat"
)

// HistoryLimit bounds the persisted scan log. Inserting past the
// limit evicts the oldest entry.
const HistoryLimit = 100

// Store is the persistent event store: the bounded scan history, the
// aggregate stats row and the single current-threat slot. It is the
// only owner of this state; mutations are serialized and each
// history append updates stats in the same transaction.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp   REAL NOT NULL,
	url         TEXT NOT NULL,
	type        TEXT NOT NULL DEFAULT 'url',
	threat_level TEXT NOT NULL,
	score       INTEGER NOT NULL,
	indicators  TEXT NOT NULL DEFAULT '[]',
	action      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS stats (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	total_scans     INTEGER NOT NULL DEFAULT 0,
	threats_blocked INTEGER NOT NULL DEFAULT 0,
	last_updated    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS slots (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
INSERT OR IGNORE INTO stats (id) VALUES (1);
`

const slotCurrentThreat = "currentThreat"

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// Serialize writers at the connection level as well.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendHistory prepends an entry to the scan log and updates stats,
// atomically. The oldest entry is evicted once the log exceeds
// HistoryLimit. ThreatsBlocked counts explicitly blocked outcomes and
// HIGH-level scan verdicts.
func (s *Store) AppendHistory(entry threat.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	indicators, err := json.Marshal(entry.Indicators)
	if err != nil {
		return fmt.Errorf("encode indicators: %w", err)
	}
	if entry.Type == "" {
		entry.Type = "url"
	}

	_, err = tx.Exec(
		`INSERT INTO history (timestamp, url, type, threat_level, score, indicators, action, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp, entry.URL, entry.Type, string(entry.ThreatLevel),
		entry.Score, string(indicators), string(entry.Action), entry.Status,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	_, err = tx.Exec(
		`DELETE FROM history WHERE id NOT IN
		 (SELECT id FROM history ORDER BY id DESC LIMIT ?)`, HistoryLimit)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	blocked := 0
	if countsAsBlocked(entry) {
		blocked = 1
	}
	_, err = tx.Exec(
		`UPDATE stats SET total_scans = total_scans + 1,
		 threats_blocked = threats_blocked + ?, last_updated = ? WHERE id = 1`,
		blocked, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}

	return tx.Commit()
}

// countsAsBlocked mirrors the surface rules: an explicit block always
// counts, and a HIGH verdict counts at scan time. Allowing a HIGH
// threat does not count.
func countsAsBlocked(entry threat.HistoryEntry) bool {
	if entry.Action == threat.ActionBlocked {
		return true
	}
	return entry.Action == threat.ActionScanned && entry.ThreatLevel == threat.LevelHigh
}

// History returns the scan log, newest first.
func (s *Store) History() ([]threat.HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, url, type, threat_level, score, indicators, action, status
		 FROM history ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []threat.HistoryEntry
	for rows.Next() {
		var e threat.HistoryEntry
		var level, action, indicators string
		if err := rows.Scan(&e.Timestamp, &e.URL, &e.Type, &level, &e.Score,
			&indicators, &action, &e.Status); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.ThreatLevel = threat.Level(level)
		e.Action = threat.Action(action)
		if err := json.Unmarshal([]byte(indicators), &e.Indicators); err != nil {
			return nil, fmt.Errorf("decode indicators: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns the aggregate counters.
func (s *Store) Stats() (threat.Stats, error) {
	var st threat.Stats
	err := s.db.QueryRow(
		`SELECT total_scans, threats_blocked, last_updated FROM stats WHERE id = 1`).
		Scan(&st.TotalScans, &st.ThreatsBlocked, &st.LastUpdated)
	if err != nil {
		return st, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

// SetCurrentThreat stages an event for the warning view, overwriting
// any previous one.
func (s *Store) SetCurrentThreat(evt *threat.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode threat: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO slots (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		slotCurrentThreat, string(data))
	if err != nil {
		return fmt.Errorf("set current threat: %w", err)
	}
	return nil
}

// CurrentThreat returns the staged event, or nil when none is set.
func (s *Store) CurrentThreat() (*threat.Event, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT value FROM slots WHERE key = ?`, slotCurrentThreat).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current threat: %w", err)
	}
	var evt threat.Event
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, fmt.Errorf("decode threat: %w", err)
	}
	return &evt, nil
}
