package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/stealthsense/behaviortrace-agent/internal/analyzer"
	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS behavior_data(
	  id                        TEXT PRIMARY KEY,
	  session_id                TEXT    NOT NULL,
	  created_utc               INTEGER NOT NULL,
	  mouse_movements           TEXT    NOT NULL CHECK (json_valid(mouse_movements)),
	  click_patterns            TEXT    NOT NULL CHECK (json_valid(click_patterns)),
	  keystroke_patterns        TEXT    NOT NULL CHECK (json_valid(keystroke_patterns)),
	  scroll_patterns           TEXT    NOT NULL CHECK (json_valid(scroll_patterns)),
	  fingerprint               TEXT    NOT NULL CHECK (json_valid(fingerprint)),
	  user_agent                TEXT,
	  mouse_velocity_avg        REAL,
	  mouse_velocity_std        REAL,
	  click_frequency           REAL,
	  typing_rhythm_consistency REAL
	);
	CREATE INDEX IF NOT EXISTS idx_behavior_session ON behavior_data(session_id);
	CREATE INDEX IF NOT EXISTS idx_behavior_created ON behavior_data(created_utc);

	CREATE TABLE IF NOT EXISTS detection_logs(
	  id                 INTEGER PRIMARY KEY,
	  session_id         TEXT    NOT NULL,
	  created_utc        INTEGER NOT NULL,
	  prediction         TEXT    NOT NULL CHECK (prediction IN ('human','bot','unknown')),
	  confidence         REAL    NOT NULL,
	  action_type        TEXT,
	  page_url           TEXT,
	  processing_time_ms INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_detection_session ON detection_logs(session_id);
	CREATE INDEX IF NOT EXISTS idx_detection_created ON detection_logs(created_utc);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) ValidateSubmission(p models.CollectionPayload) error {
	if p.SessionID == "" {
		return fmt.Errorf("sessionId cannot be empty")
	}
	if p.Timestamp <= 0 {
		return fmt.Errorf("timestamp must be positive")
	}
	return nil
}

// InsertBehavior stores one collection payload with its derived metrics and
// returns the assigned submission id.
func (d *Database) InsertBehavior(p models.CollectionPayload, userAgent string, metrics analyzer.PatternMetrics) (string, error) {
	if err := d.ValidateSubmission(p); err != nil {
		return "", fmt.Errorf("invalid submission: %w", err)
	}

	mouse, err := json.Marshal(p.MouseMovements)
	if err != nil {
		return "", fmt.Errorf("failed to marshal mouse movements: %w", err)
	}
	clicks, err := json.Marshal(p.ClickPatterns)
	if err != nil {
		return "", fmt.Errorf("failed to marshal click patterns: %w", err)
	}
	keys, err := json.Marshal(p.KeystrokePatterns)
	if err != nil {
		return "", fmt.Errorf("failed to marshal keystroke patterns: %w", err)
	}
	scrolls, err := json.Marshal(p.ScrollPatterns)
	if err != nil {
		return "", fmt.Errorf("failed to marshal scroll patterns: %w", err)
	}
	fp, err := json.Marshal(p.DeviceFingerprint)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fingerprint: %w", err)
	}

	id := uuid.NewString()
	_, err = d.db.Exec(`INSERT INTO behavior_data(
		id, session_id, created_utc,
		mouse_movements, click_patterns, keystroke_patterns, scroll_patterns,
		fingerprint, user_agent,
		mouse_velocity_avg, mouse_velocity_std, click_frequency, typing_rhythm_consistency
	) VALUES(?,?,?,json(?),json(?),json(?),json(?),json(?),?,?,?,?,?)`,
		id, p.SessionID, p.Timestamp/1000,
		string(mouse), string(clicks), string(keys), string(scrolls),
		string(fp), userAgent,
		metrics.MouseVelocityAvg, metrics.MouseVelocityStd,
		metrics.ClickFrequency, metrics.TypingRhythmConsistency,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert behavior data: %w", err)
	}
	return id, nil
}

func (d *Database) InsertDetection(rec models.DetectionRecord) error {
	if rec.SessionID == "" {
		return fmt.Errorf("sessionId cannot be empty")
	}
	if rec.Prediction != "human" && rec.Prediction != "bot" && rec.Prediction != "unknown" {
		return fmt.Errorf("invalid prediction: %s", rec.Prediction)
	}
	_, err := d.db.Exec(`INSERT INTO detection_logs(
		session_id, created_utc, prediction, confidence, action_type, page_url, processing_time_ms
	) VALUES(?,?,?,?,?,?,?)`,
		rec.SessionID, rec.CreatedUTC, rec.Prediction, rec.Confidence,
		rec.ActionType, rec.PageURL, rec.ProcessingMS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection log: %w", err)
	}
	return nil
}

// Stats aggregates the detection logs into the dashboard document: totals
// plus an hour-of-day breakdown. Every hour bucket is present, zeroed when
// empty.
func (d *Database) Stats() (*models.StatsResponse, error) {
	stats := &models.StatsResponse{
		HourlyData: make(map[string]models.HourlyBucket, 24),
	}
	for h := 0; h < 24; h++ {
		stats.HourlyData[strconv.Itoa(h)] = models.HourlyBucket{}
	}

	row := d.db.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(prediction = 'human'), 0),
		COALESCE(SUM(prediction = 'bot'), 0)
	FROM detection_logs`)
	if err := row.Scan(&stats.TotalDetections, &stats.HumanDetections, &stats.BotDetections); err != nil {
		return nil, fmt.Errorf("failed to query detection totals: %w", err)
	}

	rows, err := d.db.Query(`SELECT
		CAST(strftime('%H', created_utc, 'unixepoch') AS INTEGER) AS hour,
		COALESCE(SUM(prediction = 'human'), 0),
		COALESCE(SUM(prediction = 'bot'), 0)
	FROM detection_logs
	GROUP BY hour`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hour int
		var bucket models.HourlyBucket
		if err := rows.Scan(&hour, &bucket.Human, &bucket.Bot); err != nil {
			return nil, fmt.Errorf("failed to scan hourly row: %w", err)
		}
		stats.HourlyData[strconv.Itoa(hour)] = bucket
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hourly rows: %w", err)
	}
	return stats, nil
}
