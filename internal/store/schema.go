package store

import "time"

// Schema is applied idempotently on open.
const Schema = `
CREATE TABLE IF NOT EXISTS chats (
	chat_id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT 'direct',
	participant_count INTEGER NOT NULL DEFAULT 0,
	message_count INTEGER NOT NULL DEFAULT 0,
	report_count INTEGER NOT NULL DEFAULT 0,
	request_count INTEGER NOT NULL DEFAULT 0,
	severe_report_count INTEGER NOT NULL DEFAULT 0,
	last_activity DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT UNIQUE NOT NULL,
	chat_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	content TEXT NOT NULL,
	report_type TEXT NOT NULL DEFAULT 'general',
	severity INTEGER NOT NULL DEFAULT 1,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_reports_chat ON reports(chat_id);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);

CREATE TABLE IF NOT EXISTS report_counters (
	chat_id TEXT NOT NULL,
	report_type TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (chat_id, report_type)
);

CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	alert_id TEXT UNIQUE NOT NULL,
	chat_id TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	message TEXT NOT NULL,
	severity INTEGER NOT NULL DEFAULT 1,
	sent BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_alerts_unsent ON alerts(sent, created_at);
`

// Report statuses.
const (
	ReportStatusPending   = "pending"
	ReportStatusProcessed = "processed"
)

// ChatRecord holds per-chat metadata and durable counters. Counters are
// mutated only by the sequential processor.
type ChatRecord struct {
	ChatID            string     `json:"chat_id"`
	DisplayName       string     `json:"display_name"`
	Kind              string     `json:"kind"`
	ParticipantCount  int        `json:"participant_count"`
	MessageCount      int64      `json:"message_count"`
	ReportCount       int64      `json:"report_count"`
	RequestCount      int64      `json:"request_count"`
	SevereReportCount int64      `json:"severe_report_count"`
	LastActivity      *time.Time `json:"last_activity,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ChatDelta describes the counter increments and metadata refresh applied
// by a single upsert.
type ChatDelta struct {
	DisplayName      string
	Kind             string
	ParticipantCount int
	Messages         int64
	Reports          int64
	Requests         int64
	SevereReports    int64
	LastActivity     time.Time
}

// ChatCounts is the updated counter snapshot returned by UpsertChat.
type ChatCounts struct {
	Messages      int64
	Reports       int64
	Requests      int64
	SevereReports int64
}

// ReportRecord is a persisted classified report. Immutable once created.
type ReportRecord struct {
	ID         int64     `json:"id"`
	MessageID  string    `json:"message_id"`
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	Content    string    `json:"content"`
	ReportType string    `json:"report_type"`
	Severity   int       `json:"severity"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// AlertRecord is an outbox entry awaiting delivery. The sent flag is
// flipped only by the dispatcher, never by the producer.
type AlertRecord struct {
	ID        int64     `json:"id"`
	AlertID   string    `json:"alert_id"`
	ChatID    string    `json:"chat_id"`
	AlertType string    `json:"alert_type"`
	Message   string    `json:"message"`
	Severity  int       `json:"severity"`
	Sent      bool      `json:"sent"`
	CreatedAt time.Time `json:"created_at"`
}
