// Package store persists chats, reports, and the alert outbox in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// maxReportContentLen bounds the content column. Longer messages are
// truncated, not rejected.
const maxReportContentLen = 2000

// Store wraps the SQLite database. All writes go through the sequential
// processor, so no write/write contention exists.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying handle for shared access.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport inserts a report record. A duplicate message_id is a
// successful no-op and returns (0, nil) — idempotent re-delivery.
func (s *Store) SaveReport(ctx context.Context, r *ReportRecord) (int64, error) {
	if r.Status == "" {
		r.Status = ReportStatusPending
	}
	content := r.Content
	if len(content) > maxReportContentLen {
		content = content[:maxReportContentLen]
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (message_id, chat_id, sender_id, content, report_type, severity, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING`,
		r.MessageID, r.ChatID, r.SenderID, content, r.ReportType, r.Severity, r.Status)
	if err != nil {
		return 0, fmt.Errorf("save report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("save report: %w", err)
	}
	if affected == 0 {
		return 0, nil
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// UpsertChat applies a counter delta to a chat row, creating it if needed,
// and returns the updated counts.
func (s *Store) UpsertChat(ctx context.Context, chatID string, d ChatDelta) (ChatCounts, error) {
	lastActivity := d.LastActivity
	if lastActivity.IsZero() {
		lastActivity = time.Now()
	}
	kind := d.Kind
	if kind == "" {
		kind = "direct"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (chat_id, display_name, kind, participant_count,
			message_count, report_count, request_count, severe_report_count, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE chats.display_name END,
			kind = excluded.kind,
			participant_count = CASE WHEN excluded.participant_count > 0 THEN excluded.participant_count ELSE chats.participant_count END,
			message_count = chats.message_count + excluded.message_count,
			report_count = chats.report_count + excluded.report_count,
			request_count = chats.request_count + excluded.request_count,
			severe_report_count = chats.severe_report_count + excluded.severe_report_count,
			last_activity = excluded.last_activity`,
		chatID, d.DisplayName, kind, d.ParticipantCount,
		d.Messages, d.Reports, d.Requests, d.SevereReports, lastActivity)
	if err != nil {
		return ChatCounts{}, fmt.Errorf("upsert chat: %w", err)
	}

	var c ChatCounts
	err = s.db.QueryRowContext(ctx,
		`SELECT message_count, report_count, request_count, severe_report_count FROM chats WHERE chat_id = ?`,
		chatID).Scan(&c.Messages, &c.Reports, &c.Requests, &c.SevereReports)
	if err != nil {
		return ChatCounts{}, fmt.Errorf("upsert chat counts: %w", err)
	}
	return c, nil
}

// GetChat returns a chat row, or nil if it does not exist.
func (s *Store) GetChat(ctx context.Context, chatID string) (*ChatRecord, error) {
	var r ChatRecord
	var lastActivity sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT chat_id, display_name, kind, participant_count,
			message_count, report_count, request_count, severe_report_count,
			last_activity, created_at
		FROM chats WHERE chat_id = ?`, chatID).Scan(
		&r.ChatID, &r.DisplayName, &r.Kind, &r.ParticipantCount,
		&r.MessageCount, &r.ReportCount, &r.RequestCount, &r.SevereReportCount,
		&lastActivity, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if lastActivity.Valid {
		r.LastActivity = &lastActivity.Time
	}
	return &r, nil
}

// IncrementReportCounter bumps the per-(chat, type) counter and returns
// the new count.
func (s *Store) IncrementReportCounter(ctx context.Context, chatID, reportType string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO report_counters (chat_id, report_type, count, updated_at)
		VALUES (?, ?, 1, datetime('now'))
		ON CONFLICT(chat_id, report_type) DO UPDATE SET
			count = count + 1, updated_at = datetime('now')
		RETURNING count`,
		chatID, reportType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment report counter: %w", err)
	}
	return count, nil
}

// GetReport returns a report by message_id, or nil if absent.
func (s *Store) GetReport(ctx context.Context, messageID string) (*ReportRecord, error) {
	var r ReportRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, message_id, chat_id, sender_id, content, report_type, severity, status, created_at
		FROM reports WHERE message_id = ?`, messageID).Scan(
		&r.ID, &r.MessageID, &r.ChatID, &r.SenderID, &r.Content,
		&r.ReportType, &r.Severity, &r.Status, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &r, nil
}

// ListReports returns reports for a chat, oldest first.
func (s *Store) ListReports(ctx context.Context, chatID string, limit int) ([]ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, chat_id, sender_id, content, report_type, severity, status, created_at
		FROM reports WHERE chat_id = ? ORDER BY id ASC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var r ReportRecord
		if err := rows.Scan(&r.ID, &r.MessageID, &r.ChatID, &r.SenderID, &r.Content,
			&r.ReportType, &r.Severity, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AppendAlert adds an alert to the outbox with sent=false.
func (s *Store) AppendAlert(ctx context.Context, a *AlertRecord) (int64, error) {
	if a.AlertID == "" {
		a.AlertID = uuid.NewString()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (alert_id, chat_id, alert_type, message, severity, sent)
		VALUES (?, ?, ?, ?, ?, 0)`,
		a.AlertID, a.ChatID, a.AlertType, a.Message, a.Severity)
	if err != nil {
		return 0, fmt.Errorf("append alert: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// ListUnsentAlerts returns undelivered alerts in creation order.
func (s *Store) ListUnsentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alert_id, chat_id, alert_type, message, severity, sent, created_at
		FROM alerts WHERE sent = 0 ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsent alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var a AlertRecord
		if err := rows.Scan(&a.ID, &a.AlertID, &a.ChatID, &a.AlertType,
			&a.Message, &a.Severity, &a.Sent, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkAlertSent flips the sent flag after confirmed delivery.
func (s *Store) MarkAlertSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alerts SET sent = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark alert sent: %w", err)
	}
	return nil
}
