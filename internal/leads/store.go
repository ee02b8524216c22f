package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/leadrelay/leadrelay/internal/db"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Store persists staged leads. The pipeline owns creation and deletion;
// the operator retry path reads and may delete out of band.
type Store struct {
	conn   db.Conn
	logger *slog.Logger
}

// NewStore creates a staging store.
func NewStore(log *slog.Logger, conn db.Conn) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		conn:   conn,
		logger: log.With(slog.String("service", "leads")),
	}
}

// Insert persists a new staged lead and returns the stored record with its
// generated id and timestamp.
func (s *Store) Insert(ctx context.Context, botID, instance string, fields Fields, raw json.RawMessage) (StagedLead, error) {
	if s.conn == nil {
		return StagedLead{}, fmt.Errorf("lead store not configured")
	}
	id := uuid.NewString()
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	fields.Notes = TruncateNotes(fields.Notes)

	var createdAt pgtype.Timestamptz
	err := s.conn.QueryRow(ctx, `
		INSERT INTO staged_leads (id, bot_id, instance, name, phone, priority, contact_method, notes, raw_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		id, botID, instance,
		toPgText(fields.Name), toPgText(fields.Phone),
		string(fields.Priority), string(fields.ContactMethod),
		fields.Notes, raw,
	).Scan(&createdAt)
	if err != nil {
		return StagedLead{}, fmt.Errorf("insert staged lead: %w", err)
	}
	return StagedLead{
		ID:         id,
		BotID:      botID,
		Instance:   instance,
		Fields:     fields,
		RawMessage: raw,
		CreatedAt:  createdAt.Time,
	}, nil
}

// DeleteByID removes a staged lead. Deleting an id that no longer exists is
// not an error.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if s.conn == nil {
		return fmt.Errorf("lead store not configured")
	}
	if _, err := s.conn.Exec(ctx, `DELETE FROM staged_leads WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete staged lead: %w", err)
	}
	return nil
}

// GetByID returns a staged lead for retry.
func (s *Store) GetByID(ctx context.Context, id string) (StagedLead, error) {
	if s.conn == nil {
		return StagedLead{}, fmt.Errorf("lead store not configured")
	}
	row := s.conn.QueryRow(ctx, `
		SELECT id, bot_id, instance, name, phone, priority, contact_method, notes, raw_message, created_at
		FROM staged_leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StagedLead{}, ErrLeadNotFound
		}
		return StagedLead{}, fmt.Errorf("get staged lead: %w", err)
	}
	return lead, nil
}

// ListRecent returns staged leads newest first for operator inspection.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]StagedLead, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("lead store not configured")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.conn.Query(ctx, `
		SELECT id, bot_id, instance, name, phone, priority, contact_method, notes, raw_message, created_at
		FROM staged_leads ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list staged leads: %w", err)
	}
	defer rows.Close()

	items := make([]StagedLead, 0, limit)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staged lead: %w", err)
		}
		items = append(items, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list staged leads: %w", err)
	}
	return items, nil
}

// CountPending returns the number of staged leads still awaiting delivery.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	if s.conn == nil {
		return 0, fmt.Errorf("lead store not configured")
	}
	var count int64
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM staged_leads`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count staged leads: %w", err)
	}
	return count, nil
}

// OldestPending returns the creation time of the oldest staged lead, or the
// zero time when the store is empty.
func (s *Store) OldestPending(ctx context.Context) (time.Time, error) {
	if s.conn == nil {
		return time.Time{}, fmt.Errorf("lead store not configured")
	}
	var oldest pgtype.Timestamptz
	err := s.conn.QueryRow(ctx, `SELECT min(created_at) FROM staged_leads`).Scan(&oldest)
	if err != nil {
		return time.Time{}, fmt.Errorf("oldest staged lead: %w", err)
	}
	if !oldest.Valid {
		return time.Time{}, nil
	}
	return oldest.Time, nil
}

func scanLead(row pgx.Row) (StagedLead, error) {
	var (
		lead      StagedLead
		name      pgtype.Text
		phone     pgtype.Text
		priority  string
		contact   string
		raw       []byte
		createdAt pgtype.Timestamptz
	)
	err := row.Scan(&lead.ID, &lead.BotID, &lead.Instance, &name, &phone, &priority, &contact, &lead.Fields.Notes, &raw, &createdAt)
	if err != nil {
		return StagedLead{}, err
	}
	lead.Fields.Name = name.String
	lead.Fields.Phone = phone.String
	lead.Fields.Priority = Priority(priority)
	lead.Fields.ContactMethod = ContactMethod(contact)
	lead.RawMessage = json.RawMessage(raw)
	lead.CreatedAt = createdAt.Time
	return lead, nil
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
