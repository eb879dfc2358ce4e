package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/soiree/internal/database"
	"github.com/hitoshi/soiree/internal/model"
)

// SQLRSVPRepo はrsvpsテーブルを使用した出欠回答のリポジトリ。
// SQLiteとPostgreSQLの両方に対応する。
type SQLRSVPRepo struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

// NewSQLRSVPRepo はSQLRSVPRepoを生成する。
func NewSQLRSVPRepo(db *sql.DB, dialect database.Dialect) *SQLRSVPRepo {
	return &SQLRSVPRepo{db: db, dialect: dialect, now: time.Now}
}

// Create は回答を保存し、採番されたIDと作成日時をrsvpに設定する。
// 空のPhone/NoteはNULLとして保存する。
func (r *SQLRSVPRepo) Create(ctx context.Context, rsvp *model.RSVP) error {
	createdAt := r.now().UTC()
	p := r.dialect.Placeholder

	query := fmt.Sprintf(
		`INSERT INTO rsvps (name, phone, note, status, guests, created_at)
		 VALUES (%s, %s, %s, %s, %s, %s) RETURNING id`,
		p(1), p(2), p(3), p(4), p(5), p(6),
	)

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rsvp.Name,
		nullString(rsvp.Phone),
		nullString(rsvp.Note),
		string(rsvp.Status),
		rsvp.Guests,
		createdAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert rsvp: %w", err)
	}

	rsvp.ID = id
	rsvp.CreatedAt = createdAt
	return nil
}

// List は全回答を新しい順で返す。
func (r *SQLRSVPRepo) List(ctx context.Context) ([]*model.RSVP, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, phone, note, status, guests, created_at
		 FROM rsvps
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rsvps: %w", err)
	}
	defer rows.Close()

	var rsvps []*model.RSVP
	for rows.Next() {
		var (
			rsvp      model.RSVP
			phone     sql.NullString
			note      sql.NullString
			status    string
			createdAt timestampValue
		)
		if err := rows.Scan(&rsvp.ID, &rsvp.Name, &phone, &note, &status, &rsvp.Guests, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rsvp: %w", err)
		}
		rsvp.Phone = phone.String
		rsvp.Note = note.String
		rsvp.Status = model.RSVPStatus(status)
		rsvp.CreatedAt = createdAt.Time
		rsvps = append(rsvps, &rsvp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rsvps: %w", err)
	}

	return rsvps, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timestampValue はドライバーによって time.Time または文字列で返る日時を受け取る。
type timestampValue struct {
	Time time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Scan はsql.Scannerの実装。
func (t *timestampValue) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *timestampValue) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

var _ RSVPRepository = (*SQLRSVPRepo)(nil)
