package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"presensi/internal/presence"
	"presensi/internal/store"
)

// Query selects presence rows. Zero fields are unconstrained; results are
// newest first unless Ascending is set.
type Query struct {
	UserID    string
	From      time.Time
	To        time.Time
	Ascending bool
	Limit     int
}

// Repository persists presences in the managed relational store.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, user_id, created_at, presence_type, presence_label, latitude, longitude, distance`

// InsertRecord writes a new presence row.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.UserID == "" {
		return Record{}, errors.New("user id required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO presences (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`), rec.ID, rec.UserID, rec.CreatedAt.UTC(), string(rec.Kind), rec.Label,
		rec.Location.Latitude, rec.Location.Longitude, rec.DistanceMeters)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListRecords returns presences matching q.
func (r *Repository) ListRecords(ctx context.Context, q Query) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM presences`
	args := []any{}
	clauses := []string{}
	if q.UserID != "" {
		args = append(args, q.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if !q.From.IsZero() {
		args = append(args, q.From.UTC())
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To.UTC())
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if q.Ascending {
		query += " ORDER BY created_at ASC"
	} else {
		query += " ORDER BY created_at DESC"
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			rec      Record
			kind     sql.NullString
			label    sql.NullString
			distance sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.CreatedAt, &kind, &label,
			&rec.Location.Latitude, &rec.Location.Longitude, &distance); err != nil {
			return nil, err
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		rec.Kind = presence.Kind(kind.String)
		rec.Label = label.String
		if distance.Valid {
			d := distance.Float64
			rec.DistanceMeters = &d
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ListProfiles returns all user profiles.
func (r *Repository) ListProfiles(ctx context.Context) ([]UserProfile, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT id, name, email, institution
		FROM user_details
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// GetProfile returns a single profile by id.
func (r *Repository) GetProfile(ctx context.Context, id string) (*UserProfile, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, name, email, institution
		FROM user_details WHERE id = $1
	`), id)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates or updates a profile.
func (r *Repository) UpsertProfile(ctx context.Context, p UserProfile) error {
	if p.ID == "" || p.Email == "" {
		return errors.New("profile id and email required")
	}
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO user_details (id, name, email, institution)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			institution = EXCLUDED.institution
	`), p.ID, nullable(p.Name), p.Email, nullable(p.Institution))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (UserProfile, error) {
	var (
		p           UserProfile
		name        sql.NullString
		institution sql.NullString
	)
	if err := s.Scan(&p.ID, &name, &p.Email, &institution); err != nil {
		return UserProfile{}, err
	}
	p.Name = name.String
	p.Institution = institution.String
	return p, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
