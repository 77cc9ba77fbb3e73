package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/umsafe/umsafe/pkg/models"
)

// PostgresStore is the production Store backed by PostgreSQL via the pgx
// stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a PostgreSQL connection and verifies connectivity.
func OpenPostgres(dsn string, maxConns int) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *PostgresStore) Close() error                   { return s.db.Close() }

// Migrate creates the schema if it does not exist. Safe to run at startup.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// ── Profiles ────────────────────────────────────────────────

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	row := s.db.QueryRowContext(ctx, `
        SELECT user_id, preferred_language, updated_at
        FROM profiles WHERE user_id = $1
    `, userID)
	if err := row.Scan(&p.UserID, &p.PreferredLanguage, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "profile", Key: userID}
		}
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO profiles (user_id, preferred_language, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO UPDATE
        SET preferred_language = EXCLUDED.preferred_language,
            updated_at = EXCLUDED.updated_at
    `, profile.UserID, profile.PreferredLanguage, profile.UpdatedAt)
	return err
}

// ── Chat messages ───────────────────────────────────────────

func (s *PostgresStore) ListMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, role, content, language, created_at
        FROM chat_messages
        WHERE user_id = $1
        ORDER BY created_at ASC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.Language, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO chat_messages (id, user_id, role, content, language, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, msg.ID, msg.UserID, msg.Role, msg.Content, msg.Language, msg.CreatedAt)
	return err
}

func (s *PostgresStore) ListMessagesBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ChatMessage, error) {
	query := `
        SELECT id, user_id, role, content, language, created_at
        FROM chat_messages
        WHERE created_at < $1
        ORDER BY created_at ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.Language, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ── Knowledge base ──────────────────────────────────────────

func (s *PostgresStore) ListEmbassies(ctx context.Context) ([]models.EmbassyContact, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, country, embassy_name, phone_primary,
               COALESCE(phone_secondary, ''), COALESCE(email, ''),
               COALESCE(address, ''), COALESCE(emergency_hotline, ''),
               COALESCE(working_hours, '')
        FROM embassy_contacts
        ORDER BY country ASC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmbassyContact
	for rows.Next() {
		var e models.EmbassyContact
		if err := rows.Scan(&e.ID, &e.Country, &e.EmbassyName, &e.PhonePrimary,
			&e.PhoneSecondary, &e.Email, &e.Address, &e.EmergencyHotline, &e.WorkingHours); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListRecruiters(ctx context.Context, status models.RecruiterStatus) ([]models.Recruiter, error) {
	query := `
        SELECT id, company_name, COALESCE(license_number, ''), status,
               COALESCE(expiry_date, ''), countries_of_operation, complaints_count
        FROM recruiters`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY company_name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Recruiter
	for rows.Next() {
		var r models.Recruiter
		var countries []byte
		if err := rows.Scan(&r.ID, &r.CompanyName, &r.LicenseNumber, &r.Status,
			&r.ExpiryDate, &countries, &r.ComplaintsCount); err != nil {
			return nil, err
		}
		r.CountriesOfOperation = parseTextArray(countries)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListRightsResources(ctx context.Context, limit int) ([]models.RightsResource, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, category, title, content, priority
        FROM rights_resources
        ORDER BY priority DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RightsResource
	for rows.Next() {
		var r models.RightsResource
		if err := rows.Scan(&r.ID, &r.Category, &r.Title, &r.Content, &r.Priority); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ── Incidents ───────────────────────────────────────────────

func (s *PostgresStore) CreateIncident(ctx context.Context, incident *models.IncidentReport) error {
	if incident.ID == "" {
		incident.ID = uuid.New().String()
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO incident_reports
            (id, user_id, incident_type, severity, description, status, follow_up_needed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, incident.ID, incident.UserID, incident.IncidentType, incident.Severity,
		incident.Description, incident.Status, incident.FollowUpNeeded, incident.CreatedAt)
	return err
}

func (s *PostgresStore) ListIncidents(ctx context.Context, userID string, limit int) ([]models.IncidentReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, incident_type, severity, description, status, follow_up_needed, created_at
        FROM incident_reports
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IncidentReport
	for rows.Next() {
		var i models.IncidentReport
		if err := rows.Scan(&i.ID, &i.UserID, &i.IncidentType, &i.Severity,
			&i.Description, &i.Status, &i.FollowUpNeeded, &i.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// parseTextArray decodes a Postgres text[] literal like {a,b} into a slice.
// Values seeded by this service never contain quotes or commas, so a plain
// split suffices.
func parseTextArray(raw []byte) []string {
	s := string(raw)
	if len(s) < 2 || s == "{}" {
		return nil
	}
	s = s[1 : len(s)-1]
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if v := s[start:i]; v != "" {
				out = append(out, v)
			}
			start = i + 1
		}
	}
	return out
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id            TEXT PRIMARY KEY,
    preferred_language TEXT NOT NULL DEFAULT '',
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    language   TEXT NOT NULL DEFAULT 'en',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chat_messages_user_created
    ON chat_messages (user_id, created_at);

CREATE TABLE IF NOT EXISTS embassy_contacts (
    id                TEXT PRIMARY KEY,
    country           TEXT NOT NULL,
    embassy_name      TEXT NOT NULL,
    phone_primary     TEXT NOT NULL,
    phone_secondary   TEXT,
    email             TEXT,
    address           TEXT,
    emergency_hotline TEXT,
    working_hours     TEXT
);

CREATE TABLE IF NOT EXISTS recruiters (
    id                     TEXT PRIMARY KEY,
    company_name           TEXT NOT NULL,
    license_number         TEXT,
    status                 TEXT NOT NULL DEFAULT 'active',
    expiry_date            TEXT,
    countries_of_operation TEXT[] NOT NULL DEFAULT '{}',
    complaints_count       INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rights_resources (
    id       TEXT PRIMARY KEY,
    category TEXT NOT NULL,
    title    TEXT NOT NULL,
    content  TEXT NOT NULL,
    priority INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS incident_reports (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    incident_type    TEXT NOT NULL,
    severity         TEXT NOT NULL,
    description      TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'reported',
    follow_up_needed BOOLEAN NOT NULL DEFAULT false,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS incident_reports_user_created
    ON incident_reports (user_id, created_at);
`
