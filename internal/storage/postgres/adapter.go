package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS candidates (
		campaign_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username_key TEXT NOT NULL,
		id TEXT NOT NULL,
		username TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		contact_url TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (campaign_id, user_id, username_key)
	);

	CREATE INDEX IF NOT EXISTS idx_candidates_campaign_score ON candidates(campaign_id, user_id, score DESC);
	CREATE INDEX IF NOT EXISTS idx_candidates_email ON candidates(campaign_id, user_id, email) WHERE email <> '';

	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		stop_reason TEXT NOT NULL DEFAULT '',
		accepted INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_pipeline_runs_campaign ON pipeline_runs(campaign_id, user_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveCandidates upserts records in one transaction
func (s *postgresStorage) SaveCandidates(ctx context.Context, campaign domain.Campaign, records []*domain.CandidateRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candidates (campaign_id, user_id, username_key, id, username, email, contact_url, score, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (campaign_id, user_id, username_key) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			contact_url = EXCLUDED.contact_url,
			score = EXCLUDED.score,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		rec := r.Clone()
		rec.CampaignID = campaign.ID
		rec.UserID = campaign.UserID
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode candidate %s: %w", rec.Username, err)
		}

		_, err = stmt.ExecContext(ctx,
			campaign.ID, campaign.UserID, strings.ToLower(rec.Username), rec.ID, rec.Username,
			rec.Email, rec.ContactURL, rec.Score.Normalized, string(data), rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save candidate %s: %w", rec.Username, err)
		}
	}

	return tx.Commit()
}

// LoadCandidates retrieves the records of a campaign ordered by score
func (s *postgresStorage) LoadCandidates(ctx context.Context, campaign domain.Campaign) ([]*domain.CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, created_at FROM candidates
		WHERE campaign_id = $1 AND user_id = $2
		ORDER BY score DESC, username_key
	`, campaign.ID, campaign.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.CandidateRecord
	for rows.Next() {
		var id string
		var data []byte
		var createdAt time.Time
		if err := rows.Scan(&id, &data, &createdAt); err != nil {
			return nil, err
		}
		var rec domain.CandidateRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode candidate %s: %w", id, err)
		}
		rec.ID = id
		rec.CreatedAt = createdAt
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// DeleteCandidate removes one record
func (s *postgresStorage) DeleteCandidate(ctx context.Context, campaign domain.Campaign, username string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM candidates WHERE campaign_id = $1 AND user_id = $2 AND username_key = $3
	`, campaign.ID, campaign.UserID, strings.ToLower(username))
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("candidate " + username)
	}
	return nil
}

// CountCandidates returns the number of records in the campaign
func (s *postgresStorage) CountCandidates(ctx context.Context, campaign domain.Campaign) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candidates WHERE campaign_id = $1 AND user_id = $2
	`, campaign.ID, campaign.UserID).Scan(&n)
	return n, err
}

// LoadDeduplicationSets reads identity columns without decoding records
func (s *postgresStorage) LoadDeduplicationSets(ctx context.Context, campaign domain.Campaign) (*domain.DedupSets, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, email, contact_url FROM candidates
		WHERE campaign_id = $1 AND user_id = $2
	`, campaign.ID, campaign.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sets := &domain.DedupSets{}
	for rows.Next() {
		var username, email, contactURL string
		if err := rows.Scan(&username, &email, &contactURL); err != nil {
			return nil, err
		}
		sets.Usernames = append(sets.Usernames, username)
		if email != "" {
			sets.Emails = append(sets.Emails, email)
		}
		if contactURL != "" {
			sets.ContactURLs = append(sets.ContactURLs, contactURL)
		}
	}
	return sets, rows.Err()
}

// SaveRun upserts a pipeline run
func (s *postgresStorage) SaveRun(ctx context.Context, run *domain.PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (id, kind, campaign_id, user_id, status, stop_reason, accepted, processed, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			stop_reason = EXCLUDED.stop_reason,
			accepted = EXCLUDED.accepted,
			processed = EXCLUDED.processed,
			finished_at = COALESCE(EXCLUDED.finished_at, pipeline_runs.finished_at)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Kind), run.CampaignID, run.UserID, string(run.Status),
		run.StopReason, run.Accepted, run.Processed, run.StartedAt, run.FinishedAt)
	return err
}

// GetRun retrieves a pipeline run by ID
func (s *postgresStorage) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var kind, status string
	var finishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, campaign_id, user_id, status, stop_reason, accepted, processed, started_at, finished_at
		FROM pipeline_runs
		WHERE id = $1
	`, id).Scan(
		&run.ID, &kind, &run.CampaignID, &run.UserID, &status, &run.StopReason,
		&run.Accepted, &run.Processed, &run.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	if err != nil {
		return nil, err
	}

	run.Kind = domain.RunKind(kind)
	run.Status = domain.RunStatus(status)
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
