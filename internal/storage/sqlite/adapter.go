package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
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
		data TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (campaign_id, user_id, username_key)
	);

	CREATE INDEX IF NOT EXISTS idx_candidates_campaign_score ON candidates(campaign_id, user_id, score);

	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		stop_reason TEXT NOT NULL DEFAULT '',
		accepted INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pipeline_runs_campaign ON pipeline_runs(campaign_id, user_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveCandidates upserts records in one transaction
func (s *sqliteStorage) SaveCandidates(ctx context.Context, campaign domain.Campaign, records []*domain.CandidateRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candidates (campaign_id, user_id, username_key, id, username, email, contact_url, score, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (campaign_id, user_id, username_key) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			contact_url = excluded.contact_url,
			score = excluded.score,
			data = excluded.data,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		rec := prepare(r, campaign, now)
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode candidate %s: %w", rec.Username, err)
		}

		_, err = stmt.ExecContext(ctx,
			campaign.ID,
			campaign.UserID,
			strings.ToLower(rec.Username),
			rec.ID,
			rec.Username,
			rec.Email,
			rec.ContactURL,
			rec.Score.Normalized,
			string(data),
			rec.CreatedAt,
			rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save candidate %s: %w", rec.Username, err)
		}
	}

	return tx.Commit()
}

// prepare copies r with campaign scope, an ID and timestamps filled in
func prepare(r *domain.CandidateRecord, campaign domain.Campaign, now time.Time) *domain.CandidateRecord {
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
	return rec
}

// LoadCandidates retrieves the records of a campaign ordered by score
func (s *sqliteStorage) LoadCandidates(ctx context.Context, campaign domain.Campaign) ([]*domain.CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, created_at FROM candidates
		WHERE campaign_id = ? AND user_id = ?
		ORDER BY score DESC, username_key
	`, campaign.ID, campaign.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.CandidateRecord
	for rows.Next() {
		var id, data string
		var createdAt time.Time
		if err := rows.Scan(&id, &data, &createdAt); err != nil {
			return nil, err
		}
		var rec domain.CandidateRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode candidate %s: %w", id, err)
		}
		rec.ID = id
		rec.CreatedAt = createdAt
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// DeleteCandidate removes one record
func (s *sqliteStorage) DeleteCandidate(ctx context.Context, campaign domain.Campaign, username string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM candidates WHERE campaign_id = ? AND user_id = ? AND username_key = ?
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
func (s *sqliteStorage) CountCandidates(ctx context.Context, campaign domain.Campaign) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candidates WHERE campaign_id = ? AND user_id = ?
	`, campaign.ID, campaign.UserID).Scan(&n)
	return n, err
}

// LoadDeduplicationSets reads identity columns without decoding records
func (s *sqliteStorage) LoadDeduplicationSets(ctx context.Context, campaign domain.Campaign) (*domain.DedupSets, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, email, contact_url FROM candidates
		WHERE campaign_id = ? AND user_id = ?
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
func (s *sqliteStorage) SaveRun(ctx context.Context, run *domain.PipelineRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, kind, campaign_id, user_id, status, stop_reason, accepted, processed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			stop_reason = excluded.stop_reason,
			accepted = excluded.accepted,
			processed = excluded.processed,
			finished_at = excluded.finished_at
	`,
		run.ID,
		string(run.Kind),
		run.CampaignID,
		run.UserID,
		string(run.Status),
		run.StopReason,
		run.Accepted,
		run.Processed,
		run.StartedAt,
		run.FinishedAt,
	)
	return err
}

// GetRun retrieves a pipeline run by ID
func (s *sqliteStorage) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var kind, status string
	var finishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, campaign_id, user_id, status, stop_reason, accepted, processed, started_at, finished_at
		FROM pipeline_runs
		WHERE id = ?
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
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
