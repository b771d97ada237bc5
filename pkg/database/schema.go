package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CaseNumberConstraint names the unique index on reimbursement_requests.case_number.
const CaseNumberConstraint = "reimbursement_requests_case_number_key"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		eid TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL CHECK (role IN ('Admin', 'Student')),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sequences (
		name TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reimbursement_requests (
		id UUID PRIMARY KEY,
		case_number TEXT NOT NULL,
		student_details JSONB NOT NULL,
		team_details JSONB,
		competition_details JSONB,
		declaration JSONB,
		attachments JSONB NOT NULL DEFAULT '{}'::jsonb,
		status TEXT NOT NULL CHECK (status IN ('Pending', 'Under Review', 'Approved', 'Rejected')),
		admin_comments TEXT,
		processed_by UUID REFERENCES users(id),
		processed_at TIMESTAMPTZ,
		submitted_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT ` + CaseNumberConstraint + ` UNIQUE (case_number)
	)`,
	`CREATE INDEX IF NOT EXISTS reimbursement_requests_status_submitted_idx
		ON reimbursement_requests (status, submitted_at DESC)`,
	`CREATE INDEX IF NOT EXISTS reimbursement_requests_submitted_idx
		ON reimbursement_requests (submitted_at DESC)`,
}

// Migrate applies the schema idempotently inside one transaction.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
