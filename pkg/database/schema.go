package database

import (
	"context"
	"fmt"
)

var schema = []struct {
	name  string
	query string
}{
	{"jobs table", `
		CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			kind TEXT NOT NULL,
			subject TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			input JSONB,
			result JSONB,
			error TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"job_logs table", `
		CREATE TABLE IF NOT EXISTS job_logs (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	{"job_logs index", `CREATE INDEX IF NOT EXISTS idx_job_logs_job_id ON job_logs(job_id)`},
	{"jobs index", `CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC)`},
	{"conversations table", `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			job_id UUID REFERENCES jobs(id) ON DELETE CASCADE,
			title TEXT NOT NULL DEFAULT 'New Conversation',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"messages table", `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"messages index", `CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id)`},
	{"conversations index", `CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`},
	{"conversations job index", `CREATE INDEX IF NOT EXISTS idx_conversations_job_id ON conversations(job_id)`},
}

// InitSchema creates the job, log and chat tables.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, s := range schema {
		if _, err := db.Pool.Exec(ctx, s.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}
	return nil
}
