package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	// Get command
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go [drop|up|seed]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Connect to database
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Usage: go run main.go [drop|up|seed]")
		os.Exit(1)
	}
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`DROP TABLE IF EXISTS vote_delegations CASCADE`,
		`DROP TABLE IF EXISTS vote_records CASCADE`,
		`DROP TABLE IF EXISTS ballot_options CASCADE`,
		`DROP TABLE IF EXISTS proposals CASCADE`,
		`DROP TABLE IF EXISTS chore_assignments CASCADE`,
		`DROP TABLE IF EXISTS expenses CASCADE`,
		`DROP TABLE IF EXISTS group_members CASCADE`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", query)
	}

	return nil
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		// Group membership consumed by the governance checks
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'member',
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (group_id, user_id)
		)`,

		// Records a passed proposal may modify
		`CREATE TABLE IF NOT EXISTS expenses (
			id BIGSERIAL PRIMARY KEY,
			group_id BIGINT NOT NULL,
			description TEXT,
			amount NUMERIC(12, 2) NOT NULL DEFAULT 0,
			is_approved BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chore_assignments (
			id BIGSERIAL PRIMARY KEY,
			chore_id BIGINT NOT NULL,
			assigned_to_id BIGINT,
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Proposals and their ballot options
		`CREATE TABLE IF NOT EXISTS proposals (
			id BIGSERIAL PRIMARY KEY,
			group_id BIGINT NOT NULL,
			created_by_id BIGINT NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			type VARCHAR(30) NOT NULL DEFAULT 'GENERAL',
			strategy VARCHAR(30) NOT NULL DEFAULT 'SIMPLE_MAJORITY',
			status VARCHAR(20) NOT NULL DEFAULT 'DRAFT',
			deadline_at TIMESTAMPTZ,
			min_quorum_percentage INTEGER,
			linked_expense_id BIGINT,
			linked_chore_id BIGINT,
			linked_pet_id BIGINT,
			execution_result JSONB,
			executed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_proposals_status CHECK (status IN ('DRAFT', 'OPEN', 'PASSED', 'REJECTED', 'EXECUTED', 'CANCELLED')),
			CONSTRAINT chk_proposals_quorum CHECK (min_quorum_percentage BETWEEN 0 AND 100)
		)`,

		`CREATE TABLE IF NOT EXISTS ballot_options (
			id BIGSERIAL PRIMARY KEY,
			proposal_id BIGINT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			text VARCHAR(500) NOT NULL,
			display_order INTEGER NOT NULL DEFAULT 0,
			metadata JSONB,
			vote_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// The vote ledger; one row per (proposal, user) or per rank for
		// ranked ballots
		`CREATE TABLE IF NOT EXISTS vote_records (
			id BIGSERIAL PRIMARY KEY,
			proposal_id BIGINT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL,
			ballot_option_id BIGINT NOT NULL REFERENCES ballot_options(id) ON DELETE CASCADE,
			rank_order INTEGER,
			weight INTEGER NOT NULL DEFAULT 1,
			is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
			voted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_vote_records_weight CHECK (weight > 0),
			CONSTRAINT uq_vote_records_rank UNIQUE (proposal_id, user_id, rank_order)
		)`,

		`CREATE TABLE IF NOT EXISTS vote_delegations (
			id BIGSERIAL PRIMARY KEY,
			group_id BIGINT NOT NULL,
			delegator_id BIGINT NOT NULL,
			delegate_id BIGINT NOT NULL,
			topic_category VARCHAR(20) NOT NULL DEFAULT 'ALL',
			start_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			end_date TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_proposals_group_status ON proposals(group_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_proposals_created_at ON proposals(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_ballot_options_proposal ON ballot_options(proposal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vote_records_proposal ON vote_records(proposal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vote_records_user ON vote_records(proposal_id, user_id)`,
		// Non-ranked votes carry a NULL rank_order, which uq_vote_records_rank
		// treats as distinct; this index is what actually holds the
		// one-vote-per-user rule
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_vote_records_single
			ON vote_records (proposal_id, user_id) WHERE rank_order IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_vote_delegations_group ON vote_delegations(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chore_assignments_chore ON chore_assignments(chore_id, created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
		fmt.Printf("  Created: %s\n", getTableName(query))
	}

	return nil
}

func seedData(ctx context.Context, conn *pgx.Conn) error {
	// A small household with one admin, for local development
	memberQuery := `
		INSERT INTO group_members (group_id, user_id, role) VALUES
		(1, 1, 'admin'),
		(1, 2, 'member'),
		(1, 3, 'member'),
		(1, 4, 'member')
		ON CONFLICT (group_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`
	if _, err := conn.Exec(ctx, memberQuery); err != nil {
		return fmt.Errorf("failed to seed group members: %w", err)
	}
	fmt.Println("  Seeded 4 group members")

	expenseQuery := `
		INSERT INTO expenses (group_id, description, amount) VALUES
		(1, 'New vacuum cleaner', 189.99),
		(1, 'Couch repair', 75.00)
	`
	if _, err := conn.Exec(ctx, expenseQuery); err != nil {
		return fmt.Errorf("failed to seed expenses: %w", err)
	}
	fmt.Println("  Seeded 2 expenses")

	choreQuery := `
		INSERT INTO chore_assignments (chore_id, assigned_to_id, status) VALUES
		(1, 2, 'PENDING'),
		(2, 3, 'PENDING')
	`
	if _, err := conn.Exec(ctx, choreQuery); err != nil {
		return fmt.Errorf("failed to seed chore assignments: %w", err)
	}
	fmt.Println("  Seeded 2 chore assignments")

	return nil
}

func getTableName(query string) string {
	if len(query) > 50 {
		return query[:50] + "..."
	}
	return query
}
