// Package store persists run transcripts to SQLite. The durable unit is
// the ordered message sequence plus the active agent name; sessions are
// never persisted because their processes do not survive a restart.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/strixops/strix/pkg/agent"
)

// ErrUnknownRun is returned when a run id has no stored transcript.
var ErrUnknownRun = errors.New("unknown run")

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID       string `json:"run_id"`
	ActiveAgent string `json:"active_agent"`
	Status      string `json:"status"`
	TurnCount   int    `json:"turn_count"`
	Truncated   bool   `json:"truncated"`
	Cancelled   bool   `json:"cancelled"`
	CreatedAt   int64  `json:"created_at"`
}

// Store is a SQLite-backed transcript store. It implements
// agent.TranscriptStore.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Config holds transcript store configuration.
type Config struct {
	// DBPath is the SQLite file path. ":memory:" works for tests.
	DBPath string
	Logger zerolog.Logger
}

// New opens the store and creates its schema.
func New(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps readers unblocked while a run is being saved.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: cfg.Logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			active_agent TEXT NOT NULL,
			status TEXT NOT NULL,
			turn_count INTEGER NOT NULL,
			truncated INTEGER NOT NULL DEFAULT 0,
			cancelled INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT,
			tool_call_id TEXT,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_messages_run ON messages(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a run's terminal state and full message sequence in one
// transaction. Saving the same run id again replaces the transcript.
func (s *Store) SaveRun(ctx context.Context, state agent.RunState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var runErr sql.NullString
	if state.Err != nil {
		runErr = sql.NullString{String: state.Err.Error(), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, active_agent, status, turn_count, truncated, cancelled, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active_agent = excluded.active_agent,
			status = excluded.status,
			turn_count = excluded.turn_count,
			truncated = excluded.truncated,
			cancelled = excluded.cancelled,
			error = excluded.error`,
		state.RunID, state.ActiveAgent, string(state.Status), state.TurnCount,
		state.Truncated, state.Cancelled, runErr,
	); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE run_id = ?", state.RunID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (run_id, seq, role, content, tool_calls, tool_call_id)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range state.History {
		var toolCalls sql.NullString
		if len(msg.ToolCalls) > 0 {
			raw, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to encode tool calls: %w", err)
			}
			toolCalls = sql.NullString{String: string(raw), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, state.RunID, i, msg.Role, msg.Content, toolCalls, msg.ToolCallID); err != nil {
			return fmt.Errorf("failed to save message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Debug().Str("run_id", state.RunID).Int("messages", len(state.History)).Msg("Run transcript saved")
	return nil
}

// GetRun loads a stored transcript. The returned state carries the
// persisted status and the messages in their original order.
func (s *Store) GetRun(ctx context.Context, runID string) (agent.RunState, error) {
	var state agent.RunState
	var runErr sql.NullString

	row := s.db.QueryRowContext(ctx, `
		SELECT id, active_agent, status, turn_count, truncated, cancelled, error
		FROM runs WHERE id = ?`, runID)
	var status string
	if err := row.Scan(&state.RunID, &state.ActiveAgent, &status, &state.TurnCount,
		&state.Truncated, &state.Cancelled, &runErr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return agent.RunState{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
		}
		return agent.RunState{}, fmt.Errorf("failed to load run: %w", err)
	}
	state.Status = agent.RunStatus(status)
	if runErr.Valid {
		state.Err = errors.New(runErr.String)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_calls, tool_call_id
		FROM messages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return agent.RunState{}, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg agent.Message
		var toolCalls sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &toolCalls, &msg.ToolCallID); err != nil {
			return agent.RunState{}, fmt.Errorf("failed to scan message: %w", err)
		}
		if toolCalls.Valid {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return agent.RunState{}, fmt.Errorf("failed to decode tool calls: %w", err)
			}
		}
		state.History = append(state.History, msg)
	}
	if err := rows.Err(); err != nil {
		return agent.RunState{}, fmt.Errorf("failed to read messages: %w", err)
	}

	return state, nil
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, active_agent, status, turn_count, truncated, cancelled, created_at
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.ActiveAgent, &r.Status, &r.TurnCount,
			&r.Truncated, &r.Cancelled, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
