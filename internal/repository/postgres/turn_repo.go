package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freeeve/polite-conquest/internal/model"
)

const turnColumns = `id, game_id, number, state_before, state_after, deadline, resolved_at, created_at`

// TurnRepo handles turn and turn event database operations.
type TurnRepo struct {
	db *sql.DB
}

// NewTurnRepo creates a TurnRepo.
func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

func scanTurn(row rowScanner) (*model.Turn, error) {
	var t model.Turn
	var stateAfter sql.NullString
	if err := row.Scan(&t.ID, &t.GameID, &t.Number, &t.StateBefore, &stateAfter, &t.Deadline, &t.ResolvedAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	if stateAfter.Valid {
		t.StateAfter = json.RawMessage(stateAfter.String)
	}
	return &t, nil
}

// CreateTurn inserts a new turn.
func (r *TurnRepo) CreateTurn(ctx context.Context, gameID string, number int, stateBefore json.RawMessage, deadline time.Time) (*model.Turn, error) {
	t, err := scanTurn(r.db.QueryRowContext(ctx,
		`INSERT INTO turns (game_id, number, state_before, deadline)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+turnColumns,
		gameID, number, []byte(stateBefore), deadline,
	))
	if err != nil {
		return nil, fmt.Errorf("create turn: %w", err)
	}
	return t, nil
}

// CurrentTurn returns the latest unresolved turn for a game.
func (r *TurnRepo) CurrentTurn(ctx context.Context, gameID string) (*model.Turn, error) {
	t, err := scanTurn(r.db.QueryRowContext(ctx,
		`SELECT `+turnColumns+`
		 FROM turns WHERE game_id = $1 AND resolved_at IS NULL
		 ORDER BY number DESC LIMIT 1`, gameID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current turn: %w", err)
	}
	return t, nil
}

// ListTurns returns all turns for a game in order.
func (r *TurnRepo) ListTurns(ctx context.Context, gameID string) ([]model.Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE game_id = $1 ORDER BY number`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, *t)
	}
	return turns, rows.Err()
}

// ResolveTurn marks a turn as resolved and stores the resulting state.
func (r *TurnRepo) ResolveTurn(ctx context.Context, turnID string, stateAfter json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE turns SET state_after = $1, resolved_at = now() WHERE id = $2`,
		[]byte(stateAfter), turnID,
	)
	if err != nil {
		return fmt.Errorf("resolve turn: %w", err)
	}
	return nil
}

// SaveEvent stores one resolution event. Replaying a step after a crash
// produces the same sequence number, so duplicates are ignored.
func (r *TurnRepo) SaveEvent(ctx context.Context, ev model.TurnEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO turn_events (id, game_id, turn, seq, kind, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (game_id, seq) DO NOTHING`,
		ev.ID, ev.GameID, ev.Turn, ev.Seq, ev.Kind, []byte(ev.Payload),
	)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// EventsByTurn returns the resolution events of one turn in sequence order.
func (r *TurnRepo) EventsByTurn(ctx context.Context, gameID string, turn int) ([]model.TurnEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, turn, seq, kind, payload, created_at
		 FROM turn_events WHERE game_id = $1 AND turn = $2 ORDER BY seq`, gameID, turn,
	)
	if err != nil {
		return nil, fmt.Errorf("events by turn: %w", err)
	}
	defer rows.Close()

	var events []model.TurnEvent
	for rows.Next() {
		var ev model.TurnEvent
		if err := rows.Scan(&ev.ID, &ev.GameID, &ev.Turn, &ev.Seq, &ev.Kind, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListExpired returns the latest unresolved turn per active game whose deadline has passed.
func (r *TurnRepo) ListExpired(ctx context.Context) ([]model.Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT ON (t.game_id) t.id, t.game_id, t.number, t.state_before, t.state_after, t.deadline, t.resolved_at, t.created_at
		 FROM turns t
		 JOIN games g ON g.id = t.game_id
		 WHERE t.resolved_at IS NULL AND t.deadline < now() AND g.status = 'active'
		 ORDER BY t.game_id, t.number DESC`)
	if err != nil {
		return nil, fmt.Errorf("list expired turns: %w", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired turn: %w", err)
		}
		turns = append(turns, *t)
	}
	return turns, rows.Err()
}
