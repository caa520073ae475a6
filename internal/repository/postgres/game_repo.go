package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/polite-conquest/internal/model"
)

const gameColumns = `g.id, g.name, g.creator_id, g.status, g.winner, g.map_name, g.turn_duration, g.step_delay,
	g.max_players, g.created_at, g.started_at, g.finished_at`

// GameRepo handles game and game_player database operations.
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo creates a GameRepo.
func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*model.Game, error) {
	var g model.Game
	var winner sql.NullString
	if err := row.Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &winner, &g.MapName, &g.TurnDuration, &g.StepDelay,
		&g.MaxPlayers, &g.CreatedAt, &g.StartedAt, &g.FinishedAt); err != nil {
		return nil, err
	}
	g.Winner = winner.String
	return &g, nil
}

// Create inserts a new game.
func (r *GameRepo) Create(ctx context.Context, name, creatorID, mapName, turnDur, stepDelay string, maxPlayers int) (*model.Game, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO games AS g (name, creator_id, map_name, turn_duration, step_delay, max_players)
		 VALUES ($1, $2, $3, $4::interval, $5::interval, $6)
		 RETURNING `+gameColumns,
		name, creatorID, mapName, turnDur, stepDelay, maxPlayers,
	)
	g, err := scanGame(row)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return g, nil
}

// FindByID returns a game by ID with its players.
func (r *GameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games g WHERE g.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}

	players, err := r.ListPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Players = players
	return g, nil
}

func (r *GameRepo) listGames(ctx context.Context, what, query string, args ...any) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s games: %w", what, err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// ListOpen returns games in "waiting" status.
func (r *GameRepo) ListOpen(ctx context.Context) ([]model.Game, error) {
	return r.listGames(ctx, "open",
		`SELECT `+gameColumns+` FROM games g WHERE g.status = 'waiting' ORDER BY g.created_at DESC LIMIT 50`)
}

// ListByUser returns all games a user is part of (as player or creator).
func (r *GameRepo) ListByUser(ctx context.Context, userID string) ([]model.Game, error) {
	return r.listGames(ctx, "user",
		`SELECT DISTINCT `+gameColumns+`
		 FROM games g LEFT JOIN game_players gp ON g.id = gp.game_id AND gp.user_id = $1
		 WHERE gp.user_id = $1 OR g.creator_id = $1
		 ORDER BY g.created_at DESC LIMIT 50`, userID)
}

// ListFinished returns all finished games, most recent first.
func (r *GameRepo) ListFinished(ctx context.Context) ([]model.Game, error) {
	return r.listGames(ctx, model.GameFinished,
		`SELECT `+gameColumns+` FROM games g WHERE g.status = 'finished' ORDER BY g.finished_at DESC LIMIT 100`)
}

// ListActive returns all games with status 'active', including their players.
func (r *GameRepo) ListActive(ctx context.Context) ([]model.Game, error) {
	games, err := r.listGames(ctx, model.GameActive,
		`SELECT `+gameColumns+` FROM games g WHERE g.status = 'active' ORDER BY g.created_at`)
	if err != nil {
		return nil, err
	}
	for i := range games {
		players, err := r.ListPlayers(ctx, games[i].ID)
		if err != nil {
			return nil, err
		}
		games[i].Players = players
	}
	return games, nil
}

// JoinGame adds a player to a game.
func (r *GameRepo) JoinGame(ctx context.Context, gameID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_players (game_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		gameID, userID,
	)
	if err != nil {
		return fmt.Errorf("join game: %w", err)
	}
	return nil
}

// JoinGameAsBot adds a bot player to a game with the given difficulty level.
func (r *GameRepo) JoinGameAsBot(ctx context.Context, gameID, userID, difficulty string) error {
	if difficulty == "" {
		difficulty = "easy"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_players (game_id, user_id, is_bot, bot_difficulty) VALUES ($1, $2, true, $3)
		 ON CONFLICT DO NOTHING`,
		gameID, userID, difficulty,
	)
	if err != nil {
		return fmt.Errorf("join game as bot: %w", err)
	}
	return nil
}

// ReplaceBot swaps the most recently joined bot for a human player.
func (r *GameRepo) ReplaceBot(ctx context.Context, gameID, newUserID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var botUserID string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM game_players WHERE game_id = $1 AND is_bot = true
		 ORDER BY joined_at DESC LIMIT 1`,
		gameID,
	).Scan(&botUserID)
	if err != nil {
		return fmt.Errorf("find bot to replace: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM game_players WHERE game_id = $1 AND user_id = $2`,
		gameID, botUserID,
	)
	if err != nil {
		return fmt.Errorf("remove bot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO game_players (game_id, user_id) VALUES ($1, $2)`,
		gameID, newUserID,
	)
	if err != nil {
		return fmt.Errorf("insert human: %w", err)
	}

	return tx.Commit()
}

// UpdateBotDifficulty changes the strategy a bot plays with.
func (r *GameRepo) UpdateBotDifficulty(ctx context.Context, gameID, botUserID, difficulty string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE game_players SET bot_difficulty = $1 WHERE game_id = $2 AND user_id = $3 AND is_bot = true`,
		difficulty, gameID, botUserID)
	if err != nil {
		return fmt.Errorf("update bot difficulty: %w", err)
	}
	return nil
}

// ListPlayers returns all players in a game in join order.
func (r *GameRepo) ListPlayers(ctx context.Context, gameID string) ([]model.GamePlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT gp.game_id, gp.user_id, u.display_name, gp.color, gp.is_bot, gp.bot_difficulty, gp.joined_at
		 FROM game_players gp JOIN users u ON u.id = gp.user_id
		 WHERE gp.game_id = $1 ORDER BY gp.joined_at, gp.user_id`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.GamePlayer
	for rows.Next() {
		var p model.GamePlayer
		var color sql.NullString
		if err := rows.Scan(&p.GameID, &p.UserID, &p.DisplayName, &color, &p.IsBot, &p.BotDifficulty, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.Color = color.String
		players = append(players, p)
	}
	return players, rows.Err()
}

// PlayerCount returns the number of players in a game.
func (r *GameRepo) PlayerCount(ctx context.Context, gameID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM game_players WHERE game_id = $1`, gameID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("player count: %w", err)
	}
	return count, nil
}

// AssignColors stores each player's color and marks the game active.
func (r *GameRepo) AssignColors(ctx context.Context, gameID string, colors map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for userID, color := range colors {
		_, err := tx.ExecContext(ctx,
			`UPDATE game_players SET color = $1 WHERE game_id = $2 AND user_id = $3`,
			color, gameID, userID,
		)
		if err != nil {
			return fmt.Errorf("assign color: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE games SET status = 'active', started_at = now() WHERE id = $1`, gameID,
	)
	if err != nil {
		return fmt.Errorf("update game status: %w", err)
	}

	return tx.Commit()
}

// Delete removes a game and all associated data (cascades to players, turns and events).
func (r *GameRepo) Delete(ctx context.Context, gameID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}

// SetFinished marks a game as finished. winner is empty for a stopped game.
func (r *GameRepo) SetFinished(ctx context.Context, gameID, winner string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'finished', winner = $1, finished_at = now() WHERE id = $2`,
		nullStr(winner), gameID,
	)
	if err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	return nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
