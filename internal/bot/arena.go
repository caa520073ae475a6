package bot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/pkg/conquest"
)

// ArenaConfig configures a local all-bot game.
type ArenaConfig struct {
	GameName string
	// Difficulties has one entry per seat, e.g. ["easy", "hard", "easy"].
	Difficulties []string
	// PlayerIDs optionally names the seats; defaults to bot-1, bot-2, ...
	PlayerIDs []conquest.PlayerID
	MapName   string
	Rules     conquest.Rules
	MaxTurns  int
	// MaxPoints bounds the points each player earns per turn from outside
	// activity. Zero gives nobody points, so only territory bonuses pay troops.
	MaxPoints int
	Seed      uint64
}

// Standing is one player's position when the arena stops.
type Standing struct {
	Player      conquest.PlayerID `json:"player"`
	Strategy    string            `json:"strategy"`
	Territories int               `json:"territories"`
	Troops      int               `json:"troops"`
	Points      int               `json:"points"`
	Kills       int               `json:"kills"`
	Deaths      int               `json:"deaths"`
	Eliminated  bool              `json:"eliminated"`
	FinalRank   int               `json:"finalRank,omitempty"`
}

// ArenaResult summarizes a finished arena game.
type ArenaResult struct {
	GameName  string              `json:"gameName"`
	Seed      uint64              `json:"seed"`
	Turns     int                 `json:"turns"`
	Events    int                 `json:"events"`
	Rejected  int                 `json:"rejected"`
	GameOver  bool                `json:"gameOver"`
	Winners   []conquest.PlayerID `json:"winners,omitempty"`
	Standings []Standing          `json:"standings"`
	// Digest is a hash of the final persisted state. Two runs with the same
	// config must produce the same digest.
	Digest string `json:"digest"`
}

// Recorder observes an arena game as it is played.
type Recorder interface {
	TurnStarted(ctx context.Context, turn int, env conquest.Envelope) error
	Event(ctx context.Context, ev *conquest.ResolutionEvent) error
	TurnEnded(ctx context.Context, turn int, env conquest.Envelope) error
}

// arenaMu serializes arena games: strategies share the package random source.
var arenaMu sync.Mutex

// RunGame plays an all-bot game in memory until it ends or MaxTurns turns
// have been played. rec may be nil.
func RunGame(ctx context.Context, cfg ArenaConfig, rec Recorder) (*ArenaResult, error) {
	if len(cfg.Difficulties) < 2 {
		return nil, fmt.Errorf("arena needs at least 2 players, got %d", len(cfg.Difficulties))
	}
	if len(cfg.PlayerIDs) > 0 && len(cfg.PlayerIDs) != len(cfg.Difficulties) {
		return nil, fmt.Errorf("%d player ids for %d seats", len(cfg.PlayerIDs), len(cfg.Difficulties))
	}
	if cfg.MaxTurns < 1 {
		return nil, fmt.Errorf("max turns must be at least 1, got %d", cfg.MaxTurns)
	}
	m, err := conquest.MapByName(cfg.MapName)
	if err != nil {
		return nil, err
	}

	arenaMu.Lock()
	defer arenaMu.Unlock()
	SeedBotRng(cfg.Seed)
	defer ResetBotRng()

	roster := make([]conquest.Player, len(cfg.Difficulties))
	strategies := make(map[conquest.PlayerID]Strategy, len(cfg.Difficulties))
	for i, d := range cfg.Difficulties {
		id := conquest.PlayerID(fmt.Sprintf("bot-%d", i+1))
		if len(cfg.PlayerIDs) > 0 {
			id = cfg.PlayerIDs[i]
		}
		roster[i] = conquest.Player{ID: id, Name: fmt.Sprintf("Bot %d (%s)", i+1, d)}
		strategies[id] = StrategyForDifficulty(d)
	}

	e, err := conquest.New(m, roster, cfg.Rules, conquest.NewDice(cfg.Seed))
	if err != nil {
		return nil, err
	}

	res := &ArenaResult{GameName: cfg.GameName, Seed: cfg.Seed}
	for res.Turns < cfg.MaxTurns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report, err := e.BeginTurn()
		if errors.Is(err, conquest.ErrGameOver) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("begin turn: %w", err)
		}
		res.Turns = report.Turn
		if rec != nil {
			env, err := e.Envelope()
			if err != nil {
				return nil, err
			}
			if err := rec.TurnStarted(ctx, report.Turn, env); err != nil {
				return nil, err
			}
		}

		for _, p := range e.Players() {
			if p.Eliminated {
				continue
			}
			if cfg.MaxPoints > 0 {
				if n := botIntn(cfg.MaxPoints + 1); n > 0 {
					if err := e.AwardPoints(p.ID, n); err != nil {
						return nil, err
					}
				}
			}
			for _, d := range strategies[p.ID].GenerateDecisions(e, p.ID) {
				if err := e.Submit(p.ID, d); err != nil {
					res.Rejected++
					log.Debug().Err(err).Str("player", string(p.ID)).Str("decision", d.Describe()).Msg("Arena decision rejected")
				}
			}
		}

		for {
			ev, err := e.Advance()
			if err != nil {
				return nil, fmt.Errorf("turn %d: advance: %w", report.Turn, err)
			}
			res.Events++
			if rec != nil {
				if err := rec.Event(ctx, ev); err != nil {
					return nil, err
				}
			}
			if !ev.Continue {
				break
			}
		}
		if rec != nil {
			env, err := e.Envelope()
			if err != nil {
				return nil, err
			}
			if err := rec.TurnEnded(ctx, report.Turn, env); err != nil {
				return nil, err
			}
		}
	}

	status := e.Status()
	res.GameOver = status.GameOver
	res.Winners = status.Winners
	res.Standings = standings(e, strategies)

	data, err := conquest.Marshal(e)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	res.Digest = hex.EncodeToString(sum[:8])
	return res, nil
}

// standings puts survivors first. Ranked players sort by final rank, the
// rest by territories, troops and points.
func standings(g conquest.Game, strategies map[conquest.PlayerID]Strategy) []Standing {
	var out []Standing
	for _, p := range g.Players() {
		out = append(out, Standing{
			Player:      p.ID,
			Strategy:    strategies[p.ID].Name(),
			Territories: p.Territories,
			Troops:      p.Troops,
			Points:      p.Points,
			Kills:       p.Kills,
			Deaths:      p.Deaths,
			Eliminated:  p.Eliminated,
			FinalRank:   p.FinalRank,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Eliminated != b.Eliminated {
			return !a.Eliminated
		}
		if a.FinalRank > 0 && b.FinalRank > 0 {
			return a.FinalRank < b.FinalRank
		}
		if a.Territories != b.Territories {
			return a.Territories > b.Territories
		}
		if a.Troops != b.Troops {
			return a.Troops > b.Troops
		}
		return a.Points > b.Points
	})
	return out
}
