package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/internal/bot"
	"github.com/freeeve/polite-conquest/internal/config"
	"github.com/freeeve/polite-conquest/internal/logger"
	"github.com/freeeve/polite-conquest/internal/repository/postgres"
)

func main() {
	var (
		seats    string
		matchup  string
		players  int
		numGames int
		maxTurns int
		points   int
		seed     uint64
		save     bool
		verify   bool
		jsonOut  bool
		logLevel string
	)

	flag.StringVar(&seats, "p", "", "Seat difficulties (e.g. easy,hard,medium,easy)")
	flag.StringVar(&matchup, "matchup", "", "Shorthand tier-vs-tier (e.g. hard-vs-easy)")
	flag.IntVar(&players, "players", 4, "Seats when using -matchup or the default")
	flag.IntVar(&numGames, "n", 1, "Number of games to run")
	flag.IntVar(&maxTurns, "turns", 30, "Max turns per game")
	flag.IntVar(&points, "points", 5, "Max points each player earns per turn")
	flag.Uint64Var(&seed, "seed", 1, "Base seed; game i uses seed+i")
	flag.BoolVar(&save, "save", false, "Record games to the database")
	flag.BoolVar(&verify, "verify", false, "Replay each game and fail if the result differs")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")
	flag.StringVar(&logLevel, "log", "warn", "Log level")
	flag.Parse()

	logger.Init(logger.Options{Level: logLevel})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}

	difficulties, err := parseSeats(seats, matchup, players)
	if err != nil {
		log.Fatal().Err(err).Msg("Bad seat configuration")
	}
	label := buildLabel(difficulties)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	var rec *dbRecorder
	if save {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()
		rec = &dbRecorder{
			gameRepo: postgres.NewGameRepo(db),
			turnRepo: postgres.NewTurnRepo(db),
			userRepo: postgres.NewUserRepo(db),
		}
	}

	results := make([]*bot.ArenaResult, 0, numGames)
	errCount := 0
	for i := 0; i < numGames; i++ {
		arena := bot.ArenaConfig{
			GameName:     fmt.Sprintf("%s #%d", label, i+1),
			Difficulties: difficulties,
			Rules:        cfg.Rules,
			MaxTurns:     maxTurns,
			MaxPoints:    points,
			Seed:         seed + uint64(i),
		}

		result, err := runOne(ctx, arena, rec)
		if err != nil {
			log.Error().Err(err).Int("game", i+1).Msg("Game failed")
			errCount++
			continue
		}
		if verify {
			again, err := bot.RunGame(ctx, arena, nil)
			if err != nil {
				log.Error().Err(err).Int("game", i+1).Msg("Replay failed")
				errCount++
				continue
			}
			if again.Digest != result.Digest {
				log.Error().Int("game", i+1).Uint64("seed", arena.Seed).
					Str("first", result.Digest).Str("replay", again.Digest).Msg("Replay diverged")
				errCount++
				continue
			}
		}
		results = append(results, result)
		log.Info().Int("game", i+1).Int("turns", result.Turns).Bool("gameOver", result.GameOver).
			Interface("winners", result.Winners).Msg("Game completed")
	}

	if jsonOut {
		printJSON(results, numGames, errCount)
	} else {
		printSummary(results, maxTurns, errCount, label, save)
	}
	if errCount > 0 {
		os.Exit(1)
	}
}

// runOne plays a game, recording it to the database when rec is set.
func runOne(ctx context.Context, arena bot.ArenaConfig, rec *dbRecorder) (*bot.ArenaResult, error) {
	if rec == nil {
		return bot.RunGame(ctx, arena, nil)
	}
	ids, err := rec.setup(ctx, arena.GameName, arena.MapName, arena.Difficulties)
	if err != nil {
		return nil, err
	}
	arena.PlayerIDs = ids
	result, err := bot.RunGame(ctx, arena, rec)
	if err != nil {
		return nil, err
	}
	if err := rec.finish(ctx, result.Winners); err != nil {
		return nil, err
	}
	return result, nil
}

// parseSeats resolves the seat list from -p, -matchup or the all-easy default.
func parseSeats(seats, matchup string, players int) ([]string, error) {
	var out []string
	switch {
	case seats != "":
		for _, s := range strings.Split(seats, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case matchup != "":
		parts := strings.SplitN(matchup, "-vs-", 2)
		if len(parts) != 2 {
			parts = []string{matchup, matchup}
		}
		out = append(out, parts[0])
		for len(out) < players {
			out = append(out, parts[1])
		}
	default:
		for range players {
			out = append(out, "easy")
		}
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("need at least 2 seats, got %d", len(out))
	}
	for _, d := range out {
		switch d {
		case "easy", "medium", "hard", "random", "hold":
		default:
			return nil, fmt.Errorf("unknown difficulty %q", d)
		}
	}
	return out, nil
}

func buildLabel(difficulties []string) string {
	counts := make(map[string]int)
	for _, d := range difficulties {
		counts[d]++
	}
	if len(counts) == 1 {
		return fmt.Sprintf("botmatch: all-%s", difficulties[0])
	}
	var parts []string
	for d, c := range counts {
		name := d
		if c > 1 {
			name += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", c, name))
	}
	sort.Strings(parts)
	return "botmatch: " + strings.Join(parts, " vs ")
}

func printSummary(results []*bot.ArenaResult, maxTurns, errCount int, label string, saved bool) {
	type stats struct {
		games, wins, survived, territories int
	}
	byStrategy := make(map[string]*stats)
	for _, r := range results {
		winners := make(map[string]bool)
		for _, w := range r.Winners {
			winners[string(w)] = true
		}
		for _, s := range r.Standings {
			st := byStrategy[s.Strategy]
			if st == nil {
				st = &stats{}
				byStrategy[s.Strategy] = st
			}
			st.games++
			st.territories += s.Territories
			if winners[string(s.Player)] {
				st.wins++
			}
			if !s.Eliminated {
				st.survived++
			}
		}
	}

	fmt.Printf("\n%s: %d games (max %d turns)\n", label, len(results), maxTurns)
	if errCount > 0 {
		fmt.Printf("  (%d games failed)\n", errCount)
	}
	var names []string
	for name := range byStrategy {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := byStrategy[name]
		fmt.Printf("  %-22s %3d seats  %3d wins  %3d survived  -- avg territories: %.1f\n",
			name, s.games, s.wins, s.survived, float64(s.territories)/float64(s.games))
	}

	if len(results) == 1 {
		r := results[0]
		fmt.Printf("\nFinal standings (turn %d, seed %d, digest %s):\n", r.Turns, r.Seed, r.Digest)
		for i, s := range r.Standings {
			status := ""
			if s.Eliminated {
				status = "eliminated"
			}
			fmt.Printf("  %d. %-12s %-22s %2d territories  %3d troops  %3d points  %s\n",
				i+1, s.Player, s.Strategy, s.Territories, s.Troops, s.Points, status)
		}
	}

	if saved && len(results) > 0 {
		fmt.Printf("\nGames saved to database as \"%s #1\" through \"#%d\"\n", label, len(results))
	}
}

func printJSON(results []*bot.ArenaResult, total, errCount int) {
	out := struct {
		Total   int                `json:"total"`
		Errors  int                `json:"errors"`
		Results []*bot.ArenaResult `json:"results"`
	}{
		Total:   total,
		Errors:  errCount,
		Results: results,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
