package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/internal/bot"
	"github.com/freeeve/polite-conquest/internal/logger"
)

func main() {
	url := flag.String("url", "http://localhost:8009", "server base URL")
	seats := flag.String("p", "easy,medium,hard,random", "bot difficulties, one per seat")
	turnDuration := flag.Duration("turn-duration", 10*time.Second, "turn duration for the game")
	wait := flag.Bool("wait", false, "let turns run to their deadline instead of advancing early")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	logger.Init(logger.Options{Level: level, Dev: true})

	var difficulties []string
	for _, d := range strings.Split(*seats, ",") {
		if d = strings.TrimSpace(d); d != "" {
			difficulties = append(difficulties, d)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	orch := bot.NewOrchestrator(*url, difficulties, *turnDuration)
	orch.Wait = *wait
	winners, err := orch.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Bot orchestrator failed")
	}
	log.Info().Interface("winners", winners).Msg("Bot game completed successfully")
}
