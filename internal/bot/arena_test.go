package bot

import (
	"context"
	"testing"

	"github.com/freeeve/polite-conquest/pkg/conquest"
)

type countingRecorder struct {
	started, ended []int
	events         int
	lastSeq        int
	gaps           int
}

func (r *countingRecorder) TurnStarted(_ context.Context, turn int, _ conquest.Envelope) error {
	r.started = append(r.started, turn)
	return nil
}

func (r *countingRecorder) Event(_ context.Context, ev *conquest.ResolutionEvent) error {
	r.events++
	if ev.Seq != r.lastSeq+1 {
		r.gaps++
	}
	r.lastSeq = ev.Seq
	return nil
}

func (r *countingRecorder) TurnEnded(_ context.Context, turn int, _ conquest.Envelope) error {
	r.ended = append(r.ended, turn)
	return nil
}

func arenaConfig(seed uint64) ArenaConfig {
	return ArenaConfig{
		GameName:     "test",
		Difficulties: []string{"easy", "medium", "hard", "random"},
		Rules:        conquest.DefaultRules(),
		MaxTurns:     12,
		MaxPoints:    5,
		Seed:         seed,
	}
}

func TestRunGameIsDeterministic(t *testing.T) {
	first, err := RunGame(context.Background(), arenaConfig(42), nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := RunGame(context.Background(), arenaConfig(42), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Digest != second.Digest {
		t.Fatalf("same seed produced different states: %s vs %s", first.Digest, second.Digest)
	}
	if first.Events != second.Events || first.Turns != second.Turns {
		t.Errorf("same seed produced different runs: %+v vs %+v", first, second)
	}
}

func TestRunGameRecordsEveryEvent(t *testing.T) {
	rec := &countingRecorder{}
	res, err := RunGame(context.Background(), arenaConfig(9), rec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.events != res.Events {
		t.Errorf("recorder saw %d events, result counts %d", rec.events, res.Events)
	}
	if rec.gaps != 0 {
		t.Errorf("event sequence has %d gaps", rec.gaps)
	}
	if len(rec.started) != res.Turns || len(rec.ended) != res.Turns {
		t.Errorf("expected %d turns recorded, got %d started / %d ended", res.Turns, len(rec.started), len(rec.ended))
	}
	if len(res.Standings) != 4 {
		t.Fatalf("expected 4 standings, got %d", len(res.Standings))
	}
	total := 0
	for _, s := range res.Standings {
		total += s.Territories
	}
	if total < 1 || total > len(conquest.StandardMap().IDs()) {
		t.Errorf("standings cover %d territories, map has %d", total, len(conquest.StandardMap().IDs()))
	}
	if res.Standings[0].Eliminated {
		t.Error("an eliminated player should not lead the standings")
	}
}

func TestRunGameRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  ArenaConfig
	}{
		{"one player", ArenaConfig{Difficulties: []string{"easy"}, MaxTurns: 1, Rules: conquest.DefaultRules()}},
		{"no turns", ArenaConfig{Difficulties: []string{"easy", "easy"}, Rules: conquest.DefaultRules()}},
		{"unknown map", ArenaConfig{Difficulties: []string{"easy", "easy"}, MaxTurns: 1, MapName: "mars", Rules: conquest.DefaultRules()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RunGame(context.Background(), tt.cfg, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunGameHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunGame(ctx, arenaConfig(1), nil); err == nil {
		t.Fatal("expected context error")
	}
}
