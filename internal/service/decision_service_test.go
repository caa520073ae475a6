package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/freeeve/polite-conquest/pkg/conquest"
)

func TestSubmitDecisions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	gameID := h.startGame(t, GameOptions{})
	ids := conquest.StandardMap().IDs()

	queued, err := h.decisions.Submit(ctx, gameID, "user-1", []conquest.Decision{
		{Kind: conquest.KindDraft, Territory: ids[0]},
		{Kind: conquest.KindDraft, Territory: ids[1]},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(queued) != 2 || queued[0].Territory != ids[0] || queued[1].Territory != ids[1] {
		t.Errorf("expected both picks queued in order, got %+v", queued)
	}
	if h.bc.count("decisions_submitted") != 1 {
		t.Errorf("expected decisions_submitted broadcast, got %v", h.bc.events)
	}

	got, err := h.decisions.Decisions(ctx, gameID, "user-1")
	if err != nil {
		t.Fatalf("Decisions: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 decisions persisted, got %d", len(got))
	}
}

func TestSubmitDecisionsIsAtomic(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	gameID := h.startGame(t, GameOptions{})
	ids := conquest.StandardMap().IDs()

	_, err := h.decisions.Submit(ctx, gameID, "user-1", []conquest.Decision{
		{Kind: conquest.KindDraft, Territory: ids[0]},
		{Kind: conquest.KindDraft, Territory: "atlantis"},
	})
	if !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
	var verr *conquest.ValidationError
	if !errors.As(err, &verr) || verr.Code != conquest.CodeUnknownTerritory {
		t.Errorf("expected unknown_territory validation error, got %v", err)
	}

	got, _ := h.decisions.Decisions(ctx, gameID, "user-1")
	if len(got) != 0 {
		t.Errorf("expected rejected batch to leave no decisions, got %+v", got)
	}
}

func TestSubmitDecisionsIntakeClosed(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	gameID := h.startGame(t, GameOptions{})
	ids := conquest.StandardMap().IDs()

	_, err := h.decisions.Submit(ctx, gameID, "user-1", []conquest.Decision{
		{Kind: conquest.KindAdd, Territory: ids[0]},
	})
	if !errors.Is(err, ErrInvalidDecision) || !errors.Is(err, conquest.ErrIntakeClosed) {
		t.Errorf("expected closed intake during the draft, got %v", err)
	}
}

func TestSubmitDecisionsAccessChecks(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	gameID := h.startGame(t, GameOptions{})
	d := []conquest.Decision{{Kind: conquest.KindDraft, Territory: conquest.StandardMap().IDs()[0]}}

	if _, err := h.decisions.Submit(ctx, gameID, "stranger", d); err != ErrNotInGame {
		t.Errorf("expected ErrNotInGame, got %v", err)
	}
	if _, err := h.decisions.Submit(ctx, "nope", "user-1", d); err != ErrGameNotFound {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
	if _, err := h.decisions.Submit(ctx, gameID, "user-1", nil); err != ErrNoDecisions {
		t.Errorf("expected ErrNoDecisions, got %v", err)
	}

	waiting, _ := h.games.CreateGame(ctx, "Lobby", "user-1", GameOptions{})
	if _, err := h.decisions.Submit(ctx, waiting.ID, "user-1", d); err != ErrGameNotActive {
		t.Errorf("expected ErrGameNotActive, got %v", err)
	}
}

func TestRetractDecisions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	gameID := h.startGame(t, GameOptions{})
	ids := conquest.StandardMap().IDs()

	if _, err := h.decisions.Submit(ctx, gameID, "user-1", []conquest.Decision{
		{Kind: conquest.KindDraft, Territory: ids[2]},
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := h.decisions.Retract(ctx, gameID, "user-1", conquest.KindDraft); err != nil {
		t.Fatalf("Retract: %v", err)
	}
	got, _ := h.decisions.Decisions(ctx, gameID, "user-1")
	if len(got) != 0 {
		t.Errorf("expected no decisions after retract, got %+v", got)
	}

	err := h.decisions.Retract(ctx, gameID, "user-1", conquest.KindMove)
	if !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("expected closed move intake during the draft, got %v", err)
	}
}

func TestHumanDecisionsDriveTheDraft(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	gameID := h.startGame(t, GameOptions{})
	h.runBots()

	// Ask for every territory; the draft hands out the first unclaimed ones.
	var picks []conquest.Decision
	for _, id := range conquest.StandardMap().IDs() {
		picks = append(picks, conquest.Decision{Kind: conquest.KindDraft, Territory: id})
	}
	if _, err := h.decisions.Submit(ctx, gameID, "user-1", picks); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h.turnRepo.turns[0].Deadline = time.Now().Add(-time.Second)
	if err := h.turns.ResolveTurn(ctx, gameID); err != nil {
		t.Fatalf("ResolveTurn: %v", err)
	}

	g, err := h.turns.View(ctx, gameID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	for _, p := range g.Players() {
		if p.Territories != 1 {
			t.Errorf("expected %s to hold one territory after the draft, got %d", p.ID, p.Territories)
		}
	}

	events, _ := h.turns.Events(ctx, gameID, 1)
	found := false
	for _, ev := range events {
		var payload conquest.ResolutionEvent
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			t.Fatalf("decode event %d: %v", ev.Seq, err)
		}
		if payload.Draft != nil && payload.Draft.Player == "user-1" {
			found = true
			if !payload.Draft.Preferred {
				t.Errorf("expected user-1 to get a preferred pick, got %+v", payload.Draft)
			}
		}
	}
	if !found {
		t.Error("expected a draft pick for user-1")
	}
}

func TestAwardPoints(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	gameID := h.startGame(t, GameOptions{})

	if err := h.decisions.AwardPoints(ctx, gameID, "user-1", "user-1", 3); err != nil {
		t.Fatalf("AwardPoints: %v", err)
	}
	g, _ := h.turns.View(ctx, gameID)
	for _, p := range g.Players() {
		if p.ID == "user-1" && (p.Points != 3 || p.WeeklyPoints != 3) {
			t.Errorf("expected 3 points, got %d/%d", p.Points, p.WeeklyPoints)
		}
	}

	if err := h.decisions.AwardPoints(ctx, gameID, "user-2", "user-1", 3); err != ErrNotCreator {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
	if err := h.decisions.AwardPoints(ctx, gameID, "user-1", "user-1", 0); err != ErrBadPoints {
		t.Errorf("expected ErrBadPoints, got %v", err)
	}
	if err := h.decisions.AwardPoints(ctx, gameID, "user-1", "ghost", 1); err != ErrNotInGame {
		t.Errorf("expected ErrNotInGame, got %v", err)
	}
}
