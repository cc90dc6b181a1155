package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"ballotbooth/contexts/election/voting-booth/adapters/memory"
	"ballotbooth/contexts/election/voting-booth/domain/entities"
	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/ports"
)

func castFor(t *testing.T, store *memory.Store, voterID string, candidate string) {
	t.Helper()
	vote := entities.Vote{VoteID: "vote-" + voterID, VoterID: voterID, Candidate: candidate, CastAt: time.Now().UTC()}
	event := ports.EventEnvelope{EventID: "evt-" + voterID, EventType: "vote.cast", PartitionKey: voterID}
	if err := store.CastVote(context.Background(), vote, event); err != nil {
		t.Fatalf("cast for %s failed: %v", voterID, err)
	}
}

func TestResultsListsBallotOrderWithZeroes(t *testing.T) {
	store := memory.NewStore([]entities.Voter{
		{VoterID: "V1", Name: "A", DateOfBirth: "1990-01-01"},
		{VoterID: "V2", Name: "B", DateOfBirth: "1990-01-01"},
		{VoterID: "V3", Name: "C", DateOfBirth: "1990-01-01"},
		{VoterID: "V4", Name: "D", DateOfBirth: "1990-01-01"},
	})
	castFor(t, store, "V1", "Candidate B")
	castFor(t, store, "V2", "Candidate B")
	castFor(t, store, "V3", "Candidate A")
	castFor(t, store, "V4", "Retired Candidate")

	uc := ResultsUseCase{Voters: store, Ballots: store, Candidates: []string{"Candidate A", "Candidate B", "Candidate C"}}
	results, err := uc.Results(context.Background())
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	if results.TotalVotes != 4 {
		t.Fatalf("expected 4 total votes, got %d", results.TotalVotes)
	}
	want := []entities.CandidateTally{
		{Candidate: "Candidate A", Votes: 1},
		{Candidate: "Candidate B", Votes: 2},
		{Candidate: "Candidate C", Votes: 0},
		{Candidate: "Retired Candidate", Votes: 1},
	}
	if len(results.Tallies) != len(want) {
		t.Fatalf("expected %d tallies, got %+v", len(want), results.Tallies)
	}
	for i := range want {
		if results.Tallies[i] != want[i] {
			t.Fatalf("tally %d: expected %+v, got %+v", i, want[i], results.Tallies[i])
		}
	}
}

func TestResultsOnEmptyLedger(t *testing.T) {
	store := memory.NewStore(nil)
	uc := ResultsUseCase{Voters: store, Ballots: store, Candidates: []string{"Candidate A", "Candidate A"}}
	results, err := uc.Results(context.Background())
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	if results.TotalVotes != 0 || len(results.Tallies) != 1 || results.Tallies[0].Votes != 0 {
		t.Fatalf("unexpected empty results: %+v", results)
	}
}

func TestVoterStatus(t *testing.T) {
	store := memory.NewStore([]entities.Voter{{VoterID: "V1", Name: "A", DateOfBirth: "1990-01-01", FingerprintTemplate: "FP-V1"}})
	uc := ResultsUseCase{Voters: store, Ballots: store}

	profile, err := uc.VoterStatus(context.Background(), "V1")
	if err != nil || profile.HasVoted {
		t.Fatalf("expected unvoted profile, got %+v err=%v", profile, err)
	}
	castFor(t, store, "V1", "Candidate A")
	profile, _ = uc.VoterStatus(context.Background(), " V1 ")
	if !profile.HasVoted {
		t.Fatalf("expected has_voted after cast")
	}
	if _, err := uc.VoterStatus(context.Background(), "V404"); !errors.Is(err, domainerrors.ErrVoterNotFound) {
		t.Fatalf("expected ErrVoterNotFound, got %v", err)
	}
}
