package queries

import (
	"context"
	"sort"
	"strings"

	"ballotbooth/contexts/election/voting-booth/domain/entities"
	"ballotbooth/contexts/election/voting-booth/ports"
)

type ResultsUseCase struct {
	Voters     ports.VoterRepository
	Ballots    ports.BallotBox
	Candidates []string
}

type Results struct {
	Tallies    []entities.CandidateTally
	TotalVotes int
}

// Results tallies the ledger. Configured candidates are listed first in
// ballot order, including those with no votes; any other label found in the
// ledger follows alphabetically.
func (uc ResultsUseCase) Results(ctx context.Context) (Results, error) {
	votes, err := uc.Ballots.ListVotes(ctx)
	if err != nil {
		return Results{}, err
	}
	counts := make(map[string]int, len(uc.Candidates))
	for _, vote := range votes {
		counts[vote.Candidate]++
	}

	tallies := make([]entities.CandidateTally, 0, len(counts)+len(uc.Candidates))
	seen := make(map[string]struct{}, len(uc.Candidates))
	for _, candidate := range uc.Candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		tallies = append(tallies, entities.CandidateTally{Candidate: candidate, Votes: counts[candidate]})
	}
	var extra []string
	for candidate := range counts {
		if _, ok := seen[candidate]; !ok {
			extra = append(extra, candidate)
		}
	}
	sort.Strings(extra)
	for _, candidate := range extra {
		tallies = append(tallies, entities.CandidateTally{Candidate: candidate, Votes: counts[candidate]})
	}
	return Results{Tallies: tallies, TotalVotes: len(votes)}, nil
}

// VoterStatus re-reads the voted flag. Callers use it after an ambiguous
// store failure during a cast before deciding to retry.
func (uc ResultsUseCase) VoterStatus(ctx context.Context, voterID string) (entities.PublicProfile, error) {
	voter, err := uc.Voters.GetVoter(ctx, strings.TrimSpace(voterID))
	if err != nil {
		return entities.PublicProfile{}, err
	}
	return voter.Profile(), nil
}
