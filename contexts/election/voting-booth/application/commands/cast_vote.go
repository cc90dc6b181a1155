package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "ballotbooth/contexts/election/voting-booth/application"
	"ballotbooth/contexts/election/voting-booth/domain/entities"
	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/ports"
)

// VoteCaster is the single critical section of the booth. It treats the
// candidate as an opaque label; ballot membership is checked by the caller.
type VoteCaster struct {
	Ballots ports.BallotBox
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

// Cast commits one vote for voterID. Concurrent calls for the same voter
// resolve to exactly one success; the rest observe ErrAlreadyVoted.
//
// ErrStoreFailure means the outcome is unknown: the caller should re-read
// the voter's has_voted flag before retrying.
func (c VoteCaster) Cast(ctx context.Context, voterID string, candidate string) (entities.Vote, error) {
	logger := application.ResolveLogger(c.Logger)
	voterID = strings.TrimSpace(voterID)
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		logger.Warn("vote cast rejected empty candidate",
			"event", "booth_vote_cast_invalid_candidate",
			"module", application.ModuleName,
			"layer", "application",
			"voter_id", voterID,
		)
		return entities.Vote{}, domainerrors.ErrInvalidCandidate
	}
	if voterID == "" {
		return entities.Vote{}, domainerrors.ErrVoterNotFound
	}

	voteID, err := c.IDGen.NewID(ctx)
	if err != nil {
		return entities.Vote{}, fmt.Errorf("%w: %w", domainerrors.ErrStoreFailure, err)
	}
	eventID, err := c.IDGen.NewID(ctx)
	if err != nil {
		return entities.Vote{}, fmt.Errorf("%w: %w", domainerrors.ErrStoreFailure, err)
	}
	now := c.now()
	vote := entities.Vote{
		VoteID:    voteID,
		VoterID:   voterID,
		Candidate: candidate,
		CastAt:    now,
	}
	envelope, err := newBoothEnvelope(eventID, EventVoteCast, voterID, now, map[string]any{
		"vote_id":  vote.VoteID,
		"voter_id": vote.VoterID,
		"cast_at":  now.Format(time.RFC3339),
	})
	if err != nil {
		return entities.Vote{}, err
	}

	if err := c.Ballots.CastVote(ctx, vote, envelope); err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrAlreadyVoted):
			logger.Warn("vote cast rejected already voted",
				"event", "booth_vote_cast_already_voted",
				"module", application.ModuleName,
				"layer", "application",
				"voter_id", voterID,
			)
			return entities.Vote{}, domainerrors.ErrAlreadyVoted
		case errors.Is(err, domainerrors.ErrVoterNotFound):
			return entities.Vote{}, domainerrors.ErrVoterNotFound
		case errors.Is(err, domainerrors.ErrStoreFailure):
		default:
			err = fmt.Errorf("%w: %w", domainerrors.ErrStoreFailure, err)
		}
		logger.Error("vote cast store failure",
			"event", "booth_vote_cast_store_failed",
			"module", application.ModuleName,
			"layer", "application",
			"voter_id", voterID,
			"error", err.Error(),
		)
		return entities.Vote{}, err
	}

	logger.Info("vote cast",
		"event", "booth_vote_cast",
		"module", application.ModuleName,
		"layer", "application",
		"voter_id", voterID,
		"vote_id", vote.VoteID,
	)
	return vote, nil
}

func (c VoteCaster) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now().UTC()
}
