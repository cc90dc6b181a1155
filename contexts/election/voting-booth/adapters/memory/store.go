package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"ballotbooth/contexts/election/voting-booth/domain/entities"
	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is the single-process VoterStore and VoteLedger. One mutex covers
// voters, votes and outbox so CastVote is atomic with respect to every
// other writer.
type Store struct {
	mu sync.RWMutex

	voters     map[string]entities.Voter
	votes      []entities.Vote
	outbox     map[string]outboxRecord
	eventDedup map[string]dedupRecord
}

func NewStore(seed []entities.Voter) *Store {
	voters := make(map[string]entities.Voter, len(seed))
	for _, voter := range seed {
		voters[strings.TrimSpace(voter.VoterID)] = cloneVoter(voter)
	}
	return &Store{
		voters:     voters,
		outbox:     make(map[string]outboxRecord),
		eventDedup: make(map[string]dedupRecord),
	}
}

func (s *Store) GetVoter(_ context.Context, voterID string) (entities.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	voter, ok := s.voters[strings.TrimSpace(voterID)]
	if !ok {
		return entities.Voter{}, domainerrors.ErrVoterNotFound
	}
	return cloneVoter(voter), nil
}

func (s *Store) CreateVoter(_ context.Context, voter entities.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(voter.VoterID)
	if _, exists := s.voters[key]; exists {
		return domainerrors.ErrVoterExists
	}
	s.voters[key] = cloneVoter(voter)
	return nil
}

func (s *Store) UpdateVoter(_ context.Context, voter entities.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(voter.VoterID)
	existing, ok := s.voters[key]
	if !ok {
		return domainerrors.ErrVoterNotFound
	}
	// has_voted only changes through CastVote and ResetVoted.
	voter.HasVoted = existing.HasVoted
	voter.CreatedAt = existing.CreatedAt
	s.voters[key] = cloneVoter(voter)
	return nil
}

func (s *Store) DeleteVoter(_ context.Context, voterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(voterID)
	if _, ok := s.voters[key]; !ok {
		return domainerrors.ErrVoterNotFound
	}
	delete(s.voters, key)
	return nil
}

func (s *Store) ListVoters(_ context.Context) ([]entities.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Voter, 0, len(s.voters))
	for _, voter := range s.voters {
		items = append(items, cloneVoter(voter))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].VoterID < items[j].VoterID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ResetVoted(_ context.Context, voterID string, clearTemplates bool, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(voterID)
	voter, ok := s.voters[key]
	if !ok {
		return domainerrors.ErrVoterNotFound
	}
	voter.HasVoted = false
	if clearTemplates {
		voter.FingerprintTemplate = ""
		voter.FaceTemplate = nil
	}
	voter.UpdatedAt = updatedAt.UTC()
	s.voters[key] = voter
	return nil
}

func (s *Store) CastVote(_ context.Context, vote entities.Vote, event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(vote.VoterID)
	voter, ok := s.voters[key]
	if !ok {
		return domainerrors.ErrVoterNotFound
	}
	if voter.HasVoted {
		return domainerrors.ErrAlreadyVoted
	}
	outboxID := strings.TrimSpace(event.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return domainerrors.ErrConflict
	}

	s.votes = append(s.votes, vote)
	voter.HasVoted = true
	voter.UpdatedAt = vote.CastAt.UTC()
	s.voters[key] = voter
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(event.EventType),
			PartitionKey: strings.TrimSpace(event.PartitionKey),
			Payload:      payload,
			CreatedAt:    event.OccurredAt.UTC(),
		},
	}
	return nil
}

func (s *Store) ListVotes(_ context.Context) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Vote(nil), s.votes...), nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneVoter(voter entities.Voter) entities.Voter {
	if voter.FaceTemplate != nil {
		voter.FaceTemplate = bytes.Clone(voter.FaceTemplate)
	}
	return voter
}

var _ ports.VoterRepository = (*Store)(nil)
var _ ports.BallotBox = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
