package ports

import (
	"context"
	"time"

	contractsv1 "ballotbooth/contracts/gen/events/v1"
	"ballotbooth/contexts/election/voting-booth/domain/entities"
	"ballotbooth/contexts/election/voting-booth/domain/services"
)

// VoterRepository is the VoterStore. Enrollment writes are admin-only and
// never called from the verification flow.
type VoterRepository interface {
	GetVoter(ctx context.Context, voterID string) (entities.Voter, error)
	CreateVoter(ctx context.Context, voter entities.Voter) error
	UpdateVoter(ctx context.Context, voter entities.Voter) error
	DeleteVoter(ctx context.Context, voterID string) error
	ListVoters(ctx context.Context) ([]entities.Voter, error)
	ResetVoted(ctx context.Context, voterID string, clearTemplates bool, updatedAt time.Time) error
}

// BallotBox is the VoteLedger plus the voted-flag transition. CastVote must
// apply "voter exists, has not voted, append vote, set voted, append outbox
// event" as one atomic unit, linearizable per voter.
type BallotBox interface {
	CastVote(ctx context.Context, vote entities.Vote, event EventEnvelope) error
	ListVotes(ctx context.Context) ([]entities.Vote, error)
}

// SessionStore keeps in-flight verification sessions in process memory.
type SessionStore interface {
	CreateSession(ctx context.Context, session entities.Session) error
	GetSession(ctx context.Context, sessionID string) (entities.Session, error)
	// AdvanceSession moves the session from expected to next only if it is
	// still in expected; otherwise it returns ErrInvalidTransition.
	AdvanceSession(ctx context.Context, sessionID string, expected entities.Stage, next entities.Stage, voterID string, updatedAt time.Time) (entities.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// BiometricMatcher is the only surface the booth uses for face checks so a
// stronger matcher can be swapped in.
type BiometricMatcher interface {
	Extract(ctx context.Context, image []byte) (services.FeatureVector, error)
	Compare(a services.FeatureVector, b services.FeatureVector) (bool, error)
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventDedupStore interface {
	// ReserveEvent returns true when the event was already processed.
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// Notifier delivers voter-facing messages (SMS in production).
type Notifier interface {
	Notify(ctx context.Context, phone string, message string) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
