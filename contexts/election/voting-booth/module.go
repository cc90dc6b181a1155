package votingbooth

import (
	"log/slog"
	"time"

	httpadapter "ballotbooth/contexts/election/voting-booth/adapters/http"
	"ballotbooth/contexts/election/voting-booth/adapters/landmark"
	"ballotbooth/contexts/election/voting-booth/adapters/memory"
	"ballotbooth/contexts/election/voting-booth/adapters/sms"
	"ballotbooth/contexts/election/voting-booth/application/commands"
	"ballotbooth/contexts/election/voting-booth/application/queries"
	"ballotbooth/contexts/election/voting-booth/application/workers"
	"ballotbooth/contexts/election/voting-booth/domain/entities"
	"ballotbooth/contexts/election/voting-booth/domain/services"
	"ballotbooth/contexts/election/voting-booth/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Store    *memory.Store
	Sessions *memory.SessionStore

	OutboxRelay    workers.OutboxRelay
	Notifier       workers.VoteCastNotifier
	SessionSweeper workers.SessionSweeper
}

type Dependencies struct {
	Voters   ports.VoterRepository
	Ballots  ports.BallotBox
	Outbox   ports.OutboxRepository
	Dedup    ports.EventDedupStore
	Sessions ports.SessionStore
	Matcher  ports.BiometricMatcher
	Notifier ports.Notifier

	Publisher  ports.EventPublisher
	Subscriber ports.EventSubscriber

	Clock ports.Clock
	IDGen ports.IDGenerator

	Candidates            []string
	MinimumAge            int
	SessionTTL            time.Duration
	ResetRequiresReenroll bool
	OutboxBatchSize       int
	Logger                *slog.Logger
}

func NewModule(deps Dependencies) Module {
	minimumAge := deps.MinimumAge
	if minimumAge <= 0 {
		minimumAge = services.MinimumVotingAge
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = sms.LogNotifier{Logger: deps.Logger}
	}

	caster := commands.VoteCaster{
		Ballots: deps.Ballots,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
	}
	booth := commands.BoothUseCase{
		Voters:     deps.Voters,
		Sessions:   deps.Sessions,
		Matcher:    deps.Matcher,
		Caster:     caster,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Candidates: append([]string(nil), deps.Candidates...),
		MinimumAge: minimumAge,
		SessionTTL: deps.SessionTTL,
		Logger:     deps.Logger,
	}
	enrollment := commands.EnrollmentUseCase{
		Voters:                deps.Voters,
		Matcher:               deps.Matcher,
		Clock:                 deps.Clock,
		ResetRequiresReenroll: deps.ResetRequiresReenroll,
		Logger:                deps.Logger,
	}
	results := queries.ResultsUseCase{
		Voters:     deps.Voters,
		Ballots:    deps.Ballots,
		Candidates: append([]string(nil), deps.Candidates...),
	}

	return Module{
		Handler: httpadapter.Handler{
			Booth:      booth,
			Enrollment: enrollment,
			Results:    results,
			Logger:     deps.Logger,
		},
		OutboxRelay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.OutboxBatchSize,
			Logger:    deps.Logger,
		},
		Notifier: workers.VoteCastNotifier{
			Subscriber: deps.Subscriber,
			Dedup:      deps.Dedup,
			Voters:     deps.Voters,
			Notifier:   notifier,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
		},
		SessionSweeper: workers.SessionSweeper{
			Sessions: deps.Sessions,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
	}
}

// NewInMemoryModule wires every store port to process memory and matches
// faces with detector. Publisher and Subscriber stay nil; callers that run
// the workers set them through NewModule instead.
func NewInMemoryModule(seed []entities.Voter, candidates []string, detector landmark.Detector, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	sessions := memory.NewSessionStore()
	module := NewModule(Dependencies{
		Voters:     store,
		Ballots:    store,
		Outbox:     store,
		Dedup:      store,
		Sessions:   sessions,
		Matcher:    landmark.NewMatcher(detector, services.DefaultMatchThreshold, logger),
		Clock:      store,
		IDGen:      store,
		Candidates: candidates,
		SessionTTL: 15 * time.Minute,
		Logger:     logger,
	})
	module.Store = store
	module.Sessions = sessions
	return module
}
