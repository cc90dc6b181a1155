package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "ballotbooth/contexts/election/voting-booth/application"
	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/ports"
)

const (
	voteCastTopic           = "vote.cast"
	defaultNotifierCG       = "voting-booth-notifier-cg"
	defaultNotifierDedupTTL = 7 * 24 * time.Hour
	voteCastMessage         = "Your vote has been recorded. Thank you for voting."
)

// VoteCastNotifier confirms a cast vote to the voter's phone. Delivery is
// best effort: a voter without a phone, or one deleted since casting, is
// skipped without error.
type VoteCastNotifier struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Voters        ports.VoterRepository
	Notifier      ports.Notifier
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

func (c VoteCastNotifier) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultNotifierCG
	}
	if err := c.Subscriber.Subscribe(ctx, voteCastTopic, group, c.Handle); err != nil {
		logger.Error("vote cast notifier subscribe failed",
			"event", "booth_notifier_subscribe_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"topic", voteCastTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("vote cast notifier subscribed",
		"event", "booth_notifier_started",
		"module", application.ModuleName,
		"layer", "worker",
		"topic", voteCastTopic,
		"consumer_group", group,
	)
	return nil
}

func (c VoteCastNotifier) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	if alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), c.now().Add(c.dedupTTL())); err != nil {
		return err
	} else if alreadyProcessed {
		logger.Debug("vote.cast replay skipped",
			"event", "booth_notifier_replayed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		VoteID  string `json:"vote_id"`
		VoterID string `json:"voter_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("vote.cast payload decode failed",
			"event", "booth_notifier_decode_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	voter, err := c.Voters.GetVoter(ctx, strings.TrimSpace(payload.VoterID))
	if err != nil {
		if errors.Is(err, domainerrors.ErrVoterNotFound) {
			return nil
		}
		return err
	}
	if strings.TrimSpace(voter.Phone) == "" {
		return nil
	}
	if err := c.Notifier.Notify(ctx, voter.Phone, voteCastMessage); err != nil {
		logger.Error("vote cast notification failed",
			"event", "booth_notifier_send_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"voter_id", voter.VoterID,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("vote cast notification sent",
		"event", "booth_notifier_sent",
		"module", application.ModuleName,
		"layer", "worker",
		"event_id", event.EventID,
		"vote_id", payload.VoteID,
		"voter_id", voter.VoterID,
	)
	return nil
}

func (c VoteCastNotifier) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return defaultNotifierDedupTTL
	}
	return c.DedupTTL
}

func (c VoteCastNotifier) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now().UTC()
}
