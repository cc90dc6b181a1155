package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "ballotbooth/contexts/election/voting-booth/application"
	"ballotbooth/contexts/election/voting-booth/domain/entities"
	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/domain/services"
	"ballotbooth/contexts/election/voting-booth/ports"
)

// EnrollVoterCommand creates a voter record. FaceTemplate, when present,
// must already be in the encoded storage form (see EnrollFace).
type EnrollVoterCommand struct {
	ActorID             string
	VoterID             string
	Name                string
	DateOfBirth         string
	Phone               string
	FingerprintTemplate string
	FaceTemplate        []byte
}

// UpdateVoterCommand edits descriptive fields and templates. A nil
// FaceTemplate keeps the enrolled one; the voter id is immutable.
type UpdateVoterCommand struct {
	ActorID             string
	VoterID             string
	Name                string
	DateOfBirth         string
	Phone               string
	FingerprintTemplate string
	FaceTemplate        []byte
}

// EnrollmentUseCase holds the admin-side voter operations. They run outside
// the verification protocol.
type EnrollmentUseCase struct {
	Voters  ports.VoterRepository
	Matcher ports.BiometricMatcher
	Clock   ports.Clock
	// ResetRequiresReenroll clears both biometric templates when an
	// administrator resets a voter's voted flag.
	ResetRequiresReenroll bool
	Logger                *slog.Logger
}

func (uc EnrollmentUseCase) EnrollVoter(ctx context.Context, cmd EnrollVoterCommand) (entities.Voter, error) {
	logger := application.ResolveLogger(uc.Logger)
	voterID := strings.TrimSpace(cmd.VoterID)
	name := strings.TrimSpace(cmd.Name)
	dob := strings.TrimSpace(cmd.DateOfBirth)
	if voterID == "" || name == "" || !services.ValidDateOfBirth(dob) {
		logger.Warn("voter enrollment validation failed",
			"event", "booth_enroll_validation_failed",
			"module", application.ModuleName,
			"layer", "application",
			"actor_id", strings.TrimSpace(cmd.ActorID),
			"voter_id", voterID,
		)
		return entities.Voter{}, domainerrors.ErrInvalidVoterInput
	}
	if len(cmd.FaceTemplate) > 0 {
		if _, err := services.DecodeFeatureVector(cmd.FaceTemplate); err != nil {
			return entities.Voter{}, domainerrors.ErrMalformedTemplate
		}
	}

	now := uc.now()
	voter := entities.Voter{
		VoterID:             voterID,
		Name:                name,
		DateOfBirth:         dob,
		Phone:               strings.TrimSpace(cmd.Phone),
		FingerprintTemplate: cmd.FingerprintTemplate,
		FaceTemplate:        append([]byte(nil), cmd.FaceTemplate...),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := uc.Voters.CreateVoter(ctx, voter); err != nil {
		if errors.Is(err, domainerrors.ErrVoterExists) {
			logger.Warn("voter enrollment duplicate id",
				"event", "booth_enroll_duplicate",
				"module", application.ModuleName,
				"layer", "application",
				"actor_id", strings.TrimSpace(cmd.ActorID),
				"voter_id", voterID,
			)
		}
		return entities.Voter{}, err
	}
	logger.Info("voter enrolled",
		"event", "booth_voter_enrolled",
		"module", application.ModuleName,
		"layer", "application",
		"actor_id", strings.TrimSpace(cmd.ActorID),
		"voter_id", voterID,
		"face_enrolled", voter.HasFaceTemplate(),
	)
	return voter, nil
}

// EnrollFace turns a captured still frame into an encoded template that can
// be stored with EnrollVoter or UpdateVoter.
func (uc EnrollmentUseCase) EnrollFace(ctx context.Context, image []byte) ([]byte, error) {
	vector, err := uc.Matcher.Extract(ctx, image)
	if err != nil || len(vector) == 0 {
		return nil, domainerrors.ErrNoFaceDetected
	}
	return services.EncodeFeatureVector(vector)
}

func (uc EnrollmentUseCase) UpdateVoter(ctx context.Context, cmd UpdateVoterCommand) (entities.Voter, error) {
	logger := application.ResolveLogger(uc.Logger)
	name := strings.TrimSpace(cmd.Name)
	dob := strings.TrimSpace(cmd.DateOfBirth)
	if name == "" || !services.ValidDateOfBirth(dob) {
		return entities.Voter{}, domainerrors.ErrInvalidVoterInput
	}
	voter, err := uc.Voters.GetVoter(ctx, strings.TrimSpace(cmd.VoterID))
	if err != nil {
		return entities.Voter{}, err
	}
	if cmd.FaceTemplate != nil {
		if len(cmd.FaceTemplate) > 0 {
			if _, err := services.DecodeFeatureVector(cmd.FaceTemplate); err != nil {
				return entities.Voter{}, domainerrors.ErrMalformedTemplate
			}
		}
		voter.FaceTemplate = append([]byte(nil), cmd.FaceTemplate...)
	}
	voter.Name = name
	voter.DateOfBirth = dob
	voter.Phone = strings.TrimSpace(cmd.Phone)
	voter.FingerprintTemplate = cmd.FingerprintTemplate
	voter.UpdatedAt = uc.now()
	if err := uc.Voters.UpdateVoter(ctx, voter); err != nil {
		return entities.Voter{}, err
	}
	logger.Info("voter updated",
		"event", "booth_voter_updated",
		"module", application.ModuleName,
		"layer", "application",
		"actor_id", strings.TrimSpace(cmd.ActorID),
		"voter_id", voter.VoterID,
	)
	return voter, nil
}

func (uc EnrollmentUseCase) DeleteVoter(ctx context.Context, voterID string, actorID string) error {
	voterID = strings.TrimSpace(voterID)
	if err := uc.Voters.DeleteVoter(ctx, voterID); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("voter deleted",
		"event", "booth_voter_deleted",
		"module", application.ModuleName,
		"layer", "application",
		"actor_id", strings.TrimSpace(actorID),
		"voter_id", voterID,
	)
	return nil
}

func (uc EnrollmentUseCase) ListVoters(ctx context.Context) ([]entities.Voter, error) {
	return uc.Voters.ListVoters(ctx)
}

// ResetVoterVote is the administrative escape hatch that sets has_voted back
// to false. Ledger rows are left in place.
func (uc EnrollmentUseCase) ResetVoterVote(ctx context.Context, voterID string, actorID string) error {
	voterID = strings.TrimSpace(voterID)
	if err := uc.Voters.ResetVoted(ctx, voterID, uc.ResetRequiresReenroll, uc.now()); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Warn("voter vote status reset",
		"event", "booth_voter_vote_reset",
		"module", application.ModuleName,
		"layer", "application",
		"actor_id", strings.TrimSpace(actorID),
		"voter_id", voterID,
		"templates_cleared", uc.ResetRequiresReenroll,
	)
	return nil
}

func (uc EnrollmentUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
