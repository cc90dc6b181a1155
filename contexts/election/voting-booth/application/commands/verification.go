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
	"ballotbooth/contexts/election/voting-booth/domain/services"
	"ballotbooth/contexts/election/voting-booth/ports"
)

const defaultSessionTTL = 15 * time.Minute

// BoothUseCase drives one voter through QR -> fingerprint -> face and then
// hands the verified voter to the VoteCaster. Sessions only read voter data;
// the only write is the final cast.
type BoothUseCase struct {
	Voters     ports.VoterRepository
	Sessions   ports.SessionStore
	Matcher    ports.BiometricMatcher
	Caster     VoteCaster
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Candidates []string
	MinimumAge int
	SessionTTL time.Duration
	Logger     *slog.Logger
}

func (uc BoothUseCase) BeginVerification(ctx context.Context) (entities.Session, error) {
	logger := application.ResolveLogger(uc.Logger)
	sessionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Session{}, err
	}
	now := uc.now()
	session := entities.Session{
		SessionID: sessionID,
		Stage:     entities.StageAwaitingQR,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(uc.sessionTTL()),
	}
	if err := uc.Sessions.CreateSession(ctx, session); err != nil {
		return entities.Session{}, err
	}
	logger.Info("verification session started",
		"event", "booth_session_started",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
		"expires_at", session.ExpiresAt,
	)
	return session, nil
}

// SubmitQR binds a registered, eligible voter to the session and returns
// the public profile only.
func (uc BoothUseCase) SubmitQR(ctx context.Context, sessionID string, voterID string) (entities.PublicProfile, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()
	session, err := uc.loadSession(ctx, sessionID, now)
	if err != nil {
		return entities.PublicProfile{}, err
	}
	if session.Stage != entities.StageAwaitingQR {
		return entities.PublicProfile{}, uc.invalidTransition(session, "qr")
	}
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return entities.PublicProfile{}, domainerrors.ErrInvalidVoterInput
	}

	voter, err := uc.Voters.GetVoter(ctx, voterID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrVoterNotFound) {
			logger.Warn("qr rejected unregistered voter",
				"event", "booth_qr_not_registered",
				"module", application.ModuleName,
				"layer", "application",
				"session_id", session.SessionID,
				"voter_id", voterID,
			)
			return entities.PublicProfile{}, domainerrors.ErrNotRegistered
		}
		return entities.PublicProfile{}, err
	}
	if !services.IsEligible(voter.DateOfBirth, now, uc.MinimumAge) {
		logger.Warn("qr rejected underage voter",
			"event", "booth_qr_underage",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"voter_id", voterID,
			"age", services.AgeOn(voter.DateOfBirth, now),
		)
		return entities.PublicProfile{}, domainerrors.ErrUnderage
	}

	if _, err := uc.advance(ctx, session, voter.VoterID, now); err != nil {
		return entities.PublicProfile{}, err
	}
	logger.Info("qr verified",
		"event", "booth_qr_verified",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
		"voter_id", voter.VoterID,
	)
	return voter.Profile(), nil
}

// SubmitFingerprint compares the scanned payload with the enrolled template.
// A mismatch leaves the session where it was so the caller may retry.
func (uc BoothUseCase) SubmitFingerprint(ctx context.Context, sessionID string, payload string) (entities.Session, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()
	session, err := uc.loadSession(ctx, sessionID, now)
	if err != nil {
		return entities.Session{}, err
	}
	if session.Stage != entities.StageAwaitingFingerprint || session.VoterID == "" {
		return entities.Session{}, uc.invalidTransition(session, "fingerprint")
	}
	voter, err := uc.boundVoter(ctx, session)
	if err != nil {
		return entities.Session{}, err
	}
	if !services.FingerprintMatches(voter.FingerprintTemplate, payload) {
		logger.Warn("fingerprint mismatch",
			"event", "booth_fingerprint_mismatch",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"voter_id", session.VoterID,
		)
		return session, domainerrors.ErrFingerprintMismatch
	}

	advanced, err := uc.advance(ctx, session, session.VoterID, now)
	if err != nil {
		return entities.Session{}, err
	}
	logger.Info("fingerprint verified",
		"event", "booth_fingerprint_verified",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
		"voter_id", session.VoterID,
	)
	return advanced, nil
}

// SubmitFace extracts landmarks from a still frame and compares them with the
// enrolled template. Extraction runs without any session lock held; the stage
// change is applied afterwards with compare-and-advance.
func (uc BoothUseCase) SubmitFace(ctx context.Context, sessionID string, image []byte) (entities.Session, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()
	session, err := uc.loadSession(ctx, sessionID, now)
	if err != nil {
		return entities.Session{}, err
	}
	if session.Stage != entities.StageAwaitingFace || session.VoterID == "" {
		return entities.Session{}, uc.invalidTransition(session, "face")
	}
	voter, err := uc.boundVoter(ctx, session)
	if err != nil {
		return entities.Session{}, err
	}
	if voter.HasVoted {
		logger.Warn("face step rejected already voted",
			"event", "booth_face_already_voted",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"voter_id", voter.VoterID,
		)
		return session, domainerrors.ErrAlreadyVoted
	}
	if !voter.HasFaceTemplate() {
		return session, domainerrors.ErrNoEnrolledFace
	}

	live, err := uc.Matcher.Extract(ctx, image)
	if err != nil || len(live) == 0 {
		if err != nil && !errors.Is(err, domainerrors.ErrNoFaceDetected) {
			logger.Warn("face extraction failed",
				"event", "booth_face_extract_failed",
				"module", application.ModuleName,
				"layer", "application",
				"session_id", session.SessionID,
				"voter_id", voter.VoterID,
				"error", err.Error(),
			)
		}
		return session, domainerrors.ErrNoFaceDetected
	}

	enrolled, err := services.DecodeFeatureVector(voter.FaceTemplate)
	if err != nil {
		logger.Error("enrolled face template is malformed",
			"event", "booth_face_template_malformed",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"voter_id", voter.VoterID,
			"error", err.Error(),
		)
		return session, domainerrors.ErrMalformedTemplate
	}
	matched, err := uc.Matcher.Compare(enrolled, live)
	if err != nil {
		if errors.Is(err, domainerrors.ErrMalformedTemplate) {
			return session, err
		}
		return session, fmt.Errorf("%w: %w", domainerrors.ErrMalformedTemplate, err)
	}
	if !matched {
		logger.Warn("face mismatch",
			"event", "booth_face_mismatch",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"voter_id", voter.VoterID,
		)
		return session, domainerrors.ErrFaceMismatch
	}

	advanced, err := uc.advance(ctx, session, session.VoterID, uc.now())
	if err != nil {
		return entities.Session{}, err
	}
	logger.Info("face verified",
		"event", "booth_face_verified",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
		"voter_id", voter.VoterID,
	)
	return advanced, nil
}

// CastVote is only reachable from a verified session. The session is kept
// after a successful cast so a repeated cast reports ErrAlreadyVoted.
func (uc BoothUseCase) CastVote(ctx context.Context, sessionID string, candidate string) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	session, err := uc.loadSession(ctx, sessionID, uc.now())
	if err != nil {
		return entities.Vote{}, err
	}
	if session.Stage != entities.StageVerified || session.VoterID == "" {
		logger.Warn("vote rejected unverified session",
			"event", "booth_vote_session_not_verified",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"stage", string(session.Stage),
		)
		return entities.Vote{}, domainerrors.ErrSessionNotVerified
	}
	if !services.CandidateAllowed(uc.Candidates, candidate) {
		logger.Warn("vote rejected unknown candidate",
			"event", "booth_vote_invalid_candidate",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", session.SessionID,
			"voter_id", session.VoterID,
		)
		return entities.Vote{}, domainerrors.ErrInvalidCandidate
	}
	return uc.Caster.Cast(ctx, session.VoterID, candidate)
}

// AbandonVerification drops the session. Persisted data is never touched.
func (uc BoothUseCase) AbandonVerification(ctx context.Context, sessionID string) error {
	if err := uc.Sessions.DeleteSession(ctx, strings.TrimSpace(sessionID)); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("verification session abandoned",
		"event", "booth_session_abandoned",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", strings.TrimSpace(sessionID),
	)
	return nil
}

func (uc BoothUseCase) loadSession(ctx context.Context, sessionID string, now time.Time) (entities.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	session, err := uc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return entities.Session{}, err
	}
	if session.Expired(now) {
		_ = uc.Sessions.DeleteSession(ctx, sessionID)
		return entities.Session{}, domainerrors.ErrSessionExpired
	}
	return session, nil
}

func (uc BoothUseCase) boundVoter(ctx context.Context, session entities.Session) (entities.Voter, error) {
	voter, err := uc.Voters.GetVoter(ctx, session.VoterID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrVoterNotFound) {
			return entities.Voter{}, domainerrors.ErrNotRegistered
		}
		return entities.Voter{}, err
	}
	return voter, nil
}

// advance moves the session one stage forward, provided nobody else moved it
// since it was loaded.
func (uc BoothUseCase) advance(ctx context.Context, session entities.Session, voterID string, now time.Time) (entities.Session, error) {
	next, ok := session.Stage.Next()
	if !ok {
		return entities.Session{}, uc.invalidTransition(session, "advance")
	}
	return uc.Sessions.AdvanceSession(ctx, session.SessionID, session.Stage, next, voterID, now)
}

func (uc BoothUseCase) invalidTransition(session entities.Session, step string) error {
	application.ResolveLogger(uc.Logger).Warn("verification step out of order",
		"event", "booth_invalid_transition",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
		"stage", string(session.Stage),
		"step", step,
	)
	return domainerrors.ErrInvalidTransition
}

func (uc BoothUseCase) sessionTTL() time.Duration {
	if uc.SessionTTL <= 0 {
		return defaultSessionTTL
	}
	return uc.SessionTTL
}

func (uc BoothUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
