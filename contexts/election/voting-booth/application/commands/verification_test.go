package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ballotbooth/contexts/election/voting-booth/adapters/landmark"
	"ballotbooth/contexts/election/voting-booth/adapters/landmark/landmarktest"
	"ballotbooth/contexts/election/voting-booth/adapters/memory"
	"ballotbooth/contexts/election/voting-booth/domain/entities"
	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/domain/services"
	"ballotbooth/contexts/election/voting-booth/ports"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubMatcher returns a fixed live vector, or err, and compares with the
// default threshold.
type stubMatcher struct {
	live services.FeatureVector
	err  error
}

func (m stubMatcher) Extract(context.Context, []byte) (services.FeatureVector, error) {
	return m.live, m.err
}

func (m stubMatcher) Compare(a services.FeatureVector, b services.FeatureVector) (bool, error) {
	matched, _, err := services.Matches(a, b, 0)
	return matched, err
}

type failingBallots struct{}

func (failingBallots) CastVote(context.Context, entities.Vote, ports.EventEnvelope) error {
	return errors.New("connection reset")
}

func (failingBallots) ListVotes(context.Context) ([]entities.Vote, error) {
	return nil, errors.New("connection reset")
}

var enrolledFace = services.FeatureVector{
	{X: 0.30, Y: 0.32}, {X: 0.70, Y: 0.32}, {X: 0.50, Y: 0.52},
	{X: 0.50, Y: 0.75}, {X: 0.08, Y: 0.45}, {X: 0.92, Y: 0.45},
}

type boothFixture struct {
	booth    BoothUseCase
	store    *memory.Store
	sessions *memory.SessionStore
	clock    *testClock
}

func newBoothFixture(t *testing.T, matcher ports.BiometricMatcher) boothFixture {
	t.Helper()
	template, err := services.EncodeFeatureVector(enrolledFace)
	if err != nil {
		t.Fatalf("encode fixture template: %v", err)
	}
	store := memory.NewStore([]entities.Voter{
		{VoterID: "V1", Name: "Ada", DateOfBirth: "1990-05-17", Phone: "+15550001", FingerprintTemplate: "FP-V1", FaceTemplate: template},
		{VoterID: "V2", Name: "Bo", DateOfBirth: "2012-01-01", FingerprintTemplate: "FP-V2", FaceTemplate: template},
		{VoterID: "V3", Name: "Cy", DateOfBirth: "1970-03-03", FingerprintTemplate: "FP-V3"},
		{VoterID: "V4", Name: "Di", DateOfBirth: "1980-04-04", FingerprintTemplate: "FP-V4", FaceTemplate: []byte("garbage")},
	})
	sessions := memory.NewSessionStore()
	clock := &testClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	if matcher == nil {
		matcher = stubMatcher{live: enrolledFace}
	}
	return boothFixture{
		booth: BoothUseCase{
			Voters:     store,
			Sessions:   sessions,
			Matcher:    matcher,
			Caster:     VoteCaster{Ballots: store, Clock: clock, IDGen: store},
			Clock:      clock,
			IDGen:      store,
			Candidates: []string{"Candidate A", "Candidate B", "Candidate C"},
			MinimumAge: 18,
			SessionTTL: 15 * time.Minute,
		},
		store:    store,
		sessions: sessions,
		clock:    clock,
	}
}

// verify drives a session through the three steps for voterID.
func (f boothFixture) verify(t *testing.T, voterID string, fingerprint string) entities.Session {
	t.Helper()
	ctx := context.Background()
	session, err := f.booth.BeginVerification(ctx)
	if err != nil {
		t.Fatalf("begin verification: %v", err)
	}
	if _, err := f.booth.SubmitQR(ctx, session.SessionID, voterID); err != nil {
		t.Fatalf("submit qr: %v", err)
	}
	if _, err := f.booth.SubmitFingerprint(ctx, session.SessionID, fingerprint); err != nil {
		t.Fatalf("submit fingerprint: %v", err)
	}
	verified, err := f.booth.SubmitFace(ctx, session.SessionID, []byte("frame"))
	if err != nil {
		t.Fatalf("submit face: %v", err)
	}
	return verified
}

func TestVerifiedVoterCastsExactlyOnce(t *testing.T) {
	f := newBoothFixture(t, nil)
	ctx := context.Background()

	session := f.verify(t, "V1", "FP-V1")
	if session.Stage != entities.StageVerified {
		t.Fatalf("expected verified stage, got %s", session.Stage)
	}
	vote, err := f.booth.CastVote(ctx, session.SessionID, "Candidate A")
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if vote.VoterID != "V1" || vote.Candidate != "Candidate A" || vote.VoteID == "" {
		t.Fatalf("unexpected vote: %+v", vote)
	}

	if _, err := f.booth.CastVote(ctx, session.SessionID, "Candidate B"); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted on second cast, got %v", err)
	}
	voter, err := f.store.GetVoter(ctx, "V1")
	if err != nil || !voter.HasVoted {
		t.Fatalf("expected V1 marked as voted, voter=%+v err=%v", voter, err)
	}
	votes, _ := f.store.ListVotes(ctx)
	if len(votes) != 1 {
		t.Fatalf("expected exactly 1 vote, got %d", len(votes))
	}
	pending, _ := f.store.ListPendingOutbox(ctx, 10)
	if len(pending) != 1 || pending[0].EventType != EventVoteCast {
		t.Fatalf("expected one vote.cast outbox row, got %+v", pending)
	}
}

func TestSubmitQRReturnsPublicProfileOnly(t *testing.T) {
	f := newBoothFixture(t, nil)
	ctx := context.Background()
	session, _ := f.booth.BeginVerification(ctx)

	profile, err := f.booth.SubmitQR(ctx, session.SessionID, " V1 ")
	if err != nil {
		t.Fatalf("submit qr failed: %v", err)
	}
	if profile.VoterID != "V1" || profile.Name != "Ada" || profile.HasVoted {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	stored, _ := f.sessions.GetSession(ctx, session.SessionID)
	if stored.Stage != entities.StageAwaitingFingerprint || stored.VoterID != "V1" {
		t.Fatalf("expected session bound to V1 awaiting fingerprint, got %+v", stored)
	}
}

func TestSubmitQRRejectsUnregisteredAndUnderage(t *testing.T) {
	f := newBoothFixture(t, nil)
	ctx := context.Background()
	session, _ := f.booth.BeginVerification(ctx)

	if _, err := f.booth.SubmitQR(ctx, session.SessionID, "V999"); !errors.Is(err, domainerrors.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if _, err := f.booth.SubmitQR(ctx, session.SessionID, "V2"); !errors.Is(err, domainerrors.ErrUnderage) {
		t.Fatalf("expected ErrUnderage, got %v", err)
	}
	stored, _ := f.sessions.GetSession(ctx, session.SessionID)
	if stored.Stage != entities.StageAwaitingQR || stored.VoterID != "" {
		t.Fatalf("expected session to stay unbound awaiting qr, got %+v", stored)
	}
	if _, err := f.booth.SubmitQR(ctx, session.SessionID, ""); !errors.Is(err, domainerrors.ErrInvalidVoterInput) {
		t.Fatalf("expected ErrInvalidVoterInput for blank id, got %v", err)
	}
}

func TestStepsMustRunInOrder(t *testing.T) {
	f := newBoothFixture(t, nil)
	ctx := context.Background()
	session, _ := f.booth.BeginVerification(ctx)

	if _, err := f.booth.SubmitFingerprint(ctx, session.SessionID, "FP-V1"); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for fingerprint first, got %v", err)
	}
	if _, err := f.booth.SubmitQR(ctx, session.SessionID, "V1"); err != nil {
		t.Fatalf("submit qr failed: %v", err)
	}
	if _, err := f.booth.SubmitFace(ctx, session.SessionID, []byte("frame")); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for face while awaiting fingerprint, got %v", err)
	}
	if _, err := f.booth.SubmitQR(ctx, session.SessionID, "V3"); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for second qr, got %v", err)
	}
	if _, err := f.booth.CastVote(ctx, session.SessionID, "Candidate A"); !errors.Is(err, domainerrors.ErrSessionNotVerified) {
		t.Fatalf("expected ErrSessionNotVerified, got %v", err)
	}
}

func TestFingerprintMismatchAllowsRetry(t *testing.T) {
	f := newBoothFixture(t, nil)
	ctx := context.Background()
	session, _ := f.booth.BeginVerification(ctx)
	_, _ = f.booth.SubmitQR(ctx, session.SessionID, "V1")

	if _, err := f.booth.SubmitFingerprint(ctx, session.SessionID, "FP-V2"); !errors.Is(err, domainerrors.ErrFingerprintMismatch) {
		t.Fatalf("expected ErrFingerprintMismatch, got %v", err)
	}
	advanced, err := f.booth.SubmitFingerprint(ctx, session.SessionID, "FP-V1")
	if err != nil {
		t.Fatalf("retry fingerprint failed: %v", err)
	}
	if advanced.Stage != entities.StageAwaitingFace {
		t.Fatalf("expected awaiting face, got %s", advanced.Stage)
	}
}

func TestFaceStepFailures(t *testing.T) {
	ctx := context.Background()
	far := services.FeatureVector{
		{X: 0.10, Y: 0.10}, {X: 0.90, Y: 0.10}, {X: 0.50, Y: 0.90},
		{X: 0.50, Y: 0.10}, {X: 0.00, Y: 0.00}, {X: 1.00, Y: 1.00},
	}
	cases := []struct {
		name    string
		voterID string
		matcher ports.BiometricMatcher
		want    error
	}{
		{"mismatch", "V1", stubMatcher{live: far}, domainerrors.ErrFaceMismatch},
		{"no face detected", "V1", stubMatcher{err: domainerrors.ErrNoFaceDetected}, domainerrors.ErrNoFaceDetected},
		{"detector error", "V1", stubMatcher{err: errors.New("decoder exploded")}, domainerrors.ErrNoFaceDetected},
		{"empty detection", "V1", stubMatcher{}, domainerrors.ErrNoFaceDetected},
		{"no enrolled face", "V3", stubMatcher{live: enrolledFace}, domainerrors.ErrNoEnrolledFace},
		{"malformed enrolled template", "V4", stubMatcher{live: enrolledFace}, domainerrors.ErrMalformedTemplate},
		{"no face with malformed template", "V4", stubMatcher{err: domainerrors.ErrNoFaceDetected}, domainerrors.ErrNoFaceDetected},
		{"length mismatch", "V1", stubMatcher{live: enrolledFace[:3]}, domainerrors.ErrMalformedTemplate},
	}
	for _, tc := range cases {
		f := newBoothFixture(t, tc.matcher)
		session, _ := f.booth.BeginVerification(ctx)
		if _, err := f.booth.SubmitQR(ctx, session.SessionID, tc.voterID); err != nil {
			t.Fatalf("%s: submit qr: %v", tc.name, err)
		}
		if _, err := f.booth.SubmitFingerprint(ctx, session.SessionID, "FP-"+tc.voterID); err != nil {
			t.Fatalf("%s: submit fingerprint: %v", tc.name, err)
		}
		_, err := f.booth.SubmitFace(ctx, session.SessionID, []byte("frame"))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		stored, _ := f.sessions.GetSession(ctx, session.SessionID)
		if stored.Stage != entities.StageAwaitingFace {
			t.Fatalf("%s: expected session to stay awaiting face, got %s", tc.name, stored.Stage)
		}
	}
}

func TestFaceStepWithLandmarkMatcher(t *testing.T) {
	ctx := context.Background()
	f := newBoothFixture(t, landmark.NewMatcher(landmarktest.MarkerDetector{}, services.DefaultMatchThreshold, nil))
	session, _ := f.booth.BeginVerification(ctx)
	if _, err := f.booth.SubmitQR(ctx, session.SessionID, "V1"); err != nil {
		t.Fatalf("submit qr: %v", err)
	}
	if _, err := f.booth.SubmitFingerprint(ctx, session.SessionID, "FP-V1"); err != nil {
		t.Fatalf("submit fingerprint: %v", err)
	}

	otherFace := services.FeatureVector{
		{X: 0.15, Y: 0.15}, {X: 0.85, Y: 0.15}, {X: 0.50, Y: 0.35},
		{X: 0.50, Y: 0.92}, {X: 0.25, Y: 0.70}, {X: 0.75, Y: 0.70},
	}
	rejected := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"different face", landmarktest.Frame(t, 96, otherFace), domainerrors.ErrFaceMismatch},
		{"textured frame without face", landmarktest.Noise(t, 96, 7), domainerrors.ErrNoFaceDetected},
		{"gradient frame without face", landmarktest.Gradient(t, 96), domainerrors.ErrNoFaceDetected},
	}
	for _, tc := range rejected {
		if _, err := f.booth.SubmitFace(ctx, session.SessionID, tc.frame); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		stored, _ := f.sessions.GetSession(ctx, session.SessionID)
		if stored.Stage != entities.StageAwaitingFace {
			t.Fatalf("%s: expected session to stay awaiting face, got %s", tc.name, stored.Stage)
		}
	}

	verified, err := f.booth.SubmitFace(ctx, session.SessionID, landmarktest.Frame(t, 96, enrolledFace))
	if err != nil {
		t.Fatalf("expected enrolled face to verify, got %v", err)
	}
	if verified.Stage != entities.StageVerified {
		t.Fatalf("expected verified stage, got %s", verified.Stage)
	}
}

func TestFaceStepRejectsVoterWhoAlreadyVoted(t *testing.T) {
	f := newBoothFixture(t, nil)
	ctx := context.Background()
	first := f.verify(t, "V1", "FP-V1")
	if _, err := f.booth.CastVote(ctx, first.SessionID, "Candidate C"); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	session, _ := f.booth.BeginVerification(ctx)
	_, _ = f.booth.SubmitQR(ctx, session.SessionID, "V1")
	_, _ = f.booth.SubmitFingerprint(ctx, session.SessionID, "FP-V1")
	if _, err := f.booth.SubmitFace(ctx, session.SessionID, []byte("frame")); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted at face step, got %v", err)
	}
}

func TestCastVoteRejectsUnknownCandidateWithoutSideEffects(t *testing.T) {
	f := newBoothFixture(t, nil)
	ctx := context.Background()
	session := f.verify(t, "V1", "FP-V1")

	if _, err := f.booth.CastVote(ctx, session.SessionID, "Candidate Z"); !errors.Is(err, domainerrors.ErrInvalidCandidate) {
		t.Fatalf("expected ErrInvalidCandidate, got %v", err)
	}
	if _, err := f.booth.CastVote(ctx, session.SessionID, "   "); !errors.Is(err, domainerrors.ErrInvalidCandidate) {
		t.Fatalf("expected ErrInvalidCandidate for blank label, got %v", err)
	}
	voter, _ := f.store.GetVoter(ctx, "V1")
	if voter.HasVoted {
		t.Fatalf("rejected candidate must not mark the voter")
	}
	if _, err := f.booth.CastVote(ctx, session.SessionID, "Candidate B"); err != nil {
		t.Fatalf("expected valid cast after rejection, got %v", err)
	}
}

func TestExpiredSessionIsRefusedAndDropped(t *testing.T) {
	f := newBoothFixture(t, nil)
	ctx := context.Background()
	session, _ := f.booth.BeginVerification(ctx)

	f.clock.Advance(15 * time.Minute)
	if _, err := f.booth.SubmitQR(ctx, session.SessionID, "V1"); !errors.Is(err, domainerrors.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, err := f.sessions.GetSession(ctx, session.SessionID); !errors.Is(err, domainerrors.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be dropped, got %v", err)
	}
}

func TestAbandonVerificationKeepsVoterUntouched(t *testing.T) {
	f := newBoothFixture(t, nil)
	ctx := context.Background()
	session, _ := f.booth.BeginVerification(ctx)
	_, _ = f.booth.SubmitQR(ctx, session.SessionID, "V1")

	if err := f.booth.AbandonVerification(ctx, session.SessionID); err != nil {
		t.Fatalf("abandon failed: %v", err)
	}
	if _, err := f.booth.SubmitFingerprint(ctx, session.SessionID, "FP-V1"); !errors.Is(err, domainerrors.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after abandon, got %v", err)
	}
	voter, _ := f.store.GetVoter(ctx, "V1")
	if voter.HasVoted {
		t.Fatalf("abandon must not change the voter")
	}
}

func TestConcurrentCastsForOneVoterCommitOnce(t *testing.T) {
	f := newBoothFixture(t, nil)
	ctx := context.Background()
	const attempts = 32

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.booth.Caster.Cast(ctx, "V1", "Candidate A")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domainerrors.ErrAlreadyVoted):
		default:
			t.Fatalf("unexpected cast error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 successful cast, got %d", successes)
	}
	votes, _ := f.store.ListVotes(ctx)
	if len(votes) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(votes))
	}
}

func TestCastReportsStoreFailure(t *testing.T) {
	store := memory.NewStore(nil)
	caster := VoteCaster{Ballots: failingBallots{}, IDGen: store}

	_, err := caster.Cast(context.Background(), "V1", "Candidate A")
	if !errors.Is(err, domainerrors.ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
	if _, err := caster.Cast(context.Background(), "V404", "Candidate A"); !errors.Is(err, domainerrors.ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
}

func TestCastRejectsUnknownVoter(t *testing.T) {
	store := memory.NewStore(nil)
	caster := VoteCaster{Ballots: store, IDGen: store}
	if _, err := caster.Cast(context.Background(), "V404", "Candidate A"); !errors.Is(err, domainerrors.ErrVoterNotFound) {
		t.Fatalf("expected ErrVoterNotFound, got %v", err)
	}
	if _, err := caster.Cast(context.Background(), "V404", ""); !errors.Is(err, domainerrors.ErrInvalidCandidate) {
		t.Fatalf("expected ErrInvalidCandidate, got %v", err)
	}
}
