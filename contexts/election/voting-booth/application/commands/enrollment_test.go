package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"ballotbooth/contexts/election/voting-booth/adapters/memory"
	"ballotbooth/contexts/election/voting-booth/domain/entities"
	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/domain/services"
	"ballotbooth/contexts/election/voting-booth/ports"
)

func newEnrollment(t *testing.T, reenroll bool) (EnrollmentUseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore(nil)
	return EnrollmentUseCase{
		Voters:                store,
		Matcher:               stubMatcher{live: enrolledFace},
		Clock:                 &testClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)},
		ResetRequiresReenroll: reenroll,
	}, store
}

func TestEnrollVoterStoresRecord(t *testing.T) {
	uc, store := newEnrollment(t, false)
	ctx := context.Background()

	template, err := uc.EnrollFace(ctx, []byte("frame"))
	if err != nil {
		t.Fatalf("enroll face failed: %v", err)
	}
	voter, err := uc.EnrollVoter(ctx, EnrollVoterCommand{
		ActorID:             "admin-1",
		VoterID:             " V10 ",
		Name:                "Eve",
		DateOfBirth:         "1999-09-09",
		Phone:               "+15550010",
		FingerprintTemplate: "FP-V10",
		FaceTemplate:        template,
	})
	if err != nil {
		t.Fatalf("enroll voter failed: %v", err)
	}
	if voter.VoterID != "V10" || voter.HasVoted {
		t.Fatalf("unexpected voter: %+v", voter)
	}

	stored, err := store.GetVoter(ctx, "V10")
	if err != nil {
		t.Fatalf("expected voter in store: %v", err)
	}
	decoded, err := services.DecodeFeatureVector(stored.FaceTemplate)
	if err != nil || len(decoded) != len(enrolledFace) {
		t.Fatalf("expected stored face template to decode, got %d points err=%v", len(decoded), err)
	}
}

func TestEnrollVoterValidation(t *testing.T) {
	uc, _ := newEnrollment(t, false)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  EnrollVoterCommand
		want error
	}{
		{"missing id", EnrollVoterCommand{Name: "A", DateOfBirth: "1990-01-01"}, domainerrors.ErrInvalidVoterInput},
		{"missing name", EnrollVoterCommand{VoterID: "V1", DateOfBirth: "1990-01-01"}, domainerrors.ErrInvalidVoterInput},
		{"bad date", EnrollVoterCommand{VoterID: "V1", Name: "A", DateOfBirth: "01/01/1990"}, domainerrors.ErrInvalidVoterInput},
		{"bad template", EnrollVoterCommand{VoterID: "V1", Name: "A", DateOfBirth: "1990-01-01", FaceTemplate: []byte("nope")}, domainerrors.ErrMalformedTemplate},
	}
	for _, tc := range cases {
		if _, err := uc.EnrollVoter(ctx, tc.cmd); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	valid := EnrollVoterCommand{VoterID: "V1", Name: "A", DateOfBirth: "1990-01-01"}
	if _, err := uc.EnrollVoter(ctx, valid); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if _, err := uc.EnrollVoter(ctx, valid); !errors.Is(err, domainerrors.ErrVoterExists) {
		t.Fatalf("expected ErrVoterExists, got %v", err)
	}
}

func TestEnrollFaceWithoutDetection(t *testing.T) {
	uc, _ := newEnrollment(t, false)
	uc.Matcher = stubMatcher{err: domainerrors.ErrNoFaceDetected}
	if _, err := uc.EnrollFace(context.Background(), []byte("frame")); !errors.Is(err, domainerrors.ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestUpdateVoterKeepsOrClearsFace(t *testing.T) {
	uc, store := newEnrollment(t, false)
	ctx := context.Background()
	template, _ := services.EncodeFeatureVector(enrolledFace)
	if _, err := uc.EnrollVoter(ctx, EnrollVoterCommand{VoterID: "V1", Name: "A", DateOfBirth: "1990-01-01", FaceTemplate: template}); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	updated, err := uc.UpdateVoter(ctx, UpdateVoterCommand{VoterID: "V1", Name: "Ann", DateOfBirth: "1990-01-02", FingerprintTemplate: "FP-new"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Ann" || !updated.HasFaceTemplate() {
		t.Fatalf("expected name change with face kept, got %+v", updated)
	}

	if _, err := uc.UpdateVoter(ctx, UpdateVoterCommand{VoterID: "V1", Name: "Ann", DateOfBirth: "1990-01-02", FaceTemplate: []byte{}}); err != nil {
		t.Fatalf("clear face failed: %v", err)
	}
	stored, _ := store.GetVoter(ctx, "V1")
	if stored.HasFaceTemplate() || stored.FingerprintTemplate != "" {
		t.Fatalf("expected face and fingerprint cleared, got %+v", stored)
	}

	if _, err := uc.UpdateVoter(ctx, UpdateVoterCommand{VoterID: "V404", Name: "X", DateOfBirth: "1990-01-01"}); !errors.Is(err, domainerrors.ErrVoterNotFound) {
		t.Fatalf("expected ErrVoterNotFound, got %v", err)
	}
}

func TestUpdateVoterCannotClearVotedFlag(t *testing.T) {
	uc, store := newEnrollment(t, false)
	ctx := context.Background()
	_, _ = uc.EnrollVoter(ctx, EnrollVoterCommand{VoterID: "V1", Name: "A", DateOfBirth: "1990-01-01"})
	if err := store.CastVote(ctx, entities.Vote{VoteID: "vote-1", VoterID: "V1", Candidate: "Candidate A"}, mustEnvelope(t, "evt-1")); err != nil {
		t.Fatalf("cast failed: %v", err)
	}

	if _, err := uc.UpdateVoter(ctx, UpdateVoterCommand{VoterID: "V1", Name: "B", DateOfBirth: "1990-01-01"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	stored, _ := store.GetVoter(ctx, "V1")
	if !stored.HasVoted {
		t.Fatalf("update must not clear has_voted")
	}
}

func TestResetVoterVote(t *testing.T) {
	for _, reenroll := range []bool{false, true} {
		uc, store := newEnrollment(t, reenroll)
		ctx := context.Background()
		template, _ := services.EncodeFeatureVector(enrolledFace)
		_, _ = uc.EnrollVoter(ctx, EnrollVoterCommand{VoterID: "V1", Name: "A", DateOfBirth: "1990-01-01", FingerprintTemplate: "FP-V1", FaceTemplate: template})
		if err := store.CastVote(ctx, entities.Vote{VoteID: "vote-1", VoterID: "V1", Candidate: "Candidate A"}, mustEnvelope(t, "evt-1")); err != nil {
			t.Fatalf("cast failed: %v", err)
		}

		if err := uc.ResetVoterVote(ctx, "V1", "admin-1"); err != nil {
			t.Fatalf("reset failed: %v", err)
		}
		stored, _ := store.GetVoter(ctx, "V1")
		if stored.HasVoted {
			t.Fatalf("expected has_voted cleared (reenroll=%v)", reenroll)
		}
		if reenroll == stored.HasFaceTemplate() {
			t.Fatalf("expected face kept=%v, got %+v", !reenroll, stored)
		}
		votes, _ := store.ListVotes(ctx)
		if len(votes) != 1 {
			t.Fatalf("expected ledger rows to survive reset, got %d", len(votes))
		}
	}

	uc, _ := newEnrollment(t, false)
	if err := uc.ResetVoterVote(context.Background(), "V404", "admin-1"); !errors.Is(err, domainerrors.ErrVoterNotFound) {
		t.Fatalf("expected ErrVoterNotFound, got %v", err)
	}
}

func TestDeleteAndListVoters(t *testing.T) {
	uc, _ := newEnrollment(t, false)
	ctx := context.Background()
	_, _ = uc.EnrollVoter(ctx, EnrollVoterCommand{VoterID: "V1", Name: "A", DateOfBirth: "1990-01-01"})
	_, _ = uc.EnrollVoter(ctx, EnrollVoterCommand{VoterID: "V2", Name: "B", DateOfBirth: "1991-01-01"})

	if err := uc.DeleteVoter(ctx, "V1", "admin-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := uc.DeleteVoter(ctx, "V1", "admin-1"); !errors.Is(err, domainerrors.ErrVoterNotFound) {
		t.Fatalf("expected ErrVoterNotFound on second delete, got %v", err)
	}
	voters, err := uc.ListVoters(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(voters) != 1 || voters[0].VoterID != "V2" {
		t.Fatalf("expected only V2, got %+v", voters)
	}
}

func mustEnvelope(t *testing.T, eventID string) ports.EventEnvelope {
	t.Helper()
	envelope, err := newBoothEnvelope(eventID, EventVoteCast, "V1", time.Now(), map[string]any{"voter_id": "V1"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return envelope
}
