package httpadapter

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"ballotbooth/contexts/election/voting-booth/application/commands"
	"ballotbooth/contexts/election/voting-booth/application/queries"
	"ballotbooth/contexts/election/voting-booth/domain/entities"
	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	httptransport "ballotbooth/contexts/election/voting-booth/transport/http"

	"golang.org/x/text/unicode/norm"
)

type Handler struct {
	Booth      commands.BoothUseCase
	Enrollment commands.EnrollmentUseCase
	Results    queries.ResultsUseCase
	Logger     *slog.Logger
}

func (h Handler) BeginSessionHandler(ctx context.Context) (httptransport.SessionResponse, error) {
	session, err := h.Booth.BeginVerification(ctx)
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return mapSession(session), nil
}

func (h Handler) SubmitQRHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.SubmitQRRequest,
) (httptransport.QRVerifiedResponse, error) {
	profile, err := h.Booth.SubmitQR(ctx, sessionID, req.VoterID)
	if err != nil {
		return httptransport.QRVerifiedResponse{}, err
	}
	session, err := h.Booth.Sessions.GetSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return httptransport.QRVerifiedResponse{}, err
	}
	return httptransport.QRVerifiedResponse{
		Session: mapSession(session),
		Voter:   mapProfile(profile),
	}, nil
}

func (h Handler) SubmitFingerprintHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.SubmitFingerprintRequest,
) (httptransport.SessionResponse, error) {
	session, err := h.Booth.SubmitFingerprint(ctx, sessionID, req.Payload)
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return mapSession(session), nil
}

func (h Handler) SubmitFaceHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.SubmitFaceRequest,
) (httptransport.SessionResponse, error) {
	frame, err := decodeBase64(req.ImageBase64)
	if err != nil || len(frame) == 0 {
		return httptransport.SessionResponse{}, domainerrors.ErrNoFaceDetected
	}
	session, err := h.Booth.SubmitFace(ctx, sessionID, frame)
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return mapSession(session), nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.CastVoteRequest,
) (httptransport.VoteResponse, error) {
	vote, err := h.Booth.CastVote(ctx, sessionID, CanonicalLabel(req.Candidate))
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		VoteID:    vote.VoteID,
		VoterID:   vote.VoterID,
		Candidate: vote.Candidate,
		CastAt:    vote.CastAt,
	}, nil
}

func (h Handler) AbandonSessionHandler(ctx context.Context, sessionID string) error {
	return h.Booth.AbandonVerification(ctx, sessionID)
}

func (h Handler) VoterStatusHandler(ctx context.Context, voterID string) (httptransport.VoterProfileResponse, error) {
	profile, err := h.Results.VoterStatus(ctx, voterID)
	if err != nil {
		return httptransport.VoterProfileResponse{}, err
	}
	return mapProfile(profile), nil
}

func (h Handler) ResultsHandler(ctx context.Context) (httptransport.ResultsResponse, error) {
	results, err := h.Results.Results(ctx)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	items := make([]httptransport.CandidateTallyResponse, 0, len(results.Tallies))
	for _, tally := range results.Tallies {
		items = append(items, httptransport.CandidateTallyResponse{
			Candidate: tally.Candidate,
			Votes:     tally.Votes,
		})
	}
	return httptransport.ResultsResponse{
		Items:      items,
		TotalVotes: results.TotalVotes,
	}, nil
}

func (h Handler) CandidatesHandler(_ context.Context) httptransport.CandidatesResponse {
	return httptransport.CandidatesResponse{
		Items: append([]string{}, h.Booth.Candidates...),
	}
}

func (h Handler) EnrollVoterHandler(
	ctx context.Context,
	actorID string,
	req httptransport.EnrollVoterRequest,
) (httptransport.AdminVoterResponse, error) {
	template, err := h.resolveFaceTemplate(ctx, req.FaceImageBase64, req.FaceTemplateBase64)
	if err != nil {
		return httptransport.AdminVoterResponse{}, err
	}
	voter, err := h.Enrollment.EnrollVoter(ctx, commands.EnrollVoterCommand{
		ActorID:             actorID,
		VoterID:             req.VoterID,
		Name:                req.Name,
		DateOfBirth:         req.DateOfBirth,
		Phone:               req.Phone,
		FingerprintTemplate: req.FingerprintTemplate,
		FaceTemplate:        template,
	})
	if err != nil {
		return httptransport.AdminVoterResponse{}, err
	}
	return mapAdminVoter(voter), nil
}

func (h Handler) UpdateVoterHandler(
	ctx context.Context,
	actorID string,
	voterID string,
	req httptransport.UpdateVoterRequest,
) (httptransport.AdminVoterResponse, error) {
	var template []byte
	if req.FaceImageBase64 != nil || req.FaceTemplateBase64 != nil {
		image, encoded := "", ""
		if req.FaceImageBase64 != nil {
			image = *req.FaceImageBase64
		}
		if req.FaceTemplateBase64 != nil {
			encoded = *req.FaceTemplateBase64
		}
		resolved, err := h.resolveFaceTemplate(ctx, image, encoded)
		if err != nil {
			return httptransport.AdminVoterResponse{}, err
		}
		// An explicit empty value clears the enrolled face.
		template = append([]byte{}, resolved...)
	}
	voter, err := h.Enrollment.UpdateVoter(ctx, commands.UpdateVoterCommand{
		ActorID:             actorID,
		VoterID:             voterID,
		Name:                req.Name,
		DateOfBirth:         req.DateOfBirth,
		Phone:               req.Phone,
		FingerprintTemplate: req.FingerprintTemplate,
		FaceTemplate:        template,
	})
	if err != nil {
		return httptransport.AdminVoterResponse{}, err
	}
	return mapAdminVoter(voter), nil
}

func (h Handler) DeleteVoterHandler(ctx context.Context, actorID string, voterID string) error {
	return h.Enrollment.DeleteVoter(ctx, voterID, actorID)
}

func (h Handler) ListVotersHandler(ctx context.Context) (httptransport.ListVotersResponse, error) {
	voters, err := h.Enrollment.ListVoters(ctx)
	if err != nil {
		return httptransport.ListVotersResponse{}, err
	}
	items := make([]httptransport.AdminVoterResponse, 0, len(voters))
	for _, voter := range voters {
		items = append(items, mapAdminVoter(voter))
	}
	return httptransport.ListVotersResponse{Items: items}, nil
}

func (h Handler) ResetVoterVoteHandler(ctx context.Context, actorID string, voterID string) (httptransport.AdminVoterResponse, error) {
	if err := h.Enrollment.ResetVoterVote(ctx, voterID, actorID); err != nil {
		return httptransport.AdminVoterResponse{}, err
	}
	voter, err := h.Enrollment.Voters.GetVoter(ctx, strings.TrimSpace(voterID))
	if err != nil {
		return httptransport.AdminVoterResponse{}, err
	}
	return mapAdminVoter(voter), nil
}

func (h Handler) resolveFaceTemplate(ctx context.Context, imageBase64 string, templateBase64 string) ([]byte, error) {
	if strings.TrimSpace(imageBase64) != "" {
		frame, err := decodeBase64(imageBase64)
		if err != nil {
			return nil, domainerrors.ErrNoFaceDetected
		}
		return h.Enrollment.EnrollFace(ctx, frame)
	}
	if strings.TrimSpace(templateBase64) != "" {
		raw, err := decodeBase64(templateBase64)
		if err != nil {
			return nil, domainerrors.ErrMalformedTemplate
		}
		return raw, nil
	}
	return nil, nil
}

// CanonicalLabel trims and NFC-normalizes a candidate label so visually
// identical labels compare equal.
func CanonicalLabel(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}

func decodeBase64(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if idx := strings.Index(value, ","); idx >= 0 && strings.HasPrefix(value, "data:") {
		value = value[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(value)
	}
	return raw, nil
}

func mapSession(session entities.Session) httptransport.SessionResponse {
	return httptransport.SessionResponse{
		SessionID: session.SessionID,
		Stage:     string(session.Stage),
		VoterID:   session.VoterID,
		ExpiresAt: session.ExpiresAt,
	}
}

func mapProfile(profile entities.PublicProfile) httptransport.VoterProfileResponse {
	return httptransport.VoterProfileResponse{
		VoterID:     profile.VoterID,
		Name:        profile.Name,
		DateOfBirth: profile.DateOfBirth,
		Phone:       profile.Phone,
		HasVoted:    profile.HasVoted,
	}
}

func mapAdminVoter(voter entities.Voter) httptransport.AdminVoterResponse {
	return httptransport.AdminVoterResponse{
		VoterID:        voter.VoterID,
		Name:           voter.Name,
		DateOfBirth:    voter.DateOfBirth,
		Phone:          voter.Phone,
		HasVoted:       voter.HasVoted,
		HasFingerprint: strings.TrimSpace(voter.FingerprintTemplate) != "",
		HasFace:        voter.HasFaceTemplate(),
		CreatedAt:      voter.CreatedAt,
		UpdatedAt:      voter.UpdatedAt,
	}
}
