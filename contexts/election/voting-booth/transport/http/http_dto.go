package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	VoterID   string    `json:"voter_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SubmitQRRequest struct {
	VoterID string `json:"voter_id"`
}

type SubmitFingerprintRequest struct {
	Payload string `json:"payload"`
}

// SubmitFaceRequest carries one still frame (JPEG, PNG, GIF, BMP or WebP),
// standard base64 encoded.
type SubmitFaceRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type CastVoteRequest struct {
	Candidate string `json:"candidate"`
}

type VoterProfileResponse struct {
	VoterID     string `json:"voter_id"`
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	Phone       string `json:"phone,omitempty"`
	HasVoted    bool   `json:"has_voted"`
}

type QRVerifiedResponse struct {
	Session SessionResponse      `json:"session"`
	Voter   VoterProfileResponse `json:"voter"`
}

type VoteResponse struct {
	VoteID    string    `json:"vote_id"`
	VoterID   string    `json:"voter_id"`
	Candidate string    `json:"candidate"`
	CastAt    time.Time `json:"cast_at"`
}

type CandidateTallyResponse struct {
	Candidate string `json:"candidate"`
	Votes     int    `json:"votes"`
}

type ResultsResponse struct {
	Items      []CandidateTallyResponse `json:"items"`
	TotalVotes int                      `json:"total_votes"`
}

type CandidatesResponse struct {
	Items []string `json:"items"`
}

type EnrollVoterRequest struct {
	VoterID             string `json:"voter_id"`
	Name                string `json:"name"`
	DateOfBirth         string `json:"date_of_birth"`
	Phone               string `json:"phone,omitempty"`
	FingerprintTemplate string `json:"fingerprint_template,omitempty"`
	// FaceImageBase64 is a capture to enroll from; FaceTemplateBase64 is an
	// already encoded template. When both are set the image wins.
	FaceImageBase64    string `json:"face_image_base64,omitempty"`
	FaceTemplateBase64 string `json:"face_template_base64,omitempty"`
}

type UpdateVoterRequest struct {
	Name                string  `json:"name"`
	DateOfBirth         string  `json:"date_of_birth"`
	Phone               string  `json:"phone,omitempty"`
	FingerprintTemplate string  `json:"fingerprint_template,omitempty"`
	FaceImageBase64     *string `json:"face_image_base64,omitempty"`
	FaceTemplateBase64  *string `json:"face_template_base64,omitempty"`
}

type AdminVoterResponse struct {
	VoterID        string    `json:"voter_id"`
	Name           string    `json:"name"`
	DateOfBirth    string    `json:"date_of_birth"`
	Phone          string    `json:"phone,omitempty"`
	HasVoted       bool      `json:"has_voted"`
	HasFingerprint bool      `json:"has_fingerprint"`
	HasFace        bool      `json:"has_face"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ListVotersResponse struct {
	Items []AdminVoterResponse `json:"items"`
}
