package entities

import "time"

// Voter is the enrolled identity record. FaceTemplate holds the encoded
// feature vector (see services.EncodeFeatureVector) and is nil when no face
// was enrolled.
type Voter struct {
	VoterID             string
	Name                string
	DateOfBirth         string
	Phone               string
	FingerprintTemplate string
	FaceTemplate        []byte
	HasVoted            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PublicProfile is the part of a voter that may leave the booth.
type PublicProfile struct {
	VoterID     string
	Name        string
	DateOfBirth string
	Phone       string
	HasVoted    bool
}

func (v Voter) Profile() PublicProfile {
	return PublicProfile{
		VoterID:     v.VoterID,
		Name:        v.Name,
		DateOfBirth: v.DateOfBirth,
		Phone:       v.Phone,
		HasVoted:    v.HasVoted,
	}
}

func (v Voter) HasFaceTemplate() bool {
	return len(v.FaceTemplate) > 0
}

type Vote struct {
	VoteID    string
	VoterID   string
	Candidate string
	CastAt    time.Time
}

type CandidateTally struct {
	Candidate string
	Votes     int
}
