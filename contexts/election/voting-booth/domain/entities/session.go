package entities

import "time"

type Stage string

const (
	StageAwaitingQR          Stage = "awaiting_qr"
	StageAwaitingFingerprint Stage = "awaiting_fingerprint"
	StageAwaitingFace        Stage = "awaiting_face"
	StageVerified            Stage = "verified"
)

// Session is one in-flight verification attempt. It is never persisted;
// losing it only forces the voter back to the QR step.
type Session struct {
	SessionID string
	VoterID   string
	Stage     Stage
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Next returns the stage reached after the current stage succeeds.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageAwaitingQR:
		return StageAwaitingFingerprint, true
	case StageAwaitingFingerprint:
		return StageAwaitingFace, true
	case StageAwaitingFace:
		return StageVerified, true
	default:
		return s, false
	}
}
