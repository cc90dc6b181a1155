package errors

import "errors"

var (
	ErrNotRegistered       = errors.New("voter is not registered")
	ErrUnderage            = errors.New("voter is not old enough to vote")
	ErrInvalidTransition   = errors.New("verification step is not allowed in the current stage")
	ErrFingerprintMismatch = errors.New("fingerprint does not match")
	ErrNoEnrolledFace      = errors.New("no face template enrolled for voter")
	ErrNoFaceDetected      = errors.New("no face detected in image")
	ErrFaceMismatch        = errors.New("face does not match enrolled template")
	ErrAlreadyVoted        = errors.New("voter has already voted")
	ErrVoterNotFound       = errors.New("voter not found")
	ErrInvalidCandidate    = errors.New("invalid candidate")
	ErrMalformedTemplate   = errors.New("malformed biometric template")
	ErrStoreFailure        = errors.New("voter store failure")

	ErrSessionNotFound    = errors.New("verification session not found")
	ErrSessionExpired     = errors.New("verification session expired")
	ErrSessionNotVerified = errors.New("verification session is not verified")
	ErrInvalidVoterInput  = errors.New("invalid voter input")
	ErrVoterExists        = errors.New("voter already exists")
	ErrConflict           = errors.New("booth state conflict")
)
