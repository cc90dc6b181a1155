package services

import (
	"encoding/binary"
	"fmt"
	"math"

	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
)

const (
	// DefaultMatchThreshold is the strict upper bound on landmark distance.
	// A distance of exactly 0.4 does not match.
	DefaultMatchThreshold = 0.4

	// CanonicalKeypointCount is right eye, left eye, nose tip, mouth center,
	// right ear tragion, left ear tragion.
	CanonicalKeypointCount = 6

	templateVersion    byte = 1
	templateHeaderSize      = 5
	keypointSize            = 16
	maxTemplatePoints       = 468
)

var templateMagic = [2]byte{'F', 'V'}

// Keypoint is a landmark position normalized to the image size.
type Keypoint struct {
	X float64
	Y float64
}

type FeatureVector []Keypoint

// Distance is the Euclidean norm of the element-wise difference.
func Distance(a FeatureVector, b FeatureVector) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("%w: vector lengths %d and %d", domainerrors.ErrMalformedTemplate, len(a), len(b))
	}
	var sum float64
	for i := range a {
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		sum += dx*dx + dy*dy
	}
	return math.Sqrt(sum), nil
}

// Matches reports whether the distance is strictly below threshold. A
// non-positive threshold falls back to DefaultMatchThreshold.
func Matches(a FeatureVector, b FeatureVector, threshold float64) (bool, float64, error) {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	distance, err := Distance(a, b)
	if err != nil {
		return false, 0, err
	}
	return distance < threshold, distance, nil
}

// EncodeFeatureVector writes the storage form:
//
//	"FV" | version(1) | count uint16 BE | count x (x float64 BE, y float64 BE)
func EncodeFeatureVector(vector FeatureVector) ([]byte, error) {
	if len(vector) == 0 || len(vector) > maxTemplatePoints {
		return nil, fmt.Errorf("%w: cannot encode %d keypoints", domainerrors.ErrMalformedTemplate, len(vector))
	}
	out := make([]byte, templateHeaderSize+len(vector)*keypointSize)
	out[0] = templateMagic[0]
	out[1] = templateMagic[1]
	out[2] = templateVersion
	binary.BigEndian.PutUint16(out[3:5], uint16(len(vector)))
	offset := templateHeaderSize
	for _, point := range vector {
		if !finite(point.X) || !finite(point.Y) {
			return nil, fmt.Errorf("%w: non-finite coordinate", domainerrors.ErrMalformedTemplate)
		}
		binary.BigEndian.PutUint64(out[offset:], math.Float64bits(point.X))
		binary.BigEndian.PutUint64(out[offset+8:], math.Float64bits(point.Y))
		offset += keypointSize
	}
	return out, nil
}

func DecodeFeatureVector(raw []byte) (FeatureVector, error) {
	if len(raw) < templateHeaderSize {
		return nil, fmt.Errorf("%w: template too short", domainerrors.ErrMalformedTemplate)
	}
	if raw[0] != templateMagic[0] || raw[1] != templateMagic[1] {
		return nil, fmt.Errorf("%w: bad magic", domainerrors.ErrMalformedTemplate)
	}
	if raw[2] != templateVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", domainerrors.ErrMalformedTemplate, raw[2])
	}
	count := int(binary.BigEndian.Uint16(raw[3:5]))
	if count == 0 || count > maxTemplatePoints || len(raw) != templateHeaderSize+count*keypointSize {
		return nil, fmt.Errorf("%w: declared %d keypoints in %d bytes", domainerrors.ErrMalformedTemplate, count, len(raw))
	}
	vector := make(FeatureVector, count)
	offset := templateHeaderSize
	for i := range vector {
		x := math.Float64frombits(binary.BigEndian.Uint64(raw[offset:]))
		y := math.Float64frombits(binary.BigEndian.Uint64(raw[offset+8:]))
		if !finite(x) || !finite(y) {
			return nil, fmt.Errorf("%w: non-finite coordinate", domainerrors.ErrMalformedTemplate)
		}
		vector[i] = Keypoint{X: x, Y: y}
		offset += keypointSize
	}
	return vector, nil
}

func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
