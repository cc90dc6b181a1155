package landmark

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/domain/services"
	"ballotbooth/contexts/election/voting-booth/ports"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const maxFramePixels = 40_000_000

// Matcher is the BiometricMatcher backed by a landmark Detector and the
// Euclidean distance rule.
type Matcher struct {
	Detector  Detector
	Threshold float64
	Logger    *slog.Logger
}

func NewMatcher(detector Detector, threshold float64, logger *slog.Logger) Matcher {
	return Matcher{
		Detector:  detector,
		Threshold: threshold,
		Logger:    logger,
	}
}

// Extract decodes a still frame and returns its keypoints. Every failure,
// including a panic inside the decoder or detector, is reported as
// ErrNoFaceDetected.
func (m Matcher) Extract(ctx context.Context, frame []byte) (vector services.FeatureVector, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", domainerrors.ErrNoFaceDetected)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			m.logger().Error("landmark detector panicked",
				"event", "booth_landmark_panic",
				"module", "election/voting-booth",
				"layer", "adapter",
				"panic", fmt.Sprint(recovered),
			)
			vector = nil
			err = fmt.Errorf("%w: detector failure", domainerrors.ErrNoFaceDetected)
		}
	}()

	config, format, err := image.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainerrors.ErrNoFaceDetected, err)
	}
	if config.Width <= 0 || config.Height <= 0 || config.Width*config.Height > maxFramePixels {
		return nil, fmt.Errorf("%w: unsupported %s frame %dx%d", domainerrors.ErrNoFaceDetected, format, config.Width, config.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainerrors.ErrNoFaceDetected, err)
	}

	if m.Detector == nil {
		return nil, fmt.Errorf("%w: no detector configured", domainerrors.ErrNoFaceDetected)
	}
	vector, err = m.Detector.Detect(img)
	if err != nil {
		return nil, err
	}
	if len(vector) != services.CanonicalKeypointCount {
		return nil, fmt.Errorf("%w: detector returned %d keypoints", domainerrors.ErrNoFaceDetected, len(vector))
	}
	return vector, nil
}

func (m Matcher) Compare(enrolled services.FeatureVector, live services.FeatureVector) (bool, error) {
	matched, distance, err := services.Matches(enrolled, live, m.Threshold)
	if err != nil {
		return false, err
	}
	m.logger().Info("landmark distance computed",
		"event", "booth_landmark_compared",
		"module", "election/voting-booth",
		"layer", "adapter",
		"distance", distance,
		"matched", matched,
	)
	return matched, nil
}

func (m Matcher) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

var _ ports.BiometricMatcher = Matcher{}
