package landmark

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/domain/services"

	pigo "github.com/esimov/pigo/core"
	"golang.org/x/image/draw"
)

const (
	maxDetectSide     = 640
	minFaceSize       = 40
	defaultMinQuality = 5.0
	clusterIoU        = 0.2
	pupilPerturbs     = 63
	landmarkPerturbs  = 31
)

// Detector locates the canonical keypoints in a decoded frame.
type Detector interface {
	Detect(img image.Image) (services.FeatureVector, error)
}

// landmarkPoint names a facial landmark cascade from the pigo lps set;
// flip mirrors it onto the other half of the face.
type landmarkPoint struct {
	cascade string
	flip    bool
}

// Keypoint order after the two pupils.
var landmarkPoints = [services.CanonicalKeypointCount - 2]landmarkPoint{
	{cascade: "lp84", flip: true},
	{cascade: "lp93", flip: false},
	{cascade: "lp38", flip: false},
	{cascade: "lp38", flip: true},
}

// PigoDetector finds the strongest frontal face with the pigo face cascade,
// localizes both pupils, then runs the landmark cascades. Keypoints are
// normalized to the detected face box so framing and distance to the
// camera do not move them.
type PigoDetector struct {
	// MinQuality is the cascade score a face must reach.
	MinQuality float32

	mu        sync.Mutex
	faces     *pigo.Pigo
	pupils    *pigo.PuplocCascade
	landmarks map[string][]*pigo.FlpCascade
}

// LoadPigoDetector reads the facefinder and puploc cascades and the lps
// landmark directory from dir, laid out as in the pigo repository's
// cascade directory.
func LoadPigoDetector(dir string) (*PigoDetector, error) {
	faceCascade, err := os.ReadFile(filepath.Join(dir, "facefinder"))
	if err != nil {
		return nil, fmt.Errorf("read face cascade: %w", err)
	}
	faces, err := pigo.NewPigo().Unpack(faceCascade)
	if err != nil {
		return nil, fmt.Errorf("unpack face cascade: %w", err)
	}

	pupilCascade, err := os.ReadFile(filepath.Join(dir, "puploc"))
	if err != nil {
		return nil, fmt.Errorf("read pupil cascade: %w", err)
	}
	pl := pigo.NewPuplocCascade()
	pupils, err := pl.UnpackCascade(pupilCascade)
	if err != nil {
		return nil, fmt.Errorf("unpack pupil cascade: %w", err)
	}

	landmarks, err := pl.ReadCascadeDir(filepath.Join(dir, "lps"))
	if err != nil {
		return nil, fmt.Errorf("read landmark cascades: %w", err)
	}
	for _, point := range landmarkPoints {
		if len(landmarks[point.cascade]) == 0 {
			return nil, fmt.Errorf("landmark cascade %s missing from %s", point.cascade, filepath.Join(dir, "lps"))
		}
	}

	return &PigoDetector{
		MinQuality: defaultMinQuality,
		faces:      faces,
		pupils:     pupils,
		landmarks:  landmarks,
	}, nil
}

func (d *PigoDetector) Detect(img image.Image) (services.FeatureVector, error) {
	frame := downscale(img)
	bounds := frame.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if rows < minFaceSize || cols < minFaceSize {
		return nil, fmt.Errorf("%w: frame %dx%d too small", domainerrors.ErrNoFaceDetected, cols, rows)
	}
	params := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(frame),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	detections := d.faces.RunCascade(pigo.CascadeParams{
		MinSize:     minFaceSize,
		MaxSize:     min(rows, cols),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: params,
	}, 0.0)
	detections = d.faces.ClusterDetections(detections, clusterIoU)

	face, ok := strongest(detections, d.minQuality())
	if !ok {
		return nil, fmt.Errorf("%w: no face above quality %.1f", domainerrors.ErrNoFaceDetected, d.minQuality())
	}

	scale := float32(face.Scale)
	leftEye := d.pupils.RunDetector(pigo.Puploc{
		Row:      face.Row - int(0.075*scale),
		Col:      face.Col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: pupilPerturbs,
	}, params, 0.0, false)
	rightEye := d.pupils.RunDetector(pigo.Puploc{
		Row:      face.Row - int(0.075*scale),
		Col:      face.Col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: pupilPerturbs,
	}, params, 0.0, false)
	if !located(leftEye) || !located(rightEye) {
		return nil, fmt.Errorf("%w: pupils not located", domainerrors.ErrNoFaceDetected)
	}

	vector := make(services.FeatureVector, 0, services.CanonicalKeypointCount)
	vector = append(vector, toFaceBox(face, leftEye.Row, leftEye.Col), toFaceBox(face, rightEye.Row, rightEye.Col))
	for _, point := range landmarkPoints {
		found := d.landmarks[point.cascade][0].GetLandmarkPoint(leftEye, rightEye, params, landmarkPerturbs, point.flip)
		if !located(found) {
			return nil, fmt.Errorf("%w: landmark %s not located", domainerrors.ErrNoFaceDetected, point.cascade)
		}
		vector = append(vector, toFaceBox(face, found.Row, found.Col))
	}
	return vector, nil
}

func (d *PigoDetector) minQuality() float32 {
	if d.MinQuality <= 0 {
		return defaultMinQuality
	}
	return d.MinQuality
}

func strongest(detections []pigo.Detection, minQuality float32) (pigo.Detection, bool) {
	var best pigo.Detection
	found := false
	for _, detection := range detections {
		if detection.Q < minQuality || detection.Scale <= 0 {
			continue
		}
		if !found || detection.Q > best.Q {
			best = detection
			found = true
		}
	}
	return best, found
}

func located(point *pigo.Puploc) bool {
	return point != nil && point.Row > 0 && point.Col > 0
}

// toFaceBox maps a pixel position to coordinates relative to the face box,
// where (0,0) is its top-left and (1,1) its bottom-right corner.
func toFaceBox(face pigo.Detection, row int, col int) services.Keypoint {
	side := float64(face.Scale)
	left := float64(face.Col) - side/2
	top := float64(face.Row) - side/2
	return services.Keypoint{
		X: (float64(col) - left) / side,
		Y: (float64(row) - top) / side,
	}
}

// downscale copies the frame into an NRGBA canvas whose longest side is at
// most maxDetectSide.
func downscale(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if longest := max(width, height); longest > maxDetectSide {
		width = width * maxDetectSide / longest
		height = height * maxDetectSide / longest
	}
	dst := image.NewNRGBA(image.Rect(0, 0, max(1, width), max(1, height)))
	if dst.Bounds().Size() == bounds.Size() {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

var _ Detector = (*PigoDetector)(nil)
