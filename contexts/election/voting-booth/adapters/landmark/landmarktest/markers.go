// Package landmarktest provides a colour-marker Detector and frame builder
// for tests that need deterministic keypoints without a face model.
package landmarktest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/domain/services"
)

const markerRadius = 1

var background = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// markerColors holds one exact colour per canonical keypoint, in order.
var markerColors = [services.CanonicalKeypointCount]color.RGBA{
	{R: 255, A: 255},
	{G: 255, A: 255},
	{B: 255, A: 255},
	{R: 255, G: 255, A: 255},
	{R: 255, B: 255, A: 255},
	{G: 255, B: 255, A: 255},
}

// MarkerDetector reports the centroid of each marker colour, normalized to
// the frame. A frame missing any marker has no face.
type MarkerDetector struct{}

func (MarkerDetector) Detect(img image.Image) (services.FeatureVector, error) {
	bounds := img.Bounds()
	width, height := float64(bounds.Dx()), float64(bounds.Dy())
	var sumX, sumY [services.CanonicalKeypointCount]float64
	var counts [services.CanonicalKeypointCount]int

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			for i, marker := range markerColors {
				if uint8(r>>8) == marker.R && uint8(g>>8) == marker.G && uint8(b>>8) == marker.B {
					sumX[i] += float64(x-bounds.Min.X) + 0.5
					sumY[i] += float64(y-bounds.Min.Y) + 0.5
					counts[i]++
				}
			}
		}
	}

	vector := make(services.FeatureVector, 0, services.CanonicalKeypointCount)
	for i, count := range counts {
		if count == 0 {
			return nil, fmt.Errorf("%w: marker %d not found", domainerrors.ErrNoFaceDetected, i)
		}
		vector = append(vector, services.Keypoint{
			X: sumX[i] / float64(count) / width,
			Y: sumY[i] / float64(count) / height,
		})
	}
	return vector, nil
}

// Frame draws one marker per keypoint on a grey side x side canvas and
// returns it PNG-encoded. Points are fractions of the frame.
func Frame(t testing.TB, side int, points services.FeatureVector) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = background.R, background.G, background.B, background.A
	}
	for i, point := range points {
		if i >= len(markerColors) {
			break
		}
		cx, cy := int(point.X*float64(side)), int(point.Y*float64(side))
		for y := cy - markerRadius; y <= cy+markerRadius; y++ {
			for x := cx - markerRadius; x <= cx+markerRadius; x++ {
				if x >= 0 && y >= 0 && x < side && y < side {
					img.SetRGBA(x, y, markerColors[i])
				}
			}
		}
	}
	return Encode(t, img)
}

// Noise returns a PNG of seeded pseudo-random grey texture with no markers.
func Noise(t testing.TB, side int, seed uint32) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, side, side))
	state := seed | 1
	for i := range img.Pix {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		img.Pix[i] = uint8(state)
	}
	return Encode(t, img)
}

// Gradient returns a PNG whose brightness rises left to right.
func Gradient(t testing.TB, side int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / max(1, side-1))})
		}
	}
	return Encode(t, img)
}

func Encode(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
