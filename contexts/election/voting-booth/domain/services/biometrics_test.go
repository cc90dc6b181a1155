package services

import (
	"errors"
	"math"
	"testing"

	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
)

func canonicalVector() FeatureVector {
	return FeatureVector{
		{X: 0.30, Y: 0.32}, {X: 0.70, Y: 0.32}, {X: 0.50, Y: 0.52},
		{X: 0.50, Y: 0.75}, {X: 0.08, Y: 0.45}, {X: 0.92, Y: 0.45},
	}
}

func TestMatchesThresholdIsStrict(t *testing.T) {
	enrolled := FeatureVector{{X: 0, Y: 0}}

	matched, distance, err := Matches(enrolled, FeatureVector{{X: 0.3, Y: 0.4}}, 0.5)
	if err != nil {
		t.Fatalf("matches failed: %v", err)
	}
	if matched || math.Abs(distance-0.5) > 1e-12 {
		t.Fatalf("expected distance 0.5 to miss threshold 0.5, matched=%v distance=%f", matched, distance)
	}

	matched, _, err = Matches(enrolled, FeatureVector{{X: 0.399, Y: 0}}, 0)
	if err != nil || !matched {
		t.Fatalf("expected default threshold to accept 0.399, matched=%v err=%v", matched, err)
	}
	matched, _, _ = Matches(enrolled, FeatureVector{{X: 0.4, Y: 0}}, 0)
	if matched {
		t.Fatalf("expected distance exactly 0.4 to be rejected")
	}
}

func TestDistanceRejectsMismatchedLengths(t *testing.T) {
	if _, err := Distance(canonicalVector(), canonicalVector()[:5]); !errors.Is(err, domainerrors.ErrMalformedTemplate) {
		t.Fatalf("expected ErrMalformedTemplate, got %v", err)
	}
	if _, err := Distance(nil, nil); !errors.Is(err, domainerrors.ErrMalformedTemplate) {
		t.Fatalf("expected ErrMalformedTemplate for empty vectors, got %v", err)
	}
}

func TestFeatureVectorEncoding(t *testing.T) {
	raw, err := EncodeFeatureVector(canonicalVector())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(raw) != 5+6*16 || raw[0] != 'F' || raw[1] != 'V' || raw[2] != 1 {
		t.Fatalf("unexpected header or length: % x", raw[:5])
	}
	decoded, err := DecodeFeatureVector(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	distance, err := Distance(canonicalVector(), decoded)
	if err != nil || distance != 0 {
		t.Fatalf("expected exact round trip, distance=%f err=%v", distance, err)
	}
}

func TestDecodeFeatureVectorRejectsMalformedInput(t *testing.T) {
	valid, err := EncodeFeatureVector(canonicalVector())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	badMagic := append([]byte(nil), valid...)
	badMagic[0] = 'X'
	badVersion := append([]byte(nil), valid...)
	badVersion[2] = 9
	nan := append([]byte(nil), valid...)
	for i := 5; i < 13; i++ {
		nan[i] = 0xFF
	}

	cases := map[string][]byte{
		"empty":       nil,
		"short":       valid[:4],
		"bad magic":   badMagic,
		"bad version": badVersion,
		"truncated":   valid[:len(valid)-1],
		"trailing":    append(append([]byte(nil), valid...), 0),
		"nan":         nan,
	}
	for name, raw := range cases {
		if _, err := DecodeFeatureVector(raw); !errors.Is(err, domainerrors.ErrMalformedTemplate) {
			t.Fatalf("%s: expected ErrMalformedTemplate, got %v", name, err)
		}
	}
}

func TestEncodeFeatureVectorRejectsNonFinite(t *testing.T) {
	if _, err := EncodeFeatureVector(FeatureVector{{X: math.Inf(1), Y: 0}}); !errors.Is(err, domainerrors.ErrMalformedTemplate) {
		t.Fatalf("expected ErrMalformedTemplate, got %v", err)
	}
	if _, err := EncodeFeatureVector(nil); !errors.Is(err, domainerrors.ErrMalformedTemplate) {
		t.Fatalf("expected ErrMalformedTemplate for empty vector, got %v", err)
	}
}
