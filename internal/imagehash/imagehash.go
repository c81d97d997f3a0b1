// Package imagehash computes perceptual fingerprints for meal photos and
// answers "are these two photos the same shot" via Hamming distance. It is
// deliberately coarse: the goal is to catch re-submissions of a photo that
// was analyzed moments or days ago (double-tap, retry after timeout,
// recompressed gallery copy), not exact duplicate detection.
package imagehash

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"math/bits"

	// Decoders for the formats the mobile clients upload.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// gridSize is the edge length of the downsampled luminance grid.
	gridSize = 16

	// FingerprintBits is the number of bits kept from the luminance grid.
	FingerprintBits = 64

	// EncodedLength is the length of a hex-encoded fingerprint.
	EncodedLength = FingerprintBits / 4

	// DefaultThreshold is the default maximum Hamming distance at which two
	// fingerprints are considered the same photo. 5 of 64 bits tolerates
	// recompression and minor crop or exposure changes without matching a
	// different dish.
	DefaultThreshold = 5
)

// ErrDecode is returned when the submitted bytes cannot be decoded into an
// image, or decode to an image with zero dimensions.
var ErrDecode = errors.New("image_decode_failed")

// Fingerprint is a 64-bit perceptual signature encoded as a fixed-width,
// zero-padded lowercase hex string. Identical input bytes always produce an
// identical fingerprint.
type Fingerprint string

// Compute decodes the image, downsamples it to a 16x16 luminance grid,
// thresholds each sample against the mean luminance and keeps the first 64
// bits in raster order.
func Compute(data []byte) (Fingerprint, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return "", fmt.Errorf("%w: zero-dimension image", ErrDecode)
	}

	// NearestNeighbor is integer-only, so the same bytes resample to the
	// same grid on every platform.
	small := image.NewRGBA(image.Rect(0, 0, gridSize, gridSize))
	draw.NearestNeighbor.Scale(small, small.Bounds(), img, bounds, draw.Src, nil)

	var lum [gridSize * gridSize]int
	total := 0
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			r, g, b, _ := small.At(x, y).RGBA()
			// Luminance is the mean of the 8-bit channel values.
			l := (int(r>>8) + int(g>>8) + int(b>>8)) / 3
			lum[y*gridSize+x] = l
			total += l
		}
	}
	mean := float64(total) / float64(gridSize*gridSize)

	var folded uint64
	for i := 0; i < FingerprintBits; i++ {
		folded <<= 1
		if float64(lum[i]) > mean {
			folded |= 1
		}
	}
	return Fingerprint(fmt.Sprintf("%016x", folded)), nil
}

// Distance returns the Hamming distance between two fingerprints. Fingerprints
// of differing encoded length never match; the distance is reported as
// math.MaxInt. The same applies to malformed hex, which should not occur for
// fingerprints produced by Compute.
func Distance(a, b Fingerprint) int {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxInt
	}
	d := 0
	for i := 0; i < len(a); i++ {
		av, ok := hexNibble(a[i])
		if !ok {
			return math.MaxInt
		}
		bv, ok := hexNibble(b[i])
		if !ok {
			return math.MaxInt
		}
		d += bits.OnesCount8(av ^ bv)
	}
	return d
}

// IsMatch reports whether two fingerprints are within threshold differing bits
// of each other.
func IsMatch(a, b Fingerprint, threshold int) bool {
	return Distance(a, b) <= threshold
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
