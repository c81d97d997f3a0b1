package imagehash

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

// encodePNG renders a small test image: left half dark, right half bright,
// with an optional bright square at (x, y) to perturb the pattern.
func encodePNG(t *testing.T, w, h int, perturb *image.Point) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{20, 20, 20, 255}
			if x >= w/2 {
				c = color.RGBA{230, 230, 230, 255}
			}
			img.Set(x, y, c)
		}
	}
	if perturb != nil {
		for y := perturb.Y; y < perturb.Y+h/8 && y < h; y++ {
			for x := perturb.X; x < perturb.X+w/8 && x < w; x++ {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestComputeDeterministic(t *testing.T) {
	data := encodePNG(t, 64, 64, nil)
	first, err := Compute(data)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if len(first) != EncodedLength {
		t.Fatalf("expected %d hex chars, got %d (%q)", EncodedLength, len(first), first)
	}
	for i := 0; i < 10; i++ {
		again, err := Compute(data)
		if err != nil {
			t.Fatalf("Compute returned error on repeat call: %v", err)
		}
		if again != first {
			t.Fatalf("fingerprint not deterministic: %q vs %q", first, again)
		}
	}
}

func TestComputeDistinguishesPatterns(t *testing.T) {
	a, err := Compute(encodePNG(t, 64, 64, nil))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := Compute(encodePNG(t, 64, 64, &image.Point{X: 4, Y: 4}))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if a == b {
		t.Fatal("expected different fingerprints for perturbed image")
	}
}

func TestComputeDecodeError(t *testing.T) {
	if _, err := Compute([]byte("definitely not an image")); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if _, err := Compute(nil); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for empty input, got %v", err)
	}
}

func TestDistanceIdentityAndSymmetry(t *testing.T) {
	a := Fingerprint("ffff00000000ffff")
	b := Fingerprint("ffff00000000fff0")

	if d := Distance(a, a); d != 0 {
		t.Fatalf("Distance(a, a) = %d, want 0", d)
	}
	if !IsMatch(a, a, 0) {
		t.Fatal("IsMatch(a, a, 0) = false, want true")
	}
	if Distance(a, b) != Distance(b, a) {
		t.Fatalf("distance not symmetric: %d vs %d", Distance(a, b), Distance(b, a))
	}
	if d := Distance(a, b); d != 4 {
		t.Fatalf("Distance = %d, want 4 (one nibble f->0)", d)
	}
}

func TestIsMatchThreshold(t *testing.T) {
	base := Fingerprint("0000000000000000")
	within := Fingerprint("000000000000001f") // 5 bits set
	beyond := Fingerprint("000000000000003f") // 6 bits set

	if !IsMatch(base, within, DefaultThreshold) {
		t.Fatal("expected match at exactly the threshold")
	}
	if IsMatch(base, beyond, DefaultThreshold) {
		t.Fatal("expected no match one bit past the threshold")
	}
}

func TestDistanceLengthMismatch(t *testing.T) {
	a := Fingerprint("0000000000000000")
	short := Fingerprint("00000000")
	if d := Distance(a, short); d != math.MaxInt {
		t.Fatalf("Distance with mismatched lengths = %d, want MaxInt", d)
	}
	if IsMatch(a, short, 1000) {
		t.Fatal("mismatched lengths must never match")
	}
	if d := Distance("", ""); d != math.MaxInt {
		t.Fatalf("Distance of empty fingerprints = %d, want MaxInt", d)
	}
}
