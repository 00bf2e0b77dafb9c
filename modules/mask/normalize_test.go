package mask

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func decodeGray(t *testing.T, data []byte) *image.Gray {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("normalized mask is %T, want *image.Gray", img)
	}
	return g
}

func TestNormalizeIsIdempotentOnCorrectMask(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 7)
	}
	raw := encodePNG(t, src)

	once := Normalize(raw, 64, 48)
	twice := Normalize(once, 64, 48)

	a, b := decodeGray(t, once), decodeGray(t, twice)
	if !bytes.Equal(a.Pix, src.Pix) || !bytes.Equal(a.Pix, b.Pix) {
		t.Fatalf("pixel data changed across normalization")
	}
}

func TestNormalizeResizesToTarget(t *testing.T) {
	sizes := [][2]int{{10, 10}, {512, 512}, {300, 77}, {1, 900}}
	for _, sz := range sizes {
		raw := encodePNG(t, image.NewGray(image.Rect(0, 0, sz[0], sz[1])))
		out, err := NormalizeStrict(raw, 640, 360)
		if err != nil {
			t.Fatalf("%v: %v", sz, err)
		}
		if b := decodeGray(t, out).Bounds(); b.Dx() != 640 || b.Dy() != 360 {
			t.Fatalf("%v: bounds %v", sz, b)
		}
	}
}

func TestNormalizeExtractsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	// 색은 흰색이어도 alpha 가 마스크가 된다
	alphas := []uint8{0, 80, 160, 255}
	for x, a := range alphas {
		src.SetNRGBA(x, 0, color.NRGBA{R: 255, G: 255, B: 255, A: a})
	}

	g := decodeGray(t, Normalize(encodePNG(t, src), 4, 1))
	if !bytes.Equal(g.Pix, alphas) {
		t.Fatalf("pix = %v, want %v", g.Pix, alphas)
	}
}

func TestNormalizeOpaqueColorUsesLuminance(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.RGBA{0, 0, 0, 255})
	src.Set(1, 0, color.RGBA{255, 255, 255, 255})

	g := decodeGray(t, Normalize(encodePNG(t, src), 2, 1))
	if g.Pix[0] != 0 || g.Pix[1] != 255 {
		t.Fatalf("pix = %v", g.Pix)
	}
}

func TestNormalizeFallsBackToRaw(t *testing.T) {
	raw := []byte("not an image")
	if got := Normalize(raw, 10, 10); !bytes.Equal(got, raw) {
		t.Fatalf("expected raw passthrough, got %q", got)
	}
	if _, err := NormalizeStrict(raw, 10, 10); err == nil {
		t.Fatalf("expected error from NormalizeStrict")
	}
}
