package mask

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
)

// Normalize - 마스크를 width x height 그레이스케일 PNG 로.
// 알파가 있으면 알파, 없으면 휘도. 실패하면 원본 바이트 그대로 반환.
func Normalize(raw []byte, width, height int) []byte {
	out, err := NormalizeStrict(raw, width, height)
	if err != nil {
		log.Warn().Msgf("⚠️  [Mask] Normalization failed, passing raw mask through: %v", err)
		return raw
	}
	return out
}

// NormalizeStrict - fallback 없이 에러 반환
func NormalizeStrict(raw []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}

	var m *image.Gray
	if hasAlpha(src) {
		m = alphaChannel(src)
		log.Debug().Msgf("🎭 [Mask] Using alpha channel of %s mask", format)
	} else {
		m = luminance(src)
	}

	if b := m.Bounds(); b.Dx() != width || b.Dy() != height {
		log.Debug().Msgf("🎭 [Mask] Resizing mask %dx%d -> %dx%d", b.Dx(), b.Dy(), width, height)
		dst := image.NewGray(image.Rect(0, 0, width, height))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), m, b, xdraw.Src, nil)
		m = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}
	return buf.Bytes(), nil
}

// hasAlpha - 알파 채널 여부 (NRGBA/RGBA, 투명 항목이 있는 팔레트)
func hasAlpha(img image.Image) bool {
	switch v := img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return true
	case *image.Paletted:
		for _, c := range v.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	case *image.RGBA:
		return !v.Opaque()
	case *image.RGBA64:
		return !v.Opaque()
	}
	return false
}

func alphaChannel(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			out.Pix[(y-b.Min.Y)*out.Stride+(x-b.Min.X)] = uint8(a >> 8)
		}
	}
	return out
}

func luminance(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)).(color.Gray))
		}
	}
	return out
}
