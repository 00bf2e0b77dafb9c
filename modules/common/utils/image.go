package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
)

// ErrInvalidImageData - data URL / base64 / URL 파싱 실패
var ErrInvalidImageData = errors.New("invalid image data")

// maxRemoteImageBytes - URL 로 받는 입력 이미지 크기 제한
const maxRemoteImageBytes = 32 << 20

// DataURL - data:<mime>;base64,<...>
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL - data URL 또는 순수 base64 문자열을 바이트로
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidImageData)
	}
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: data URL has no payload", ErrInvalidImageData)
		}
		header := s[:comma]
		s = s[comma+1:]
		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: only base64 data URLs are supported", ErrInvalidImageData)
		}
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageData, err)
	}
	return data, nil
}

// LoadImageInput - http(s) URL 이면 다운로드, 아니면 data URL/base64 디코딩
func LoadImageInput(ctx context.Context, client *http.Client, s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return DecodeDataURL(s)
	}
	if client == nil {
		client = http.DefaultClient
	}

	log.Info().Msgf("📥 Downloading input image from: %s", s)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageData, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > maxRemoteImageBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", ErrInvalidImageData, maxRemoteImageBytes)
	}
	return data, nil
}

// DecodeConfig - 디코딩 없이 크기만 읽기
func DecodeConfig(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", err
	}
	return cfg.Width, cfg.Height, format, nil
}

// FitWithin - 비율을 유지하며 maxW x maxH 박스 안으로 축소. 이미 작으면 그대로.
func FitWithin(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return src
	}

	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	newW := max(1, int(float64(w)*scale+0.5))
	newH := max(1, int(float64(h)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
