package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

const (
	DefaultMaxEdge = 800
	DefaultQuality = 85

	// maxPixels rejects decompression bombs before the full decode.
	maxPixels = 60_000_000
)

// Normalizer downsizes uploaded photos into a bounded JPEG payload.
type Normalizer struct {
	MaxEdge int
	Quality int
}

// NewNormalizer returns a Normalizer with the default 800px edge and quality 85.
func NewNormalizer() *Normalizer {
	return &Normalizer{MaxEdge: DefaultMaxEdge, Quality: DefaultQuality}
}

// Normalize decodes blob, shrinks it so the longer edge is at most MaxEdge
// (never enlarging), and re-encodes it as JPEG.
func (n *Normalizer) Normalize(blob []byte) (meal.NormalizedImage, error) {
	if len(blob) == 0 {
		return meal.NormalizedImage{}, fmt.Errorf("%w: empty upload", meal.ErrImageDecode)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob))
	if err != nil {
		return meal.NormalizedImage{}, fmt.Errorf("%w: %w", meal.ErrImageDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return meal.NormalizedImage{}, fmt.Errorf("%w: empty dimensions", meal.ErrImageDecode)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return meal.NormalizedImage{}, fmt.Errorf("%w: %dx%d exceeds pixel limit", meal.ErrImageDecode, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return meal.NormalizedImage{}, fmt.Errorf("%w: %w", meal.ErrImageDecode, err)
	}

	w, h := FitWithin(src.Bounds().Dx(), src.Bounds().Dy(), n.maxEdge())
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha channel, transparent areas become white.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.quality()}); err != nil {
		return meal.NormalizedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return meal.NormalizedImage{
		JPEG:   buf.Bytes(),
		Base64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:  w,
		Height: h,
	}, nil
}

// FitWithin scales (w, h) so the longer edge is at most maxEdge, preserving
// aspect ratio. Dimensions already within bounds are returned unchanged.
func FitWithin(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		return maxEdge, max(1, (h*maxEdge+w/2)/w)
	}
	return max(1, (w*maxEdge+h/2)/h), maxEdge
}

func (n *Normalizer) maxEdge() int {
	if n.MaxEdge <= 0 {
		return DefaultMaxEdge
	}
	return n.MaxEdge
}

func (n *Normalizer) quality() int {
	if n.Quality <= 0 || n.Quality > 100 {
		return DefaultQuality
	}
	return n.Quality
}
