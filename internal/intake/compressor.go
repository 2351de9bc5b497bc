package intake

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"math"
	"time"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultThresholdBytes = 1024 * 1024
	DefaultMaxWidth       = 1024
	DefaultQuality        = 0.7

	// MaxDecodePixels bounds the raster allocated while decoding.
	MaxDecodePixels = 50_000_000

	mimeJPEG = "image/jpeg"
)

// CompressorParams configures when and how images are re-encoded.
type CompressorParams struct {
	// Files smaller than ThresholdBytes are passed through untouched.
	ThresholdBytes int
	MaxWidth       int
	// Quality is the JPEG quality factor in (0, 1].
	Quality float64
}

// DefaultCompressorParams returns 1 MiB / 1024 px / 0.7.
func DefaultCompressorParams() CompressorParams {
	return CompressorParams{
		ThresholdBytes: DefaultThresholdBytes,
		MaxWidth:       DefaultMaxWidth,
		Quality:        DefaultQuality,
	}
}

// Compressor downsamples and re-encodes large images.
type Compressor struct {
	params CompressorParams
}

// NewCompressor validates params and creates a compressor.
func NewCompressor(params CompressorParams) (*Compressor, error) {
	if params.ThresholdBytes < 0 {
		return nil, fmt.Errorf("threshold must not be negative, got %d", params.ThresholdBytes)
	}
	if params.MaxWidth <= 0 {
		return nil, fmt.Errorf("max width must be positive, got %d", params.MaxWidth)
	}
	if params.Quality <= 0 || params.Quality > 1 {
		return nil, fmt.Errorf("quality must be in (0, 1], got %v", params.Quality)
	}
	return &Compressor{params: params}, nil
}

// GetParams returns the configured parameters
func (c *Compressor) GetParams() CompressorParams {
	return c.params
}

// Compress returns file unchanged when it is not an image or is below the
// threshold. Otherwise it returns a JPEG no wider than MaxWidth. Any decode
// or encode failure yields the original file; the error is only set when ctx
// is done.
func (c *Compressor) Compress(ctx context.Context, file File) (File, error) {
	if !file.IsImage() || file.Size() < c.params.ThresholdBytes {
		return file, nil
	}
	if err := ctx.Err(); err != nil {
		return file, err
	}

	start := time.Now()
	slog.Debug("Compressor: compressing image",
		"name", file.Name,
		"type", file.Type,
		"input_size_bytes", file.Size())

	out, err := c.reencode(file)
	if err != nil {
		slog.Warn("Compressor: compression failed, using original file",
			"name", file.Name,
			"type", file.Type,
			"error", err)
		return file, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return file, err
	}

	slog.Debug("Compressor: compression complete",
		"name", file.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_size_bytes", file.Size(),
		"output_size_bytes", out.Size())

	return out, nil
}

func (c *Compressor) reencode(file File) (File, error) {
	src, err := c.decode(file)
	if err != nil {
		return File{}, err
	}

	bounds := src.Bounds()
	width, height := computeScaledDimensions(bounds.Dx(), bounds.Dy(), c.params.MaxWidth)
	if width <= 0 || height <= 0 {
		return File{}, fmt.Errorf("image has no pixels: %dx%d", bounds.Dx(), bounds.Dy())
	}

	dst := createTargetCanvas(width, height, color.White)
	draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality(c.params.Quality)}); err != nil {
		return File{}, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	return File{Name: file.Name, Type: mimeJPEG, Data: buf.Bytes()}, nil
}

func (c *Compressor) decode(file File) (image.Image, error) {
	if isSVG(file) {
		return rasterizeSVG(file.Data, c.params.MaxWidth)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if err := checkPixels(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(file.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	slog.Debug("Compressor: decoded image",
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())
	return img, nil
}

func checkPixels(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image has no pixels: %dx%d", width, height)
	}
	if int64(width)*int64(height) > MaxDecodePixels {
		return fmt.Errorf("image of %dx%d exceeds %d pixels", width, height, MaxDecodePixels)
	}
	return nil
}

// computeScaledDimensions caps width at maxWidth keeping the aspect ratio.
// Images already narrower than maxWidth keep their size.
func computeScaledDimensions(width, height, maxWidth int) (int, int) {
	if width <= maxWidth {
		return width, height
	}
	scale := float64(maxWidth) / float64(width)
	scaledHeight := int(math.Round(float64(height) * scale))
	if scaledHeight < 1 {
		scaledHeight = 1
	}
	return maxWidth, scaledHeight
}

func createTargetCanvas(w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	return dst
}

func jpegQuality(q float64) int {
	quality := int(math.Round(q * 100))
	if quality < 1 {
		return 1
	}
	if quality > 100 {
		return 100
	}
	return quality
}
