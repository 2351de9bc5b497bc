package intake

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

func isSVG(file File) bool {
	if strings.HasPrefix(strings.ToLower(file.Type), "image/svg") {
		return true
	}
	n := len(file.Data)
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(bytes.TrimSpace(file.Data[:n]))
	return bytes.Contains(header, []byte("<svg"))
}

// rasterizeSVG renders an SVG at its viewBox size, capped to maxWidth.
func rasterizeSVG(data []byte, maxWidth int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	w := int(math.Round(icon.ViewBox.W))
	h := int(math.Round(icon.ViewBox.H))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("SVG has no usable size: %vx%v", icon.ViewBox.W, icon.ViewBox.H)
	}
	w, h = computeScaledDimensions(w, h, maxWidth)
	if err := checkPixels(w, h); err != nil {
		return nil, err
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	dst := createTargetCanvas(w, h, color.White)
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)

	return dst, nil
}
