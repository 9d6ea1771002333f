package scrape

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

const (
	SegmentHeight   = 1500
	DownscaleFactor = 3
)

// SegmentScreenshot splits a full page screenshot into SegmentHeight pixel
// slices, shrinks each by DownscaleFactor and returns them as PNG data URLs.
func SegmentScreenshot(data []byte) ([]string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	var segments []string
	for y := bounds.Min.Y; y < bounds.Max.Y; y += SegmentHeight {
		sr := image.Rect(bounds.Min.X, y, bounds.Max.X, min(y+SegmentHeight, bounds.Max.Y))

		dst := image.NewRGBA(image.Rect(0, 0, max(width/DownscaleFactor, 1), max(sr.Dy()/DownscaleFactor, 1)))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)

		var buf bytes.Buffer
		if err := png.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("failed to encode segment: %w", err)
		}
		segments = append(segments, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return segments, nil
}
