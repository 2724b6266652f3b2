// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package layers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"math"
)

// maxSide bounds the raster so that a template typo cannot allocate
// gigabytes.
const maxSide = 8192

// Request describes one layer raster.
type Request struct {
	Layer string
	// BBox is min x, min y, max x, max y in map units.
	BBox     []float64
	Rotation float64
	Width    int
	Height   int
}

func (r Request) validate() error {
	switch {
	case r.Layer == "":
		return errors.New("layer name is required")
	case len(r.BBox) != 4:
		return fmt.Errorf("bbox must have 4 numbers, got %d", len(r.BBox))
	case r.BBox[2] <= r.BBox[0] || r.BBox[3] <= r.BBox[1]:
		return fmt.Errorf("bbox %v is empty", r.BBox)
	case r.Width <= 0 || r.Height <= 0 || r.Width > maxSide || r.Height > maxSide:
		return fmt.Errorf("size %dx%d is out of range", r.Width, r.Height)
	}
	return nil
}

// Render draws a placeholder raster for the request and returns it PNG
// encoded. The drawing is a function of the request alone: a stripe pattern
// in a colour derived from the layer name, spaced by the bbox extent and
// turned by the rotation.
func Render(ctx context.Context, req Request) ([]byte, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ink := layerColour(req.Layer)
	img := image.NewNRGBA(image.Rect(0, 0, req.Width, req.Height))

	theta := req.Rotation * math.Pi / 180
	sin, cos := math.Sincos(theta)
	cx, cy := float64(req.Width)/2, float64(req.Height)/2
	extent := math.Max(req.BBox[2]-req.BBox[0], req.BBox[3]-req.BBox[1])
	period := math.Max(4, float64(req.Width)/(extent+1))

	for y := 0; y < req.Height; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < req.Width; x++ {
			u := (float64(x)-cx)*cos + (float64(y)-cy)*sin
			if int(math.Floor(u/period))%2 == 0 {
				img.SetNRGBA(x, y, ink)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func layerColour(layer string) color.NRGBA {
	h := fnv.New32a()
	h.Write([]byte(layer))
	sum := h.Sum32()
	return color.NRGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}
}
