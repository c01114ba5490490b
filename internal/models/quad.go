// Package models defines core data structures for extracted entries, indices, and matches.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Point is a pixel coordinate on the raster an entry was extracted from.
type Point struct {
	X float64
	Y float64
}

// QuadShape records which representation a Quad was built from, so it
// serializes back in the same shape.
type QuadShape uint8

const (
	// ShapeCorners is a four-point polygon ([[x,y],[x,y],[x,y],[x,y]]).
	ShapeCorners QuadShape = iota
	// ShapeRect is an axis-aligned rectangle ([left, top, right, bottom]).
	ShapeRect
)

// Quad is a region on an image, always held as four corner points in pixel
// space. Points are never normalized.
type Quad struct {
	Points [4]Point
	Shape  QuadShape
}

// QuadFromRect builds a Quad from a rectangle. Corners run clockwise from top-left.
func QuadFromRect(left, top, right, bottom float64) Quad {
	return Quad{
		Points: [4]Point{
			{X: left, Y: top},
			{X: right, Y: top},
			{X: right, Y: bottom},
			{X: left, Y: bottom},
		},
		Shape: ShapeRect,
	}
}

// QuadFromCorners builds a Quad from four corner points in engine order.
func QuadFromCorners(p0, p1, p2, p3 Point) Quad {
	return Quad{Points: [4]Point{p0, p1, p2, p3}, Shape: ShapeCorners}
}

// Bounds returns the axis-aligned bounding rectangle of the quad.
// For rect-built quads this is the original rectangle.
func (q Quad) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range q.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}

// MarshalJSON writes [l,t,r,b] for rectangles and [[x,y] x4] for corner quads.
func (q Quad) MarshalJSON() ([]byte, error) {
	if q.Shape == ShapeRect {
		return json.Marshal([4]float64{q.Points[0].X, q.Points[0].Y, q.Points[2].X, q.Points[2].Y})
	}
	var pts [4][2]float64
	for i, p := range q.Points {
		pts[i] = [2]float64{p.X, p.Y}
	}
	return json.Marshal(pts)
}

// UnmarshalJSON accepts both region shapes emitted by extraction engines.
func (q *Quad) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("region: %w", err)
	}
	if len(raw) != 4 {
		return fmt.Errorf("region: want 4 elements, got %d", len(raw))
	}
	if bytes.HasPrefix(bytes.TrimSpace(raw[0]), []byte("[")) {
		var pts [4]Point
		for i, r := range raw {
			var pair []float64
			if err := json.Unmarshal(r, &pair); err != nil {
				return fmt.Errorf("region point %d: %w", i, err)
			}
			if len(pair) != 2 {
				return fmt.Errorf("region point %d: want 2 coordinates, got %d", i, len(pair))
			}
			pts[i] = Point{X: pair[0], Y: pair[1]}
		}
		*q = QuadFromCorners(pts[0], pts[1], pts[2], pts[3])
		return nil
	}
	var rect [4]float64
	for i, r := range raw {
		if err := json.Unmarshal(r, &rect[i]); err != nil {
			return fmt.Errorf("region coordinate %d: %w", i, err)
		}
	}
	*q = QuadFromRect(rect[0], rect[1], rect[2], rect[3])
	return nil
}
