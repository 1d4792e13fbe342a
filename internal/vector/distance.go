// Package vector provides the 2D distance metric and the stable ranking shared by every search mode.
package vector

import "github.com/hyperjump/annlab/internal/models"

// Coord is a location in the plane.
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Of returns the coordinates of p.
func Of(p models.Point) Coord {
	return Coord{X: p.X, Y: p.Y}
}

// Centroid returns the centroid coordinates of c.
func Centroid(c models.Cluster) Coord {
	return Coord{X: c.CX, Y: c.CY}
}

// DistSq returns the squared Euclidean distance between a and b.
// Squared distance preserves ordering, so no square root is taken.
func DistSq(a, b Coord) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}
