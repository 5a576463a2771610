package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a field-frame vector in feet. +X points toward the first-base side,
// +Y toward centre field and +Z up, with home plate at the origin.
type Vec3 = mgl64.Vec3

const (
	feetPerMeter = 1 / 0.3048
	// MPHToFPS converts miles per hour into feet per second.
	MPHToFPS = 5280.0 / 3600.0
	// StandardGravity is g expressed in ft/s².
	StandardGravity = 9.80665 * feetPerMeter

	rpmToRadPerSec = 2 * math.Pi / 60
)

// MPH converts a speed in miles per hour into ft/s.
func MPH(mph float64) float64 { return mph * MPHToFPS }

// ToMPH converts ft/s back into miles per hour.
func ToMPH(fps float64) float64 { return fps / MPHToFPS }

// Horizontal drops the vertical component of v.
func Horizontal(v Vec3) Vec3 { return Vec3{v[0], v[1], 0} }

// HorizontalDistance measures the ground distance between two points.
func HorizontalDistance(a, b Vec3) float64 { return Horizontal(b.Sub(a)).Len() }

// Direction returns the unit vector of v or the zero vector when v is degenerate.
func Direction(v Vec3) Vec3 {
	length := v.Len()
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return Vec3{}
	}
	return v.Mul(1 / length)
}

// LaunchVelocity builds a velocity vector from speed (ft/s), launch angle and
// spray angle in degrees. A spray angle of 0 points at centre field and positive
// angles pull toward the right-field line.
func LaunchVelocity(speed, launchDeg, sprayDeg float64) Vec3 {
	la := mgl64.DegToRad(launchDeg)
	sp := mgl64.DegToRad(sprayDeg)
	horizontal := speed * math.Cos(la)
	return Vec3{horizontal * math.Sin(sp), horizontal * math.Cos(sp), speed * math.Sin(la)}
}

// SprayAngle reports the field direction of p in degrees using the LaunchVelocity convention.
func SprayAngle(p Vec3) float64 {
	return mgl64.RadToDeg(math.Atan2(p[0], p[1]))
}

func finiteVec(v Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func lerpVec(a, b Vec3, f float64) Vec3 {
	return a.Add(b.Sub(a).Mul(f))
}
