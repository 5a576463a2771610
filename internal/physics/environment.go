package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// SeaLevelAirDensity is the standard-atmosphere density in kg/m³.
	SeaLevelAirDensity = 1.225

	seaLevelPressurePa   = 101325.0
	pressureScaleHeightM = 8400.0
	dryAirGasConstant    = 287.05
	vaporGasConstant     = 461.5
)

// AtmosphericConditions are the ballpark inputs used to derive air density.
type AtmosphericConditions struct {
	AltitudeFt       float64 `json:"altitude_ft" yaml:"altitude_ft"`
	TemperatureF     float64 `json:"temperature_f" yaml:"temperature_f"`
	RelativeHumidity float64 `json:"relative_humidity" yaml:"relative_humidity"`
}

// Environment holds the per-play constants shared by every flight.
type Environment struct {
	AirDensity float64 // kg/m³
	Gravity    float64 // ft/s²
	Wind       Vec3    // ft/s
}

// SeaLevel returns still air at standard density.
func SeaLevel() Environment {
	return Environment{AirDensity: SeaLevelAirDensity, Gravity: StandardGravity}
}

// NewEnvironment derives air density from the ballpark conditions.
func NewEnvironment(conditions AtmosphericConditions, wind Vec3) (Environment, error) {
	//1.- Reject inputs outside the physical range before deriving anything.
	if conditions.RelativeHumidity < 0 || conditions.RelativeHumidity > 1 {
		return Environment{}, configErr("relative_humidity", "must be within [0, 1], got %.3f", conditions.RelativeHumidity)
	}
	if conditions.TemperatureF <= -459.67 {
		return Environment{}, configErr("temperature_f", "below absolute zero")
	}
	if !finiteVec(wind) {
		return Environment{}, configErr("wind", "must be finite")
	}
	//2.- Combine the barometric pressure with the humidity correction.
	env := Environment{
		AirDensity: AirDensity(conditions),
		Gravity:    StandardGravity,
		Wind:       wind,
	}
	return env, env.Validate()
}

// AirDensity applies the ideal gas law to dry air plus water vapour.
func AirDensity(conditions AtmosphericConditions) float64 {
	altitudeM := conditions.AltitudeFt / feetPerMeter
	pressure := seaLevelPressurePa * math.Exp(-altitudeM/pressureScaleHeightM)
	tempC := (conditions.TemperatureF - 32) * 5 / 9
	tempK := tempC + 273.15
	saturation := 611.2 * math.Exp(17.67*tempC/(tempC+243.5))
	vapor := conditions.RelativeHumidity * saturation
	return (pressure-vapor)/(dryAirGasConstant*tempK) + vapor/(vaporGasConstant*tempK)
}

// WindFromBearing converts a wind speed in mph blowing toward the given spray
// bearing (0 = out to centre field) into a field vector.
func WindFromBearing(speedMPH, bearingDeg float64) Vec3 {
	rad := mgl64.DegToRad(bearingDeg)
	speed := MPH(speedMPH)
	return Vec3{speed * math.Sin(rad), speed * math.Cos(rad), 0}
}

// Validate checks the environment before any flight uses it.
func (e Environment) Validate() error {
	if !(e.AirDensity >= 0) || math.IsInf(e.AirDensity, 0) {
		return configErr("air_density", "must be a non-negative finite value, got %v", e.AirDensity)
	}
	if !(e.Gravity > 0) || math.IsInf(e.Gravity, 0) {
		return configErr("gravity", "must be positive, got %v", e.Gravity)
	}
	if !finiteVec(e.Wind) {
		return configErr("wind", "must be finite")
	}
	return nil
}
