package particle

// SnowfallEmitter emits slow wind-driven flakes over a square area centered
// on position.
//
// Parameters:
//   - position: area center in world space
//   - rate: flakes per second
//
// Returns:
//   - Emitter: the configured emitter
func SnowfallEmitter(position [3]float32, rate float32) Emitter {
	return Emitter{
		Position:  position,
		Direction: [3]float32{0, -1, 0},
		Rate:      rate,
		Spread:    0.35,
		Speed:     1.5,
		LifeMin:   8,
		LifeMax:   14,
		SizeMin:   0.02,
		SizeMax:   0.06,
		Color:     [4]float32{1, 1, 1, 0.9},
		Flags:     ParticleFlagWind,
	}
}

// SmokeEmitter emits rising, wind-sensitive smoke puffs.
//
// Parameters:
//   - position: emitter origin in world space
//   - rate: puffs per second
//
// Returns:
//   - Emitter: the configured emitter
func SmokeEmitter(position [3]float32, rate float32) Emitter {
	return Emitter{
		Position:  position,
		Direction: [3]float32{0, 1, 0},
		Rate:      rate,
		Spread:    0.2,
		Speed:     0.8,
		LifeMin:   3,
		LifeMax:   6,
		SizeMin:   0.3,
		SizeMax:   0.8,
		Color:     [4]float32{0.4, 0.4, 0.4, 0.5},
		Flags:     ParticleFlagWind,
	}
}

// SparkEmitter emits fast, short-lived gravity-bound sparks.
//
// Parameters:
//   - position: emitter origin in world space
//   - direction: initial travel direction
//   - rate: sparks per second
//
// Returns:
//   - Emitter: the configured emitter
func SparkEmitter(position, direction [3]float32, rate float32) Emitter {
	return Emitter{
		Position:  position,
		Direction: direction,
		Rate:      rate,
		Spread:    0.5,
		Speed:     6,
		LifeMin:   0.3,
		LifeMax:   0.9,
		SizeMin:   0.01,
		SizeMax:   0.03,
		Color:     [4]float32{1, 0.7, 0.2, 1},
		Flags:     ParticleFlagGravity,
	}
}
