package io

import "fmt"

const (
	KindSquid    Kind = "Squid"
	KindSong     Kind = "Song"
	KindObstacle Kind = "Obstacle"
	KindEnergy   Kind = "Energy"
	KindWater    Kind = "Water"
	KindLandmark Kind = "Landmark"
)

const (
	MotorForward           Motor = "forward"
	MotorDiveAndForward    Motor = "dive_and_forward"
	MotorUpAndForward      Motor = "up_and_forward"
	MotorEatAndForward     Motor = "eat_and_forward"
	MotorSingEatAndForward Motor = "sing_eat_and_forward"
	MotorNorth             Motor = "^"
	MotorSouth             Motor = "v"
	MotorEast              Motor = ">"
	MotorWest              Motor = "<"
)

func init() {
	initializeDefaultComponents()
}

func initializeDefaultComponents() {
	sea := onlyScapes("sea")
	grid := onlyScapes("grid")

	mustRegisterKind(KindSpec{Name: KindSquid, Spatial: true, Compatible: sea})
	mustRegisterKind(KindSpec{Name: KindSong, Spatial: false, Compatible: sea})
	mustRegisterKind(KindSpec{Name: KindObstacle, Spatial: true})
	mustRegisterKind(KindSpec{Name: KindEnergy, Spatial: true, Compatible: grid})
	mustRegisterKind(KindSpec{Name: KindWater, Spatial: true, Compatible: grid})
	mustRegisterKind(KindSpec{Name: KindLandmark, Spatial: true, Compatible: grid})

	mustRegisterMotor(MotorSpec{Name: MotorForward, Primitives: []Primitive{PrimitiveForward}, Compatible: sea})
	mustRegisterMotor(MotorSpec{Name: MotorDiveAndForward, Primitives: []Primitive{PrimitiveDown, PrimitiveForward}, Compatible: sea})
	mustRegisterMotor(MotorSpec{Name: MotorUpAndForward, Primitives: []Primitive{PrimitiveUp, PrimitiveForward}, Compatible: sea})
	mustRegisterMotor(MotorSpec{Name: MotorEatAndForward, Primitives: []Primitive{PrimitiveEat, PrimitiveForward}, Compatible: sea})
	mustRegisterMotor(MotorSpec{Name: MotorSingEatAndForward, Primitives: []Primitive{PrimitiveSing, PrimitiveEat, PrimitiveForward}, Compatible: sea})

	mustRegisterMotor(MotorSpec{Name: MotorNorth, Primitives: []Primitive{PrimitiveNorth}, Compatible: grid})
	mustRegisterMotor(MotorSpec{Name: MotorSouth, Primitives: []Primitive{PrimitiveSouth}, Compatible: grid})
	mustRegisterMotor(MotorSpec{Name: MotorEast, Primitives: []Primitive{PrimitiveEast}, Compatible: grid})
	mustRegisterMotor(MotorSpec{Name: MotorWest, Primitives: []Primitive{PrimitiveWest}, Compatible: grid})
}

func mustRegisterKind(spec KindSpec) {
	spec.SchemaVersion = SupportedSchemaVersion
	spec.CodecVersion = SupportedCodecVersion
	if err := RegisterKindWithSpec(spec); err != nil {
		panic(err)
	}
}

func mustRegisterMotor(spec MotorSpec) {
	spec.SchemaVersion = SupportedSchemaVersion
	spec.CodecVersion = SupportedCodecVersion
	if err := RegisterMotorWithSpec(spec); err != nil {
		panic(err)
	}
}

// onlyScapes accepts the listed scapes and the empty name, which callers use
// when checking a component outside of any scape.
func onlyScapes(names ...string) CompatibilityFn {
	return func(scape string) error {
		if scape == "" {
			return nil
		}
		for _, name := range names {
			if scape == name {
				return nil
			}
		}
		return fmt.Errorf("supported scapes: %v", names)
	}
}
