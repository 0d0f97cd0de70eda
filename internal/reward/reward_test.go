package reward

import (
	"errors"
	"math"
	"testing"

	protoio "animat/internal/io"
	"animat/internal/model"
)

func seaTable(t *testing.T) *Table {
	t.Helper()
	table, err := FromMap(map[string]map[string]map[string]float64{
		"sing_eat_and_forward": {"Squid": {"energy": 0.1}, "": {"energy": -0.05}},
		"eat_and_forward":      {"Squid": {"energy": 0.1}, "": {"energy": -0.05}},
		"dive_and_forward":     {"": {"energy": -0.002}},
		"up_and_forward":       {"": {"energy": -0.002}},
		"forward":              {"": {"energy": -0.01}},
	})
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return table
}

func energyStatus(t *testing.T, baseline float64) *Status {
	t.Helper()
	status, err := NewStatus(Objective{Name: "energy", Baseline: baseline})
	if err != nil {
		t.Fatalf("new status: %v", err)
	}
	return status
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestApplyForwardWithNoObjects(t *testing.T) {
	calc := NewCalculator(seaTable(t), nil)
	status := energyStatus(t, 1.0)

	vec := calc.Apply(protoio.MotorForward, nil, status)
	if len(vec) != 1 || !almostEqual(vec["energy"], -0.01) {
		t.Fatalf("unexpected reward vector: %v", vec)
	}
	if v, _ := status.Value("energy"); !almostEqual(v, 0.99) {
		t.Fatalf("expected energy 0.99, got %f", v)
	}
	if !status.Viable() {
		t.Fatal("agent should still be viable")
	}
}

func TestApplySumsObjectAndAmbientRules(t *testing.T) {
	calc := NewCalculator(seaTable(t), nil)
	status := energyStatus(t, 1.0)

	// two squid at the cell still count once.
	vec := calc.Apply(protoio.MotorEatAndForward, []protoio.Kind{protoio.KindSquid, protoio.KindSquid}, status)
	if !almostEqual(vec["energy"], 0.05) {
		t.Fatalf("expected 0.1-0.05, got %v", vec)
	}
	if v, _ := status.Value("energy"); !almostEqual(v, 1.05) {
		t.Fatalf("expected energy 1.05, got %f", v)
	}
}

func TestApplyActionWildcard(t *testing.T) {
	table, err := NewTable(
		Rule{Action: AnyAction, Object: NoObject, Deltas: Deltas{"energy": -0.01}},
		Rule{Action: protoio.MotorNorth, Object: protoio.KindWater, Deltas: Deltas{"water": 0.2}},
	)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	status, err := NewStatus(Objective{Name: "energy", Baseline: 1}, Objective{Name: "water", Baseline: 1})
	if err != nil {
		t.Fatalf("new status: %v", err)
	}
	calc := NewCalculator(table, nil)

	vec := calc.Apply(protoio.MotorNorth, []protoio.Kind{protoio.KindWater}, status)
	if !almostEqual(vec["energy"], -0.01) || !almostEqual(vec["water"], 0.2) {
		t.Fatalf("unexpected vector: %v", vec)
	}
	vec = calc.Apply(protoio.MotorSouth, []protoio.Kind{protoio.KindWater}, status)
	if !almostEqual(vec["energy"], -0.01) || vec["water"] != 0 {
		t.Fatalf("unexpected vector for move: %v", vec)
	}
}

func TestApplyUnknownActionGivesZeroReward(t *testing.T) {
	calc := NewCalculator(seaTable(t), nil)
	status := energyStatus(t, 1.0)
	vec := calc.Apply("teleport", []protoio.Kind{"Treasure"}, status)
	if vec.Total() != 0 {
		t.Fatalf("expected zero reward, got %v", vec)
	}
	if v, _ := status.Value("energy"); v != 1.0 {
		t.Fatalf("status changed: %f", v)
	}
}

func TestViabilityIsMonotonic(t *testing.T) {
	table, err := NewTable(
		Rule{Action: protoio.MotorForward, Deltas: Deltas{"energy": -0.6}},
		Rule{Action: protoio.MotorEatAndForward, Object: protoio.KindSquid, Deltas: Deltas{"energy": 5}},
	)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	calc := NewCalculator(table, nil)
	status := energyStatus(t, 1.0)

	calc.Apply(protoio.MotorForward, nil, status)
	if !status.Viable() {
		t.Fatal("0.4 energy should be viable")
	}
	calc.Apply(protoio.MotorForward, nil, status)
	if status.Viable() {
		t.Fatal("negative energy should be non-viable")
	}
	for i := 0; i < 3; i++ {
		calc.Apply(protoio.MotorEatAndForward, []protoio.Kind{protoio.KindSquid}, status)
		if status.Viable() {
			t.Fatalf("agent resurrected after %d meals", i+1)
		}
	}
}

func TestFloorIsInclusive(t *testing.T) {
	status, err := NewStatus(Objective{Name: "energy", Baseline: 1, Floor: 0.5})
	if err != nil {
		t.Fatalf("new status: %v", err)
	}
	table, err := NewTable(Rule{Action: AnyAction, Deltas: Deltas{"energy": -0.5}})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	NewCalculator(table, nil).Apply(protoio.MotorForward, nil, status)
	if status.Viable() {
		t.Fatal("value equal to floor should be non-viable")
	}
}

func TestValidate(t *testing.T) {
	table := seaTable(t)
	motors := []protoio.Motor{
		protoio.MotorForward, protoio.MotorDiveAndForward, protoio.MotorUpAndForward,
		protoio.MotorEatAndForward, protoio.MotorSingEatAndForward,
	}
	kinds := []protoio.Kind{protoio.KindSquid, protoio.KindSong}
	if err := table.Validate(motors, kinds, []string{"energy"}); err != nil {
		t.Fatalf("expected valid table, got %v", err)
	}

	cases := map[string]func() error{
		"unknown motor": func() error {
			return table.Validate(motors[:4], kinds, []string{"energy"})
		},
		"unknown kind": func() error {
			return table.Validate(motors, []protoio.Kind{protoio.KindSong}, []string{"energy"})
		},
		"unknown objective": func() error {
			return table.Validate(motors, kinds, []string{"water"})
		},
		"uncovered motor": func() error {
			return table.Validate(append(motors, protoio.MotorWest), kinds, []string{"energy"})
		},
	}
	for name, run := range cases {
		if err := run(); !errors.Is(err, ErrUnknownActionOrObject) {
			t.Fatalf("%s: expected ErrUnknownActionOrObject, got %v", name, err)
		}
	}
}

func TestConstructionErrors(t *testing.T) {
	if _, err := NewTable(Rule{Deltas: Deltas{"energy": 1}}); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected missing action error, got %v", err)
	}
	if _, err := NewTable(
		Rule{Action: protoio.MotorForward, Deltas: Deltas{"energy": 1}},
		Rule{Action: protoio.MotorForward, Deltas: Deltas{"energy": 2}},
	); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected duplicate rule error, got %v", err)
	}
	if _, err := NewTable(Rule{Action: protoio.MotorForward, Deltas: Deltas{"energy": math.NaN()}}); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected NaN delta error, got %v", err)
	}
	if _, err := NewStatus(); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected empty status error, got %v", err)
	}
	if _, err := NewStatus(Objective{Name: "energy"}, Objective{Name: "energy"}); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected duplicate objective error, got %v", err)
	}
}
