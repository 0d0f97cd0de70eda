package network

import (
	"errors"
	"testing"

	"animat/internal/entropy"
	protoio "animat/internal/io"
	"animat/internal/model"
)

func squidNetwork(t *testing.T, source entropy.Source) (*Network, int, int, int) {
	t.Helper()
	b := NewBuilder()
	s1 := b.Sensor(protoio.KindSquid)
	r1 := b.Random(0.3)
	r2 := b.Random(0.3)
	n, err := New(b.Nodes(), source)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	return n, s1, r1, r2
}

func TestSensorActiveRegardlessOfRandomDraws(t *testing.T) {
	percept := protoio.Percept{{Kind: protoio.KindSquid, Distance: 0}}
	for _, draws := range [][]float64{{0.0, 0.0}, {0.99, 0.99}, {0.1, 0.8}} {
		n, s1, r1, r2 := squidNetwork(t, entropy.MustSequence(draws...))
		set := n.Evaluate(percept)
		if !set.Has(s1) {
			t.Fatalf("draws=%v: squid sensor inactive in %v", draws, set)
		}
		if set.Has(r1) != (draws[0] < 0.3) || set.Has(r2) != (draws[1] < 0.3) {
			t.Fatalf("draws=%v: unexpected random bits in %v", draws, set)
		}
	}
}

func TestEvaluateIsDeterministicForSameDraws(t *testing.T) {
	percepts := []protoio.Percept{
		nil,
		{{Kind: protoio.KindSquid}},
		{{Kind: protoio.KindSong}},
		{{Kind: protoio.KindSquid}, {Kind: protoio.KindSong}},
	}

	a, _, _, _ := squidNetwork(t, entropy.NewSource(11))
	b, _, _, _ := squidNetwork(t, entropy.NewSource(11))
	for round := 0; round < 20; round++ {
		for _, p := range percepts {
			x := a.Evaluate(p)
			y := b.Evaluate(p)
			if !x.Equal(y) {
				t.Fatalf("round %d percept %v: %v != %v", round, p, x, y)
			}
		}
	}
}

func TestEvaluateKeepsNoStateAcrossTicks(t *testing.T) {
	src := entropy.NewSource(21)
	n, _, _, _ := squidNetwork(t, src)
	state, err := src.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	want := n.Evaluate(protoio.Percept{{Kind: protoio.KindSong}})

	for i := 0; i < 7; i++ {
		n.Evaluate(protoio.Percept{{Kind: protoio.KindSquid}})
	}
	if err := src.Restore(state); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := n.Evaluate(protoio.Percept{{Kind: protoio.KindSong}}); !got.Equal(want) {
		t.Fatalf("evaluation depends on earlier ticks: %v != %v", got, want)
	}
}

func TestEvaluateReplaysFromSnapshot(t *testing.T) {
	src := entropy.NewSource(5)
	n, _, _, _ := squidNetwork(t, src)
	state, err := src.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	first := make([]ActivationSet, 10)
	for i := range first {
		first[i] = n.Evaluate(nil)
	}
	if err := src.Restore(state); err != nil {
		t.Fatalf("restore: %v", err)
	}
	for i := range first {
		if got := n.Evaluate(nil); !got.Equal(first[i]) {
			t.Fatalf("replay %d: %v != %v", i, got, first[i])
		}
	}
}

// Gate layout of the scripted mother: forward fires when nothing else does,
// dive when exactly one of r1/r3 pattern holds, up when no random bit fires.
func TestGateNetworkTruthTable(t *testing.T) {
	b := NewBuilder()
	s1 := b.Sensor(protoio.KindSquid)
	r1 := b.Random(0.3)
	r2 := b.Random(0.3)
	r3 := b.Random(0.3)
	notS1 := b.Not(s1)
	oneR1 := b.And(r1, b.Not(r2, r3))
	oneR3 := b.And(r3, b.Not(r1, r2))
	dive := b.And(notS1, b.Or(oneR1, oneR3))
	up := b.And(notS1, b.Not(r1, r2, r3))
	forward := b.Not(s1, dive, up)

	cases := []struct {
		name    string
		squid   bool
		draws   []float64
		wantOn  []int
		wantOff []int
	}{
		{name: "no bits", draws: []float64{0.9, 0.9, 0.9}, wantOn: []int{up}, wantOff: []int{dive, forward}},
		{name: "r1 only", draws: []float64{0.1, 0.9, 0.9}, wantOn: []int{dive}, wantOff: []int{up, forward}},
		{name: "r3 only", draws: []float64{0.9, 0.9, 0.1}, wantOn: []int{dive}, wantOff: []int{up, forward}},
		{name: "r1 and r2", draws: []float64{0.1, 0.1, 0.9}, wantOn: []int{forward}, wantOff: []int{dive, up}},
		{name: "squid", squid: true, draws: []float64{0.9, 0.9, 0.9}, wantOn: []int{s1}, wantOff: []int{dive, up, forward}},
	}
	for _, tc := range cases {
		n, err := New(b.Nodes(), entropy.MustSequence(tc.draws...))
		if err != nil {
			t.Fatalf("%s: new network: %v", tc.name, err)
		}
		var percept protoio.Percept
		if tc.squid {
			percept = protoio.Percept{{Kind: protoio.KindSquid}}
		}
		set := n.Evaluate(percept)
		for _, id := range tc.wantOn {
			if !set.Has(id) {
				t.Fatalf("%s: expected node %d active in %v", tc.name, id, set)
			}
		}
		for _, id := range tc.wantOff {
			if set.Has(id) {
				t.Fatalf("%s: expected node %d inactive in %v", tc.name, id, set)
			}
		}
	}
}

func TestOutOfOrderDeclarationIsSorted(t *testing.T) {
	nodes := []Node{
		{ID: 5, Kind: NodeAnd, Inputs: []int{2, 3}},
		{ID: 3, Kind: NodeSensor, Sensor: protoio.KindSong},
		{ID: 2, Kind: NodeSensor, Sensor: protoio.KindSquid},
	}
	n, err := New(nodes, nil)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	order := n.Nodes()
	if order[0].ID != 2 || order[1].ID != 3 || order[2].ID != 5 {
		t.Fatalf("unexpected order: %v", order)
	}
	set := n.Evaluate(protoio.Percept{{Kind: protoio.KindSquid}, {Kind: protoio.KindSong}})
	if !set.Equal(NewActivationSet(2, 3, 5)) {
		t.Fatalf("unexpected activation set: %v", set)
	}
	if !n.IDs().Equal(NewActivationSet(2, 3, 5)) {
		t.Fatalf("unexpected ids: %v", n.IDs())
	}
}

func TestLabelledSensor(t *testing.T) {
	b := NewBuilder()
	lm7 := b.SensorLabel(protoio.KindLandmark, "7")
	lm8 := b.SensorLabel(protoio.KindLandmark, "8")
	n, err := New(b.Nodes(), nil)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	set := n.Evaluate(protoio.Percept{{Kind: protoio.KindLandmark, Label: "7"}})
	if !set.Has(lm7) || set.Has(lm8) {
		t.Fatalf("unexpected landmark activation: %v", set)
	}
}

func TestNewRejectsMisconfiguration(t *testing.T) {
	cases := []struct {
		name   string
		nodes  []Node
		source entropy.Source
	}{
		{name: "cycle", nodes: []Node{
			{ID: 0, Kind: NodeAnd, Inputs: []int{1}},
			{ID: 1, Kind: NodeOr, Inputs: []int{0}},
		}},
		{name: "self loop", nodes: []Node{{ID: 0, Kind: NodeNot, Inputs: []int{0}}}},
		{name: "unknown input", nodes: []Node{{ID: 0, Kind: NodeOr, Inputs: []int{4}}}},
		{name: "duplicate id", nodes: []Node{
			{ID: 0, Kind: NodeSensor, Sensor: protoio.KindSquid},
			{ID: 0, Kind: NodeSensor, Sensor: protoio.KindSong},
		}},
		{name: "gate without inputs", nodes: []Node{{ID: 0, Kind: NodeAnd}}},
		{name: "bad probability", nodes: []Node{{ID: 0, Kind: NodeRandom, Probability: 1.5}}, source: entropy.NewSource(1)},
		{name: "random without source", nodes: []Node{{ID: 0, Kind: NodeRandom, Probability: 0.5}}},
		{name: "unregistered kind", nodes: []Node{{ID: 0, Kind: NodeSensor, Sensor: "Kraken"}}},
		{name: "unknown kind", nodes: []Node{{ID: 0, Kind: NodeKind(42)}}},
	}
	for _, tc := range cases {
		if _, err := New(tc.nodes, tc.source); !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", tc.name, err)
		}
	}
}

func TestParseNodeKind(t *testing.T) {
	for name, want := range map[string]NodeKind{"sensor": NodeSensor, "RAND": NodeRandom, " and ": NodeAnd, "or": NodeOr, "not": NodeNot} {
		got, err := ParseNodeKind(name)
		if err != nil || got != want {
			t.Fatalf("ParseNodeKind(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseNodeKind("xor"); err == nil {
		t.Fatal("expected unknown node kind error")
	}
}
