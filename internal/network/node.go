package network

import (
	"fmt"
	"strings"

	protoio "animat/internal/io"
)

type NodeKind uint8

const (
	NodeSensor NodeKind = iota + 1
	NodeRandom
	NodeAnd
	NodeOr
	NodeNot
)

func (k NodeKind) String() string {
	switch k {
	case NodeSensor:
		return "sensor"
	case NodeRandom:
		return "random"
	case NodeAnd:
		return "and"
	case NodeOr:
		return "or"
	case NodeNot:
		return "not"
	default:
		return fmt.Sprintf("node_kind(%d)", uint8(k))
	}
}

func ParseNodeKind(name string) (NodeKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sensor":
		return NodeSensor, nil
	case "random", "rand":
		return NodeRandom, nil
	case "and":
		return NodeAnd, nil
	case "or":
		return NodeOr, nil
	case "not":
		return NodeNot, nil
	default:
		return 0, fmt.Errorf("unknown node kind: %q", name)
	}
}

// Node is one vertex of a logic network. Which fields are meaningful
// depends on Kind: Sensor/Label for sensors, Probability for random bits,
// Inputs for gates.
type Node struct {
	ID          int
	Kind        NodeKind
	Sensor      protoio.Kind
	Label       string
	Probability float64
	Inputs      []int
}

func (n Node) String() string {
	switch n.Kind {
	case NodeSensor:
		if n.Label != "" {
			return fmt.Sprintf("%d:SENSOR(%s=%s)", n.ID, n.Sensor, n.Label)
		}
		return fmt.Sprintf("%d:SENSOR(%s)", n.ID, n.Sensor)
	case NodeRandom:
		return fmt.Sprintf("%d:RAND(%g)", n.ID, n.Probability)
	default:
		return fmt.Sprintf("%d:%s%v", n.ID, strings.ToUpper(n.Kind.String()), n.Inputs)
	}
}

// Builder hands out sequential ids starting at zero.
type Builder struct {
	nodes []Node
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) add(node Node) int {
	node.ID = len(b.nodes)
	b.nodes = append(b.nodes, node)
	return node.ID
}

func (b *Builder) Sensor(kind protoio.Kind) int {
	return b.add(Node{Kind: NodeSensor, Sensor: kind})
}

// SensorLabel is a sensor that only fires for entries of kind carrying label.
func (b *Builder) SensorLabel(kind protoio.Kind, label string) int {
	return b.add(Node{Kind: NodeSensor, Sensor: kind, Label: label})
}

func (b *Builder) Random(probability float64) int {
	return b.add(Node{Kind: NodeRandom, Probability: probability})
}

func (b *Builder) And(inputs ...int) int {
	return b.add(Node{Kind: NodeAnd, Inputs: append([]int(nil), inputs...)})
}

func (b *Builder) Or(inputs ...int) int {
	return b.add(Node{Kind: NodeOr, Inputs: append([]int(nil), inputs...)})
}

func (b *Builder) Not(inputs ...int) int {
	return b.add(Node{Kind: NodeNot, Inputs: append([]int(nil), inputs...)})
}

func (b *Builder) Nodes() []Node {
	return cloneNodes(b.nodes)
}

func cloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		n.Inputs = append([]int(nil), n.Inputs...)
		out[i] = n
	}
	return out
}
