// Package network evaluates small propositional logic networks over a
// percept.
//
// A network is a DAG of sensor, random-bit and gate nodes. It is validated
// and topologically ordered once at construction; Evaluate recomputes every
// node from scratch each tick.
package network

import (
	"fmt"
	"sort"

	"animat/internal/entropy"
	protoio "animat/internal/io"
	"animat/internal/model"
)

type Network struct {
	order  []Node
	inputs [][]int
	source entropy.Source
}

// New validates nodes and fixes their evaluation order. source may be nil
// only when the network has no random nodes.
func New(nodes []Node, source entropy.Source) (*Network, error) {
	position := make(map[int]int, len(nodes))
	for i, node := range nodes {
		if _, dup := position[node.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %d", model.ErrConfiguration, node.ID)
		}
		position[node.ID] = i
		if err := validateNode(node, source); err != nil {
			return nil, err
		}
	}
	for _, node := range nodes {
		for _, in := range node.Inputs {
			if _, ok := position[in]; !ok {
				return nil, fmt.Errorf("%w: node %d references unknown input %d", model.ErrConfiguration, node.ID, in)
			}
		}
	}

	order, err := topologicalOrder(nodes)
	if err != nil {
		return nil, err
	}

	slot := make(map[int]int, len(order))
	for i, node := range order {
		slot[node.ID] = i
	}
	inputs := make([][]int, len(order))
	for i, node := range order {
		inputs[i] = make([]int, len(node.Inputs))
		for j, in := range node.Inputs {
			inputs[i][j] = slot[in]
		}
	}

	return &Network{
		order:  order,
		inputs: inputs,
		source: source,
	}, nil
}

func validateNode(node Node, source entropy.Source) error {
	switch node.Kind {
	case NodeSensor:
		if _, ok := protoio.LookupKind(node.Sensor); !ok {
			return fmt.Errorf("%w: node %d senses unregistered kind %q", model.ErrConfiguration, node.ID, node.Sensor)
		}
		if len(node.Inputs) > 0 {
			return fmt.Errorf("%w: sensor node %d cannot have inputs", model.ErrConfiguration, node.ID)
		}
	case NodeRandom:
		if node.Probability < 0 || node.Probability > 1 {
			return fmt.Errorf("%w: random node %d probability %v outside [0, 1]", model.ErrConfiguration, node.ID, node.Probability)
		}
		if source == nil {
			return fmt.Errorf("%w: random node %d requires a random source", model.ErrConfiguration, node.ID)
		}
		if len(node.Inputs) > 0 {
			return fmt.Errorf("%w: random node %d cannot have inputs", model.ErrConfiguration, node.ID)
		}
	case NodeAnd, NodeOr, NodeNot:
		if len(node.Inputs) == 0 {
			return fmt.Errorf("%w: %s node %d requires inputs", model.ErrConfiguration, node.Kind, node.ID)
		}
	default:
		return fmt.Errorf("%w: node %d has unknown kind %s", model.ErrConfiguration, node.ID, node.Kind)
	}
	return nil
}

// topologicalOrder is Kahn's algorithm, always releasing the smallest ready
// id so the order does not depend on input slice layout.
func topologicalOrder(nodes []Node) ([]Node, error) {
	byID := make(map[int]Node, len(nodes))
	pending := make(map[int]int, len(nodes))
	dependents := make(map[int][]int, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
		seen := make(map[int]struct{}, len(node.Inputs))
		for _, in := range node.Inputs {
			if in == node.ID {
				return nil, fmt.Errorf("%w: node %d depends on itself", model.ErrConfiguration, node.ID)
			}
			if _, dup := seen[in]; dup {
				continue
			}
			seen[in] = struct{}{}
			pending[node.ID]++
			dependents[in] = append(dependents[in], node.ID)
		}
	}

	ready := make([]int, 0, len(nodes))
	for _, node := range nodes {
		if pending[node.ID] == 0 {
			ready = append(ready, node.ID)
		}
	}

	order := make([]Node, 0, len(nodes))
	for len(ready) > 0 {
		sort.Ints(ready)
		id := ready[0]
		ready = ready[1:]
		node := byID[id]
		node.Inputs = append([]int(nil), node.Inputs...)
		order = append(order, node)
		for _, dep := range dependents[id] {
			pending[dep]--
			if pending[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(nodes) {
		cyclic := make([]int, 0, len(nodes)-len(order))
		for id, n := range pending {
			if n > 0 {
				cyclic = append(cyclic, id)
			}
		}
		sort.Ints(cyclic)
		return nil, fmt.Errorf("%w: cycle through nodes %v", model.ErrConfiguration, cyclic)
	}
	return order, nil
}

// Evaluate computes the activation set for percept. The only state it
// touches is the random source, once per random node in topological order.
func (n *Network) Evaluate(percept protoio.Percept) ActivationSet {
	values := make([]bool, len(n.order))
	active := make([]int, 0, len(n.order))
	for i, node := range n.order {
		switch node.Kind {
		case NodeSensor:
			if node.Label != "" {
				values[i] = percept.HasLabel(node.Sensor, node.Label)
			} else {
				values[i] = percept.Has(node.Sensor)
			}
		case NodeRandom:
			values[i] = n.source.Float64() < node.Probability
		case NodeAnd:
			values[i] = true
			for _, in := range n.inputs[i] {
				if !values[in] {
					values[i] = false
					break
				}
			}
		case NodeOr:
			for _, in := range n.inputs[i] {
				if values[in] {
					values[i] = true
					break
				}
			}
		case NodeNot:
			values[i] = true
			for _, in := range n.inputs[i] {
				if values[in] {
					values[i] = false
					break
				}
			}
		}
		if values[i] {
			active = append(active, node.ID)
		}
	}
	return NewActivationSet(active...)
}

// Nodes returns the nodes in evaluation order.
func (n *Network) Nodes() []Node {
	return cloneNodes(n.order)
}

// IDs returns every node id, which is the "full" activation set.
func (n *Network) IDs() ActivationSet {
	ids := make([]int, len(n.order))
	for i, node := range n.order {
		ids[i] = node.ID
	}
	return NewActivationSet(ids...)
}

func (n *Network) String() string {
	return fmt.Sprintf("Network%v", n.order)
}
