package internal

import (
	"fmt"
	"sort"
)

type Node struct {
	ID           string
	Dependencies []string
}

// Graph maps a service id to the ids it must be started after.
type Graph map[string]*Node

func NewDependsGraph() Graph {
	return make(Graph)
}

func (g Graph) AddNode(id string, dependencies ...string) {
	g[id] = &Node{
		ID:           id,
		Dependencies: dependencies,
	}
}

// Build returns a topological order of the graph. Roots are visited in sorted
// order so the result is stable between runs.
func (g Graph) Build() ([]string, error) {
	done := make(map[string]bool, len(g))
	onPath := make(map[string]bool)
	order := make([]string, 0, len(g))

	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id string) error
	visit = func(id string) error {
		if done[id] {
			return nil
		}
		if onPath[id] {
			return fmt.Errorf("cycle detected for node: %s", id)
		}

		node, ok := g[id]
		if !ok {
			return fmt.Errorf("dependency not found: %s", id)
		}

		onPath[id] = true
		for _, dep := range node.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		onPath[id] = false

		done[id] = true
		order = append(order, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return order, nil
}
