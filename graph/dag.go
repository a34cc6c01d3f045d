// Package graph provides directed acyclic graph (DAG) utilities for
// dependency management. lexify uses it to order `graph add` and
// `export compact` calls across a repository's declared dependencies:
// cycle detection before any work starts, and topological sort so a
// dependency is always ingested and exported before anything that
// declares it.
package graph

import "fmt"

// Node is one repository in a dependency list: ID is its "org/repo" key,
// Requires names the IDs it declares a dependency on.
type Node struct {
	ID       string
	Requires []string
}

// ValidateDAG checks nodes for circular dependencies using depth-first
// search with a recursion stack.
func ValidateDAG(nodes []Node) error {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)
	for _, n := range nodes {
		if !visited[n.ID] {
			if err := checkCycle(byID, n.ID, visited, recursionStack); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkCycle(byID map[string]Node, id string, visited, recursionStack map[string]bool) error {
	visited[id] = true
	recursionStack[id] = true

	for _, depID := range byID[id].Requires {
		if !visited[depID] {
			if err := checkCycle(byID, depID, visited, recursionStack); err != nil {
				return err
			}
		} else if recursionStack[depID] {
			return fmt.Errorf("circular dependency detected: %s -> %s", id, depID)
		}
	}

	recursionStack[id] = false
	return nil
}

// TopologicalOrder returns nodes ordered so every node appears after
// everything it Requires, using Kahn's algorithm. It fails if nodes
// contains a cycle or a Requires reference to an ID not present in
// nodes.
func TopologicalOrder(nodes []Node) ([]Node, error) {
	byID := make(map[string]Node, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)

	for _, n := range nodes {
		byID[n.ID] = n
		if _, ok := inDegree[n.ID]; !ok {
			inDegree[n.ID] = 0
		}
	}
	for _, n := range nodes {
		for _, depID := range n.Requires {
			if _, ok := byID[depID]; !ok {
				return nil, fmt.Errorf("node %s requires unknown dependency %s", n.ID, depID)
			}
			dependents[depID] = append(dependents[depID], n.ID)
			inDegree[n.ID]++
		}
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	var order []Node
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, byID[id])

		for _, dependentID := range dependents[id] {
			inDegree[dependentID]--
			if inDegree[dependentID] == 0 {
				queue = append(queue, dependentID)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, fmt.Errorf("circular dependency detected in dependency list")
	}
	return order, nil
}
