package services

import (
	"errors"
	"fmt"
)

var ErrDependencyCycle = errors.New("dependency cycle detected")

// visitColor 三色DFS标记
type visitColor int

const (
	colorUnvisited visitColor = iota
	colorVisiting
	colorVisited
)

/**
 * Dependency graph accumulates per-component dependency declarations
 * and turns them into a deterministic, dependency-safe reload order
 * @description
 * - Declarations are registered once at startup
 * - ComputeOrder runs a three-color depth-first topological sort
 * - A cycle is a fatal configuration error, the system must not
 *   proceed to reload-capable state
 */
type DependencyGraph struct {
	deps  map[string][]string
	order []string // 按首次声明排序，保证拓扑序稳定
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		deps: make(map[string][]string),
	}
}

/**
 * Register dependency declaration for one component
 * @param {string} name - Component name
 * @param {[]string} deps - Names of components it depends on
 * @description
 * - Later declarations for the same name replace earlier ones
 * - Declaration order is remembered so that components without
 *   ordering constraints keep a stable relative order
 */
func (g *DependencyGraph) Register(name string, deps []string) {
	if _, exists := g.deps[name]; !exists {
		g.order = append(g.order, name)
	}
	g.deps[name] = append([]string{}, deps...)
}

func (g *DependencyGraph) Dependencies(name string) []string {
	return append([]string{}, g.deps[name]...)
}

/**
 * Compute dependency-safe reload order
 * @returns {[]string} Linear extension of the partial order, dependencies first
 * @returns {error} ErrDependencyCycle if declarations are cyclic
 * @description
 * - Three-color DFS: unvisited/visiting/visited
 * - Revisiting a "visiting" node signals a cycle
 * - Roots are visited in first-declaration order, which keeps the
 *   order deterministic for unrelated components
 */
func (g *DependencyGraph) ComputeOrder() ([]string, error) {
	colors := make(map[string]visitColor, len(g.deps))
	result := make([]string, 0, len(g.deps))

	var visit func(name string) error
	visit = func(name string) error {
		switch colors[name] {
		case colorVisited:
			return nil
		case colorVisiting:
			return fmt.Errorf("%w: at component '%s'", ErrDependencyCycle, name)
		}
		colors[name] = colorVisiting
		for _, dep := range g.deps[name] {
			// 未声明的依赖视为无依赖的叶子节点
			if err := visit(dep); err != nil {
				return err
			}
		}
		colors[name] = colorVisited
		result = append(result, name)
		return nil
	}

	for _, name := range g.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return result, nil
}
