package topology

import (
	"fmt"

	"github.com/shinji-kodama/cv-container/internal/model"
)

// ResolveCreationOrder returns the container names of topo ordered so that
// every container comes strictly after its parent. Containers whose parent
// is rootName (the CloudVision root container, usually "Tenant") come first.
//
// The resolver builds the tree breadth first: each pass over the unplaced
// containers, in declaration order, places those whose parent is the root
// or was placed by a previous pass. Siblings therefore keep their
// declaration order. A pass that places nothing ends the loop, so the
// resolver needs at most topo.Len() passes and always terminates.
//
// Containers left unplaced are reported in a ConfigurationError, each
// classified as having an unknown parent (neither rootName nor declared) or
// being part of a dependency cycle.
func ResolveCreationOrder(topo *model.Topology, rootName string) ([]string, error) {
	if rootName == "" {
		return nil, model.NewConfigurationError("root container name is empty")
	}

	specs := topo.Specs()
	order := make([]string, 0, len(specs))
	placed := make(map[string]bool, len(specs))

	for len(order) < len(specs) {
		// Only parents placed by earlier passes count, so each pass adds
		// one generation of the tree.
		var generation []string
		for _, spec := range specs {
			if placed[spec.Name] {
				continue
			}
			if spec.ParentContainer == rootName || placed[spec.ParentContainer] {
				generation = append(generation, spec.Name)
			}
		}
		if len(generation) == 0 {
			break
		}
		for _, name := range generation {
			placed[name] = true
		}
		order = append(order, generation...)
	}

	if len(order) == len(specs) {
		return order, nil
	}

	var details []string
	for _, spec := range specs {
		if placed[spec.Name] {
			continue
		}
		details = append(details, fmt.Sprintf("%s: %s", spec.Name, explainUnresolved(topo, spec, rootName)))
	}
	return nil, model.NewConfigurationError(
		fmt.Sprintf("cannot order containers under root %q", rootName),
		details...,
	)
}

// explainUnresolved follows the parent chain of an unplaced container until
// it hits an undeclared parent or loops back on itself.
func explainUnresolved(topo *model.Topology, spec model.ContainerSpec, rootName string) string {
	seen := map[string]bool{spec.Name: true}
	current := spec
	for {
		parent := current.ParentContainer
		next, declared := topo.Get(parent)
		switch {
		case !declared && current.Name == spec.Name:
			return fmt.Sprintf("unknown parent %q (not %q and not declared)", parent, rootName)
		case !declared:
			return fmt.Sprintf("ancestor %q has unknown parent %q", current.Name, parent)
		case seen[parent]:
			return fmt.Sprintf("dependency cycle through %q", parent)
		}
		seen[parent] = true
		current = next
	}
}
