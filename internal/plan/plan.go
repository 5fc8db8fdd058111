// Package plan orders a stack's services into dependency waves.
package plan

import (
	"sort"
	"strings"

	"github.com/stackctl/stackctl/internal/stack"
)

// Direction selects whether waves are computed for startup or shutdown.
type Direction int

const (
	// Startup orders dependencies before their dependents.
	Startup Direction = iota
	// Shutdown is the exact mirror: a service stops only after
	// everything that depends on it has stopped.
	Shutdown
)

func (d Direction) String() string {
	if d == Shutdown {
		return "shutdown"
	}
	return "startup"
}

// Wave is a batch of services with no dependency relation among
// themselves, safe to start concurrently. Members appear in declaration
// order.
type Wave []*stack.Service

// Names returns the wave members' names, for logging and call tracing.
func (w Wave) Names() []string {
	names := make([]string, len(w))
	for i, svc := range w {
		names[i] = svc.Name
	}
	return names
}

// Waves computes the wave sequence for the given direction using
// repeated zero-in-degree extraction. Ties within a wave are broken by
// declaration order, so the plan is deterministic. A cycle yields a
// *stack.ConfigError naming the services involved, never a hang.
func Waves(st *stack.Stack, dir Direction) ([]Wave, error) {
	n := len(st.Services)
	degree := make([]int, n)
	dependents := make([][]int, n) // edges to relax when a node clears

	for i := range st.Services {
		for _, dep := range st.Services[i].DependsOn {
			j := st.Index(dep)
			if j < 0 {
				// Load validates edges; guard against hand-built stacks.
				return nil, stack.Configf("service %q depends on unknown service %q", st.Services[i].Name, dep)
			}
			if dir == Startup {
				degree[i]++
				dependents[j] = append(dependents[j], i)
			} else {
				degree[j]++
				dependents[i] = append(dependents[i], j)
			}
		}
	}

	var waves []Wave
	placed := make([]bool, n)
	remaining := n

	for remaining > 0 {
		var wave Wave
		var cleared []int
		for i := range st.Services {
			if !placed[i] && degree[i] == 0 {
				wave = append(wave, &st.Services[i])
				cleared = append(cleared, i)
			}
		}
		if len(wave) == 0 {
			return nil, cycleError(st, placed)
		}
		for _, i := range cleared {
			placed[i] = true
			remaining--
			for _, d := range dependents[i] {
				degree[d]--
			}
		}
		waves = append(waves, wave)
	}

	return waves, nil
}

// cycleError names every service left in the graph when extraction
// stalls. That set always contains the cycle (plus anything reachable
// only through it).
func cycleError(st *stack.Stack, placed []bool) error {
	var stuck []string
	for i := range st.Services {
		if !placed[i] {
			stuck = append(stuck, st.Services[i].Name)
		}
	}
	sort.Strings(stuck)
	return stack.Configf("dependency cycle involving: %s", strings.Join(stuck, ", "))
}
