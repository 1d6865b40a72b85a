package plan

// BlockedStep is a step that can never become ready.
type BlockedStep struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	// Waiting holds dependencies that exist in the plan but never complete.
	Waiting []string `json:"waiting,omitempty"`
	// Missing holds dependency ids that no step in the plan declares.
	Missing []string `json:"missing,omitempty"`
}

// Analysis is the result of a dry-run over the dependency graph.
type Analysis struct {
	// Order is the dispatch order a fully successful run would follow.
	Order   []string
	Blocked []BlockedStep
}

// Complete reports whether every step is reachable.
func (a Analysis) Complete() bool { return len(a.Blocked) == 0 }

// Dependencies returns the distinct dependency ids of the step in declaration
// order.
func (s Step) Dependencies() []string {
	if len(s.DependsOn) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(s.DependsOn))
	out := make([]string, 0, len(s.DependsOn))
	for _, id := range s.DependsOn {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Check walks the graph with Kahn's algorithm using the same FIFO,
// declaration-order policy the scheduler uses, without dispatching anything.
// Steps caught in a cycle, depending on an unknown id, or depending on such a
// step end up in Blocked.
func (p *TaskPlan) Check() Analysis {
	index := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		if _, dup := index[s.ID]; !dup {
			index[s.ID] = i
		}
	}

	indeg := make([]int, len(p.Steps))
	dependents := make([][]int, len(p.Steps))
	for i, s := range p.Steps {
		deps := s.Dependencies()
		indeg[i] = len(deps)
		for _, dep := range deps {
			if j, ok := index[dep]; ok {
				dependents[j] = append(dependents[j], i)
			}
		}
	}

	queue := make([]int, 0, len(p.Steps))
	for i := range p.Steps {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	done := make([]bool, len(p.Steps))
	var a Analysis
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		done[n] = true
		a.Order = append(a.Order, p.Steps[n].ID)
		for _, m := range dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	for i, s := range p.Steps {
		if done[i] {
			continue
		}
		b := BlockedStep{ID: s.ID, Description: s.Description}
		for _, dep := range s.Dependencies() {
			j, ok := index[dep]
			switch {
			case !ok:
				b.Missing = append(b.Missing, dep)
			case !done[j]:
				b.Waiting = append(b.Waiting, dep)
			}
		}
		a.Blocked = append(a.Blocked, b)
	}
	return a
}
