package petri

import "sort"

// EnabledParameters returns, for every transition enabled under marking, the
// list of alternative input markings that could be consumed to fire it. A
// transition absent from the result (or mapped to an empty slice) is not
// enabled.
//
// This implementation returns at most one alternative per transition: the
// tokens selected by each input arc's bag ordering (insertion/FIFO order,
// see petri.bag). Uncolored nets have exactly one distinct consumable
// combination per transition by construction (tokens are interchangeable),
// so a single deterministic alternative is sufficient and keeps replay
// trivially reproducible. Colored nets also get only this one alternative;
// other token combinations are not enumerated.
func (n *PetriNet) EnabledParameters(marking Marking) map[TransitionID][]Marking {
	out := make(map[TransitionID][]Marking)
	for _, tid := range n.order {
		if consume, ok := n.enabledConsumption(tid, marking); ok {
			out[tid] = []Marking{consume}
		}
	}
	return out
}

// enabledConsumption reports whether t is enabled under marking and, if so,
// returns the exact tokens it would consume.
func (n *PetriNet) enabledConsumption(t TransitionID, marking Marking) (Marking, bool) {
	tr := n.transitions[t]
	consume := NewMarking()
	for _, arc := range tr.Inputs {
		available := marking.Tokens(arc.Place)
		if len(available) < arc.Multiplicity {
			return Marking{}, false
		}
		consume.Add(arc.Place, available[:arc.Multiplicity]...)
	}
	return consume, true
}

// Job is the unit of work produced by AllEnabledJobs: a transition ready to
// fire together with the specific tokens it will consume.
type Job struct {
	ID         int64
	Transition TransitionID
	Consume    Marking
}

// AllEnabledJobs repeatedly scans the net for enabled automatic transitions
// (Transition.Manual == false) under a shrinking "remaining" marking
// (current marking minus tokens already reserved by the jobs found so
// far), allocating one job per enabled transition until a fixed point is
// reached where nothing more is enabled. Manual transitions are never
// allocated here; they fire only in response to an explicit FireTransition
// command, even when their input arcs are already satisfied. nextID is
// called once per allocated job to obtain a monotonic job id; the caller is
// expected to pass a closure over the instance's job id counter.
//
// AllEnabledJobs is pure: it does not mutate marking and returns the
// remaining marking (marking minus every allocated job's Consume) alongside
// the jobs. Iteration order over transitions is the net's declaration
// order, applied repeatedly, which makes the result deterministic for a
// given marking and nextID sequence.
func (n *PetriNet) AllEnabledJobs(marking Marking, nextID func() int64) (Marking, []Job) {
	remaining := marking.Clone()
	var jobs []Job
	for {
		progressed := false
		for _, tid := range n.order {
			if n.transitions[tid].Manual {
				continue
			}
			consume, ok := n.enabledConsumption(tid, remaining)
			if !ok {
				continue
			}
			if err := remaining.Subtract(consume); err != nil {
				// Another transition in this pass already claimed the tokens
				// this arc needed; re-check on the next pass.
				continue
			}
			jobs = append(jobs, Job{ID: nextID(), Transition: tid, Consume: consume})
			progressed = true
		}
		if !progressed {
			break
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return remaining, jobs
}
