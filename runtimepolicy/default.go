package runtimepolicy

import (
	"time"

	"github.com/bakerrun/petriflow/instance"
	"github.com/bakerrun/petriflow/petri"
)

// DefaultCreateJob returns a CreateJob that accepts any transition known to
// net whose input arcs are currently satisfiable, using the net's
// deterministic single-alternative enablement (petri.PetriNet.EnabledParameters).
// It reserves the chosen tokens against inst.Marking before returning the
// Job, satisfying invariant 2 (active jobs' tokens are already removed from
// the marking).
func DefaultCreateJob() CreateJob {
	return func(net *petri.PetriNet, inst *instance.Instance, transition petri.TransitionID, input any, correlationID string, nextID func() int64) (*instance.Job, Reason) {
		if _, ok := net.Transition(transition); !ok {
			return nil, ReasonUnknownTransition
		}
		alternatives := net.EnabledParameters(inst.Marking)[transition]
		if len(alternatives) == 0 {
			return nil, ReasonNotEnabled
		}
		consume := alternatives[0]
		if err := inst.Marking.Subtract(consume); err != nil {
			return nil, ReasonNotEnabled
		}
		job := &instance.Job{
			ID:            nextID(),
			CorrelationID: correlationID,
			Transition:    transition,
			Consume:       consume,
			Input:         input,
			StartTime:     time.Now(),
		}
		inst.Jobs[job.ID] = job
		return job, ""
	}
}
