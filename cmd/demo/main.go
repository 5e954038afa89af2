// Command demo wires the in-memory journal, engine, and a single
// instance actor together over the bundled order-fulfillment net
// (net.yaml), firing one transition end to end so the full C1-C5 stack
// (petri, instance, runtimepolicy, engine, actor) can be exercised without
// any external dependency (Mongo, Redis).
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/bakerrun/petriflow/actor"
	"github.com/bakerrun/petriflow/actorclient"
	"github.com/bakerrun/petriflow/engine/inmem"
	"github.com/bakerrun/petriflow/instance"
	journalinmem "github.com/bakerrun/petriflow/journal/inmem"
	"github.com/bakerrun/petriflow/petri"
	"github.com/bakerrun/petriflow/runtimepolicy"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	net, err := petri.LoadYAMLFile("cmd/demo/net.yaml")
	if err != nil {
		return fmt.Errorf("load net: %w", err)
	}

	policy := runtimepolicy.Policy{
		CreateJob: runtimepolicy.DefaultCreateJob(),
		JobExecutor: runtimepolicy.JobExecutorFunc(func(_ context.Context, job *instance.Job) (petri.Marking, any, error) {
			fmt.Printf("executing transition %q (job %d)\n", job.Transition, job.ID)
			return net.OutMarking(job.Transition), nil, nil
		}),
		OnFailure:   runtimepolicy.AlwaysBlock(),
		EventSource: func(state any, _ any) any { return state },
	}

	j := journalinmem.New()
	eng := inmem.New()
	a := actor.New(net, "order-1", j, eng, policy, actor.Options{})
	go a.Run(ctx)
	client := actorclient.New(a)

	initial := petri.NewMarking().Add("ordered", petri.Token{ID: "order-1"})
	if _, err := client.Initialize(ctx, initial, nil); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	result, err := client.FireTransition(ctx, "ship", nil, "order-1-ship")
	if err != nil {
		return fmt.Errorf("fire transition: %w", err)
	}
	switch {
	case result.Fired != nil:
		fmt.Printf("fired: consumed=%v produced=%v\n", result.Fired.Consumed.Multiplicities(), result.Fired.Produced.Multiplicities())
	case result.Failed != nil:
		fmt.Printf("failed: %s\n", result.Failed.Reason)
	case result.NotEnabled != nil:
		fmt.Printf("not enabled: %s\n", result.NotEnabled.Reason)
	case result.AlreadyFired:
		fmt.Println("already received")
	}

	state, err := client.GetState(ctx)
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}
	fmt.Printf("final marking: %v (sequenceNr=%d)\n", state.Marking.Multiplicities(), state.SequenceNr)

	return client.Stop(ctx, false)
}
