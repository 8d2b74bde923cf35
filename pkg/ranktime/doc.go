/*
Package ranktime is an in-process performance-event registry for
distributed SPMD applications.

# Overview

Each rank (one process, or one goroutine in a LocalGroup) records named
timed events during its run. Events carry nested state transitions and
attached integer samples. At shutdown the registry aligns every rank's
timestamps onto a shared time origin, gathers each rank's aggregated
statistics onto the coordinator (rank 0), and the report package renders
a human-readable table and a structured JSON log.

The registry is explicitly constructed and owned by the application;
there is no hidden global instance.

# Basic Usage

	comms, _ := comm.NewLocalGroup(4)
	// one goroutine per rank:
	reg := ranktime.NewRegistry()
	reg.Initialize("solver", "run-1", comms[rank])

	ev := reg.StartEvent("assemble")
	// ... work ...
	ev.RecordState("factorize")
	// ... work ...
	ev.AddData(iterations)
	ev.Stop()

	reg.Finalize(ctx) // every rank must call this

	// coordinator only:
	if comms[rank].Rank() == 0 {
	    report.WriteTimings(os.Stdout, reg)
	    report.WriteFile(reg, ".")
	}

# Cooperative protocol

Finalize runs collective operations: every rank of the group must reach
it, or the remaining ranks block. A rank that is going down on a fault
path should call BestEffortShutdown instead, which finalizes local state
without entering any collective so a local-only report can still be
written.
*/
package ranktime
