package ranktime

import (
	"context"
	"fmt"
	"time"

	"github.com/randalmurphal/ranktime/pkg/ranktime/comm"
	"github.com/randalmurphal/ranktime/pkg/ranktime/observability"
	"github.com/randalmurphal/ranktime/pkg/ranktime/wire"
)

// Coordinator is the rank that aggregates results from all ranks.
const Coordinator = 0

// Message tags used by the collect protocol. The coordinator receives
// with wildcard tags and relies on per-sender FIFO order, so the tags
// exist for diagnosis, not for matching.
const (
	tagLifetime = 1
	tagSummary  = 2
	tagPayload  = 3
)

// normalize aligns this rank's timestamps with the rest of the group.
// Every rank contributes its wall-clock initialization time to a
// group-wide minimum, which becomes the run's zero time; the shift is
// then applied locally so no timestamp leaves the rank unnormalized.
//
// The reduction assumes all ranks share the same wall-clock epoch and
// resolution; clock-rate skew across machines is not corrected.
func (r *Registry) normalize(ctx context.Context) error {
	ctx, span := observability.StartPhaseSpan(ctx, "normalize", r.comm.Rank())
	initNs := r.local.InitializedAt().UnixNano()

	t0, err := comm.AllreduceMin(ctx, r.comm, initNs)
	if err != nil {
		observability.EndSpanWithError(span, err)
		return fmt.Errorf("normalize: reduce init times: %w", err)
	}
	if err := r.local.NormalizeTo(t0); err != nil {
		observability.EndSpanWithError(span, err)
		return fmt.Errorf("normalize: %w", err)
	}

	observability.LogNormalize(r.logger, t0, time.Duration(initNs-t0))
	observability.EndSpanWithError(span, nil)
	return nil
}

// collect gathers every rank's aggregated event data onto the
// coordinator. Each rank, coordinator included, posts non-blocking
// sends: its lifetime record, then per event a fixed summary record
// followed by a packed variable payload. The coordinator receives rank
// by rank in ascending order, probing for the exact size of each packed
// payload before receiving it. Everyone waits on the full outstanding
// send set before returning.
func (r *Registry) collect(ctx context.Context) error {
	ctx, span := observability.StartPhaseSpan(ctx, "collect", r.comm.Rank())
	done := observability.TimedOperation()
	observability.LogCollectStart(r.logger, r.local.Len())

	err := r.runCollect(ctx)
	if err == nil && r.comm.Rank() == Coordinator {
		observability.LogCollectComplete(r.logger, r.comm.Size(), done())
	}
	r.metrics.RecordCollect(ctx, r.local.Len(), time.Duration(done()*float64(time.Millisecond)))
	observability.EndSpanWithError(span, err)
	return err
}

func (r *Registry) runCollect(ctx context.Context) error {
	c := r.comm

	// The coordinator learns how many events each rank will send.
	eventsPerRank, err := comm.GatherInt64(ctx, c, int64(r.local.Len()), Coordinator)
	if err != nil {
		return fmt.Errorf("collect: gather event counts: %w", err)
	}

	requests, err := r.sendLocalData(ctx)
	if err != nil {
		return err
	}

	if c.Rank() == Coordinator {
		if err := r.receiveAll(ctx, eventsPerRank); err != nil {
			return err
		}
	}

	// No send resource may be reclaimed before its matching receive
	// has consumed it.
	if err := c.WaitAll(ctx, requests); err != nil {
		return fmt.Errorf("collect: wait for sends: %w", err)
	}
	return nil
}

// sendLocalData posts every non-blocking send of this rank: one
// lifetime record, then per event the summary record and the packed
// payload, in ascending event-name order.
func (r *Registry) sendLocalData(ctx context.Context) ([]*comm.Request, error) {
	c := r.comm
	requests := make([]*comm.Request, 0, 1+2*r.local.Len())

	lifetime := wire.LifetimeRecord{
		InitializedNs: r.local.InitializedAt().UnixNano(),
		FinalizedNs:   r.local.FinalizedAt().UnixNano(),
	}
	buf, err := lifetime.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("collect: encode lifetime: %w", err)
	}
	req, err := c.Isend(ctx, Coordinator, tagLifetime, buf)
	if err != nil {
		return nil, fmt.Errorf("collect: send lifetime: %w", err)
	}
	requests = append(requests, req)

	for _, name := range r.local.EventNames() {
		data, _ := r.local.Event(name)

		record := wire.EventRecord{
			Name:     name,
			Rank:     int32(c.Rank()),
			Count:    data.Count(),
			TotalNs:  int64(data.Total()),
			MaxNs:    int64(data.Max()),
			MinNs:    int64(data.Min()),
			DataLen:  int32(len(data.Data())),
			StateLen: int32(len(data.StateChanges())),
		}
		buf, err := record.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("collect: encode summary for %q: %w", name, err)
		}
		req, err := c.Isend(ctx, Coordinator, tagSummary, buf)
		if err != nil {
			return nil, fmt.Errorf("collect: send summary for %q: %w", name, err)
		}
		requests = append(requests, req)

		payload, err := wire.PackPayload(data.Data(), data.StateChanges())
		if err != nil {
			return nil, fmt.Errorf("collect: pack payload for %q: %w", name, err)
		}
		req, err = c.Isend(ctx, Coordinator, tagPayload, payload)
		if err != nil {
			return nil, fmt.Errorf("collect: send payload for %q: %w", name, err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// receiveAll reconstructs one RankData per rank, in ascending rank
// order, from the messages posted by sendLocalData.
func (r *Registry) receiveAll(ctx context.Context, eventsPerRank []int64) error {
	c := r.comm
	r.global = make([]*RankData, 0, c.Size())

	for src := 0; src < c.Size(); src++ {
		rd := NewRankData(src)

		buf, err := c.Recv(ctx, src, comm.AnyTag)
		if err != nil {
			return fmt.Errorf("collect: recv lifetime from rank %d: %w", src, err)
		}
		var lifetime wire.LifetimeRecord
		if err := lifetime.UnmarshalBinary(buf); err != nil {
			return fmt.Errorf("collect: decode lifetime from rank %d: %w", src, err)
		}
		rd.setLifetime(lifetime.InitializedNs, lifetime.FinalizedNs)

		for j := int64(0); j < eventsPerRank[src]; j++ {
			buf, err := c.Recv(ctx, src, comm.AnyTag)
			if err != nil {
				return fmt.Errorf("collect: recv summary from rank %d: %w", src, err)
			}
			var record wire.EventRecord
			if err := record.UnmarshalBinary(buf); err != nil {
				return fmt.Errorf("collect: decode summary from rank %d: %w", src, err)
			}

			// Packed size is data-dependent; the probe discovers the
			// exact byte count of the pending payload.
			size, err := c.Probe(ctx, src, comm.AnyTag)
			if err != nil {
				return fmt.Errorf("collect: probe payload from rank %d: %w", src, err)
			}
			payload, err := c.Recv(ctx, src, comm.AnyTag)
			if err != nil {
				return fmt.Errorf("collect: recv payload from rank %d: %w", src, err)
			}
			if len(payload) != size {
				return fmt.Errorf("collect: payload from rank %d: probed %d bytes, received %d",
					src, size, len(payload))
			}

			data, states, err := wire.UnpackPayload(payload, int(record.DataLen), int(record.StateLen))
			if err != nil {
				return fmt.Errorf("collect: unpack payload for %q from rank %d: %w",
					record.Name, src, err)
			}

			rd.AddEventData(RestoreEventData(
				record.Name, src, record.Count,
				time.Duration(record.TotalNs),
				time.Duration(record.MaxNs),
				time.Duration(record.MinNs),
				data, states,
			))
		}
		r.global = append(r.global, rd)
	}
	return nil
}
