package comm

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Tags for the collective plumbing. Each collective uses its own tag so
// that its messages never collide with application traffic or with a
// neighbouring collective.
const (
	tagGather = reservedTagBase + iota
	tagReduce
	tagBcast
)

func encodeInt64(v int64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, 8), uint64(v))
}

func decodeInt64(buf []byte) (int64, error) {
	if len(buf) != 8 {
		return 0, fmt.Errorf("collective payload: want 8 bytes, got %d", len(buf))
	}
	return int64(binary.LittleEndian.Uint64(buf)), nil
}

// GatherInt64 collects one value from every rank at root. The returned
// slice is indexed by rank on root and nil elsewhere. All ranks must
// call it together.
func GatherInt64(ctx context.Context, c Comm, v int64, root int) ([]int64, error) {
	if c.Rank() != root {
		if _, err := c.Isend(ctx, root, tagGather, encodeInt64(v)); err != nil {
			return nil, fmt.Errorf("gather send: %w", err)
		}
		return nil, nil
	}

	out := make([]int64, c.Size())
	for src := 0; src < c.Size(); src++ {
		if src == root {
			out[src] = v
			continue
		}
		buf, err := c.Recv(ctx, src, tagGather)
		if err != nil {
			return nil, fmt.Errorf("gather recv from rank %d: %w", src, err)
		}
		if out[src], err = decodeInt64(buf); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReduceMin reduces v to the group-wide minimum at root. The result is
// only meaningful on root.
func ReduceMin(ctx context.Context, c Comm, v int64, root int) (int64, error) {
	return reduce(ctx, c, v, root, func(a, b int64) int64 {
		if b < a {
			return b
		}
		return a
	})
}

// ReduceMax reduces v to the group-wide maximum at root. The result is
// only meaningful on root.
func ReduceMax(ctx context.Context, c Comm, v int64, root int) (int64, error) {
	return reduce(ctx, c, v, root, func(a, b int64) int64 {
		if b > a {
			return b
		}
		return a
	})
}

// AllreduceMin reduces v to the group-wide minimum and distributes the
// result to every rank.
func AllreduceMin(ctx context.Context, c Comm, v int64) (int64, error) {
	min, err := ReduceMin(ctx, c, v, 0)
	if err != nil {
		return 0, err
	}
	return broadcast(ctx, c, min, 0)
}

func reduce(ctx context.Context, c Comm, v int64, root int, op func(a, b int64) int64) (int64, error) {
	if c.Rank() != root {
		if _, err := c.Isend(ctx, root, tagReduce, encodeInt64(v)); err != nil {
			return 0, fmt.Errorf("reduce send: %w", err)
		}
		return 0, nil
	}

	acc := v
	for src := 0; src < c.Size(); src++ {
		if src == root {
			continue
		}
		buf, err := c.Recv(ctx, src, tagReduce)
		if err != nil {
			return 0, fmt.Errorf("reduce recv from rank %d: %w", src, err)
		}
		other, err := decodeInt64(buf)
		if err != nil {
			return 0, err
		}
		acc = op(acc, other)
	}
	return acc, nil
}

func broadcast(ctx context.Context, c Comm, v int64, root int) (int64, error) {
	if c.Rank() == root {
		for dst := 0; dst < c.Size(); dst++ {
			if dst == root {
				continue
			}
			if _, err := c.Isend(ctx, dst, tagBcast, encodeInt64(v)); err != nil {
				return 0, fmt.Errorf("broadcast send to rank %d: %w", dst, err)
			}
		}
		return v, nil
	}

	buf, err := c.Recv(ctx, root, tagBcast)
	if err != nil {
		return 0, fmt.Errorf("broadcast recv: %w", err)
	}
	return decodeInt64(buf)
}
