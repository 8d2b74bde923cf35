package comm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalGroup(t *testing.T) {
	comms, err := NewLocalGroup(4)
	require.NoError(t, err)
	require.Len(t, comms, 4)

	for i, c := range comms {
		assert.Equal(t, i, c.Rank())
		assert.Equal(t, 4, c.Size())
	}
}

func TestNewLocalGroupInvalidSize(t *testing.T) {
	_, err := NewLocalGroup(0)
	assert.Error(t, err)

	_, err = NewLocalGroup(-3)
	assert.Error(t, err)
}

func TestSendRecv(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = comms[0].Isend(ctx, 1, 7, []byte("hello"))
	require.NoError(t, err)

	buf, err := comms[1].Recv(ctx, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), buf)
}

func TestIsendInvalidDest(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)

	_, err = comms[0].Isend(context.Background(), 2, 0, nil)
	assert.Error(t, err)

	_, err = comms[0].Isend(context.Background(), -1, 0, nil)
	assert.Error(t, err)
}

func TestFIFOPerSender(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)
	ctx := context.Background()

	for i := byte(0); i < 10; i++ {
		_, err := comms[0].Isend(ctx, 1, 5, []byte{i})
		require.NoError(t, err)
	}

	for i := byte(0); i < 10; i++ {
		buf, err := comms[1].Recv(ctx, 0, AnyTag)
		require.NoError(t, err)
		assert.Equal(t, []byte{i}, buf)
	}
}

func TestRecvMatchesTag(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = comms[0].Isend(ctx, 1, 1, []byte("first"))
	require.NoError(t, err)
	_, err = comms[0].Isend(ctx, 1, 2, []byte("second"))
	require.NoError(t, err)

	// Tag matching skips the earlier message.
	buf, err := comms[1].Recv(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), buf)

	buf, err = comms[1].Recv(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), buf)
}

func TestRecvSelfSend(t *testing.T) {
	comms, err := NewLocalGroup(1)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = comms[0].Isend(ctx, 0, 3, []byte("loop"))
	require.NoError(t, err)

	buf, err := comms[0].Recv(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("loop"), buf)
}

func TestProbeReportsSizeWithoutConsuming(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)
	ctx := context.Background()

	payload := []byte("0123456789abc")
	_, err = comms[0].Isend(ctx, 1, 4, payload)
	require.NoError(t, err)

	size, err := comms[1].Probe(ctx, 0, AnyTag)
	require.NoError(t, err)
	assert.Equal(t, len(payload), size)

	// The message is still pending after the probe.
	buf, err := comms[1].Recv(ctx, 0, AnyTag)
	require.NoError(t, err)
	assert.Equal(t, payload, buf)
}

func TestRecvBlocksUntilSend(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)
	ctx := context.Background()

	got := make(chan []byte, 1)
	go func() {
		buf, err := comms[1].Recv(ctx, 0, AnyTag)
		if err == nil {
			got <- buf
		}
	}()

	time.Sleep(10 * time.Millisecond)
	_, err = comms[0].Isend(ctx, 1, 0, []byte("late"))
	require.NoError(t, err)

	select {
	case buf := <-got:
		assert.Equal(t, []byte("late"), buf)
	case <-time.After(time.Second):
		t.Fatal("receive did not complete after send")
	}
}

func TestRecvHonorsCancellation(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := comms[1].Recv(ctx, 0, AnyTag)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("receive did not observe cancellation")
	}
}

func TestProbeHonorsCancellation(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = comms[1].Probe(ctx, 0, AnyTag)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestCompletesOnConsume(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)
	ctx := context.Background()

	req, err := comms[0].Isend(ctx, 1, 0, []byte("x"))
	require.NoError(t, err)

	select {
	case <-req.Done():
		t.Fatal("request completed before the receive")
	default:
	}

	_, err = comms[1].Recv(ctx, 0, AnyTag)
	require.NoError(t, err)

	select {
	case <-req.Done():
	default:
		t.Fatal("request still pending after the receive")
	}
}

func TestWaitAll(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)
	ctx := context.Background()

	var reqs []*Request
	for i := 0; i < 5; i++ {
		req, err := comms[0].Isend(ctx, 1, i, []byte{byte(i)})
		require.NoError(t, err)
		reqs = append(reqs, req)
	}

	go func() {
		for i := 0; i < 5; i++ {
			_, _ = comms[1].Recv(ctx, 0, AnyTag)
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, comms[0].WaitAll(waitCtx, reqs))
}

func TestWaitAllHonorsCancellation(t *testing.T) {
	comms, err := NewLocalGroup(2)
	require.NoError(t, err)

	req, err := comms[0].Isend(context.Background(), 1, 0, []byte("never received"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, comms[0].WaitAll(ctx, []*Request{req}), context.DeadlineExceeded)
}

// runGroup runs fn once per rank, each on its own goroutine, and waits
// for all of them.
func runGroup(t *testing.T, comms []Comm, fn func(c Comm)) {
	t.Helper()
	var wg sync.WaitGroup
	for _, c := range comms {
		wg.Add(1)
		go func(c Comm) {
			defer wg.Done()
			fn(c)
		}(c)
	}
	wg.Wait()
}

func TestGatherInt64(t *testing.T) {
	comms, err := NewLocalGroup(4)
	require.NoError(t, err)
	ctx := context.Background()

	var mu sync.Mutex
	results := make(map[int][]int64)

	runGroup(t, comms, func(c Comm) {
		out, err := GatherInt64(ctx, c, int64(10*c.Rank()), 0)
		require.NoError(t, err)
		mu.Lock()
		results[c.Rank()] = out
		mu.Unlock()
	})

	assert.Equal(t, []int64{0, 10, 20, 30}, results[0])
	for rank := 1; rank < 4; rank++ {
		assert.Nil(t, results[rank])
	}
}

func TestReduceMinMax(t *testing.T) {
	comms, err := NewLocalGroup(3)
	require.NoError(t, err)
	ctx := context.Background()
	values := []int64{42, -7, 100}

	var mu sync.Mutex
	mins := make(map[int]int64)

	runGroup(t, comms, func(c Comm) {
		min, err := ReduceMin(ctx, c, values[c.Rank()], 0)
		require.NoError(t, err)
		mu.Lock()
		mins[c.Rank()] = min
		mu.Unlock()
	})
	assert.Equal(t, int64(-7), mins[0])

	maxes := make(map[int]int64)
	runGroup(t, comms, func(c Comm) {
		max, err := ReduceMax(ctx, c, values[c.Rank()], 0)
		require.NoError(t, err)
		mu.Lock()
		maxes[c.Rank()] = max
		mu.Unlock()
	})
	assert.Equal(t, int64(100), maxes[0])
}

func TestAllreduceMin(t *testing.T) {
	comms, err := NewLocalGroup(3)
	require.NoError(t, err)
	ctx := context.Background()
	values := []int64{5, 3, 9}

	var mu sync.Mutex
	results := make(map[int]int64)

	runGroup(t, comms, func(c Comm) {
		min, err := AllreduceMin(ctx, c, values[c.Rank()])
		require.NoError(t, err)
		mu.Lock()
		results[c.Rank()] = min
		mu.Unlock()
	})

	// Every rank sees the group minimum.
	for rank := 0; rank < 3; rank++ {
		assert.Equal(t, int64(3), results[rank])
	}
}

func TestAllreduceMinSingleRank(t *testing.T) {
	comms, err := NewLocalGroup(1)
	require.NoError(t, err)

	min, err := AllreduceMin(context.Background(), comms[0], 17)
	require.NoError(t, err)
	assert.Equal(t, int64(17), min)
}
