package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type pruner struct {
	calls   atomic.Int32
	removed int64
	err     error
}

func (p *pruner) PruneRuns(_ context.Context, keep int) (int64, error) {
	p.calls.Add(1)
	if keep != 3 {
		return 0, errors.New("unexpected keep")
	}
	return p.removed, p.err
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestStartPrunesUntilCancelled(t *testing.T) {
	p := &pruner{removed: 2}
	ctx, cancel := context.WithCancel(context.Background())

	pruned := make(chan struct{}, 16)
	done := make(chan struct{})
	go func() {
		Start(ctx, p, Config{PruneInterval: 5 * time.Millisecond, KeepRuns: 3}, func() {
			pruned <- struct{}{}
		}, discard)
		close(done)
	}()

	select {
	case <-pruned:
	case <-time.After(2 * time.Second):
		t.Fatal("prune never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	require.GreaterOrEqual(t, p.calls.Load(), int32(1))
}

func TestStartDisabled(t *testing.T) {
	p := &pruner{}
	Start(context.Background(), p, Config{KeepRuns: 3}, nil, discard)
	require.Equal(t, int32(0), p.calls.Load())
}

func TestPrune(t *testing.T) {
	require.Equal(t, int64(0), prune(context.Background(), &pruner{err: errors.New("down")}, 3, discard))
	require.Equal(t, int64(4), prune(context.Background(), &pruner{removed: 4}, 3, discard))
}
