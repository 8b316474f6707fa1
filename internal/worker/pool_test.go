package worker

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Pool_RunsEveryTask(t *testing.T) {
	p := NewPool(4)
	var n atomic.Int64
	for i := 0; i < 100; i++ {
		p.Submit(func() { n.Add(1) })
	}
	p.Stop()
	assert.EqualValues(t, 100, n.Load())
}

func Test_Pool_SubmitCtxCancelled(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()

	block := make(chan struct{})
	p.Submit(func() { <-block })
	for i := 0; i < queueSize; i++ {
		p.Submit(func() {})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.SubmitCtx(ctx, func() {})
	require.ErrorIs(t, err, context.Canceled)
	close(block)
}
