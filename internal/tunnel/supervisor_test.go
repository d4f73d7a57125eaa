package tunnel

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_SubprocessExitTearsDownPipe(t *testing.T) {
	port := freePort(t)
	pipe := NewPipe(PipeConfig{
		URL:    echoPeer(t),
		Remote: testRemote,
		Ports:  staticAllocator{port},
		// exits immediately without ever connecting back
		Command: []string{"true"},
		Logger:  zerolog.Nop(),
	})
	sup := &Supervisor{Pipe: pipe, Logger: zerolog.Nop()}

	done := make(chan error, 1)
	go func() { done <- sup.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation driven by subprocess exit is not a fault")
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish after the subprocess exited")
	}
	assert.Equal(t, StateTerminated, pipe.State())

	// the local listener must be gone
	_, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", port), 500*time.Millisecond)
	assert.Error(t, err)
}

func TestSupervisor_OuterCancellation(t *testing.T) {
	port := freePort(t)
	pipe := NewPipe(PipeConfig{
		URL:     echoPeer(t),
		Remote:  testRemote,
		Ports:   staticAllocator{port},
		Command: []string{"sleep", "0.2"},
		Logger:  zerolog.Nop(),
	})
	sup := &Supervisor{Pipe: pipe, Logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish after cancellation")
	}
	assert.Equal(t, StateTerminated, pipe.State())
}

func TestSupervisor_BindFailureSurfaces(t *testing.T) {
	taken, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer taken.Close()

	pipe := NewPipe(PipeConfig{
		URL:     echoPeer(t),
		Remote:  testRemote,
		Ports:   staticAllocator{taken.Addr().(*net.TCPAddr).Port},
		Command: []string{"true"},
		Logger:  zerolog.Nop(),
	})
	sup := &Supervisor{Pipe: pipe, Logger: zerolog.Nop()}

	err = sup.Run(context.Background())
	assert.ErrorIs(t, err, ErrPortBind)
	assert.False(t, pipe.Spawned())
}
