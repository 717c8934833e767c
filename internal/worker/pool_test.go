package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helperSpawn starts this test binary as a fake persistent worker
func helperSpawn(spawned *atomic.Int32, modes ...string) SpawnFunc {
	return func() *exec.Cmd {
		n := int(spawned.Add(1))
		mode := modes[len(modes)-1]
		if n <= len(modes) {
			mode = modes[n-1]
		}

		cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--", mode)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
}

// TestHelperProcess is not a real test, it is the fake worker
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	mode := os.Args[len(os.Args)-1]
	dec := json.NewDecoder(os.Stdin)
	enc := json.NewEncoder(os.Stdout)

	for {
		var req WorkRequest
		if err := dec.Decode(&req); err != nil {
			os.Exit(0)
		}

		resp := WorkResponse{RequestID: req.RequestID}
		switch mode {
		case "echo":
			resp.Output = fmt.Sprintf("%d %s", os.Getpid(), strings.Join(req.Arguments, " "))
		case "slow":
			time.Sleep(50 * time.Millisecond)
			resp.Output = fmt.Sprint(os.Getpid())
		case "fail":
			resp.ExitCode = 1
			resp.Output = "error: undefined name 'x'"
		case "stderr":
			fmt.Fprintln(os.Stderr, "warning from worker")
			resp.Output = "ok"
		case "crash":
			os.Exit(3)
		case "hang":
			time.Sleep(time.Hour)
		case "wrong-id":
			resp.RequestID = req.RequestID + 1
		}

		_ = enc.Encode(resp)
	}
}

func pid(resp WorkResponse) string {
	return strings.Fields(resp.Output)[0]
}

func TestPool_DoWork(t *testing.T) {
	var spawned atomic.Int32
	pool := NewPool(helperSpawn(&spawned, "echo"), 1)
	defer pool.Terminate()

	resp, err := pool.DoWork(context.Background(), WorkRequest{Arguments: []string{"--modules=amd", "main.dart"}, RequestID: 7})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.ExitCode)
	assert.Equal(t, 7, resp.RequestID)
	assert.True(t, strings.HasSuffix(resp.Output, "--modules=amd main.dart"))
}

func TestPool_ReusesWorkers(t *testing.T) {
	var spawned atomic.Int32
	pool := NewPool(helperSpawn(&spawned, "echo"), 1)
	defer pool.Terminate()

	first, err := pool.DoWork(context.Background(), WorkRequest{RequestID: 1})
	require.NoError(t, err)
	second, err := pool.DoWork(context.Background(), WorkRequest{RequestID: 2})
	require.NoError(t, err)

	assert.Equal(t, pid(first), pid(second))
	assert.Equal(t, int32(1), spawned.Load())
}

func TestPool_NonZeroExitKeepsWorker(t *testing.T) {
	var spawned atomic.Int32
	pool := NewPool(helperSpawn(&spawned, "fail"), 1)
	defer pool.Terminate()

	for i := 1; i <= 2; i++ {
		resp, err := pool.DoWork(context.Background(), WorkRequest{RequestID: i})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.ExitCode)
		assert.Contains(t, resp.Output, "undefined name")
	}

	assert.Equal(t, int32(1), spawned.Load())
}

func TestPool_CapacityBound(t *testing.T) {
	var spawned atomic.Int32
	pool := NewPool(helperSpawn(&spawned, "slow"), 2)
	defer pool.Terminate()

	var wg sync.WaitGroup
	for i := 1; i <= 6; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := pool.DoWork(context.Background(), WorkRequest{RequestID: id})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, spawned.Load(), int32(2))
}

func TestPool_CrashedWorkerIsReplaced(t *testing.T) {
	var spawned atomic.Int32
	pool := NewPool(helperSpawn(&spawned, "crash", "echo"), 1)
	defer pool.Terminate()

	_, err := pool.DoWork(context.Background(), WorkRequest{RequestID: 1})
	require.Error(t, err)

	resp, err := pool.DoWork(context.Background(), WorkRequest{RequestID: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.RequestID)
	assert.Equal(t, int32(2), spawned.Load())
}

func TestPool_ProtocolErrorDiscardsWorker(t *testing.T) {
	var spawned atomic.Int32
	pool := NewPool(helperSpawn(&spawned, "wrong-id", "echo"), 1)
	defer pool.Terminate()

	_, err := pool.DoWork(context.Background(), WorkRequest{RequestID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1")

	_, err = pool.DoWork(context.Background(), WorkRequest{RequestID: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), spawned.Load())
}

func TestPool_ContextCancelKillsWorker(t *testing.T) {
	var spawned atomic.Int32
	pool := NewPool(helperSpawn(&spawned, "hang", "echo"), 1)
	defer pool.Terminate()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := pool.DoWork(ctx, WorkRequest{RequestID: 1})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = pool.DoWork(context.Background(), WorkRequest{RequestID: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), spawned.Load())
}

func TestPool_StderrDoesNotBreakProtocol(t *testing.T) {
	var spawned atomic.Int32
	pool := NewPool(helperSpawn(&spawned, "stderr"), 1)
	defer pool.Terminate()

	resp, err := pool.DoWork(context.Background(), WorkRequest{RequestID: 1})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Output)
}

func TestPool_Terminate(t *testing.T) {
	var spawned atomic.Int32
	pool := NewPool(helperSpawn(&spawned, "echo"), 2)

	_, err := pool.DoWork(context.Background(), WorkRequest{RequestID: 1})
	require.NoError(t, err)

	require.NoError(t, pool.Terminate())

	_, err = pool.DoWork(context.Background(), WorkRequest{RequestID: 2})
	assert.ErrorIs(t, err, ErrTerminated)

	assert.NoError(t, pool.Terminate())
}

func TestPool_SpawnFailure(t *testing.T) {
	pool := NewPool(func() *exec.Cmd {
		return exec.Command("/nonexistent/dartdevc", "--persistent_worker")
	}, 1)
	defer pool.Terminate()

	_, err := pool.DoWork(context.Background(), WorkRequest{RequestID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start worker")
}

func TestNewPool_MinimumCapacity(t *testing.T) {
	pool := NewPool(nil, 0)
	assert.Equal(t, 1, pool.Capacity())
}
