package poll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobfinder-engine/internal/config"
	"jobfinder-engine/internal/scrape"
)

type fakePipeline struct {
	mu      sync.Mutex
	calls   []config.Query
	release chan struct{}
	result  scrape.RunResult
	err     error
}

func (f *fakePipeline) Run(ctx context.Context, position, location string, pages int) (scrape.RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, config.Query{Position: position, Location: location, Pages: pages})
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return scrape.RunResult{Status: scrape.StatusNoNewJobs, Cancelled: true}, nil
		}
	}
	return f.result, f.err
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunUpdatesStatus(t *testing.T) {
	fp := &fakePipeline{result: scrape.RunResult{RunID: "r1", Status: scrape.StatusSuccess, NewJobsFound: 4}}
	r := NewRunner(fp, quiet())

	res, err := r.Run(context.Background(), config.Query{Position: "go", Location: "berlin", Pages: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, res.NewJobsFound)

	st := r.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 1, st.Runs)
	assert.Empty(t, st.LastError)
	assert.False(t, st.LastOkAt.IsZero())
	require.NotNil(t, st.LastResult)
	assert.Equal(t, "r1", st.LastResult.RunID)
	assert.Equal(t, []config.Query{{Position: "go", Location: "berlin", Pages: 2}}, fp.calls)
}

func TestRunRecordsFailures(t *testing.T) {
	fp := &fakePipeline{result: scrape.RunResult{Status: scrape.StatusError, Message: "No source could be reached; nothing was scraped."}}
	r := NewRunner(fp, quiet())

	_, err := r.Run(context.Background(), config.Query{Position: "go", Location: "x"})
	require.NoError(t, err)
	assert.Equal(t, "No source could be reached; nothing was scraped.", r.Status().LastError)
	assert.True(t, r.Status().LastOkAt.IsZero())

	fp.err = errors.New("boom")
	_, err = r.Run(context.Background(), config.Query{})
	require.Error(t, err)
	assert.Equal(t, "boom", r.Status().LastError)
}

func TestSecondRunIsRejectedWhileBusy(t *testing.T) {
	fp := &fakePipeline{release: make(chan struct{})}
	r := NewRunner(fp, quiet())

	done := make(chan struct{})
	go func() {
		_, _ = r.Run(context.Background(), config.Query{Position: "a", Location: "b"})
		close(done)
	}()
	require.Eventually(t, func() bool { return r.Status().Running }, time.Second, time.Millisecond)

	_, err := r.Run(context.Background(), config.Query{Position: "c", Location: "d"})
	assert.ErrorIs(t, err, ErrBusy)

	assert.Nil(t, r.RunQueries(context.Background(), []config.Query{{Position: "e", Location: "f"}}))

	close(fp.release)
	<-done
	assert.Len(t, fp.calls, 1)
}

func TestCancelStopsActiveRun(t *testing.T) {
	fp := &fakePipeline{release: make(chan struct{})}
	r := NewRunner(fp, quiet())
	assert.False(t, r.Cancel())

	out := make(chan scrape.RunResult, 1)
	go func() {
		res, _ := r.Run(context.Background(), config.Query{Position: "a", Location: "b"})
		out <- res
	}()
	require.Eventually(t, func() bool { return r.Status().Running }, time.Second, time.Millisecond)

	assert.True(t, r.Cancel())
	select {
	case res := <-out:
		assert.True(t, res.Cancelled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunQueriesContinuesPastErrors(t *testing.T) {
	fp := &fakePipeline{err: errors.New("bad")}
	r := NewRunner(fp, quiet())

	err := r.RunQueries(context.Background(), []config.Query{
		{Position: "a", Location: "x"},
		{Position: "b", Location: "y"},
	})
	assert.Error(t, err)
	assert.Len(t, fp.calls, 2)
}
