package as3client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapcc/f5agent/internal/as3"
)

func TestTaskTerminal(t *testing.T) {
	tests := []struct {
		name     string
		codes    []int
		terminal bool
	}{
		{"no results", nil, false},
		{"all pending", []int{0, 0}, false},
		{"partially pending", []int{0, 1}, false},
		{"all terminal", []int{1, 2}, true},
		{"single terminal", []int{200}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{ID: "t1"}
			for _, code := range tt.codes {
				task.Results = append(task.Results, TaskResult{Code: code})
			}
			assert.Equal(t, tt.terminal, task.Terminal())
		})
	}
}

func TestPost_AsyncPollsUntilTerminal(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			assert.Equal(t, "true", r.URL.Query().Get("async"))
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"id":"t1"}`))
		case r.Method == http.MethodGet:
			assert.Equal(t, taskPathPrefix+"t1", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"id":"t1","results":[{"code":0}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"t1","results":[{"code":200,"message":"success","tenant":"tenant-a"}]}`))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server,
		WithAsync(),
		WithPollInterval(10*time.Millisecond),
		WithAsyncTimeout(2*time.Second),
	)
	require.True(t, client.Async())

	resp, err := client.Post(context.Background(), []string{"tenant-a"}, as3.NewDeclaration(as3.NewADC("test")))
	require.NoError(t, err)

	assert.Equal(t, int32(2), polls.Load(), "second status fetch carries the terminal code")

	var task Task
	require.NoError(t, resp.JSON(&task))
	assert.True(t, task.Terminal())
	assert.Equal(t, "tenant-a", task.Results[0].Tenant)
}

func TestPost_AsyncSubmissionFailureSkipsPolling(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			polls.Add(1)
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"declaration invalid"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server,
		WithAsync(),
		WithPollInterval(10*time.Millisecond),
	)

	resp, err := client.Post(context.Background(), nil, as3.NewDeclaration(as3.NewADC("test")))
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Zero(t, polls.Load(), "a rejected submission has no task to poll")
}

func TestPost_AsyncMissingTaskID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, WithAsync())

	_, err := client.Post(context.Background(), nil, as3.NewDeclaration(as3.NewADC("test")))
	require.ErrorIs(t, err, ErrMissingTaskID)
}

func TestPost_AsyncTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"id":"t1"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"t1","results":[{"code":0}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server,
		WithAsync(),
		WithPollInterval(10*time.Millisecond),
		WithAsyncTimeout(50*time.Millisecond),
	)

	_, err := client.Post(context.Background(), nil, as3.NewDeclaration(as3.NewADC("test")))
	require.ErrorIs(t, err, ErrTaskTimeout)

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Contains(t, clientErr.URL, taskPathPrefix+"t1")
}

func TestPost_AsyncTimeoutCoversQueueTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"id":"t1"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"t1","results":[{"code":0}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server,
		WithAsync(),
		WithPollInterval(10*time.Millisecond),
		WithAsyncTimeout(200*time.Millisecond),
	)

	// Occupy the single poll worker with a never-terminal task.
	firstDone := make(chan error, 1)
	go func() {
		_, err := client.Post(context.Background(), nil, as3.NewDeclaration(as3.NewADC("first")))
		firstDone <- err
	}()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	_, err := client.Post(context.Background(), nil, as3.NewDeclaration(as3.NewADC("second")))
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTaskTimeout)
	assert.Less(t, elapsed, 350*time.Millisecond,
		"wait bound must cover time queued behind an in-flight poll")

	require.ErrorIs(t, <-firstDone, ErrTaskTimeout)
}

func TestPost_AsyncCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"id":"t1"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"t1","results":[{"code":0}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server,
		WithAsync(),
		WithPollInterval(10*time.Millisecond),
		WithAsyncTimeout(2*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Post(ctx, nil, as3.NewDeclaration(as3.NewADC("test")))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoller_AwaitAfterClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(Target{URL: mustParseURL(t, server.URL)}, nil, WithAsync())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = client.poller.await(context.Background(), "t1")
	require.ErrorIs(t, err, ErrClientClosed)
}
