package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

// mockExecutor はExecutorのモック。呼び出しごとのクエリと引数を記録する。
type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []any
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRecorder struct {
	mu     sync.Mutex
	counts []int64
}

func (m *mockRecorder) RecordSessionsCleaned(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = append(m.counts, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 3}}
	recorder := &mockRecorder{}
	job := NewCleanupJob(mock, newTestLogger(&buf), recorder)
	job.Grace = time.Hour

	before := time.Now()
	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	if !strings.Contains(mock.query, "DELETE FROM sessions") || !strings.Contains(mock.query, "expires_at") {
		t.Errorf("query = %q, want DELETE FROM sessions ... expires_at", mock.query)
	}

	if len(mock.args) != 1 {
		t.Fatalf("args = %v, want 1 argument", mock.args)
	}
	cutoff, ok := mock.args[0].(time.Time)
	if !ok {
		t.Fatalf("arg type = %T, want time.Time", mock.args[0])
	}
	if cutoff.After(before.Add(-time.Hour + time.Second)) {
		t.Errorf("cutoff = %v, want at least one hour before %v", cutoff, before)
	}

	if len(recorder.counts) != 1 || recorder.counts[0] != 3 {
		t.Errorf("recorded = %v, want [3]", recorder.counts)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to parse log: %v (%s)", err, buf.String())
	}
	if entry["deleted_count"] != float64(3) {
		t.Errorf("deleted_count = %v, want 3", entry["deleted_count"])
	}
}

func TestCleanupJob_Run_NilRecorder(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockExecutor{result: &fakeResult{}}, newTestLogger(&buf), nil)

	// 削除対象がなくてもエラーにならない
	for i := 0; i < 2; i++ {
		if _, err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run() #%d error = %v", i+1, err)
		}
	}
}

func TestCleanupJob_Run_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mock   *mockExecutor
		wantIs error
	}{
		{
			name:   "DELETEの失敗",
			mock:   &mockExecutor{err: sql.ErrConnDone},
			wantIs: sql.ErrConnDone,
		},
		{
			name:   "削除件数の取得失敗",
			mock:   &mockExecutor{result: &fakeResult{err: errors.New("driver does not support RowsAffected")}},
			wantIs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			recorder := &mockRecorder{}
			job := NewCleanupJob(tt.mock, newTestLogger(&buf), recorder)

			_, err := job.Run(context.Background())
			if err == nil {
				t.Fatal("Run() error = nil, want error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantIs)
			}
			if len(recorder.counts) != 0 {
				t.Errorf("recorded = %v, want none", recorder.counts)
			}
		})
	}
}

func TestCleanupJob_Run_LogsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockExecutor{err: sql.ErrConnDone}, newTestLogger(&buf), nil)

	_, _ = job.Run(context.Background())

	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("log output = %s, want ERROR level entry", buf.String())
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndPeriodically(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		job.Start(ctx, 10*time.Millisecond)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("calls = %d, want at least 3", mock.callCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
