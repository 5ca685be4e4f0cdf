package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/blogadmin/internal/metrics"
)

// mockPurger はSessionPurgerのモック
type mockPurger struct {
	mu      sync.Mutex
	calls   int
	deleted int64
	err     error
}

func (m *mockPurger) DeleteExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.deleted, m.err
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// cleanedMetrics は削除件数のみを記録するメトリクスのモック
type cleanedMetrics struct {
	metrics.Nop
	cleaned []int64
}

func (m *cleanedMetrics) RecordSessionsCleaned(count int64) {
	m.cleaned = append(m.cleaned, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_ReturnsNonNil(t *testing.T) {
	job := NewCleanupJob(&mockPurger{}, nil, nil)
	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{deleted: 5}
	rec := &cleanedMetrics{}
	job := NewCleanupJob(purger, rec, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	if purger.callCount() != 1 {
		t.Errorf("DeleteExpired の呼び出し回数 = %d, want 1", purger.callCount())
	}
	if len(rec.cleaned) != 1 || rec.cleaned[0] != 5 {
		t.Errorf("記録された削除件数 = %v, want [5]", rec.cleaned)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("ログ出力がJSONではない: %v", err)
	}
	if entry["deleted_count"] != float64(5) {
		t.Errorf("deleted_count = %v, want 5", entry["deleted_count"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("ログに duration_ms が含まれていない")
	}
}

func TestCleanupJob_Run_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{deleted: 0}, nil, newTestLogger(&buf))

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
	}
}

func TestCleanupJob_Run_ReturnsError(t *testing.T) {
	var buf bytes.Buffer
	dbErr := errors.New("connection refused")
	rec := &cleanedMetrics{}
	job := NewCleanupJob(&mockPurger{err: dbErr}, rec, newTestLogger(&buf))

	err := job.Run(context.Background())
	if !errors.Is(err, dbErr) {
		t.Fatalf("Run() error = %v, want wrapped %v", err, dbErr)
	}
	if len(rec.cleaned) != 0 {
		t.Error("失敗時に削除件数を記録してはならない")
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("エラーログが出力されていない: %s", buf.String())
	}
}

func TestCleanupJob_Start_RunsUntilCancelled(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{}
	job := NewCleanupJob(purger, nil, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for purger.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("DeleteExpired の呼び出し回数 = %d, want >= 2", purger.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start がキャンセル後に終了しなかった")
	}
}
