package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"PasskeyWallet/internal/agent"
	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/observability/alerting"
)

type fakeAgent struct {
	processed atomic.Int32
	inflight  atomic.Int32
	maxSeen   atomic.Int32
	latency   time.Duration
}

func (f *fakeAgent) Execute(ctx context.Context, req agent.CommandRequest) (*agent.CommandResult, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.processed.Add(1)

	if strings.Contains(req.Text, "fail") {
		result := &agent.CommandResult{Text: req.Text, Intent: "transfer", Message: "network request failed"}
		return result, xerrors.New(xerrors.CodeNetwork, "network request failed", xerrors.WithSeverity(xerrors.SeverityCritical))
	}
	return &agent.CommandResult{Text: req.Text, Intent: "check_balance", Balance: "1.0000", Message: "Balance: 1.0000 SUI"}, nil
}

type recordingAlerts struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (r *recordingAlerts) Notify(_ context.Context, event alerting.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func startProcessor(t *testing.T, p *Processor) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()
	return cancel, done
}

func TestProcessorRunsCommandsOneAtATime(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore()
	queue := NewMemoryQueue(64)
	fake := &fakeAgent{latency: 2 * time.Millisecond}
	service := NewService(store, queue)
	processor := NewProcessor(fake, store, queue)
	cancel, done := startProcessor(t, processor)

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	total := 20
	ids := make([]string, 0, total)
	for i := 0; i < total; i++ {
		task, err := service.Submit(ctx, agent.CommandRequest{Text: fmt.Sprintf("check balance %d", i)})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, task.ID)
	}
	for _, id := range ids {
		task, err := service.WaitUntilCompleted(ctx, id, 5*time.Millisecond)
		if err != nil {
			t.Fatalf("wait %s: %v", id, err)
		}
		if task.Status != StatusSucceeded || task.Outcome.Balance != "1.0000" {
			t.Fatalf("unexpected command: %+v", task)
		}
	}

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("processor exited: %v", err)
	}
	if got := fake.maxSeen.Load(); got != 1 {
		t.Fatalf("expected serial execution, saw %d concurrent commands", got)
	}
	if got := int(fake.processed.Load()); got != total {
		t.Fatalf("expected %d executions, got %d", total, got)
	}
}

func TestProcessorRecordsFailureWithoutRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	fake := &fakeAgent{}
	alerts := &recordingAlerts{}
	service := NewService(store, queue)
	processor := NewProcessor(fake, store, queue, WithAlertDispatcher(alerts))
	cancel, done := startProcessor(t, processor)

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	task, err := service.Submit(ctx, agent.CommandRequest{ID: "cmd-1", Text: "send 1 sui to bob and fail"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	finished, err := service.WaitUntilCompleted(ctx, task.ID, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	cancel()
	<-done

	if finished.Status != StatusFailed || finished.ErrorCode != string(xerrors.CodeNetwork) {
		t.Fatalf("unexpected command: %+v", finished)
	}
	if finished.Outcome.Message != "network request failed" || finished.Attempts != 1 {
		t.Fatalf("unexpected outcome: %+v", finished)
	}
	if got := fake.processed.Load(); got != 1 {
		t.Fatalf("failed commands must not be retried, executed %d times", got)
	}
	alerts.mu.Lock()
	defer alerts.mu.Unlock()
	if len(alerts.events) != 1 || alerts.events[0].CommandID != "cmd-1" || alerts.events[0].Severity != xerrors.SeverityCritical {
		t.Fatalf("unexpected alerts: %+v", alerts.events)
	}
}

func TestServiceSubmitIsIdempotentByID(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	defer queue.Close()
	service := NewService(store, queue)
	ctx := context.Background()

	first, err := service.Submit(ctx, agent.CommandRequest{ID: "same", Text: "check balance"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := service.Submit(ctx, agent.CommandRequest{ID: "same", Text: "send 1 sui to bob"})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.Text != first.Text {
		t.Fatalf("expected original command, got %+v", second)
	}
	if depth, _ := queue.Depth(ctx); depth != 1 {
		t.Fatalf("expected one queued command, got %d", depth)
	}

	if _, err := service.Submit(ctx, agent.CommandRequest{Text: "   "}); !xerrors.HasCode(err, CodeTaskValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceMarksCommandFailedWhenPublishFails(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(1)
	queue.Close()
	service := NewService(store, queue)
	ctx := context.Background()

	_, err := service.Submit(ctx, agent.CommandRequest{ID: "lost", Text: "check balance"})
	if !xerrors.HasCode(err, CodeTaskPublish) {
		t.Fatalf("expected publish error, got %v", err)
	}
	task, getErr := store.Get(ctx, "lost")
	if getErr != nil {
		t.Fatalf("get: %v", getErr)
	}
	if task.Status != StatusFailed || task.ErrorCode != string(CodeTaskPublish) {
		t.Fatalf("unexpected command: %+v", task)
	}
}
