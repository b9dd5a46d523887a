package task

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	xerrors "PasskeyWallet/internal/errors"
)

// MemoryStore 以内存方式保存指令日志，可选地将每次变更追加到 JSON Lines 文件。
type MemoryStore struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	journal *os.File
	enc     *json.Encoder
	now     func() time.Time
}

// NewMemoryStore 创建不落盘的 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task), now: time.Now}
}

// OpenFileStore 打开位于 path 的 JSON Lines 日志，回放已有记录后继续追加。
// 上次进程退出时仍处于 running 的指令会被标记为失败。
func OpenFileStore(path string) (*MemoryStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "指令日志路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建指令日志目录失败: %w", err)
	}

	store := NewMemoryStore()
	if err := store.replay(path); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("打开指令日志失败: %w", err)
	}
	store.journal = file
	store.enc = json.NewEncoder(file)

	for _, task := range store.tasks {
		if task.Status != StatusRunning {
			continue
		}
		task.Status = StatusFailed
		task.ErrorCode = string(CodeTaskProcessing)
		task.Outcome.Message = "interrupted before completion"
		task.UpdatedAt = store.now().Unix()
		if err := store.append(task); err != nil {
			file.Close()
			return nil, err
		}
	}
	return store, nil
}

func (m *MemoryStore) replay(path string) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("读取指令日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var task Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			return fmt.Errorf("解析指令日志第 %d 行失败: %w", line, err)
		}
		if task.ID == "" {
			continue
		}
		m.tasks[task.ID] = &task
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取指令日志失败: %w", err)
	}
	return nil
}

// append 在持有写锁时调用。
func (m *MemoryStore) append(task *Task) error {
	if m.enc == nil {
		return nil
	}
	if err := m.enc.Encode(task); err != nil {
		return fmt.Errorf("写入指令日志失败: %w", err)
	}
	return nil
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, task *Task) error {
	if task == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "task 不能为空")
	}
	if task.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "指令 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; ok {
		return ErrTaskConflict
	}
	now := m.now().Unix()
	if task.CreatedAt == 0 {
		task.CreatedAt = now
	}
	if task.Status == "" {
		task.Status = StatusPending
	}
	task.UpdatedAt = now
	clone := cloneTask(task)
	if err := m.append(clone); err != nil {
		return err
	}
	m.tasks[task.ID] = clone
	return nil
}

// Get 返回指令。
func (m *MemoryStore) Get(_ context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// Claim 将待执行的指令更新为运行中。
func (m *MemoryStore) Claim(_ context.Context, id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	switch task.Status {
	case StatusSucceeded, StatusFailed:
		return cloneTask(task), ErrTaskCompleted
	case StatusRunning:
		return cloneTask(task), ErrTaskConflict
	}
	next := cloneTask(task)
	next.Status = StatusRunning
	next.Attempts++
	next.UpdatedAt = m.now().Unix()
	if err := m.append(next); err != nil {
		return nil, err
	}
	m.tasks[id] = next
	return cloneTask(next), nil
}

// MarkSucceeded 记录成功结果。
func (m *MemoryStore) MarkSucceeded(_ context.Context, id string, outcome Outcome) error {
	return m.finish(id, StatusSucceeded, "", outcome)
}

// MarkFailed 记录失败结果。
func (m *MemoryStore) MarkFailed(_ context.Context, id string, code xerrors.Code, outcome Outcome) error {
	return m.finish(id, StatusFailed, code, outcome)
}

func (m *MemoryStore) finish(id string, status Status, code xerrors.Code, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if task.Finished() {
		return ErrTaskCompleted
	}
	next := cloneTask(task)
	next.Status = status
	next.ErrorCode = string(code)
	next.Outcome = outcome
	next.UpdatedAt = m.now().Unix()
	if err := m.append(next); err != nil {
		return err
	}
	m.tasks[id] = next
	return nil
}

// List 按条件返回指令。
func (m *MemoryStore) List(_ context.Context, q Query) ([]*Task, error) {
	q.normalize()

	m.mu.RLock()
	results := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		if q.Matches(task) {
			results = append(results, cloneTask(task))
		}
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.UpdatedAt == b.UpdatedAt {
			if q.Oldest {
				return a.ID < b.ID
			}
			return a.ID > b.ID
		}
		if q.Oldest {
			return a.UpdatedAt < b.UpdatedAt
		}
		return a.UpdatedAt > b.UpdatedAt
	})

	if q.Offset >= len(results) {
		return []*Task{}, nil
	}
	results = results[q.Offset:]
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// Stats 汇总各状态的指令数量。
func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stats Stats
	for _, task := range m.tasks {
		stats.add(task.Status, 1)
		if stats.OldestAt == 0 || task.CreatedAt < stats.OldestAt {
			stats.OldestAt = task.CreatedAt
		}
		if task.CreatedAt > stats.NewestAt {
			stats.NewestAt = task.CreatedAt
		}
	}
	return stats, nil
}

// Close 关闭日志文件。
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.journal == nil {
		return nil
	}
	err := m.journal.Close()
	m.journal = nil
	m.enc = nil
	return err
}
