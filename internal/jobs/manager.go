// Package jobs 维护进行中的生成/导出任务注册表：
// 每个调用方提供的任务 id 对应一个可取消的 context。
// 取消是协作式的：生成器在分区循环之间检查 context，不做抢占。
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrDuplicateID = errors.New("job id already registered")

// Manager 是并发安全的任务注册表。任务之间不共享可变状态。
type Manager struct {
	mu   sync.Mutex
	jobs map[string]context.CancelFunc
}

// NewManager 构造空注册表。
func NewManager() *Manager {
	return &Manager{jobs: make(map[string]context.CancelFunc)}
}

// Register 为任务 id 派生一个可取消的 context。
// 同一 id 不允许重复注册，防止两个任务互相抢占取消信号。
func (m *Manager) Register(parent context.Context, id string) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}

	ctx, cancel := context.WithCancel(parent)
	m.jobs[id] = cancel
	return ctx, nil
}

// Cancel 取消指定任务；返回该 id 是否在册。
// 取消只影响目标 id，其余在途任务不受影响。
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	cancel, ok := m.jobs[id]
	m.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Finish 释放任务占用的资源；任务结束后必须调用。
func (m *Manager) Finish(id string) {
	m.mu.Lock()
	cancel, ok := m.jobs[id]
	delete(m.jobs, id)
	m.mu.Unlock()

	if ok {
		cancel()
	}
}

// Active 返回在册任务数。
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}
