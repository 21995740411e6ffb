package forwarder

import (
	"sync"
	"time"
)

// DedupKey 消息出现的唯一标识
type DedupKey struct {
	ChatID    int64
	MessageID int64
}

type dedupState int

const (
	dedupQueued dedupState = iota // 已认领，等待投递
	dedupSent                     // 已成功投递
)

type dedupEntry struct {
	state dedupState
	at    time.Time
}

// DedupGate 进程内去重闸门
// 多个账号共同在一个来源群时会各自观察到同一条消息；
// 闸门保证同一 (chat, message) 同时最多只有一条在途或已发送的投递。
// 所有操作都在同一把互斥锁内完成。
type DedupGate struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[DedupKey]dedupEntry

	now func() time.Time // 测试注入
}

// NewDedupGate 创建去重闸门
func NewDedupGate(ttl time.Duration) *DedupGate {
	return &DedupGate{
		ttl:     ttl,
		entries: make(map[DedupKey]dedupEntry),
		now:     time.Now,
	}
}

// Claim 原子地检查并认领一个消息出现
// 已存在 Queued 条目或未过期的 Sent 条目时返回 false。
// 并发 Claim 同一 key 时有且只有一个调用返回 true。
// TTL 只作用于 Sent 条目：Queued 条目代表在途投递（可能正在
// 按限流提示重试），在 Release/MarkSent 之前不得被回收，
// 否则第二个账号会认领同一条消息导致重复投递。
func (g *DedupGate) Claim(key DedupKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if entry, ok := g.entries[key]; ok {
		if entry.state == dedupQueued || now.Sub(entry.at) < g.ttl {
			return false
		}
		// 过期的 Sent 条目顺手回收
		delete(g.entries, key)
	}

	g.entries[key] = dedupEntry{state: dedupQueued, at: now}
	return true
}

// MarkSent 将已认领条目标记为已发送
func (g *DedupGate) MarkSent(key DedupKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if entry, ok := g.entries[key]; ok && entry.state == dedupQueued {
		entry.state = dedupSent
		g.entries[key] = entry
	}
}

// Release 移除条目（投递终态失败后调用，允许后续重新认领）
func (g *DedupGate) Release(key DedupKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
}

// Sweep 移除所有超过 TTL 的 Sent 条目，返回清除数量
// Queued 条目由持有方通过 Release/MarkSent 归还，清扫不碰它们。
func (g *DedupGate) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for key, entry := range g.entries {
		if entry.state == dedupSent && now.Sub(entry.at) >= g.ttl {
			delete(g.entries, key)
			removed++
		}
	}
	return removed
}

// Len 当前条目数量（用于日志/诊断）
func (g *DedupGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
