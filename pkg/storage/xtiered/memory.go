package xtiered

import (
	"container/heap"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// 进程内层
// =============================================================================

// memEntry 进程内层的单个条目。
// heapIndex 由 expiryHeap 维护，用于 O(log n) 的定点删除。
type memEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
	heapIndex int
}

// expiryHeap 按过期时刻排序的最小堆。
// 堆顶是最早过期的条目，写满淘汰与惰性清理都从堆顶开始。
type expiryHeap []*memEntry

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool { return h[i].expiresAt.Before(h[j].expiresAt) }

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*memEntry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*h = old[:n-1]
	return e
}

// memoryTier 固定容量的进程内缓存层。
//
// 条目索引为 map，过期次序由最小堆维护：
// 写满时淘汰最早过期的条目（而非严格 LRU），访问时惰性清理已过期条目。
// 淘汰/插入在单个临界区内完成。
type memoryTier struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*memEntry
	expiry     expiryHeap
	nowFunc    func() time.Time // 测试注入
}

func newMemoryTier(maxEntries int) *memoryTier {
	return &memoryTier{
		maxEntries: maxEntries,
		entries:    make(map[string]*memEntry, maxEntries),
		expiry:     make(expiryHeap, 0, maxEntries),
		nowFunc:    time.Now,
	}
}

// get 返回未过期条目的值。已过期条目被就地清理并视为不存在。
func (m *memoryTier) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.nowFunc().Before(e.expiresAt) {
		m.removeLocked(e)
		return nil, false
	}
	return e.value, true
}

// set 写入条目。
// 先惰性清理已过期条目；仍然写满时淘汰最早过期的条目腾位。
func (m *memoryTier) set(key string, value []byte, ttl time.Duration) {
	now := m.nowFunc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.reapExpiredLocked(now)

	if e, ok := m.entries[key]; ok {
		e.value = value
		e.expiresAt = now.Add(ttl)
		heap.Fix(&m.expiry, e.heapIndex)
		return
	}

	for len(m.entries) >= m.maxEntries && len(m.expiry) > 0 {
		soonest := heap.Pop(&m.expiry).(*memEntry)
		delete(m.entries, soonest.key)
	}

	e := &memEntry{key: key, value: value, expiresAt: now.Add(ttl)}
	m.entries[key] = e
	heap.Push(&m.expiry, e)
}

func (m *memoryTier) delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}
	m.removeLocked(e)
	return true
}

func (m *memoryTier) exists(key string) bool {
	_, ok := m.get(key)
	return ok
}

// clearPrefix 删除所有带指定前缀的条目，返回删除数量。
func (m *memoryTier) clearPrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if strings.HasPrefix(key, prefix) {
			m.removeLocked(e)
			removed++
		}
	}
	return removed
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memEntry, m.maxEntries)
	m.expiry = m.expiry[:0]
}

// reapExpiredLocked 从堆顶清理所有已过期条目。
// 必须在持有 m.mu 时调用。
func (m *memoryTier) reapExpiredLocked(now time.Time) {
	for len(m.expiry) > 0 && !now.Before(m.expiry[0].expiresAt) {
		e := heap.Pop(&m.expiry).(*memEntry)
		delete(m.entries, e.key)
	}
}

// removeLocked 删除单个条目。必须在持有 m.mu 时调用。
func (m *memoryTier) removeLocked(e *memEntry) {
	delete(m.entries, e.key)
	if e.heapIndex >= 0 {
		heap.Remove(&m.expiry, e.heapIndex)
	}
}
