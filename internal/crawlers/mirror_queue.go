package crawlers

import (
	"context"
	"sync"
	"time"
)

// popPollInterval 空队列时的轮询间隔
const popPollInterval = 20 * time.Millisecond

// mirrorQueue 镜像任务队列
// 职责: 管理待抓取的URL,支持并发安全的Push/Pop,并跟踪未完成任务数
// 未完成任务 = 队列中等待的 + 工作协程手上正在处理的,
// 两者都归零才说明整站已经抓完
type mirrorQueue struct {
	mu         sync.Mutex
	items      []string
	unfinished int
}

// newMirrorQueue 创建队列实例
func newMirrorQueue() *mirrorQueue {
	return &mirrorQueue{
		items: make([]string, 0, 256),
	}
}

// Push 添加URL到待抓队列
// 不做已访问检查,去重统一发生在出队时刻
func (q *mirrorQueue) Push(url string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, url)
	q.unfinished++
}

// Pop 取出下一个待抓URL,最多等待timeout
// 队列持续为空或context取消时返回false,调用方自行决定是否继续等待
func (q *mirrorQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			url := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return url, true
		}
		q.mu.Unlock()

		if ctx.Err() != nil || time.Now().After(deadline) {
			return "", false
		}
		time.Sleep(popPollInterval)
	}
}

// TaskDone 标记一个出队的任务处理完毕
func (q *mirrorQueue) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished > 0 {
		q.unfinished--
	}
}

// Idle 队列已空且没有在途任务
func (q *mirrorQueue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0 && q.unfinished == 0
}

// PendingCount 当前待处理URL数量
func (q *mirrorQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear 清空队列并清零在途计数,用于取消后的排空
func (q *mirrorQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
	q.unfinished = 0
}
