package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ActivityTracker 活动计时器
//
// 跟踪每个用户距最后一次合格输入信号的时长：
// - 每次合格信号重置空闲倒计时（节流：同一用户最多每 throttle 间隔接受一次）
// - 空闲阈值内无新信号则触发 onIdle 回调（页面可见、网络在线也会触发）
// - 新信号取消待触发的空闲转换并重新计时
type ActivityTracker struct {
	mu       sync.Mutex
	throttle time.Duration
	idle     time.Duration
	onIdle   func(userID string)
	logger   *zap.Logger

	timers   map[string]*time.Timer
	lastSeen map[string]time.Time
	stopped  bool
}

// NewActivityTracker 创建活动计时器
// onIdle 在空闲阈值到期时被调用（计时器 goroutine 内，需自行保证并发安全）
func NewActivityTracker(throttle, idle time.Duration, onIdle func(userID string), logger *zap.Logger) *ActivityTracker {
	return &ActivityTracker{
		throttle: throttle,
		idle:     idle,
		onIdle:   onIdle,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		lastSeen: make(map[string]time.Time),
	}
}

// Touch 上报一次合格活动信号
// 返回 false 表示该信号被节流丢弃（但空闲倒计时仍会重置）
func (t *ActivityTracker) Touch(userID string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}

	t.resetTimerLocked(userID)

	if last, ok := t.lastSeen[userID]; ok && at.Sub(last) < t.throttle {
		return false
	}
	t.lastSeen[userID] = at
	return true
}

// resetTimerLocked 重置用户的空闲计时器（须持锁调用）
func (t *ActivityTracker) resetTimerLocked(userID string) {
	if timer, ok := t.timers[userID]; ok {
		timer.Stop()
	}
	t.timers[userID] = time.AfterFunc(t.idle, func() {
		t.fireIdle(userID)
	})
}

// fireIdle 空闲阈值到期
func (t *ActivityTracker) fireIdle(userID string) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	delete(t.timers, userID)
	t.mu.Unlock()

	t.logger.Debug("Idle threshold elapsed", zap.String("user_id", userID))

	if t.onIdle != nil {
		t.onIdle(userID)
	}
}

// Forget 停止并移除指定用户的计时状态（签退时调用）
func (t *ActivityTracker) Forget(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[userID]; ok {
		timer.Stop()
		delete(t.timers, userID)
	}
	delete(t.lastSeen, userID)
}

// Stop 停止所有计时器并清空状态（服务关停时调用）
func (t *ActivityTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for userID, timer := range t.timers {
		timer.Stop()
		delete(t.timers, userID)
	}
	t.lastSeen = make(map[string]time.Time)
}
