package presence_test

import (
	"sync"
	"testing"
	"time"

	"staffhub-presence/internal/presence"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// idleRecorder 收集空闲回调触发的用户
type idleRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *idleRecorder) onIdle(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, userID)
}

func (r *idleRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestActivityTracker_Throttle(t *testing.T) {
	rec := &idleRecorder{}
	tracker := presence.NewActivityTracker(50*time.Millisecond, time.Hour, rec.onIdle, zap.NewNop())
	defer tracker.Stop()

	now := time.Now()

	// 第一次信号被接受
	assert.True(t, tracker.Touch("user-1", now))
	// 节流窗口内的后续信号被丢弃
	assert.False(t, tracker.Touch("user-1", now.Add(10*time.Millisecond)))
	assert.False(t, tracker.Touch("user-1", now.Add(40*time.Millisecond)))
	// 窗口过后再次接受
	assert.True(t, tracker.Touch("user-1", now.Add(60*time.Millisecond)))

	// 不同用户互不影响
	assert.True(t, tracker.Touch("user-2", now))
}

func TestActivityTracker_IdleFires(t *testing.T) {
	rec := &idleRecorder{}
	tracker := presence.NewActivityTracker(time.Millisecond, 30*time.Millisecond, rec.onIdle, zap.NewNop())
	defer tracker.Stop()

	tracker.Touch("user-1", time.Now())

	// 空闲阈值内无新信号 → 触发空闲回调
	assert.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestActivityTracker_ActivityCancelsIdle(t *testing.T) {
	rec := &idleRecorder{}
	tracker := presence.NewActivityTracker(time.Millisecond, 60*time.Millisecond, rec.onIdle, zap.NewNop())
	defer tracker.Stop()

	tracker.Touch("user-1", time.Now())

	// 阈值到期前持续有新信号，空闲转换被不断取消
	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		tracker.Touch("user-1", time.Now())
	}
	assert.Equal(t, 0, rec.count())

	// 停止发信号后才触发
	assert.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestActivityTracker_ForgetCancelsTimer(t *testing.T) {
	rec := &idleRecorder{}
	tracker := presence.NewActivityTracker(time.Millisecond, 30*time.Millisecond, rec.onIdle, zap.NewNop())
	defer tracker.Stop()

	tracker.Touch("user-1", time.Now())
	tracker.Forget("user-1")

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestActivityTracker_StopCancelsAll(t *testing.T) {
	rec := &idleRecorder{}
	tracker := presence.NewActivityTracker(time.Millisecond, 30*time.Millisecond, rec.onIdle, zap.NewNop())

	tracker.Touch("user-1", time.Now())
	tracker.Touch("user-2", time.Now())
	tracker.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	// 停止后的信号不再被接受
	assert.False(t, tracker.Touch("user-3", time.Now()))
}
