package presence_test

import (
	"context"
	"testing"
	"time"

	"staffhub-presence/internal/domain"
	"staffhub-presence/internal/presence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProcessor(t *testing.T, idle time.Duration) (*presence.Processor, *presence.Store, *presence.ActivityTracker) {
	t.Helper()

	s := newTestStore(newFakeKV(), nil)
	tracker := presence.NewActivityTracker(
		time.Millisecond,
		idle,
		presence.NewIdleHandler(s, zap.NewNop()),
		zap.NewNop(),
	)
	t.Cleanup(tracker.Stop)

	return presence.NewProcessor(s, tracker, zap.NewNop()), s, tracker
}

func TestProcessor_CheckInStartsTracking(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newTestProcessor(t, time.Hour)

	now := time.Now()
	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID:     "user-1",
		Kind:       domain.SignalCheckIn,
		Online:     true,
		Hidden:     false,
		ReportedAt: now,
	}))

	rec, err := s.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateOn, rec.State)
	assert.True(t, rec.IsCheckedIn)
	assert.True(t, now.Equal(rec.LastActivity))
	assert.False(t, rec.Simulated)
}

func TestProcessor_NetworkOffline(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newTestProcessor(t, time.Hour)

	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID: "user-1", Kind: domain.SignalCheckIn, Online: true, ReportedAt: time.Now(),
	}))
	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID: "user-1", Kind: domain.SignalNetwork, Online: false, ReportedAt: time.Now(),
	}))

	rec, err := s.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateOff, rec.State)
}

func TestProcessor_VisibilityHidden(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newTestProcessor(t, time.Hour)

	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID: "user-1", Kind: domain.SignalCheckIn, Online: true, ReportedAt: time.Now(),
	}))
	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID: "user-1", Kind: domain.SignalVisibility, Online: true, Hidden: true, ReportedAt: time.Now(),
	}))

	rec, err := s.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSleep, rec.State)

	// 页面重新可见 → 回到 On，last_activity 刷新
	back := time.Now()
	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID: "user-1", Kind: domain.SignalVisibility, Online: true, Hidden: false, ReportedAt: back,
	}))

	rec, err = s.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateOn, rec.State)
	assert.True(t, back.Equal(rec.LastActivity))
}

func TestProcessor_ActivityThrottled(t *testing.T) {
	ctx := context.Background()

	s := newTestStore(newFakeKV(), nil)
	tracker := presence.NewActivityTracker(
		time.Hour, // 节流窗口极大：第二条活动信号必然被丢弃
		time.Hour,
		presence.NewIdleHandler(s, zap.NewNop()),
		zap.NewNop(),
	)
	t.Cleanup(tracker.Stop)
	p := presence.NewProcessor(s, tracker, zap.NewNop())

	first := time.Now()
	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID: "user-1", Kind: domain.SignalActivity, Online: true, ReportedAt: first,
	}))

	second := first.Add(time.Second)
	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID: "user-1", Kind: domain.SignalActivity, Online: true, ReportedAt: second,
	}))

	// 被节流的信号不产生写入：last_activity 停留在第一条
	rec, err := s.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, first.Equal(rec.LastActivity))
}

func TestProcessor_IdleTransitionToSleep(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newTestProcessor(t, 30*time.Millisecond)

	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID: "user-1", Kind: domain.SignalCheckIn, Online: true, ReportedAt: time.Now(),
	}))

	// 页面保持可见、网络在线，但无后续活动 → 空闲转换为 Sleep
	assert.Eventually(t, func() bool {
		rec, err := s.Read(ctx, "user-1")
		return err == nil && rec.State == domain.StateSleep
	}, time.Second, 5*time.Millisecond)
}

func TestProcessor_CheckOutRendersOff(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newTestProcessor(t, time.Hour)

	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID: "user-1", Kind: domain.SignalCheckIn, Online: true, ReportedAt: time.Now(),
	}))
	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID: "user-1", Kind: domain.SignalCheckOut, ReportedAt: time.Now(),
	}))

	rec, err := s.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, rec.IsCheckedIn)
	// 存储的 state 字段不强制改写，但对外呈现必须是 Off
	assert.Equal(t, domain.StateOff, rec.EffectiveState())
}

func TestProcessor_BatterySignal(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newTestProcessor(t, time.Hour)

	level := 130
	charging := true
	require.NoError(t, p.Process(ctx, domain.SignalEvent{
		UserID:       "user-1",
		Kind:         domain.SignalBattery,
		BatteryLevel: &level,
		IsCharging:   &charging,
		ReportedAt:   time.Now(),
	}))

	rec, err := s.Read(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, rec.BatteryLevel)
	assert.Equal(t, 100, *rec.BatteryLevel) // 越界值收敛
	require.NotNil(t, rec.IsCharging)
	assert.True(t, *rec.IsCharging)
}

func TestProcessor_UnknownKind(t *testing.T) {
	p, _, _ := newTestProcessor(t, time.Hour)

	err := p.Process(context.Background(), domain.SignalEvent{
		UserID: "user-1", Kind: "teleport", ReportedAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestResolveBattery_Defaults(t *testing.T) {
	// 电池能力缺席时退回固定默认值
	reading := presence.ResolveBattery(nil, nil)
	assert.Equal(t, presence.DefaultBatteryLevel, reading.Level)
	assert.False(t, reading.Charging)

	level := 110
	reading = presence.ResolveBattery(&level, nil)
	assert.Equal(t, 100, reading.Level)
	assert.False(t, reading.Charging)
}
