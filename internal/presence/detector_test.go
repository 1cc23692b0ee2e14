package presence_test

import (
	"testing"
	"time"

	"staffhub-presence/internal/domain"
	"staffhub-presence/internal/presence"

	"github.com/stretchr/testify/assert"
)

func TestDetectLive_AllCombinations(t *testing.T) {
	// 断网一律 Off，隐藏页面 Sleep，其余 On
	cases := []struct {
		name     string
		online   bool
		hidden   bool
		expected domain.DeviceState
	}{
		{"offline visible", false, false, domain.StateOff},
		{"offline hidden", false, true, domain.StateOff},
		{"online hidden", true, true, domain.StateSleep},
		{"online visible", true, false, domain.StateOn},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, presence.DetectLive(tc.online, tc.hidden))
		})
	}
}

func TestDetectFromHistory_DefaultThresholds(t *testing.T) {
	now := time.Now()
	policy := presence.DefaultThresholds()

	// 40 分钟前活动过 → Off（超过 30 分钟离线阈值）
	assert.Equal(t, domain.StateOff,
		presence.DetectFromHistory(now.Add(-40*time.Minute), now, policy))

	// 10 分钟前 → Sleep（超过 5 分钟空闲阈值，未超离线阈值）
	assert.Equal(t, domain.StateSleep,
		presence.DetectFromHistory(now.Add(-10*time.Minute), now, policy))

	// 2 分钟前 → On
	assert.Equal(t, domain.StateOn,
		presence.DetectFromHistory(now.Add(-2*time.Minute), now, policy))

	// 阈值边界本身不降级
	assert.Equal(t, domain.StateOn,
		presence.DetectFromHistory(now.Add(-5*time.Minute), now, policy))
	assert.Equal(t, domain.StateSleep,
		presence.DetectFromHistory(now.Add(-30*time.Minute), now, policy))
}

func TestDetectFromHistory_DashboardThresholds(t *testing.T) {
	now := time.Now()
	policy := presence.DashboardThresholds()

	// 面板阈值组更激进：3 分钟就算 Sleep，12 分钟就算 Off
	assert.Equal(t, domain.StateSleep,
		presence.DetectFromHistory(now.Add(-3*time.Minute), now, policy))
	assert.Equal(t, domain.StateOff,
		presence.DetectFromHistory(now.Add(-12*time.Minute), now, policy))
	assert.Equal(t, domain.StateOn,
		presence.DetectFromHistory(now.Add(-1*time.Minute), now, policy))
}

func TestDetectFromHistory_ZeroLastActivity(t *testing.T) {
	// 从未有过活动记录（零值时间）按离线处理
	assert.Equal(t, domain.StateOff,
		presence.DetectFromHistory(time.Time{}, time.Now(), presence.DefaultThresholds()))
}

func TestIsFresh(t *testing.T) {
	now := time.Now()
	policy := presence.DashboardThresholds()

	assert.True(t, presence.IsFresh(now.Add(-1*time.Minute), now, policy))
	assert.False(t, presence.IsFresh(now.Add(-3*time.Minute), now, policy))
}

func TestEffectiveState_CheckedOutOverride(t *testing.T) {
	// 未打卡的用户无论存的是什么状态都呈现 Off
	rec := &domain.PresenceRecord{
		UserID:      "user-c",
		State:       domain.StateOn,
		IsCheckedIn: false,
	}
	assert.Equal(t, domain.StateOff, rec.EffectiveState())

	rec.IsCheckedIn = true
	assert.Equal(t, domain.StateOn, rec.EffectiveState())
}
