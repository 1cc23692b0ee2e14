package simulator_test

import (
	"fmt"
	"testing"
	"time"

	"staffhub-presence/internal/domain"
	"staffhub-presence/internal/presence"
	"staffhub-presence/internal/simulator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_IdempotentWithinBucket(t *testing.T) {
	sim := simulator.NewSimulator(5 * time.Minute)

	// 同一个时间桶内反复计算结果完全一致（界面不闪烁）
	base := time.Date(2026, 3, 10, 14, 1, 0, 0, time.UTC)
	first := sim.Record("user-1", base)
	second := sim.Record("user-1", base.Add(30*time.Second))

	assert.Equal(t, first.State, second.State)
	require.NotNil(t, first.BatteryLevel)
	require.NotNil(t, second.BatteryLevel)
	assert.Equal(t, *first.BatteryLevel, *second.BatteryLevel)
	assert.Equal(t, *first.IsCharging, *second.IsCharging)
	assert.True(t, first.LastActivity.Equal(second.LastActivity))
}

func TestSimulator_SensitiveToBucket(t *testing.T) {
	sim := simulator.NewSimulator(5 * time.Minute)

	// 跨桶必须可变：不是 user_id 的常函数
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	states := make(map[domain.DeviceState]bool)
	for i := 0; i < 50; i++ {
		rec := sim.Record("user-1", base.Add(time.Duration(i)*5*time.Minute))
		states[rec.State] = true
	}
	assert.Greater(t, len(states), 1, "simulated state must vary across time buckets")
}

func TestSimulator_DeterministicPerUser(t *testing.T) {
	sim := simulator.NewSimulator(5 * time.Minute)
	now := time.Now()

	// 不同用户在同一个桶里各有各的状态分布
	distinct := make(map[domain.DeviceState]bool)
	for i := 0; i < 200; i++ {
		rec := sim.Record(fmt.Sprintf("user-%d", i), now)
		assert.True(t, rec.State.Valid())
		distinct[rec.State] = true
	}
	// 权重 60/25/15：两百个用户足以覆盖全部三种状态
	assert.Len(t, distinct, 3)
}

func TestSimulator_BatteryInRange(t *testing.T) {
	sim := simulator.NewSimulator(5 * time.Minute)
	now := time.Now()

	for i := 0; i < 200; i++ {
		rec := sim.Record(fmt.Sprintf("user-%d", i), now)
		require.NotNil(t, rec.BatteryLevel)
		assert.GreaterOrEqual(t, *rec.BatteryLevel, 0)
		assert.LessOrEqual(t, *rec.BatteryLevel, 100)

		// 电量按状态偏置：On 偏高，Off 偏低且不充电
		switch rec.State {
		case domain.StateOn:
			assert.GreaterOrEqual(t, *rec.BatteryLevel, 55)
		case domain.StateOff:
			assert.LessOrEqual(t, *rec.BatteryLevel, 44)
			require.NotNil(t, rec.IsCharging)
			assert.False(t, *rec.IsCharging)
		}
	}
}

func TestSimulator_RecordShape(t *testing.T) {
	sim := simulator.NewSimulator(5 * time.Minute)
	rec := sim.Record("user-1", time.Now())

	assert.Equal(t, "user-1", rec.UserID)
	assert.True(t, rec.Simulated)
	assert.True(t, rec.IsCheckedIn)
	assert.False(t, rec.Timestamp.IsZero())
	// 合成的最后活动时间与状态吻合（On 不会是几小时前）
	if rec.State == domain.StateOn {
		assert.WithinDuration(t, rec.Timestamp, rec.LastActivity, 3*time.Minute)
	}
}

func TestShouldSimulate(t *testing.T) {
	now := time.Now()
	policy := presence.DashboardThresholds()

	// 没有记录 → 模拟
	assert.True(t, simulator.ShouldSimulate(nil, now, policy))

	// 本身就是模拟记录 → 继续模拟（按当前桶重新生成）
	assert.True(t, simulator.ShouldSimulate(&domain.PresenceRecord{
		Simulated:    true,
		LastActivity: now,
	}, now, policy))

	// 新鲜的真实记录 → 绝不覆盖
	assert.False(t, simulator.ShouldSimulate(&domain.PresenceRecord{
		LastActivity: now.Add(-time.Minute),
	}, now, policy))

	// 过期的真实记录 → 模拟
	assert.True(t, simulator.ShouldSimulate(&domain.PresenceRecord{
		LastActivity: now.Add(-30 * time.Minute),
	}, now, policy))
}
