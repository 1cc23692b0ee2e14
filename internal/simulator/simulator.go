// Package simulator 离线状态模拟器
//
// 管理面板需要展示全员在线状态，但多数员工的客户端并不会实时上报。
// 对没有新鲜真实信号的用户，按 (user_id, 时间桶) 确定性合成一条
// 看上去合理的记录：同一个桶内反复计算结果不变（界面不闪烁），
// 跨桶结果变化（看起来"活"的）。这是纯装饰性模拟，不是测量值，
// 绝不覆盖仍有新鲜真实信号的记录。
package simulator

import (
	"fmt"
	"hash/fnv"
	"time"

	"staffhub-presence/internal/domain"
	"staffhub-presence/internal/presence"
)

// 状态权重（百分制桶）：0-59 On，60-84 Sleep，85-99 Off
// 比例是设计选择而非硬性约束，倾向多数人在线的观感
const (
	weightOn    = 60
	weightSleep = 25
)

// Simulator 确定性状态合成器
type Simulator struct {
	bucket time.Duration // 时间桶粒度
}

// NewSimulator 创建模拟器
// bucket 为时间桶粒度（推荐 5-10 分钟）
func NewSimulator(bucket time.Duration) *Simulator {
	return &Simulator{bucket: bucket}
}

// Bucket 计算时刻所属的时间桶序号
func (s *Simulator) Bucket(t time.Time) int64 {
	return t.Unix() / int64(s.bucket/time.Second)
}

// Record 为用户合成一条 PresenceRecord
//
// 同一 (userID, 时间桶) 输入下输出完全一致；记录的时间字段
// 由桶起点推导，保证桶内幂等。
func (s *Simulator) Record(userID string, now time.Time) domain.PresenceRecord {
	bucket := s.Bucket(now)
	h := hashSeed(userID, bucket)

	state := stateFromRoll(int(h % 100))
	battery := batteryFor(state, h)
	charging := chargingFor(state, h)

	bucketStart := time.Unix(bucket*int64(s.bucket/time.Second), 0)

	return domain.PresenceRecord{
		UserID:       userID,
		State:        state,
		Timestamp:    bucketStart,
		LastActivity: lastActivityFor(state, h, bucketStart),
		BatteryLevel: &battery,
		IsCharging:   &charging,
		IsCheckedIn:  true,
		Simulated:    true,
	}
}

// ShouldSimulate 判断是否需要用合成记录代替存量记录
//
// 没有记录、或记录本身就是合成的、或真实记录已经不新鲜
// （last_activity 超过给定策略的空闲阈值）时返回 true。
func ShouldSimulate(rec *domain.PresenceRecord, now time.Time, policy presence.ThresholdPolicy) bool {
	if rec == nil {
		return true
	}
	if rec.Simulated {
		return true
	}
	return !presence.IsFresh(rec.LastActivity, now, policy)
}

// hashSeed FNV-1a 哈希：user_id 与时间桶共同决定种子
// 刻意不用随机源——桶内幂等依赖确定性
func hashSeed(userID string, bucket int64) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%d", userID, bucket)
	return h.Sum32()
}

// stateFromRoll 把 [0,100) 的点数映射到加权状态桶
func stateFromRoll(roll int) domain.DeviceState {
	switch {
	case roll < weightOn:
		return domain.StateOn
	case roll < weightOn+weightSleep:
		return domain.StateSleep
	default:
		return domain.StateOff
	}
}

// batteryFor 按状态偏置的电量：On 55-94，Sleep 35-74，Off 15-44
// 离线的机器电量偏低，在线的偏高
func batteryFor(state domain.DeviceState, h uint32) int {
	spread := int((h >> 8) % 40)
	switch state {
	case domain.StateOn:
		return 55 + spread
	case domain.StateSleep:
		return 35 + spread
	default:
		return 15 + spread%30
	}
}

// chargingFor 充电标志来自哈希位；Off 的机器不显示充电中
func chargingFor(state domain.DeviceState, h uint32) bool {
	if state == domain.StateOff {
		return false
	}
	return (h>>16)&1 == 1
}

// lastActivityFor 合成与状态匹配的最后活动时间（相对桶起点回推）
func lastActivityFor(state domain.DeviceState, h uint32, bucketStart time.Time) time.Time {
	switch state {
	case domain.StateOn:
		// 0-2 分钟前
		return bucketStart.Add(-time.Duration(h%120) * time.Second)
	case domain.StateSleep:
		// 5-25 分钟前
		return bucketStart.Add(-time.Duration(5+h%20) * time.Minute)
	default:
		// 30-90 分钟前
		return bucketStart.Add(-time.Duration(30+h%60) * time.Minute)
	}
}
