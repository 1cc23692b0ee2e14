package presence

import (
	"time"

	"staffhub-presence/internal/config"
	"staffhub-presence/internal/domain"
)

// ThresholdPolicy 阈值策略（历史判定用）
//
// 同一判定在代码库内有两组阈值：监控循环使用 Default 组（5/30 分钟），
// 面板新鲜度判断使用 Dashboard 组（2/10 分钟）。两组各自独立配置，
// 不做统一（见 internal/config）。
type ThresholdPolicy struct {
	Idle    time.Duration // 超过此时长无活动 → Sleep
	Offline time.Duration // 超过此时长无活动 → Off
}

// DefaultThresholds 监控循环默认阈值组
func DefaultThresholds() ThresholdPolicy {
	return ThresholdPolicy{Idle: 5 * time.Minute, Offline: 30 * time.Minute}
}

// DashboardThresholds 面板默认阈值组
func DashboardThresholds() ThresholdPolicy {
	return ThresholdPolicy{Idle: 2 * time.Minute, Offline: 10 * time.Minute}
}

// PolicyFromConfig 从配置构建两组阈值策略
func PolicyFromConfig(cfg *config.PresenceConfig) (def ThresholdPolicy, dashboard ThresholdPolicy) {
	def = ThresholdPolicy{
		Idle:    time.Duration(cfg.Thresholds.DefaultIdle) * time.Minute,
		Offline: time.Duration(cfg.Thresholds.DefaultOffline) * time.Minute,
	}
	dashboard = ThresholdPolicy{
		Idle:    time.Duration(cfg.Thresholds.DashboardIdle) * time.Minute,
		Offline: time.Duration(cfg.Thresholds.DashboardOffline) * time.Minute,
	}
	return def, dashboard
}

// DetectLive 实时判定（本人会话，有实时信号）
//
// 断网 → Off；页面隐藏 → Sleep；否则 On。总函数，无错误分支。
func DetectLive(online bool, hidden bool) domain.DeviceState {
	if !online {
		return domain.StateOff
	}
	if hidden {
		return domain.StateSleep
	}
	return domain.StateOn
}

// DetectFromHistory 历史判定（他人会话，只有存量记录可用）
//
// 以最后活动时间距今的时长 Δ 判定：
// Δ > Offline → Off；Idle < Δ ≤ Offline → Sleep；否则 On。
func DetectFromHistory(lastActivity time.Time, now time.Time, policy ThresholdPolicy) domain.DeviceState {
	age := now.Sub(lastActivity)
	if age > policy.Offline {
		return domain.StateOff
	}
	if age > policy.Idle {
		return domain.StateSleep
	}
	return domain.StateOn
}

// IsFresh 记录是否仍算"新鲜"（未超过空闲阈值）
func IsFresh(lastActivity time.Time, now time.Time, policy ThresholdPolicy) bool {
	return now.Sub(lastActivity) <= policy.Idle
}
