package presence

import (
	"context"
	"time"

	"staffhub-presence/internal/domain"

	"go.uber.org/zap"
)

// SnapshotNotifier 快照推送接口（webhook 等）
// 推送失败只记日志，不影响监控循环
type SnapshotNotifier interface {
	PushSnapshot(ctx context.Context, records []domain.PresenceRecord) error
}

// Monitor 在线状态监控循环
//
// 周期性重估所有被跟踪用户的状态：距最后活动的时长超过阈值的
// 用户被降级为 Sleep/Off 并落盘。捕捉"客户端没再上报任何信号"
// 的静默离线场景——空闲计时器只覆盖进程存活期间的转换。
type Monitor struct {
	store    *Store
	policy   ThresholdPolicy
	interval time.Duration
	notifier SnapshotNotifier // 可为 nil
	logger   *zap.Logger
}

// NewMonitor 创建监控循环
func NewMonitor(store *Store, policy ThresholdPolicy, interval time.Duration, notifier SnapshotNotifier, logger *zap.Logger) *Monitor {
	return &Monitor{
		store:    store,
		policy:   policy,
		interval: interval,
		notifier: notifier,
		logger:   logger,
	}
}

// Start 启动监控循环（阻塞直到 ctx 取消）
func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Starting presence monitor",
		zap.Duration("interval", m.interval),
		zap.Duration("idle_threshold", m.policy.Idle),
		zap.Duration("offline_threshold", m.policy.Offline),
	)

	// 首次执行一次全量重估
	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Presence monitor stopped")
			return nil
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep 重估所有被跟踪用户
func (m *Monitor) sweep(ctx context.Context) {
	now := time.Now()
	records := m.store.Snapshot()

	demoted := 0
	for _, rec := range records {
		// 未打卡的用户不参与评估（对外本来就呈现 Off）
		if !rec.IsCheckedIn {
			continue
		}
		// 模拟记录按时间桶重新生成，不在这里降级
		if rec.Simulated {
			continue
		}

		// 只降级不升级：历史判定没有实时信号，不能推翻实时信号
		// 写入的 Sleep/Off（回到 On 由真实信号驱动）
		derived := DetectFromHistory(rec.LastActivity, now, m.policy)
		if stateRank(derived) >= stateRank(rec.State) {
			continue
		}

		m.store.Write(ctx, rec.UserID, domain.RecordPatch{State: &derived})
		demoted++

		m.logger.Debug("Presence state re-evaluated",
			zap.String("user_id", rec.UserID),
			zap.String("from", string(rec.State)),
			zap.String("to", string(derived)),
		)
	}

	if demoted > 0 {
		m.logger.Info("Presence sweep completed",
			zap.Int("tracked", len(records)),
			zap.Int("transitions", demoted),
		)
	}

	if m.notifier != nil {
		if err := m.notifier.PushSnapshot(ctx, m.store.Snapshot()); err != nil {
			m.logger.Warn("Failed to push presence snapshot", zap.Error(err))
		}
	}
}

// stateRank 状态的"在线程度"排序：On > Sleep > Off
func stateRank(s domain.DeviceState) int {
	switch s {
	case domain.StateOn:
		return 2
	case domain.StateSleep:
		return 1
	default:
		return 0
	}
}
