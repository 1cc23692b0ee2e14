package presence

import (
	"context"
	"fmt"

	"staffhub-presence/internal/domain"

	"go.uber.org/zap"
)

// Processor 信号处理器
//
// 将标准化后的设备信号折叠进在线状态存储器：
// 实时信号按 DetectLive 映射状态，合格活动信号同时刷新 last_activity
// 并重置空闲倒计时。
type Processor struct {
	store   *Store
	tracker *ActivityTracker
	logger  *zap.Logger
}

// NewProcessor 创建信号处理器
func NewProcessor(store *Store, tracker *ActivityTracker, logger *zap.Logger) *Processor {
	return &Processor{
		store:   store,
		tracker: tracker,
		logger:  logger,
	}
}

// NewIdleHandler 构建空闲回调（供 ActivityTracker 使用）
//
// 空闲阈值到期时把仍为 On 的在班用户转为 Sleep。
// 页面保持可见、网络在线也会触发——对应"鼠标停了但标签页还开着"。
func NewIdleHandler(store *Store, logger *zap.Logger) func(userID string) {
	return func(userID string) {
		ctx := context.Background()

		rec, err := store.Read(ctx, userID)
		if err != nil {
			return
		}
		if !rec.IsCheckedIn || rec.State != domain.StateOn {
			return
		}

		sleep := domain.StateSleep
		store.Write(ctx, userID, domain.RecordPatch{State: &sleep})

		logger.Debug("User transitioned to Sleep on idle timeout",
			zap.String("user_id", userID),
		)
	}
}

// Process 处理一条信号
func (p *Processor) Process(ctx context.Context, ev domain.SignalEvent) error {
	if ev.UserID == "" {
		return fmt.Errorf("signal event missing user_id")
	}

	switch ev.Kind {
	case domain.SignalActivity:
		return p.processActivity(ctx, ev)
	case domain.SignalVisibility, domain.SignalNetwork:
		return p.processLiveChange(ctx, ev)
	case domain.SignalBattery:
		return p.processBattery(ctx, ev)
	case domain.SignalCheckIn:
		return p.processCheckIn(ctx, ev)
	case domain.SignalCheckOut:
		return p.processCheckOut(ctx, ev)
	default:
		return fmt.Errorf("unknown signal kind: %s", ev.Kind)
	}
}

// processActivity 输入活动信号
// 节流丢弃的信号只重置空闲倒计时，不写存储（限制写放大）
func (p *Processor) processActivity(ctx context.Context, ev domain.SignalEvent) error {
	if !p.tracker.Touch(ev.UserID, ev.ReportedAt) {
		return nil
	}

	state := DetectLive(ev.Online, ev.Hidden)
	patch := domain.RecordPatch{
		State:        &state,
		LastActivity: &ev.ReportedAt,
	}
	p.applyBattery(&patch, ev)

	p.store.Write(ctx, ev.UserID, patch)
	return nil
}

// processLiveChange 可见性/网络变化信号
func (p *Processor) processLiveChange(ctx context.Context, ev domain.SignalEvent) error {
	state := DetectLive(ev.Online, ev.Hidden)
	patch := domain.RecordPatch{State: &state}

	// 回到 On 视作一次真实事件：刷新 last_activity 并重置空闲倒计时
	if state == domain.StateOn {
		patch.LastActivity = &ev.ReportedAt
		p.tracker.Touch(ev.UserID, ev.ReportedAt)
	}
	p.applyBattery(&patch, ev)

	p.store.Write(ctx, ev.UserID, patch)
	return nil
}

// processBattery 电池状态上报
func (p *Processor) processBattery(ctx context.Context, ev domain.SignalEvent) error {
	patch := domain.RecordPatch{}
	p.applyBattery(&patch, ev)
	if patch.BatteryLevel == nil && patch.IsCharging == nil {
		return nil
	}

	p.store.Write(ctx, ev.UserID, patch)
	return nil
}

// processCheckIn 考勤签到：开始跟踪该用户
func (p *Processor) processCheckIn(ctx context.Context, ev domain.SignalEvent) error {
	state := DetectLive(ev.Online, ev.Hidden)
	checkedIn := true
	simulated := false
	patch := domain.RecordPatch{
		State:        &state,
		LastActivity: &ev.ReportedAt,
		IsCheckedIn:  &checkedIn,
		Simulated:    &simulated,
	}
	p.applyBattery(&patch, ev)

	p.tracker.Touch(ev.UserID, ev.ReportedAt)
	p.store.Write(ctx, ev.UserID, patch)

	p.logger.Info("Presence tracking started on check-in",
		zap.String("user_id", ev.UserID),
	)
	return nil
}

// processCheckOut 考勤签退：停止跟踪，记录保留但对外呈现为 Off
func (p *Processor) processCheckOut(ctx context.Context, ev domain.SignalEvent) error {
	checkedIn := false
	p.tracker.Forget(ev.UserID)
	p.store.Write(ctx, ev.UserID, domain.RecordPatch{IsCheckedIn: &checkedIn})

	p.logger.Info("Presence tracking stopped on check-out",
		zap.String("user_id", ev.UserID),
	)
	return nil
}

// applyBattery 把信号中的电池字段搬进 patch（缺失的字段不动）
func (p *Processor) applyBattery(patch *domain.RecordPatch, ev domain.SignalEvent) {
	if ev.BatteryLevel != nil {
		patch.BatteryLevel = ev.BatteryLevel
	}
	if ev.IsCharging != nil {
		patch.IsCharging = ev.IsCharging
	}
}
