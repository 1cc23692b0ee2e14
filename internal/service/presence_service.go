package service

import (
	"context"
	"errors"
	"time"

	"staffhub-presence/internal/domain"
	"staffhub-presence/internal/presence"
	"staffhub-presence/internal/repository"
	"staffhub-presence/internal/simulator"

	"go.uber.org/zap"
)

// UserPresence 对外呈现的单用户在线状态
type UserPresence struct {
	UserID       string             `json:"user_id"`
	State        domain.DeviceState `json:"state"` // 已套用"未打卡一律 Off"规则
	LastActivity time.Time          `json:"last_activity"`
	BatteryLevel *int               `json:"battery_level,omitempty"`
	IsCharging   *bool              `json:"is_charging,omitempty"`
	IsCheckedIn  bool               `json:"is_checked_in"`
	Simulated    bool               `json:"simulated"`
}

// PresenceService 在线状态服务接口
type PresenceService interface {
	// GetOverview 组织全员在线状态概览
	GetOverview(ctx context.Context, orgID string) ([]UserPresence, error)
	// GetUser 单个用户在线状态
	GetUser(ctx context.Context, userID string) (*UserPresence, error)
	// ClearCache 丢弃所有本地记录，强制下次查询重新生成
	ClearCache(ctx context.Context) error
}

// presenceService 在线状态服务实现
type presenceService struct {
	store          *presence.Store
	sim            *simulator.Simulator
	attendanceRepo repository.AttendanceRepository // 可为 nil（DB 未启用时退化为跟踪用户集合）
	presenceRepo   repository.PresenceRepository   // 可为 nil；远端存量为模拟判断提供种子
	dashboard      presence.ThresholdPolicy
	logger         *zap.Logger
}

// NewPresenceService 创建在线状态服务
func NewPresenceService(
	store *presence.Store,
	sim *simulator.Simulator,
	attendanceRepo repository.AttendanceRepository,
	presenceRepo repository.PresenceRepository,
	dashboard presence.ThresholdPolicy,
	logger *zap.Logger,
) PresenceService {
	return &presenceService{
		store:          store,
		sim:            sim,
		attendanceRepo: attendanceRepo,
		presenceRepo:   presenceRepo,
		dashboard:      dashboard,
		logger:         logger,
	}
}

var _ PresenceService = (*presenceService)(nil)

// GetOverview 组织全员在线状态概览
//
// 评估范围由当天考勤决定：已签退（或无考勤）的用户直接呈现 Off；
// 在班用户优先用本地新鲜记录，其次用远端存量，最后落到确定性模拟。
func (s *presenceService) GetOverview(ctx context.Context, orgID string) ([]UserPresence, error) {
	now := time.Now()

	facts, err := s.todayFacts(ctx, orgID)
	if err != nil {
		return nil, err
	}

	// 第一遍：收集本地没有记录的在班用户，一次性批量读远端存量
	var missing []string
	local := make(map[string]*domain.PresenceRecord, len(facts))
	for _, fact := range facts {
		if !fact.IsOpen() {
			continue
		}
		rec, err := s.store.Read(ctx, fact.UserID)
		if err != nil {
			if !errors.Is(err, presence.ErrNoRecord) {
				s.logger.Warn("Failed to read presence record", zap.String("user_id", fact.UserID), zap.Error(err))
			}
			missing = append(missing, fact.UserID)
			continue
		}
		local[fact.UserID] = rec
	}
	remote := s.fetchRemote(ctx, missing)

	result := make([]UserPresence, 0, len(facts))
	for _, fact := range facts {
		result = append(result, s.resolve(ctx, fact, local[fact.UserID], remote[fact.UserID], now))
	}

	return result, nil
}

// GetUser 单个用户在线状态
func (s *presenceService) GetUser(ctx context.Context, userID string) (*UserPresence, error) {
	now := time.Now()

	fact, err := s.todayFact(ctx, userID)
	if err != nil {
		return nil, err
	}

	var local *domain.PresenceRecord
	if rec, err := s.store.Read(ctx, userID); err == nil {
		local = rec
	}

	var remote *domain.PresenceRecord
	if local == nil {
		remote = s.fetchRemote(ctx, []string{userID})[userID]
	}

	up := s.resolve(ctx, fact, local, remote, now)
	return &up, nil
}

// ClearCache 丢弃所有本地记录
func (s *presenceService) ClearCache(ctx context.Context) error {
	return s.store.ClearAll(ctx)
}

// resolve 计算单个用户的呈现状态
func (s *presenceService) resolve(ctx context.Context, fact domain.AttendanceFact, local, remote *domain.PresenceRecord, now time.Time) UserPresence {
	// 未打卡/已签退：一律 Off，无论存的是什么
	if !fact.IsOpen() {
		up := UserPresence{UserID: fact.UserID, State: domain.StateOff}
		if rec := pick(local, remote); rec != nil {
			up.LastActivity = rec.LastActivity
			up.BatteryLevel = rec.BatteryLevel
			up.IsCharging = rec.IsCharging
			up.Simulated = rec.Simulated
		}
		return up
	}

	// 本地实时维护的新鲜记录：直接呈现存储状态
	// 考勤事实已确认会话打开，记录上的打卡标志不再参与判定
	// （记录可能在没有 check_in 信号的情况下被惰性创建）
	if local != nil && !simulator.ShouldSimulate(local, now, s.dashboard) {
		return UserPresence{
			UserID:       fact.UserID,
			State:        local.State,
			LastActivity: local.LastActivity,
			BatteryLevel: local.BatteryLevel,
			IsCharging:   local.IsCharging,
			IsCheckedIn:  true,
		}
	}

	// 远端存量足够新鲜：按历史阈值推导状态（没有实时信号可用）
	if remote != nil && !simulator.ShouldSimulate(remote, now, s.dashboard) {
		return UserPresence{
			UserID:       fact.UserID,
			State:        presence.DetectFromHistory(remote.LastActivity, now, s.dashboard),
			LastActivity: remote.LastActivity,
			BatteryLevel: remote.BatteryLevel,
			IsCharging:   remote.IsCharging,
			IsCheckedIn:  true,
		}
	}

	// 没有新鲜真实信号：确定性模拟，并写回存储（本地 + 远端镜像）
	simRec := s.sim.Record(fact.UserID, now)
	simulated := true
	s.store.Write(ctx, fact.UserID, domain.RecordPatch{
		State:        &simRec.State,
		LastActivity: &simRec.LastActivity,
		BatteryLevel: simRec.BatteryLevel,
		IsCharging:   simRec.IsCharging,
		IsCheckedIn:  &simRec.IsCheckedIn,
		Simulated:    &simulated,
	})

	return UserPresence{
		UserID:       fact.UserID,
		State:        simRec.State,
		LastActivity: simRec.LastActivity,
		BatteryLevel: simRec.BatteryLevel,
		IsCharging:   simRec.IsCharging,
		IsCheckedIn:  true,
		Simulated:    true,
	}
}

// todayFacts 当天考勤事实
// 考勤Repository未接入时退化为"当前跟踪的用户集合"，打卡状态取自记录本身
func (s *presenceService) todayFacts(ctx context.Context, orgID string) ([]domain.AttendanceFact, error) {
	if s.attendanceRepo != nil {
		return s.attendanceRepo.ListToday(ctx, orgID)
	}

	var facts []domain.AttendanceFact
	for _, userID := range s.store.TrackedUsers() {
		facts = append(facts, s.factFromRecord(ctx, userID))
	}
	return facts, nil
}

// todayFact 单个用户的当天考勤事实
func (s *presenceService) todayFact(ctx context.Context, userID string) (domain.AttendanceFact, error) {
	if s.attendanceRepo != nil {
		fact, err := s.attendanceRepo.GetToday(ctx, userID)
		if err != nil {
			return domain.AttendanceFact{}, err
		}
		if fact == nil {
			// 当天没有考勤：视作已签退
			closed := time.Now()
			return domain.AttendanceFact{UserID: userID, CheckOut: &closed}, nil
		}
		return *fact, nil
	}
	return s.factFromRecord(ctx, userID), nil
}

// factFromRecord 从存量记录推导考勤事实（考勤Repository缺席时的退化路径）
func (s *presenceService) factFromRecord(ctx context.Context, userID string) domain.AttendanceFact {
	fact := domain.AttendanceFact{UserID: userID}
	rec, err := s.store.Read(ctx, userID)
	if err != nil || !rec.IsCheckedIn {
		closed := time.Now()
		fact.CheckOut = &closed
	}
	return fact
}

// fetchRemote 批量读取远端存量记录（失败只记日志，返回空集）
func (s *presenceService) fetchRemote(ctx context.Context, userIDs []string) map[string]*domain.PresenceRecord {
	result := make(map[string]*domain.PresenceRecord)
	if s.presenceRepo == nil || len(userIDs) == 0 {
		return result
	}

	records, err := s.presenceRepo.ListByUsers(ctx, userIDs)
	if err != nil {
		s.logger.Warn("Failed to fetch remote presence records", zap.Error(err))
		return result
	}
	for i := range records {
		result[records[i].UserID] = &records[i]
	}
	return result
}

// pick 本地优先
func pick(local, remote *domain.PresenceRecord) *domain.PresenceRecord {
	if local != nil {
		return local
	}
	return remote
}
