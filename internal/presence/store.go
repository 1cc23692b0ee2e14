package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"staffhub-presence/internal/domain"
	"staffhub-presence/internal/store"

	"go.uber.org/zap"
)

// ErrNoRecord 表示该用户没有在线状态记录
var ErrNoRecord = errors.New("no presence record")

// RemoteMirror 远端镜像（Postgres presence_state 表）
// 写入为尽力而为：失败只记日志，不向调用方返回
type RemoteMirror interface {
	Upsert(ctx context.Context, record *domain.PresenceRecord) error
}

// Store 在线状态存储器
//
// 每个用户一条 PresenceRecord 的唯一事实来源：
// - 内存 map + 本地 KV（Redis）同步写入，严格按调用顺序更新
// - 远端镜像异步写入（fire-and-forget），不保证落库顺序——
//   快速连续更新下远端可能短暂呈现中间状态，这是已知限制，按原样保留
type Store struct {
	mu        sync.RWMutex
	records   map[string]*domain.PresenceRecord
	kv        store.KV
	keyPrefix string
	ttl       time.Duration
	mirror    RemoteMirror // 可为 nil（DB 未启用时）
	logger    *zap.Logger
}

// NewStore 创建在线状态存储器
func NewStore(kv store.KV, keyPrefix string, ttl time.Duration, mirror RemoteMirror, logger *zap.Logger) *Store {
	return &Store{
		records:   make(map[string]*domain.PresenceRecord),
		kv:        kv,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		mirror:    mirror,
		logger:    logger,
	}
}

// Write 合并写入用户记录
//
// patch 中非 nil 的字段被合并到现有记录（不存在则新建），
// timestamp 更新为当前时间，电量收敛到 [0,100]。
// 本地（内存 + KV）同步写入；远端镜像异步写入，失败只记日志。
func (s *Store) Write(ctx context.Context, userID string, patch domain.RecordPatch) *domain.PresenceRecord {
	s.mu.Lock()

	rec, ok := s.records[userID]
	if !ok {
		rec = &domain.PresenceRecord{
			UserID: userID,
			State:  domain.StateOn,
		}
		s.records[userID] = rec
	}

	if patch.State != nil && patch.State.Valid() {
		rec.State = *patch.State
	}
	if patch.LastActivity != nil {
		rec.LastActivity = *patch.LastActivity
	}
	if patch.BatteryLevel != nil {
		level := domain.ClampBattery(*patch.BatteryLevel)
		rec.BatteryLevel = &level
	}
	if patch.IsCharging != nil {
		charging := *patch.IsCharging
		rec.IsCharging = &charging
	}
	if patch.IsCheckedIn != nil {
		rec.IsCheckedIn = *patch.IsCheckedIn
	}
	if patch.Simulated != nil {
		rec.Simulated = *patch.Simulated
	}
	rec.Timestamp = time.Now()

	snapshot := *rec
	s.mu.Unlock()

	s.persistLocal(ctx, &snapshot)
	s.mirrorAsync(&snapshot)

	return &snapshot
}

// Read 读取用户记录
// 内存优先；内存没有时尝试本地 KV（损坏的 JSON 视为无记录）
func (s *Store) Read(ctx context.Context, userID string) (*domain.PresenceRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[userID]
	if ok {
		snapshot := *rec
		s.mu.RUnlock()
		return &snapshot, nil
	}
	s.mu.RUnlock()

	val, err := s.kv.Get(ctx, s.keyPrefix+userID)
	if err != nil {
		if errors.Is(err, store.ErrCacheMiss) {
			return nil, ErrNoRecord
		}
		s.logger.Warn("Failed to read presence record from KV",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, ErrNoRecord
	}

	var loaded domain.PresenceRecord
	if err := json.Unmarshal([]byte(val), &loaded); err != nil {
		// 历史版本遗留的损坏记录：当作不存在，触发重新初始化
		s.logger.Warn("Corrupt presence record in KV, treating as missing",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, ErrNoRecord
	}

	s.mu.Lock()
	if _, ok := s.records[userID]; !ok {
		cached := loaded
		s.records[userID] = &cached
	}
	s.mu.Unlock()

	return &loaded, nil
}

// ClearAll 丢弃所有本地记录（缓存批量失效，强制重新生成）
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	s.records = make(map[string]*domain.PresenceRecord)
	s.mu.Unlock()

	keys, err := s.kv.ScanKeys(ctx, s.keyPrefix+"*")
	if err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return err
	}

	s.logger.Info("Cleared all presence records", zap.Int("count", len(keys)))
	return nil
}

// TrackedUsers 返回当前内存中跟踪的所有用户（按 user_id 排序）
func (s *Store) TrackedUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.records))
	for userID := range s.records {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Snapshot 返回所有记录的副本（按 user_id 排序）
func (s *Store) Snapshot() []domain.PresenceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.PresenceRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	return records
}

// persistLocal 同步写入本地 KV
func (s *Store) persistLocal(ctx context.Context, rec *domain.PresenceRecord) {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("Failed to marshal presence record",
			zap.String("user_id", rec.UserID),
			zap.Error(err),
		)
		return
	}

	if err := s.kv.Set(ctx, s.keyPrefix+rec.UserID, string(jsonData), s.ttl); err != nil {
		s.logger.Warn("Failed to persist presence record to KV",
			zap.String("user_id", rec.UserID),
			zap.Error(err),
		)
	}
}

// mirrorAsync 异步写入远端镜像
// 不排队、不保序；失败只记日志，绝不阻塞调用方
func (s *Store) mirrorAsync(rec *domain.PresenceRecord) {
	if s.mirror == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.mirror.Upsert(ctx, rec); err != nil {
			s.logger.Warn("Failed to mirror presence record",
				zap.String("user_id", rec.UserID),
				zap.Error(err),
			)
		}
	}()
}
