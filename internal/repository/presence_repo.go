package repository

import (
	"context"
	"database/sql"
	"fmt"

	"staffhub-presence/internal/domain"

	"github.com/lib/pq"
)

// PresenceRepository 在线状态远端镜像Repository接口
type PresenceRepository interface {
	// Upsert 按 user_id 落库（last write wins，每个用户一行）
	Upsert(ctx context.Context, record *domain.PresenceRecord) error
	// ListByUsers 批量读取指定用户的存量记录（面板冷启动时为模拟器提供种子数据）
	ListByUsers(ctx context.Context, userIDs []string) ([]domain.PresenceRecord, error)
}

// PostgresPresenceRepository 在线状态Repository实现（presence_state 表）
type PostgresPresenceRepository struct {
	db *sql.DB
}

// NewPostgresPresenceRepository 创建在线状态Repository
func NewPostgresPresenceRepository(db *sql.DB) *PostgresPresenceRepository {
	return &PostgresPresenceRepository{db: db}
}

// 确保实现了接口
var _ PresenceRepository = (*PostgresPresenceRepository)(nil)

// Upsert 按 user_id 落库
func (r *PostgresPresenceRepository) Upsert(ctx context.Context, record *domain.PresenceRecord) error {
	var battery sql.NullInt32
	if record.BatteryLevel != nil {
		battery = sql.NullInt32{Int32: int32(domain.ClampBattery(*record.BatteryLevel)), Valid: true}
	}
	var charging sql.NullBool
	if record.IsCharging != nil {
		charging = sql.NullBool{Bool: *record.IsCharging, Valid: true}
	}

	query := `
		INSERT INTO presence_state (user_id, state, timestamp, last_activity, battery_level, is_charging, is_checked_in, simulated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id)
		DO UPDATE SET state = EXCLUDED.state,
		              timestamp = EXCLUDED.timestamp,
		              last_activity = EXCLUDED.last_activity,
		              battery_level = EXCLUDED.battery_level,
		              is_charging = EXCLUDED.is_charging,
		              is_checked_in = EXCLUDED.is_checked_in,
		              simulated = EXCLUDED.simulated`

	_, err := r.db.ExecContext(ctx, query,
		record.UserID,
		string(record.State),
		record.Timestamp,
		record.LastActivity,
		battery,
		charging,
		record.IsCheckedIn,
		record.Simulated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert presence state: %w", err)
	}

	return nil
}

// ListByUsers 批量读取指定用户的存量记录
func (r *PostgresPresenceRepository) ListByUsers(ctx context.Context, userIDs []string) ([]domain.PresenceRecord, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT
			user_id::text,
			state,
			timestamp,
			last_activity,
			battery_level,
			is_charging,
			is_checked_in,
			simulated
		FROM presence_state
		WHERE user_id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query presence state: %w", err)
	}
	defer rows.Close()

	var records []domain.PresenceRecord
	for rows.Next() {
		var rec domain.PresenceRecord
		var state string
		var battery sql.NullInt32
		var charging sql.NullBool

		if err := rows.Scan(
			&rec.UserID,
			&state,
			&rec.Timestamp,
			&rec.LastActivity,
			&battery,
			&charging,
			&rec.IsCheckedIn,
			&rec.Simulated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan presence row: %w", err)
		}

		rec.State = domain.DeviceState(state)
		if !rec.State.Valid() {
			// 脏数据按 Off 处理，不让非法状态流出存储层
			rec.State = domain.StateOff
		}
		if battery.Valid {
			level := domain.ClampBattery(int(battery.Int32))
			rec.BatteryLevel = &level
		}
		if charging.Valid {
			c := charging.Bool
			rec.IsCharging = &c
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate presence rows: %w", err)
	}

	return records, nil
}
