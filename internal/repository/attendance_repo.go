package repository

import (
	"context"
	"database/sql"
	"fmt"

	"staffhub-presence/internal/domain"
)

// AttendanceRepository 当天考勤事实Repository接口（本服务只读）
//
// 考勤是决定"是否评估某个用户在线状态"的唯一输入：
// 当天没有考勤记录或已签退的用户一律呈现为 Off。
type AttendanceRepository interface {
	// ListToday 某组织当天的全部考勤记录
	ListToday(ctx context.Context, orgID string) ([]domain.AttendanceFact, error)
	// GetToday 单个用户当天的考勤记录（没有时返回 nil, nil）
	GetToday(ctx context.Context, userID string) (*domain.AttendanceFact, error)
}

// PostgresAttendanceRepository 考勤Repository实现（attendance_records 表）
type PostgresAttendanceRepository struct {
	db *sql.DB
}

// NewPostgresAttendanceRepository 创建考勤Repository
func NewPostgresAttendanceRepository(db *sql.DB) *PostgresAttendanceRepository {
	return &PostgresAttendanceRepository{db: db}
}

// 确保实现了接口
var _ AttendanceRepository = (*PostgresAttendanceRepository)(nil)

// ListToday 某组织当天的全部考勤记录
func (r *PostgresAttendanceRepository) ListToday(ctx context.Context, orgID string) ([]domain.AttendanceFact, error) {
	if orgID == "" {
		return nil, fmt.Errorf("org_id is required")
	}

	// 每个用户只取当天最近的一段考勤（中途签退再签到的用户不能出现两行）
	query := `
		SELECT DISTINCT ON (user_id)
			user_id::text,
			check_in,
			check_out
		FROM attendance_records
		WHERE org_id = $1
		  AND check_in >= CURRENT_DATE
		  AND check_in < CURRENT_DATE + INTERVAL '1 day'
		ORDER BY user_id, check_in DESC`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance records: %w", err)
	}
	defer rows.Close()

	var facts []domain.AttendanceFact
	for rows.Next() {
		var fact domain.AttendanceFact
		var checkOut sql.NullTime

		if err := rows.Scan(&fact.UserID, &fact.CheckIn, &checkOut); err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		if checkOut.Valid {
			t := checkOut.Time
			fact.CheckOut = &t
		}

		facts = append(facts, fact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance rows: %w", err)
	}

	return facts, nil
}

// GetToday 单个用户当天的考勤记录
func (r *PostgresAttendanceRepository) GetToday(ctx context.Context, userID string) (*domain.AttendanceFact, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT
			user_id::text,
			check_in,
			check_out
		FROM attendance_records
		WHERE user_id = $1
		  AND check_in >= CURRENT_DATE
		  AND check_in < CURRENT_DATE + INTERVAL '1 day'
		ORDER BY check_in DESC
		LIMIT 1`

	var fact domain.AttendanceFact
	var checkOut sql.NullTime

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&fact.UserID, &fact.CheckIn, &checkOut)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query attendance record: %w", err)
	}
	if checkOut.Valid {
		t := checkOut.Time
		fact.CheckOut = &t
	}

	return &fact, nil
}
