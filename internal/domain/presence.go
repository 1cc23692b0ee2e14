package domain

import "time"

// DeviceState 设备在线状态
type DeviceState string

const (
	StateOn    DeviceState = "On"    // 在线（有活动信号）
	StateSleep DeviceState = "Sleep" // 离开（无活动但会话仍在）
	StateOff   DeviceState = "Off"   // 离线（断网/超时/已下班）
)

// Valid 检查状态值是否合法
func (s DeviceState) Valid() bool {
	switch s {
	case StateOn, StateSleep, StateOff:
		return true
	}
	return false
}

// PresenceRecord 员工在线状态记录（对应 presence_state 表，每个用户一行）
type PresenceRecord struct {
	UserID       string      `json:"user_id"`
	State        DeviceState `json:"state"`
	Timestamp    time.Time   `json:"timestamp"`     // 本条记录最后写入时间
	LastActivity time.Time   `json:"last_activity"` // 最后一次真实活动信号时间
	BatteryLevel *int        `json:"battery_level,omitempty"` // 0-100，未知时为 nil
	IsCharging   *bool       `json:"is_charging,omitempty"`
	IsCheckedIn  bool        `json:"is_checked_in"` // 当天是否有未关闭的考勤会话（外部事实）
	Simulated    bool        `json:"simulated"`     // true 表示由模拟器合成，非真实信号
}

// RecordPatch PresenceRecord 的部分更新
// nil 字段表示该字段不更新
type RecordPatch struct {
	State        *DeviceState
	LastActivity *time.Time
	BatteryLevel *int
	IsCharging   *bool
	IsCheckedIn  *bool
	Simulated    *bool
}

// EffectiveState 对外呈现的状态
// 未打卡的用户一律呈现为 Off，无论存储的 state 是什么
func (r *PresenceRecord) EffectiveState() DeviceState {
	if !r.IsCheckedIn {
		return StateOff
	}
	return r.State
}

// ClampBattery 将电量百分比收敛到 [0,100]
func ClampBattery(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
