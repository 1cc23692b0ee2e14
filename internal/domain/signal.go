package domain

import "time"

// SignalKind 客户端上报的信号类型
type SignalKind string

const (
	SignalActivity   SignalKind = "activity"   // 输入活动（鼠标/键盘/滚动，客户端已节流）
	SignalVisibility SignalKind = "visibility" // 页面可见性变化
	SignalNetwork    SignalKind = "network"    // 网络在线/离线变化
	SignalBattery    SignalKind = "battery"    // 电池状态上报
	SignalCheckIn    SignalKind = "check_in"   // 考勤签到
	SignalCheckOut   SignalKind = "check_out"  // 考勤签退
)

// SignalEvent 标准化后的设备信号（MQTT/HTTP 上报统一为此格式后进入 Redis Streams）
type SignalEvent struct {
	EventID      string     `json:"event_id"`
	UserID       string     `json:"user_id"`
	DeviceID     string     `json:"device_id"`
	Kind         SignalKind `json:"kind"`
	Online       bool       `json:"online"`  // 上报时刻的网络状态
	Hidden       bool       `json:"hidden"`  // 上报时刻页面是否隐藏
	BatteryLevel *int       `json:"battery_level,omitempty"` // 0-100
	IsCharging   *bool      `json:"is_charging,omitempty"`
	ReportedAt   time.Time  `json:"reported_at"`
}

// AttendanceFact 当天考勤事实（外部输入，本服务只读）
type AttendanceFact struct {
	UserID   string     `json:"user_id"`
	CheckIn  time.Time  `json:"check_in"`
	CheckOut *time.Time `json:"check_out"` // nil 表示会话未关闭
}

// IsOpen 考勤会话是否仍然打开（已签到未签退）
func (f *AttendanceFact) IsOpen() bool {
	return f.CheckOut == nil
}
