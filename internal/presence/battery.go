package presence

import "staffhub-presence/internal/domain"

// 电池能力在客户端并非处处可用（部分浏览器/桌面端不暴露电池接口）。
// 信号里缺失电池字段时退回固定默认值，而不是向上传播错误。
const (
	DefaultBatteryLevel = 75
	DefaultCharging     = false
)

// BatteryReading 一次电池读数
type BatteryReading struct {
	Level    int // 0-100
	Charging bool
}

// ResolveBattery 解析信号中的可选电池字段
// 两个字段都缺失时返回默认读数；只缺一个时缺失侧用默认值补齐
func ResolveBattery(level *int, charging *bool) BatteryReading {
	reading := BatteryReading{Level: DefaultBatteryLevel, Charging: DefaultCharging}
	if level != nil {
		reading.Level = domain.ClampBattery(*level)
	}
	if charging != nil {
		reading.Charging = *charging
	}
	return reading
}
