package logic

// BatteryThreshold is the minimum acceptable 10-bit ADC code at the divider
// midpoint: 1024 * (2.6 V / 2 / 1.5 V) = 890.
const BatteryThreshold = 890

// PowerOK reports whether an ADC code is at or above the battery threshold.
func PowerOK(code uint16) bool {
	return code >= BatteryThreshold
}
