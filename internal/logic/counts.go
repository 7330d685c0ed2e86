package logic

// Record adds a completed cycle to the counts.
func (c *Counts) Record(cycle Cycle) {
	switch cycle.Kind {
	case KindImmediate:
		c.Immediate++
	case KindDelayed:
		c.Delayed++
	}
	if !cycle.BatteryOK {
		c.BatteryLow++
	}
	c.Faults = cycle.Faults
}
