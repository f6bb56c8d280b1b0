package minifinder

import "trackserv/internal/position"

// alarmBits maps flag bits to alarm attribute values. Entries are
// evaluated in order and a later match overwrites an earlier one when
// several alarm bits are set at once. The order is inherited from the
// device documentation; it is kept as-is for compatibility, not
// because it encodes a deliberate priority.
var alarmBits = []struct {
	mask  uint64
	alarm string
}{
	{bit(2), position.AlarmFault},
	{bit(6), position.AlarmSOS},
	{bit(7), position.AlarmOverspeed},
	{bit(8), position.AlarmFallDown},
	{bit(9) | bit(10) | bit(11), position.AlarmGeofence},
	{bit(12), position.AlarmLowBattery},
	{bit(14) | bit(15), position.AlarmMovement},
}

// decodeFlags expands the packed status integer carried by the state
// block. Layout:
//
//	bits 0-1   fix validity (non-zero value means valid)
//	bit  1     approximate fix
//	bits 2-15  alarms, see alarmBits
//	bits 16-20 signal strength
//	bit  22    external power / charging
func decodeFlags(p *position.Position, flags uint64) {
	p.Valid = between(flags, 0, 2) > 0
	if flags&bit(1) != 0 {
		p.Set(position.KeyApproximate, position.Bool(true))
	}

	for _, ab := range alarmBits {
		if flags&ab.mask != 0 {
			p.Set(position.KeyAlarm, position.Text(ab.alarm))
		}
	}

	p.Set(position.KeyRSSI, position.Int(int(between(flags, 16, 21))))
	p.Set(position.KeyCharge, position.Bool(flags&bit(22) != 0))
}

func bit(n uint) uint64 {
	return 1 << n
}

// between extracts bits [from, to) as an unsigned value.
func between(v uint64, from, to uint) uint64 {
	return (v >> from) & (1<<(to-from) - 1)
}
