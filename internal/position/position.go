// Package position defines the canonical telemetry record produced by
// protocol decoders and consumed by storage and publishing sinks.
package position

import "time"

// Position is a single decoded telemetry record. Speed is kept in knots
// internally; protocol decoders convert at the wire boundary.
type Position struct {
	DeviceID int64
	Protocol string

	Time  time.Time
	Valid bool

	Latitude  float64 // decimal degrees
	Longitude float64 // decimal degrees
	Altitude  float64 // meters
	Speed     float64 // knots
	Course    float64 // degrees, [0, 360]

	Attributes Attributes
}

func New(protocol string, deviceID int64) *Position {
	return &Position{Protocol: protocol, DeviceID: deviceID}
}

// Set records an auxiliary attribute on the position.
func (p *Position) Set(key Key, v Value) {
	p.Attributes.Set(key, v)
}

// Well-known attribute keys. Decoders set only the keys their protocol
// actually reports.
type Key string

const (
	KeyType              Key = "type"
	KeyAlarm             Key = "alarm"
	KeyApproximate       Key = "approximate"
	KeyBatteryLevel      Key = "batteryLevel"
	KeyRSSI              Key = "rssi"
	KeyCharge            Key = "charge"
	KeySatellites        Key = "sat"
	KeySatellitesVisible Key = "satVisible"
	KeyHDOP              Key = "hdop"
	KeyStatus            Key = "status"
	KeyGPS               Key = "gps"
	KeyVersionFW         Key = "versionFw"
)

// Alarm attribute values.
const (
	AlarmFault      = "fault"
	AlarmSOS        = "sos"
	AlarmOverspeed  = "overspeed"
	AlarmFallDown   = "fallDown"
	AlarmGeofence   = "geofence"
	AlarmLowBattery = "lowBattery"
	AlarmMovement   = "movement"
)
