package mqtt

import "github.com/nugget/lifeops/internal/buildinfo"

// DeviceInfo is the Home Assistant device block. Every discovery
// payload carries the same block, keyed by the instance ID, so the
// sensors group under one device.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version"`
}

// NewDeviceInfo builds the device block for an instance.
func NewDeviceInfo(instanceID, deviceName string) DeviceInfo {
	return DeviceInfo{
		Identifiers:  []string{instanceID},
		Name:         deviceName,
		Manufacturer: "LifeOps",
		Model:        "Action Pipeline",
		SWVersion:    buildinfo.Version,
	}
}

// SensorConfig is an HA MQTT sensor discovery payload.
type SensorConfig struct {
	Name                string     `json:"name"`
	UniqueID            string     `json:"unique_id"`
	StateTopic          string     `json:"state_topic"`
	AvailabilityTopic   string     `json:"availability_topic"`
	JsonAttributesTopic string     `json:"json_attributes_topic,omitempty"`
	Device              DeviceInfo `json:"device"`
	Icon                string     `json:"icon,omitempty"`
	UnitOfMeasurement   string     `json:"unit_of_measurement,omitempty"`
	StateClass          string     `json:"state_class,omitempty"`
	EntityCategory      string     `json:"entity_category,omitempty"`
}

// sensorKind groups how HA should treat a sensor.
type sensorKind int

const (
	plainSensor      sensorKind = iota
	diagnosticSensor            // shown under the device's diagnostics
	actionCounter               // daily total, resets at local midnight
)

// sensorSpec describes one published entity.
type sensorSpec struct {
	entity     string
	name       string
	icon       string
	kind       sensorKind
	attributes bool // publishes a JSON attributes topic
}

// sensors lists every entity, in discovery order. Entity names double
// as the state topic suffix.
var sensors = []sensorSpec{
	{entity: "uptime", name: "Uptime", icon: "mdi:clock-outline", kind: diagnosticSensor},
	{entity: "version", name: "Version", icon: "mdi:tag", kind: diagnosticSensor},
	{entity: "default_model", name: "Default Model", icon: "mdi:brain", kind: diagnosticSensor},
	{entity: "tool_status", name: "Tool Endpoint", icon: "mdi:lan-connect", kind: diagnosticSensor},
	{entity: "actions_today", name: "Actions Today", icon: "mdi:counter", kind: actionCounter, attributes: true},
	{entity: "failures_today", name: "Failed Actions Today", icon: "mdi:alert-circle-outline", kind: actionCounter},
	{entity: "last_action", name: "Last Action", icon: "mdi:clock-check"},
}

func (s sensorSpec) apply(c *SensorConfig) {
	switch s.kind {
	case diagnosticSensor:
		c.EntityCategory = "diagnostic"
	case actionCounter:
		c.StateClass = "total_increasing"
		c.UnitOfMeasurement = "actions"
	}
}
