// Package mqtt publishes pipeline activity to an MQTT broker so the
// service appears as a Home Assistant device. It announces sensor
// entities through HA MQTT discovery, pushes periodic state (daily
// action counters, last action, tool endpoint status) and forwards
// every completed action as a JSON event message.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes retained discovery config payloads for
// each sensor entity and a birth message ("online") to the
// availability topic. A will message ensures the availability topic
// transitions to "offline" on unexpected disconnects.
//
// When a command handler is installed the publisher also subscribes to
// the command topic. Each message there is action JSON; the handler's
// reply is published to the result topic. Inbound commands are rate
// limited.
package mqtt
