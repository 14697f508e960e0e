package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nugget/lifeops/internal/config"
	"github.com/nugget/lifeops/internal/events"
)

type fakeStats struct{}

func (fakeStats) Uptime() time.Duration { return 90*time.Minute + 1500*time.Millisecond }
func (fakeStats) Version() string       { return "1.2.3" }
func (fakeStats) DefaultModel() string  { return "qwen3:4b" }
func (fakeStats) ToolStatus() string    { return "connected" }

func testPublisher() *Publisher {
	cfg := config.MQTTConfig{
		Broker:          "mqtt://localhost:1883",
		DeviceName:      "lifeops-home",
		DiscoveryPrefix: "homeassistant",
	}
	return New(cfg, "instance-123", NewDailyActions(time.UTC), fakeStats{}, nil)
}

func TestLoadOrCreateInstanceID(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	first, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateInstanceID() error = %v", err)
	}
	if parts := strings.Split(first, "-"); len(parts) != 5 {
		t.Errorf("id %q does not look like a UUID", first)
	}

	data, err := os.ReadFile(filepath.Join(dir, "instance_id"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != first {
		t.Errorf("file content = %q, want %q", got, first)
	}

	second, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if second != first {
		t.Errorf("second = %q, want %q (should be stable)", second, first)
	}
}

func TestNewDeviceInfo(t *testing.T) {
	info := NewDeviceInfo("test-instance-id", "test-device")
	if info.Name != "test-device" {
		t.Errorf("Name = %q, want %q", info.Name, "test-device")
	}
	if len(info.Identifiers) != 1 || info.Identifiers[0] != "test-instance-id" {
		t.Errorf("Identifiers = %v, want [test-instance-id]", info.Identifiers)
	}
	if info.Manufacturer != "LifeOps" {
		t.Errorf("Manufacturer = %q", info.Manufacturer)
	}
}

func TestPublisher_TopicPaths(t *testing.T) {
	p := testPublisher()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"baseTopic", p.baseTopic(), "lifeops/lifeops-home"},
		{"availabilityTopic", p.availabilityTopic(), "lifeops/lifeops-home/availability"},
		{"stateTopic", p.stateTopic("actions_today"), "lifeops/lifeops-home/actions_today/state"},
		{"attributesTopic", p.attributesTopic("actions_today"), "lifeops/lifeops-home/actions_today/attributes"},
		{"eventsTopic", p.eventsTopic(), "lifeops/lifeops-home/events"},
		{"commandTopic", p.commandTopic(), "lifeops/lifeops-home/command"},
		{"resultTopic", p.resultTopic(), "lifeops/lifeops-home/result"},
		{"discoveryTopic", p.discoveryTopic("sensor", "uptime"), "homeassistant/sensor/lifeops-home/uptime/config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublisher_SensorDefinitions(t *testing.T) {
	p := testPublisher()
	defs := p.sensorDefinitions()

	seen := make(map[string]bool)
	for _, d := range defs {
		if seen[d.config.UniqueID] {
			t.Errorf("duplicate unique_id %q", d.config.UniqueID)
		}
		seen[d.config.UniqueID] = true

		if d.config.UniqueID != "instance-123_"+d.entitySuffix {
			t.Errorf("%s unique_id = %q", d.entitySuffix, d.config.UniqueID)
		}
		if d.config.StateTopic != p.stateTopic(d.entitySuffix) {
			t.Errorf("%s state_topic = %q", d.entitySuffix, d.config.StateTopic)
		}
		if d.config.AvailabilityTopic != p.availabilityTopic() {
			t.Errorf("%s availability_topic = %q", d.entitySuffix, d.config.AvailabilityTopic)
		}

		payload, err := json.Marshal(d.config)
		if err != nil {
			t.Fatalf("marshal %s: %v", d.entitySuffix, err)
		}
		if !strings.Contains(string(payload), `"device":{"identifiers":["instance-123"]`) {
			t.Errorf("%s payload missing device block: %s", d.entitySuffix, payload)
		}
	}
	for _, want := range []string{"actions_today", "failures_today", "last_action", "tool_status"} {
		if !seen["instance-123_"+want] {
			t.Errorf("missing sensor %s", want)
		}
	}
}

func TestPublisher_SensorKinds(t *testing.T) {
	p := testPublisher()
	byEntity := make(map[string]SensorConfig)
	for _, d := range p.sensorDefinitions() {
		byEntity[d.entitySuffix] = d.config
	}

	tests := []struct {
		entity     string
		category   string
		stateClass string
		attributes bool
	}{
		{entity: "tool_status", category: "diagnostic"},
		{entity: "version", category: "diagnostic"},
		{entity: "actions_today", stateClass: "total_increasing", attributes: true},
		{entity: "failures_today", stateClass: "total_increasing"},
		{entity: "last_action"},
	}
	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			c, ok := byEntity[tt.entity]
			if !ok {
				t.Fatalf("no sensor %s", tt.entity)
			}
			if c.EntityCategory != tt.category {
				t.Errorf("entity_category = %q, want %q", c.EntityCategory, tt.category)
			}
			if c.StateClass != tt.stateClass {
				t.Errorf("state_class = %q, want %q", c.StateClass, tt.stateClass)
			}
			if got := c.JsonAttributesTopic != ""; got != tt.attributes {
				t.Errorf("attributes topic = %q, want present=%v", c.JsonAttributesTopic, tt.attributes)
			}
		})
	}
}

func TestPublisher_States(t *testing.T) {
	p := testPublisher()

	states, _ := p.states()
	if states["last_action"] != "never" {
		t.Errorf("last_action = %q, want never", states["last_action"])
	}
	if states["uptime"] != "1h30m1s" {
		t.Errorf("uptime = %q, want 1h30m1s", states["uptime"])
	}
	if states["tool_status"] != "connected" {
		t.Errorf("tool_status = %q", states["tool_status"])
	}

	p.observe(context.Background(), events.Event{
		Kind: events.KindActionComplete,
		Data: map[string]any{"action": "createTask", "outcome": events.OutcomeFailure},
	})
	p.observe(context.Background(), events.Event{
		Kind: events.KindToolCall,
		Data: map[string]any{"action": "createTask"},
	})

	states, counts := p.states()
	if states["actions_today"] != "1" || states["failures_today"] != "1" {
		t.Errorf("counters = %s/%s, want 1/1", states["actions_today"], states["failures_today"])
	}
	if states["last_action"] == "never" {
		t.Error("last_action should be a timestamp after an action")
	}
	if counts.ByAction["createTask"] != 1 {
		t.Errorf("ByAction = %v", counts.ByAction)
	}
}

func TestPublisher_WatchStopsOnCancel(t *testing.T) {
	p := testPublisher()
	bus := events.New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Watch(ctx, bus)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for bus.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	bus.Emit(events.SourceExecutor, events.KindActionComplete, map[string]any{
		"action": "logNote", "outcome": events.OutcomeSuccess,
	})

	deadline = time.Now().Add(time.Second)
	for p.counters.Snapshot().Total == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := p.counters.Snapshot().Total; got != 1 {
		t.Errorf("Total = %d, want 1", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	if bus.SubscriberCount() != 0 {
		t.Error("Watch should unsubscribe on return")
	}
}

func TestMQTTConfig_Configured(t *testing.T) {
	if (config.MQTTConfig{}).Configured() {
		t.Error("empty config should not be configured")
	}
	if !(config.MQTTConfig{Broker: "mqtt://h:1883"}).Configured() {
		t.Error("broker should mark config as configured")
	}
}

func TestPublisher_AwaitConnectionBeforeStart(t *testing.T) {
	p := testPublisher()
	if err := p.AwaitConnection(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("AwaitConnection = %v, want ErrNotStarted", err)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start = %v", err)
	}
}
