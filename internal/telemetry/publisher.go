// Package telemetry publishes observatory operations events onto MQTT,
// adapting pkg/mqtt's client/message/topic conventions to the opsd domain.
// It is purely an observability side-channel: nothing in the core reads
// these events back, and a broker outage never blocks a command.
package telemetry

import (
	"time"

	opsmqtt "github.com/bigskies-observatory/opsd/pkg/mqtt"
	"go.uber.org/zap"
)

// Publisher publishes dome/telescope/schedule events to an MQTT broker.
// All Publish* methods are best-effort: a disconnected broker is logged, not
// surfaced to the caller, matching the teacher's own fire-and-forget client.
type Publisher struct {
	client *opsmqtt.Client
	logger *zap.Logger
}

// Config configures the telemetry publisher's broker connection.
type Config struct {
	BrokerURL string
	ClientID  string
}

// New constructs and connects a Publisher. Returns an error only if the
// initial connection attempt fails; callers should treat telemetry as
// optional and proceed without it rather than fail startup.
func New(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := opsmqtt.NewClient(&opsmqtt.Config{
		BrokerURL:            cfg.BrokerURL,
		ClientID:             cfg.ClientID,
		KeepAlive:            30 * time.Second,
		ConnectTimeout:       10 * time.Second,
		AutoReconnect:        true,
		MaxReconnectInterval: 2 * time.Minute,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(); err != nil {
		return nil, err
	}
	return &Publisher{client: client, logger: logger.With(zap.String("component", "telemetry"))}, nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect()
}

// PublishModeChange announces a dome or telescope mode transition.
func (p *Publisher) PublishModeChange(component, mode string) {
	msg, err := opsmqtt.NewMessage(opsmqtt.MessageTypeEvent, "opsd:"+component, opsmqtt.EventMessage{
		Event: "mode_changed",
		Data:  map[string]interface{}{"mode": mode},
	})
	if err != nil {
		p.logger.Warn("failed to build mode-change event", zap.Error(err))
		return
	}
	p.publish(opsmqtt.EventTopic(component, "mode_changed"), msg)
}

// PublishScheduleCommit announces the outcome of a schedule_observations commit.
func (p *Publisher) PublishScheduleCommit(night string, ok bool) {
	msg, err := opsmqtt.NewMessage(opsmqtt.MessageTypeEvent, "opsd:schedule", opsmqtt.EventMessage{
		Event: "schedule_committed",
		Data:  map[string]interface{}{"night": night, "ok": ok},
	})
	if err != nil {
		p.logger.Warn("failed to build schedule event", zap.Error(err))
		return
	}
	p.publish(opsmqtt.EventTopic(opsmqtt.ComponentSchedule, "schedule_committed"), msg)
}

// PublishActionStateChange announces an action's lifecycle transition within
// the telescope's queue, keyed by action name for downstream correlation.
func (p *Publisher) PublishActionStateChange(actionName, state string) {
	msg, err := opsmqtt.NewMessage(opsmqtt.MessageTypeEvent, "opsd:telescope", opsmqtt.EventMessage{
		Event: "action_state_changed",
		Data:  map[string]interface{}{"action": actionName, "state": state},
	})
	if err != nil {
		p.logger.Warn("failed to build action event", zap.Error(err))
		return
	}
	p.publish(opsmqtt.EventTopic(opsmqtt.ComponentTelescope, "action_state_changed"), msg)
}

func (p *Publisher) publish(topic string, msg *opsmqtt.Message) {
	if err := p.client.PublishJSON(topic, 0, false, msg); err != nil {
		p.logger.Warn("telemetry publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
