package comms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Tbala-06/GIQ-2025/internal/config"
	"github.com/Tbala-06/GIQ-2025/internal/mission"
	"github.com/Tbala-06/GIQ-2025/internal/telemetry"
)

// publishTimeout bounds waiting for broker acknowledgement of one message.
const publishTimeout = 5 * time.Second

// Handlers are the inbound message callbacks. They are invoked on paho's
// router goroutine and must hand work off instead of blocking.
type Handlers struct {
	// OnDeploy receives each validated deployment order.
	OnDeploy func(order mission.Order)

	// OnEmergency receives remote emergency-stop commands with a reason.
	OnEmergency func(reason string)
}

// Client is the MQTT dispatch-front client. It satisfies
// telemetry.Publisher, so the reporter can publish straight through it.
type Client struct {
	cfg      config.MQTTConfig
	handlers Handlers
	logger   *slog.Logger
	mqtt     mqtt.Client
}

// NewClient creates a disconnected client.
func NewClient(cfg config.MQTTConfig, handlers Handlers, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		handlers: handlers,
		logger:   logger.With("component", "comms"),
	}
}

// Connect dials the broker and subscribes to the deploy and emergency-stop
// topics. Subscriptions are re-established automatically after a reconnect.
func (c *Client) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", c.cfg.Broker, c.cfg.Port)).
		SetClientID(c.cfg.ClientID).
		SetKeepAlive(c.cfg.KeepAlive).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			c.logger.Warn("broker connection lost", "error", err)
		})

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	c.mqtt = mqtt.NewClient(opts)

	token := c.mqtt.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("connecting to broker %s: timed out", c.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to broker %s: %w", c.cfg.Broker, err)
	}
	return nil
}

// Disconnect flushes in-flight messages and closes the connection.
func (c *Client) Disconnect() {
	if c.mqtt != nil && c.mqtt.IsConnected() {
		c.mqtt.Disconnect(250)
		c.logger.Info("broker disconnected")
	}
}

func (c *Client) onConnect(client mqtt.Client) {
	c.logger.Info("broker connected", "broker", c.cfg.Broker)

	if token := client.Subscribe(c.cfg.TopicDeploy, c.cfg.QoS, c.handleDeploy); token.Wait() && token.Error() != nil {
		c.logger.Error("subscribing to deploy topic", "topic", c.cfg.TopicDeploy, "error", token.Error())
	}
	if token := client.Subscribe(c.cfg.TopicEmergency, c.cfg.QoS, c.handleEmergency); token.Wait() && token.Error() != nil {
		c.logger.Error("subscribing to emergency topic", "topic", c.cfg.TopicEmergency, "error", token.Error())
	}
}

func (c *Client) handleDeploy(_ mqtt.Client, msg mqtt.Message) {
	order, err := ParseDeployOrder(msg.Payload())
	if err != nil {
		c.logger.Error("rejecting deploy message", "error", err)
		return
	}

	c.logger.Info("deploy order received",
		"job_id", order.JobID,
		"lat", order.Latitude,
		"lon", order.Longitude,
	)
	if c.handlers.OnDeploy != nil {
		c.handlers.OnDeploy(order)
	}
}

func (c *Client) handleEmergency(_ mqtt.Client, msg mqtt.Message) {
	reason := strings.TrimSpace(string(msg.Payload()))
	if reason == "" {
		reason = "remote emergency stop"
	}

	c.logger.Warn("emergency stop received", "reason", reason)
	if c.handlers.OnEmergency != nil {
		c.handlers.OnEmergency(reason)
	}
}

// PublishStatus implements telemetry.Publisher.
func (c *Client) PublishStatus(ctx context.Context, snap telemetry.Snapshot) error {
	payload, err := encodeStatus(snap, time.Now())
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	return c.publish(c.cfg.TopicStatus, payload)
}

// PublishCompletion implements telemetry.Publisher.
func (c *Client) PublishCompletion(ctx context.Context, comp telemetry.Completion) error {
	payload, err := encodeCompletion(comp, time.Now())
	if err != nil {
		return fmt.Errorf("encoding completion: %w", err)
	}
	return c.publish(c.cfg.TopicComplete, payload)
}

// PublishDeploy sends a deployment order, used by the deploy CLI command.
func (c *Client) PublishDeploy(ctx context.Context, order mission.Order) error {
	payload, err := json.Marshal(DeployOrder{
		JobID:     &order.JobID,
		Latitude:  &order.Latitude,
		Longitude: &order.Longitude,
	})
	if err != nil {
		return fmt.Errorf("encoding deploy order: %w", err)
	}
	return c.publish(c.cfg.TopicDeploy, payload)
}

func (c *Client) publish(topic string, payload []byte) error {
	token := c.mqtt.Publish(topic, c.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}
