package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fermlab/fermentd/internal/batch"
	"github.com/fermlab/fermentd/internal/ports"
	"github.com/fermlab/fermentd/internal/thermal"
)

type Config struct {
	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics: readings arrive on <base>/<batch>/reading, decisions go out
	// on <base>/<batch>/decision.
	BaseTopic string

	// Behavior
	QoS             byte
	RetainDecisions bool

	Username string
	Password string
}

type Controller struct {
	sink ports.SampleSink
	cfg  Config
	log  *slog.Logger

	client mqtt.Client
}

func New(sink ports.SampleSink, cfg Config, log *slog.Logger) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}
	// Normalize once so subscribe, publish and message matching all agree.
	cfg.BaseTopic = strings.Trim(cfg.BaseTopic, "/")
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "fermentd"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "fermentd"
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		sink: sink,
		cfg:  cfg,
		log:  log,
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		topic := c.topic("+", "reading")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error("mqtt subscribe failed", "topic", topic, "err", err)
		}
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	<-ctx.Done()
	c.client.Disconnect(250)
	return ctx.Err()
}

// PublishDecision implements batch.DecisionPublisher: the control loop calls
// it after every completed cycle.
func (c *Controller) PublishDecision(id string, a thermal.Action) {
	if c.client == nil {
		return
	}
	b, _ := json.Marshal(a)
	c.client.Publish(c.topic(id, "decision"), c.cfg.QoS, c.cfg.RetainDecisions, b)
}

// Reading payload format mirrors the HTTP adapter's.
type readingMsg struct {
	Temp     *float64   `json:"temp"`
	Ambient  *float64   `json:"ambient"`
	HeaterOn bool       `json:"heater_on"`
	CoolerOn *bool      `json:"cooler_on,omitempty"`
	At       *time.Time `json:"at"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/<batch>/reading
	t := msg.Topic()
	parts := strings.Split(t, "/")
	if len(parts) != 3 || parts[0] != c.cfg.BaseTopic || parts[2] != "reading" {
		return
	}
	id := parts[1]
	if id == "" {
		return
	}

	m, err := decodeStrict[readingMsg](msg.Payload())
	if err != nil || m.Temp == nil || m.Ambient == nil {
		c.log.Warn("dropping malformed reading", "topic", t, "err", err)
		return
	}
	at := time.Now().UTC()
	if m.At != nil {
		at = *m.At
	}

	err = c.sink.Record(id, batch.Reading{
		Temp:     *m.Temp,
		Ambient:  *m.Ambient,
		HeaterOn: m.HeaterOn,
		CoolerOn: m.CoolerOn,
		At:       at,
	})
	if err != nil {
		c.log.Warn("dropping reading", "batch", id, "err", err)
	}
}

func (c *Controller) topic(parts ...string) string {
	return c.cfg.BaseTopic + "/" + strings.Join(parts, "/")
}

func decodeStrict[T any](b []byte) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}
