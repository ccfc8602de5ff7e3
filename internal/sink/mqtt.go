package sink

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/receipt-printer/internal/queue"
)

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Host     string
	Port     int
	User     string
	Pass     string
	TLS      bool
	ClientID string
	Topic    string
	QoS      byte
	// Timeout bounds connect and each publish handshake.
	Timeout time.Duration
}

// BrokerURL returns the paho broker address for o.
func (o MQTTOptions) BrokerURL() string {
	scheme := "tcp"
	if o.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, o.Host, o.Port)
}

// MQTTSink publishes jobs as JSON on a single topic.
type MQTTSink struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

// NewMQTTSink connects to the broker. An unreachable broker at startup is
// logged, not fatal: paho keeps retrying in the background and Publish
// reports ErrUnavailable until the connection is up.
func NewMQTTSink(o MQTTOptions, log *logrus.Logger) *MQTTSink {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(o.BrokerURL()).
		SetClientID(o.ClientID).
		SetKeepAlive(60 * time.Second).
		SetConnectTimeout(o.Timeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetCleanSession(true)
	if o.User != "" || o.Pass != "" {
		opts.SetUsername(o.User)
		opts.SetPassword(o.Pass)
	}
	if o.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.WithField("broker", o.BrokerURL()).Info("mqtt: connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt: connection lost")
	})

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); !tok.WaitTimeout(o.Timeout) || tok.Error() != nil {
		log.WithError(tok.Error()).WithField("broker", o.BrokerURL()).Warn("mqtt: initial connect pending")
	}
	return &MQTTSink{client: client, topic: o.Topic, qos: o.QoS, timeout: o.Timeout}
}

func (s *MQTTSink) Publish(ctx context.Context, job queue.PrintJob) error {
	body, err := marshal(job)
	if err != nil {
		return err
	}
	// with ConnectRetry paho would queue silently; refuse instead
	if !s.client.IsConnectionOpen() {
		return unavailable("mqtt publish", fmt.Errorf("not connected"))
	}
	tok := s.client.Publish(s.topic, s.qos, false, body)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return unavailable("mqtt publish", err)
		}
		return nil
	case <-ctx.Done():
		return unavailable("mqtt publish", ctx.Err())
	case <-timer.C:
		return unavailable("mqtt publish", fmt.Errorf("timed out after %s", s.timeout))
	}
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
