// Package mqtt is the live-update channel: it subscribes to the display's
// command topic on the controller's broker and publishes playback status back.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	quiesceMillis  = 250
)

var ErrNotConnected = errors.New("mqtt: not connected")

func CommandsTopic(displayID string) string { return fmt.Sprintf("tv/%s/commands", displayID) }

func StatusTopic(displayID string) string { return fmt.Sprintf("tv/%s/status", displayID) }

// Client opens one broker connection per Subscribe call. Reconnects are left
// to the caller, which resyncs after each one.
type Client struct {
	brokerURL string
	username  string
	password  string
	logger    zerolog.Logger

	mu   sync.Mutex
	conn paho.Client
}

func NewClient(brokerURL, username, password string) *Client {
	return &Client{
		brokerURL: brokerURL,
		username:  username,
		password:  password,
		logger:    log.With().Str("component", "mqtt").Str("broker", brokerURL).Logger(),
	}
}

// Subscribe connects and subscribes to the display's command topic. The
// returned stream starts with a synthetic "connected" event and is closed when
// the connection is lost or ctx ends.
func (c *Client) Subscribe(ctx context.Context, displayID string) (<-chan model.Event, error) {
	s := &subscription{events: make(chan model.Event, 16), doneCh: make(chan struct{})}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.brokerURL)
	opts.SetClientID(fmt.Sprintf("medusa-player-%s-%s", displayID, uuid.NewString()))
	opts.SetUsername(c.username)
	opts.SetPassword(c.password)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.logger.Warn().Err(err).Msg("connection lost")
		s.close()
	})

	conn := paho.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(connectTimeout) {
		conn.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: timed out", c.brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.brokerURL, err)
	}

	topic := CommandsTopic(displayID)
	s.push(model.Event{Type: model.EventConnected, ReceivedAt: time.Now()})

	token = conn.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		ev, err := DecodeEvent(msg.Payload())
		if err != nil {
			c.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping malformed message")
			return
		}
		ev.ReceivedAt = time.Now()
		if !s.push(ev) {
			c.logger.Warn().Str("event", string(ev.Type)).Msg("event buffer full, dropping")
		}
	})
	if token.WaitTimeout(connectTimeout) && token.Error() == nil {
		c.logger.Info().Str("topic", topic).Msg("subscribed")
	} else {
		err := token.Error()
		if err == nil {
			err = errors.New("timed out")
		}
		conn.Disconnect(quiesceMillis)
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done():
		}
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Disconnect(quiesceMillis)
		s.close()
	}()

	return s.events, nil
}

// PublishStatus reports what the display is showing on the status topic.
func (c *Client) PublishStatus(ctx context.Context, status model.PlaybackStatus) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	token := conn.Publish(StatusTopic(status.DisplayID), qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops the current connection, if any.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Disconnect(quiesceMillis)
	}
}

// subscription guards the event stream so paho callbacks racing a disconnect
// never send on a closed channel.
type subscription struct {
	mu     sync.Mutex
	closed bool
	events chan model.Event
	doneCh chan struct{}
}

func (s *subscription) done() <-chan struct{} { return s.doneCh }

func (s *subscription) push(ev model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
	close(s.doneCh)
}
