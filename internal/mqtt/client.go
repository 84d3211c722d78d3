// Package mqtt mirrors switch state to an MQTT broker and accepts switch
// commands from it.
package mqtt

import (
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultOperationTimeout bounds a single publish or subscribe.
const DefaultOperationTimeout = 5 * time.Second

// Client is the subset of broker operations the mirror needs.
type Client interface {
	Publish(topic string, retained bool, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	IsConnected() bool
	Disconnect()
}

// Config holds MQTT client configuration.
type Config struct {
	ServerURL         string
	ClientID          string
	Username          string
	Password          string
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	OperationTimeout  time.Duration
	// OnConnect runs after every successful (re)connection.
	OnConnect func()
}

// PahoClient wraps a paho client.
type PahoClient struct {
	client  paho.Client
	timeout time.Duration
	server  string
	stop    chan struct{}
	once    sync.Once
}

// NewClient creates a client and starts connecting in the background,
// retrying with exponential backoff until Disconnect is called.
func NewClient(config Config) (*PahoClient, error) {
	parsedURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServerURL, err)
	}

	switch parsedURL.Scheme {
	case "mqtt", "mqtts", "tcp", "ssl", "tls", "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidServerURL, parsedURL.Scheme)
	}

	initialDelay := config.InitialRetryDelay
	if initialDelay == 0 {
		initialDelay = time.Second
	}
	maxDelay := config.MaxRetryDelay
	if maxDelay == 0 {
		maxDelay = 30 * time.Second
	}
	timeout := config.OperationTimeout
	if timeout == 0 {
		timeout = DefaultOperationTimeout
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(config.ServerURL)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxDelay)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		log.Printf("connected to mqtt broker at %s", config.ServerURL)
		if config.OnConnect != nil {
			go config.OnConnect()
		}
	})

	c := &PahoClient{
		client:  paho.NewClient(opts),
		timeout: timeout,
		server:  config.ServerURL,
		stop:    make(chan struct{}),
	}

	go c.connect(initialDelay, maxDelay)
	return c, nil
}

func (c *PahoClient) connect(delay, maxDelay time.Duration) {
	for attempt := 1; ; attempt++ {
		token := c.client.Connect()
		token.Wait()
		if token.Error() == nil {
			select {
			case <-c.stop:
				c.client.Disconnect(250)
			default:
			}
			return
		}

		log.Printf("failed to connect to mqtt broker %s (attempt %d): %v; retrying in %s", c.server, attempt, token.Error(), delay)
		select {
		case <-c.stop:
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// Publish publishes payload at QoS 1.
func (c *PahoClient) Publish(topic string, retained bool, payload []byte) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, topic, err)
	}
	return nil
}

// Subscribe subscribes to topic at QoS 1.
func (c *PahoClient) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("%w %s: timed out", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w %s: %v", ErrSubscribeFailed, topic, err)
	}
	return nil
}

func (c *PahoClient) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect stops reconnection attempts and disconnects from the broker.
func (c *PahoClient) Disconnect() {
	c.once.Do(func() { close(c.stop) })

	if c.client.IsConnected() {
		c.client.Disconnect(250)
		log.Printf("disconnected from mqtt broker")
	}
}
