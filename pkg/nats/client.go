package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/angelmondragon/chronicle/pkg/config"
	"github.com/angelmondragon/chronicle/pkg/logger"
)

// MsgIDHeader lets JetStream streams drop duplicate deliveries of one event.
const MsgIDHeader = natsgo.MsgIdHdr

var errURLRequired = errors.New("nats url is required")

type conn interface {
	PublishMsg(*natsgo.Msg) error
	FlushTimeout(time.Duration) error
	IsConnected() bool
	Drain() error
}

// Client publishes ledger events to NATS subjects.
type Client struct {
	conn         conn
	flushTimeout time.Duration
}

// NewClient dials the configured NATS server.
func NewClient(ctx context.Context, cfg config.NATSConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errURLRequired
	}

	opts := []natsgo.Option{
		natsgo.Name(cfg.ClientName),
		natsgo.MaxReconnects(-1),
	}
	if logg != nil {
		opts = append(opts,
			natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
				if err != nil {
					logg.Warn(ctx, "nats disconnected: "+err.Error())
				}
			}),
			natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
				logg.Info(logg.WithField(ctx, "nats_url", nc.ConnectedUrlRedacted()), "nats reconnected")
			}),
		)
	}

	nc, err := natsgo.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "nats_url", nc.ConnectedUrlRedacted()), "nats client initialized")
	}

	return newWithConn(nc, cfg.FlushTimeout), nil
}

func newWithConn(c conn, flushTimeout time.Duration) *Client {
	if flushTimeout <= 0 {
		flushTimeout = 5 * time.Second
	}
	return &Client{conn: c, flushTimeout: flushTimeout}
}

// Publish sends data on subject and waits for the server to acknowledge the
// flush, so a nil error means the message left this process.
func (c *Client) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	if c == nil || c.conn == nil {
		return errors.New("nats client not initialized")
	}
	if strings.TrimSpace(subject) == "" {
		return errors.New("subject is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := natsgo.NewMsg(subject)
	msg.Data = data
	for key, value := range headers {
		msg.Header.Set(key, value)
	}
	if err := c.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	timeout := c.flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := c.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

// Ping reports whether the connection is currently established.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.conn == nil || !c.conn.IsConnected() {
		return natsgo.ErrConnectionClosed
	}
	return nil
}

// Close drains in-flight messages before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}
