package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chronicle/pkg/config"
)

type fakeConn struct {
	published  []*natsgo.Msg
	publishErr error
	flushErr   error
	lastFlush  time.Duration
	connected  bool
	drained    bool
}

func (f *fakeConn) PublishMsg(msg *natsgo.Msg) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeConn) FlushTimeout(d time.Duration) error {
	f.lastFlush = d
	return f.flushErr
}

func (f *fakeConn) IsConnected() bool { return f.connected }

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestPublishSetsHeadersAndFlushes(t *testing.T) {
	fc := &fakeConn{connected: true}
	client := newWithConn(fc, 2*time.Second)

	err := client.Publish(context.Background(), "chronicle.xp.xp_spend_requested", []byte(`{"cost":4}`), map[string]string{
		MsgIDHeader:  "evt-1",
		"event_type": "xp_spend_requested",
	})
	require.NoError(t, err)
	require.Len(t, fc.published, 1)

	msg := fc.published[0]
	require.Equal(t, "chronicle.xp.xp_spend_requested", msg.Subject)
	require.Equal(t, `{"cost":4}`, string(msg.Data))
	require.Equal(t, "evt-1", msg.Header.Get(MsgIDHeader))
	require.Equal(t, "xp_spend_requested", msg.Header.Get("event_type"))
	require.Equal(t, 2*time.Second, fc.lastFlush)
}

func TestPublishUsesContextDeadlineForFlush(t *testing.T) {
	fc := &fakeConn{connected: true}
	client := newWithConn(fc, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, client.Publish(ctx, "chronicle.xp.a", nil, nil))
	require.LessOrEqual(t, fc.lastFlush, time.Second)
}

func TestPublishErrors(t *testing.T) {
	client := newWithConn(&fakeConn{publishErr: errors.New("closed")}, 0)
	require.Error(t, client.Publish(context.Background(), "chronicle.xp.a", nil, nil))

	client = newWithConn(&fakeConn{flushErr: natsgo.ErrTimeout}, 0)
	require.ErrorIs(t, client.Publish(context.Background(), "chronicle.xp.a", nil, nil), natsgo.ErrTimeout)

	require.Error(t, client.Publish(context.Background(), " ", nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, client.Publish(ctx, "chronicle.xp.a", nil, nil), context.Canceled)
}

func TestPingAndClose(t *testing.T) {
	fc := &fakeConn{connected: false}
	client := newWithConn(fc, 0)
	require.ErrorIs(t, client.Ping(context.Background()), natsgo.ErrConnectionClosed)

	fc.connected = true
	require.NoError(t, client.Ping(context.Background()))

	require.NoError(t, client.Close())
	require.True(t, fc.drained)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(context.Background(), config.NATSConfig{URL: " "}, nil)
	require.ErrorIs(t, err, errURLRequired)
}
