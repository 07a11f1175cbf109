package clients

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFanOut(t *testing.T) {
	h := newHub()
	subs := make([]*Subscription, 5)
	for i := range subs {
		subs[i] = h.Subscribe()
	}

	n, err := h.Publish(NewFrame([]byte{0xff, 0xd8, 1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	for _, s := range subs {
		f, err := s.Recv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []byte{0xff, 0xd8, 1, 2, 3}, f.Bytes())
	}
}

func TestLateSubscriberMissesEarlierFrames(t *testing.T) {
	h := newHub()
	early := h.Subscribe()
	_, err := h.Publish(NewFrame([]byte("one")))
	require.NoError(t, err)

	late := h.Subscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = late.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = h.Publish(NewFrame([]byte("two")))
	require.NoError(t, err)
	f, err := late.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", string(f.Bytes()))

	f, err = early.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", string(f.Bytes()), "newer frame replaces the unread one")
}

func TestSlowSubscriberSeesLatestInOrder(t *testing.T) {
	h := newHub()
	s := h.Subscribe()

	var last []byte
	for i := 0; i < 10; i++ {
		_, err := h.Publish(NewFrame([]byte{byte(i)}))
		require.NoError(t, err)
		if i%3 == 0 {
			f, err := s.Recv(context.Background())
			require.NoError(t, err)
			if last != nil {
				assert.Greater(t, f.Bytes()[0], last[0])
			}
			last = f.Bytes()
		}
	}
	f, err := s.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(9), f.Bytes()[0])
}

func TestPublishWithoutSubscribers(t *testing.T) {
	h := newHub()
	_, err := h.Publish(NewFrame(nil))
	assert.ErrorIs(t, err, ErrNoSubscribers)

	s := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())
	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Subscribers())

	_, err = h.Publish(NewFrame(nil))
	assert.ErrorIs(t, err, ErrNoSubscribers)

	_, err = s.Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseDrainsPendingFrame(t *testing.T) {
	h := newHub()
	s := h.Subscribe()
	_, err := h.Publish(NewFrame([]byte("last")))
	require.NoError(t, err)

	h.Close()
	f, err := s.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "last", string(f.Bytes()))

	_, err = s.Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	_, err = h.Publish(NewFrame(nil))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = h.Subscribe().Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRecvUnblocksOnClose(t *testing.T) {
	h := newHub()
	s := h.Subscribe()

	errc := make(chan error, 1)
	go func() {
		_, err := s.Recv(context.Background())
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	h.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Close")
	}
}
