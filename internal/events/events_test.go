package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_JSON(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		b, err := json.Marshal(StatusMessage("Getting resource information ..."))
		require.NoError(t, err)
		assert.JSONEq(t, `{"action":"status","message":"Getting resource information ..."}`, string(b))
	})

	t.Run("error", func(t *testing.T) {
		b, err := json.Marshal(ErrorMessage("Livestream video is not supported"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"action":"error","message":"Livestream video is not supported"}`, string(b))
	})

	t.Run("media with null counts", func(t *testing.T) {
		msg := MediaMessage(Resolved{
			Media:        Media{ID: "live-decc728ead3609d9", Title: "https://cdn.example/stream.mp3", IsLive: true},
			Files:        []string{"live-decc728ead3609d9.dfpwm"},
			Continuation: &Continuation{SourceURL: "https://cdn.example/stream.mp3", MediaID: "live-decc728ead3609d9"},
		})
		b, err := json.Marshal(msg)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"action": "media",
			"id": "live-decc728ead3609d9",
			"title": "https://cdn.example/stream.mp3",
			"like_count": null,
			"view_count": null,
			"is_live": true,
			"files": ["live-decc728ead3609d9.dfpwm"],
			"continuation": {"source_url": "https://cdn.example/stream.mp3", "media_id": "live-decc728ead3609d9"}
		}`, string(b))
	})

	t.Run("media with counts and playlist", func(t *testing.T) {
		likes, views := int64(0), int64(1234)
		msg := MediaMessage(Resolved{Media: Media{
			ID: "abc", Title: "Song", LikeCount: &likes, ViewCount: &views,
			PlaylistVideos: []string{"def", "ghi"},
		}})
		b, err := json.Marshal(msg)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"action": "media", "id": "abc", "title": "Song",
			"like_count": 0, "view_count": 1234, "is_live": false,
			"playlist_videos": ["def", "ghi"]
		}`, string(b))
	})
}

func TestSinkFunc(t *testing.T) {
	var got []Message
	var s Sink = SinkFunc(func(m Message) { got = append(got, m) })
	s.Status("a")
	s.Error("b")
	s.Media(Resolved{Media: Media{ID: "c"}})

	require.Len(t, got, 3)
	assert.Equal(t, ActionStatus, got[0].Action)
	assert.Equal(t, ActionError, got[1].Action)
	assert.Equal(t, "c", got[2].ID)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Status("one")
	r.Error("two")
	r.Media(Resolved{})

	assert.Equal(t, []Action{ActionStatus, ActionError, ActionMedia}, r.Actions())
	assert.Equal(t, []string{"two"}, r.Errors())
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	s.Status("hello")
	s.Error("bad")
	require.NoError(t, s.Err())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"action":"status","message":"hello"}`, lines[0])
	assert.JSONEq(t, `{"action":"error","message":"bad"}`, lines[1])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriterSink_KeepsFirstError(t *testing.T) {
	s := NewWriterSink(failingWriter{})
	s.Status("a")
	s.Status("b")
	assert.EqualError(t, s.Err(), "closed")
}

func TestOutbox_PreservesOrder(t *testing.T) {
	o := NewOutbox()
	for i := 0; i < 100; i++ {
		o.Status(fmt.Sprintf("m%d", i))
	}
	o.Close()
	o.Status("dropped after close")

	var got []string
	err := o.Drain(context.Background(), func(m Message) error {
		got = append(got, m.Message)
		return nil
	})
	assert.ErrorIs(t, err, ErrOutboxClosed)
	require.Len(t, got, 100)
	for i, m := range got {
		assert.Equal(t, fmt.Sprintf("m%d", i), m)
	}
}

func TestOutbox_ProducersNeverBlock(t *testing.T) {
	o := NewOutbox()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			o.Status("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked with no consumer")
	}
	assert.Equal(t, 10000, o.Len())
}

func TestOutbox_ConcurrentProducersWithConsumer(t *testing.T) {
	o := NewOutbox()
	const producers, perProducer = 4, 250

	var mu sync.Mutex
	perSource := map[string][]int{}
	drained := make(chan error, 1)
	go func() {
		drained <- o.Drain(context.Background(), func(m Message) error {
			var src string
			var n int
			_, err := fmt.Sscanf(m.Message, "%s %d", &src, &n)
			if err != nil {
				return err
			}
			mu.Lock()
			perSource[src] = append(perSource[src], n)
			mu.Unlock()
			return nil
		})
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				o.Status(fmt.Sprintf("p%d %d", p, i))
			}
		}(p)
	}
	wg.Wait()
	o.Close()

	require.ErrorIs(t, <-drained, ErrOutboxClosed)
	require.Len(t, perSource, producers)
	for src, seq := range perSource {
		require.Len(t, seq, perProducer, src)
		for i, n := range seq {
			assert.Equal(t, i, n, "messages from %s out of order", src)
		}
	}
}

func TestOutbox_DrainStopsOnContextAndSendError(t *testing.T) {
	t.Run("context", func(t *testing.T) {
		o := NewOutbox()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := o.Drain(ctx, func(Message) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("send error", func(t *testing.T) {
		o := NewOutbox()
		o.Status("a")
		boom := errors.New("write failed")
		err := o.Drain(context.Background(), func(Message) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}
