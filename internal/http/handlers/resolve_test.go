package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/youcube/internal/events"
	"github.com/jmylchreest/youcube/internal/media"
	"github.com/jmylchreest/youcube/internal/resolver"
)

func postResolve(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url+"/api/v1/resolve", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestResolveHandler(t *testing.T) {
	t.Run("returns the media message and the events before it", func(t *testing.T) {
		views := int64(42)
		fake := &fakeResolver{fn: resolveOK(&resolver.Result{
			Media:  events.Media{ID: "abc", Title: "Song", ViewCount: &views},
			Files:  []string{"abc.dfpwm"},
			Failed: []string{"abc(64x64).32vid"},
		})}
		srv := newTestServer(t, NewResolveHandler(fake))

		resp, body := postResolve(t, srv.URL, `{"url":"https://youtu.be/abc","width":64,"height":64}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var out ResolveResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, events.ActionMedia, out.Media.Action)
		require.NotNil(t, out.Media.Media)
		assert.Equal(t, "abc", out.Media.ID)
		assert.Equal(t, []string{"abc.dfpwm"}, out.Media.Files)
		assert.Equal(t, []string{"abc(64x64).32vid"}, out.Failed)
		require.Len(t, out.Events, 1)
		assert.Equal(t, resolver.MsgGettingInfo, out.Events[0].Message)

		reqs := fake.Requests()
		require.Len(t, reqs, 1)
		assert.True(t, reqs[0].IsVideo())
		assert.Equal(t, media.Dimensions{Width: 64, Height: 64}, reqs[0].Dimensions())
	})

	t.Run("rejections are unprocessable", func(t *testing.T) {
		fake := &fakeResolver{fn: func(_ context.Context, _ media.Request, _ events.Sink) (*resolver.Result, error) {
			return nil, &resolver.RejectError{Message: resolver.MsgLiveVideoUnsupported}
		}}
		srv := newTestServer(t, NewResolveHandler(fake))

		resp, body := postResolve(t, srv.URL, `{"url":"https://cdn.example/a.mp3","width":64,"height":64}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, string(body), resolver.MsgLiveVideoUnsupported)
	})

	t.Run("extraction failures are bad gateway", func(t *testing.T) {
		fake := &fakeResolver{fn: func(_ context.Context, _ media.Request, _ events.Sink) (*resolver.Result, error) {
			return nil, errors.New("yt-dlp exploded")
		}}
		srv := newTestServer(t, NewResolveHandler(fake))

		resp, body := postResolve(t, srv.URL, `{"url":"x"}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Contains(t, string(body), resolver.MsgResolveFailed)
	})

	t.Run("empty url fails validation", func(t *testing.T) {
		fake := &fakeResolver{fn: resolveOK(&resolver.Result{})}
		srv := newTestServer(t, NewResolveHandler(fake))

		resp, _ := postResolve(t, srv.URL, `{"url":""}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Empty(t, fake.Requests())
	})
}
