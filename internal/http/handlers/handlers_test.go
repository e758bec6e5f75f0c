package handlers

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/youcube/internal/events"
	"github.com/jmylchreest/youcube/internal/media"
	"github.com/jmylchreest/youcube/internal/resolver"
)

// fakeResolver stands in for the resolver. Like the real one, it is expected to
// emit the terminal event to sink itself.
type fakeResolver struct {
	mu       sync.Mutex
	requests []media.Request
	fn       func(ctx context.Context, req media.Request, sink events.Sink) (*resolver.Result, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, req media.Request, sink events.Sink) (*resolver.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.fn(ctx, req, sink)
}

func (f *fakeResolver) Requests() []media.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]media.Request(nil), f.requests...)
}

// resolveOK emits one status and then the given result.
func resolveOK(res *resolver.Result) func(context.Context, media.Request, events.Sink) (*resolver.Result, error) {
	return func(_ context.Context, _ media.Request, sink events.Sink) (*resolver.Result, error) {
		sink.Status(resolver.MsgGettingInfo)
		sink.Media(res.Resolved())
		return res, nil
	}
}

// newTestServer mounts handlers on a fresh router the way the server does.
func newTestServer(t *testing.T, handlers ...any) *httptest.Server {
	t.Helper()
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("youcube test", "test"))
	for _, h := range handlers {
		if r, ok := h.(interface{ Register(huma.API) }); ok {
			r.Register(api)
		}
		if r, ok := h.(interface{ RegisterChiRoutes(chi.Router) }); ok {
			r.RegisterChiRoutes(router)
		}
	}
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}
