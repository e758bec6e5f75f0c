package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/youcube/internal/events"
	"github.com/jmylchreest/youcube/internal/media"
	"github.com/jmylchreest/youcube/internal/resolver"
)

// MediaResolver resolves one request, reporting progress to sink.
type MediaResolver interface {
	Resolve(ctx context.Context, req media.Request, sink events.Sink) (*resolver.Result, error)
}

// ResolveHandler runs a resolution synchronously over HTTP.
type ResolveHandler struct {
	resolver MediaResolver
}

// NewResolveHandler creates a resolve handler.
func NewResolveHandler(r MediaResolver) *ResolveHandler {
	return &ResolveHandler{resolver: r}
}

// ResolveInput is the input for a resolution.
type ResolveInput struct {
	Body struct {
		URL    string `json:"url" minLength:"1" doc:"Media URL or search term"`
		Width  *int   `json:"width,omitempty" minimum:"1" doc:"Video width; with height, selects video mode"`
		Height *int   `json:"height,omitempty" minimum:"1" doc:"Video height"`
	}
}

// ResolveOutput is the output of a resolution.
type ResolveOutput struct {
	Body ResolveResponse
}

// ResolveResponse carries the terminal media message and every event emitted on
// the way, in order.
type ResolveResponse struct {
	Media  events.Message   `json:"media"`
	Failed []string         `json:"failed,omitempty"`
	Events []events.Message `json:"events"`
}

// Register registers the resolve route with the API.
func (h *ResolveHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "resolveMedia",
		Method:      "POST",
		Path:        "/api/v1/resolve",
		Summary:     "Resolve media",
		Description: "Resolves a URL or search term into cached artifacts and waits for the result",
		Tags:        []string{"Resolve"},
		Errors:      []int{http.StatusUnprocessableEntity, http.StatusBadGateway},
	}, h.Resolve)
}

// Resolve resolves a request. Sources that cannot serve the requested mode give
// 422; extraction failures give 502.
func (h *ResolveHandler) Resolve(ctx context.Context, input *ResolveInput) (*ResolveOutput, error) {
	req := media.Request{URL: input.Body.URL, Width: input.Body.Width, Height: input.Body.Height}

	rec := &events.Recorder{}
	res, err := h.resolver.Resolve(ctx, req, rec)
	if err != nil {
		var rej *resolver.RejectError
		if errors.As(err, &rej) {
			return nil, huma.Error422UnprocessableEntity(rej.Message)
		}
		return nil, huma.NewError(http.StatusBadGateway, resolver.MsgResolveFailed, err)
	}

	msgs := rec.Messages()
	out := &ResolveOutput{Body: ResolveResponse{
		Media:  events.MediaMessage(res.Resolved()),
		Failed: res.Failed,
	}}
	// The terminal message is reported separately.
	if n := len(msgs); n > 0 && msgs[n-1].Action == events.ActionMedia {
		msgs = msgs[:n-1]
	}
	if msgs == nil {
		msgs = []events.Message{}
	}
	out.Body.Events = msgs
	return out, nil
}
