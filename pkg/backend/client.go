// Package backend talks to the TruckMitr REST API. The backend owns every
// business decision; this client only moves JSON and surfaces its message.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"truckmitr/pkg/logger"
	"truckmitr/pkg/metrics"
)

// HeaderSkipGlobalLogout suppresses the unauthorized hook for one request.
const HeaderSkipGlobalLogout = "X-Skip-Global-Logout"

type Call struct {
	Method           string
	Path             string
	Token            string
	Body             any
	PathParams       map[string]string
	Query            map[string]string
	File             *File
	Out              any
	SkipGlobalLogout bool
}

// File is sent as a multipart upload instead of a JSON body.
type File struct {
	Param  string
	Name   string
	Reader io.Reader
}

type API interface {
	Do(ctx context.Context, call Call) error
}

type Client struct {
	http *resty.Client
	log  logger.ILogger

	mu             sync.RWMutex
	onUnauthorized func(ctx context.Context)
}

func New(baseURL string, timeout time.Duration, retries int, log logger.ILogger) *Client {
	c := &Client{log: log}
	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetHeader("Accept", "application/json")
	c.http.OnAfterResponse(c.afterResponse)
	return c
}

// OnUnauthorized registers the global logout handler run on any 401.
func (c *Client) OnUnauthorized(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) afterResponse(_ *resty.Client, resp *resty.Response) error {
	if resp.StatusCode() != http.StatusUnauthorized {
		return nil
	}
	if resp.Request.Header.Get(HeaderSkipGlobalLogout) == "true" {
		return nil
	}
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn(resp.Request.Context())
	}
	return nil
}

func (c *Client) Do(ctx context.Context, call Call) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
	if call.Token != "" {
		req.SetAuthToken(call.Token)
	}
	if call.SkipGlobalLogout {
		req.SetHeader(HeaderSkipGlobalLogout, "true")
	}
	if call.Body != nil {
		req.SetBody(call.Body)
	}
	if call.File != nil {
		req.SetFileReader(call.File.Param, call.File.Name, call.File.Reader)
	}
	if len(call.PathParams) > 0 {
		req.SetPathParams(call.PathParams)
	}
	if len(call.Query) > 0 {
		req.SetQueryParams(call.Query)
	}

	resp, err := req.Execute(call.Method, call.Path)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(call.Method, "error").Inc()
		c.log.Error("backend request failed",
			logger.String("method", call.Method),
			logger.String("path", call.Path),
			logger.Error(err),
		)
		return fmt.Errorf("backend %s %s: %w", call.Method, call.Path, err)
	}
	metrics.BackendRequests.WithLabelValues(call.Method, strconv.Itoa(resp.StatusCode())).Inc()

	body := resp.Body()
	if !resp.IsSuccess() {
		apiErr := newAPIError(resp.StatusCode(), body)
		c.log.Warning("backend returned error",
			logger.String("path", call.Path),
			logger.Int("status", resp.StatusCode()),
			logger.String("message", apiErr.Message),
		)
		return apiErr
	}

	var env envelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil && env.Success != nil && !*env.Success {
		return newAPIError(resp.StatusCode(), body)
	}

	if call.Out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, call.Out); err != nil {
			return fmt.Errorf("decode %s response: %w", call.Path, err)
		}
	}
	return nil
}

type ownerKey struct{}

// WithOwner tags ctx with the chat whose token is being used, so the
// unauthorized hook knows whom to log out.
func WithOwner(ctx context.Context, ownerID int64) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

func OwnerFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ownerKey{}).(int64)
	return id, ok
}
