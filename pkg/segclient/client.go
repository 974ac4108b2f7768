package segclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adda-Baaj/frameseg/pkg/httpclient"
)

const (
	// EnvDevelopment selects the proxied base URL.
	EnvDevelopment = "development"

	// DevelopmentBaseURL is proxied to the backend by the surrounding dev server.
	DevelopmentBaseURL = "/api"
	// DefaultBaseURL is used for every environment other than development.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout applies to every request issued by a Client.
	DefaultTimeout = 30000 * time.Millisecond
)

// Backend endpoint paths, relative to the base URL.
const (
	PathScanFolder    = "/scan_folder"
	PathFrameImage    = "/frame_image"
	PathSegmentFrame  = "/segment_frame"
	PathSegmentFrames = "/segment_frames"
	PathAnalyzeVideo  = "/analyze_video"
	PathAnalyzeImage  = "/analyze_image"
	PathTaskStatus    = "/task_status/"
)

// BaseURLFor returns the backend base URL for the given environment indicator.
func BaseURLFor(env string) string {
	if env == EnvDevelopment {
		return DevelopmentBaseURL
	}
	return DefaultBaseURL
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	// Env is the environment indicator used when BaseURL is empty.
	Env string
	// BaseURL overrides the environment-derived base URL.
	BaseURL string
	Timeout time.Duration
	// HTTP replaces the default resty transport, mostly for tests.
	HTTP   httpclient.Client
	Logger httpclient.Logger
}

// Client is the backend facade. It holds no mutable state and is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    httpclient.Client
}

// New builds a Client from opts.
func New(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = BaseURLFor(opts.Env)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := opts.HTTP
	if transport == nil {
		transport = httpclient.NewRestyClient(timeout, httpclient.WithLogger(opts.Logger))
	}
	return &Client{baseURL: base, http: transport}
}

// BaseURL returns the base URL every endpoint is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// ScanFolder asks the backend to scan folderPath for frame images.
func (c *Client) ScanFolder(ctx context.Context, folderPath string) (json.RawMessage, error) {
	return c.post(ctx, PathScanFolder, map[string]string{"folder_path": folderPath})
}

// FrameImageURL builds the URL of a single frame image, suitable as an image
// source. It performs no I/O.
func (c *Client) FrameImageURL(folderPath, filename string) string {
	return c.baseURL + PathFrameImage +
		"?folder_path=" + encodeComponent(folderPath) +
		"&filename=" + encodeComponent(filename)
}

// SegmentFrame submits a single-frame segmentation task. data is sent as is.
func (c *Client) SegmentFrame(ctx context.Context, data any) (json.RawMessage, error) {
	return c.post(ctx, PathSegmentFrame, data)
}

// SegmentFrames submits a multi-frame segmentation task. data is sent as is.
func (c *Client) SegmentFrames(ctx context.Context, data any) (json.RawMessage, error) {
	return c.post(ctx, PathSegmentFrames, data)
}

// AnalyzeVideo submits a video analysis task. data is sent as is.
func (c *Client) AnalyzeVideo(ctx context.Context, data any) (json.RawMessage, error) {
	return c.post(ctx, PathAnalyzeVideo, data)
}

// AnalyzeImage submits an image analysis task. data is sent as is.
func (c *Client) AnalyzeImage(ctx context.Context, data any) (json.RawMessage, error) {
	return c.post(ctx, PathAnalyzeImage, data)
}

// TaskStatus fetches the current status of a backend task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (json.RawMessage, error) {
	u := c.baseURL + PathTaskStatus + url.PathEscape(taskID)
	resp, err := c.http.Get(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	if err := httpclient.CheckStatus(http.MethodGet, u, resp); err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body()), nil
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	u := c.baseURL + path
	resp, err := c.http.Post(ctx, u, body, nil)
	if err != nil {
		return nil, err
	}
	if err := httpclient.CheckStatus(http.MethodPost, u, resp); err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body()), nil
}

// encodeComponent escapes s like encodeURIComponent: spaces become %20, not +.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
