package branding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wintent/plugin-config/internal/filemanager"
)

// AttachmentsListResource is the resource action queried for the favicon.
const AttachmentsListResource = "attachments:list"

// ErrUnsupportedResource is returned by LocalClient for resources it cannot serve.
var ErrUnsupportedResource = errors.New("branding: unsupported resource")

// Request mirrors the host api client request shape.
type Request struct {
	URL    string
	Params Params
}

// Params carries the list query.
type Params struct {
	Filter   map[string]any `json:"filter,omitempty"`
	PageSize int            `json:"pageSize,omitempty"`
	Page     int            `json:"page,omitempty"`
}

// Response wraps the decoded response body.
type Response struct {
	Status int
	Data   ResponseBody
}

// ResponseBody is the list envelope; Data holds the records.
type ResponseBody struct {
	Data []AttachmentItem `json:"data"`
	Meta *ListMeta        `json:"meta,omitempty"`
}

// ListMeta is the paging block of list responses.
type ListMeta struct {
	Count    int64 `json:"count"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// AttachmentItem is the subset of attachment fields the injector reads.
type AttachmentItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// APIClient issues resource requests against the application API.
type APIClient interface {
	Request(ctx context.Context, req Request) (*Response, error)
}

// HTTPClient calls the REST API over HTTP.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// HTTPClientOption customises HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPTransport overrides the underlying client.
func WithHTTPTransport(c *http.Client) HTTPClientOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.http = c
		}
	}
}

// WithBearerToken sends token as an Authorization header.
func WithBearerToken(token string) HTTPClientOption {
	return func(h *HTTPClient) {
		h.token = strings.TrimSpace(token)
	}
}

// NewHTTPClient returns a client rooted at baseURL, e.g. "http://localhost:8000".
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("branding: base url is required")
	}
	c := &HTTPClient{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request performs GET {base}/api/{req.URL} with the params encoded as query values.
func (c *HTTPClient) Request(ctx context.Context, req Request) (*Response, error) {
	resource := strings.TrimLeft(strings.TrimSpace(req.URL), "/")
	if resource == "" {
		return nil, errors.New("branding: request url is required")
	}

	query := url.Values{}
	if len(req.Params.Filter) > 0 {
		filter, err := json.Marshal(req.Params.Filter)
		if err != nil {
			return nil, fmt.Errorf("branding: encode filter: %w", err)
		}
		query.Set("filter", string(filter))
	}
	if req.Params.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(req.Params.PageSize))
	}
	if req.Params.Page > 0 {
		query.Set("page", strconv.Itoa(req.Params.Page))
	}

	endpoint := c.baseURL + "/api/" + resource
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("branding: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("branding: request %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("branding: request %s: status %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	out := &Response{Status: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&out.Data); err != nil {
		return nil, fmt.Errorf("branding: decode %s: %w", resource, err)
	}
	return out, nil
}

// AttachmentLister is the file-manager query used in process.
type AttachmentLister interface {
	List(ctx context.Context, query filemanager.ListQuery) (filemanager.ListResult, error)
}

// LocalClient answers attachments:list directly from the file manager.
type LocalClient struct {
	lister AttachmentLister
}

// NewLocalClient wraps lister.
func NewLocalClient(lister AttachmentLister) (*LocalClient, error) {
	if lister == nil {
		return nil, errors.New("branding: attachment lister is required")
	}
	return &LocalClient{lister: lister}, nil
}

// Request implements APIClient for attachments:list.
func (c *LocalClient) Request(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimLeft(strings.TrimSpace(req.URL), "/") != AttachmentsListResource {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedResource, req.URL)
	}

	query := filemanager.ListQuery{Page: req.Params.Page, PageSize: req.Params.PageSize}
	if title, ok := req.Params.Filter["title"]; ok {
		value, ok := title.(string)
		if !ok {
			return nil, fmt.Errorf("branding: title filter must be a string, got %T", title)
		}
		query.Title = value
	}

	result, err := c.lister.List(ctx, query)
	if err != nil {
		return nil, err
	}

	items := make([]AttachmentItem, 0, len(result.Items))
	for _, att := range result.Items {
		items = append(items, AttachmentItem{ID: att.ID, Title: att.Title, URL: att.URL})
	}
	return &Response{
		Status: http.StatusOK,
		Data: ResponseBody{
			Data: items,
			Meta: &ListMeta{Count: result.Total, Page: result.Page, PageSize: result.PageSize},
		},
	}, nil
}
