package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// SetLogger replaces the package logger
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

const maxBodyBytes = 32 << 20

// Observer receives one sample per provider round trip
type Observer interface {
	ObserveProviderCall(operation string, statusCode int, duration time.Duration)
}

// Client performs authenticated JSON calls against the provider REST API
type Client struct {
	httpClient *http.Client
	observer   Observer
	now        func() time.Time
}

// NewClient builds a Client; the http.Client timeout bounds every call
func NewClient(httpClient *http.Client, observer Observer) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, observer: observer, now: time.Now}
}

// HTTPClient exposes the underlying client for the OAuth exchange
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Request describes one API call
type Request struct {
	Operation   string
	Method      string
	URL         string
	BearerToken string
	Body        any
	Accept      string
}

// apiErrorBody is the provider error envelope
type apiErrorBody struct {
	ErrorCode        string `json:"errorCode"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// DoJSON executes req and decodes a JSON response into out (if non-nil)
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	body, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: ErrTransport, Message: "invalid response body", Err: err}
	}
	return nil
}

// Do executes req and returns the raw response body on 2xx
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	var payload io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", req.Operation, err)
		}
		payload = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, payload)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.Operation, err)
	}
	if req.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.BearerToken)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)

	start := c.now()
	resp, err := c.httpClient.Do(httpReq)
	elapsed := c.now().Sub(start)
	if err != nil {
		c.observe(req.Operation, 0, elapsed)
		log.WithFields(logrus.Fields{
			"operation": req.Operation,
			"method":    req.Method,
			"error":     err.Error(),
		}).Warn("DocuSign request failed")
		return nil, TransportFailure(err)
	}
	defer resp.Body.Close()
	c.observe(req.Operation, resp.StatusCode, elapsed)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, TransportFailure(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := c.decodeError(resp, body)
		log.WithFields(logrus.Fields{
			"operation":   req.Operation,
			"status":      resp.StatusCode,
			"error_code":  perr.Code,
			"retry_after": perr.RetryAfter.String(),
		}).Warn("DocuSign request rejected")
		return nil, perr
	}

	log.WithFields(logrus.Fields{
		"operation": req.Operation,
		"status":    resp.StatusCode,
		"duration":  elapsed.String(),
	}).Debug("DocuSign request completed")
	return body, nil
}

// decodeError turns a non-2xx response into a classified *Error
func (c *Client) decodeError(resp *http.Response, body []byte) *Error {
	var apiErr apiErrorBody
	_ = json.Unmarshal(body, &apiErr)

	code := apiErr.ErrorCode
	if code == "" {
		code = apiErr.Error
	}
	message := apiErr.Message
	if message == "" {
		message = apiErr.ErrorDescription
	}
	if message == "" && code == "" {
		message = previewBody(body)
	}

	return &Error{
		Kind:       ClassifyStatus(resp.StatusCode, code),
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    message,
		RetryAfter: ParseRetryAfter(resp.Header, c.now()),
	}
}

func (c *Client) observe(operation string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveProviderCall(operation, status, d)
	}
}

func previewBody(body []byte) string {
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return preview
}
