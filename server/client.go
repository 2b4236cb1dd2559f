package metricgen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	Mt "github.com/maroda/metricgen/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	webTimeout = 10 * time.Second
)

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Shared HTTP Client
var sharedHTTPClient = &http.Client{
	Timeout: webTimeout,
	Transport: otelhttp.NewTransport(&http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}),
}

// RejectedError is a collaborator answer of success:false
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return "rejected: " + e.Message
}

// Client talks to a remote metricgen over HTTP
// and satisfies Collaborator.
type Client struct {
	BaseURL string
	HTTP    HTTPClient
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    sharedHTTPClient,
	}
}

// SingleFetchWithClient handles the messy business of the HTTP connection
// and is testable with dependency injection
func SingleFetchWithClient(req *http.Request, c HTTPClient) (int, []byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		slog.Error("Fetch Error", slog.Any("Error", err))
		return 0, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Close Error", slog.Any("Error", err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Could not read body", slog.Any("Error", err))
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

func (c *Client) CurrentConfig(ctx context.Context) (Mt.Config, error) {
	var config Mt.Config

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, UrlCat(c.BaseURL, "/config"), nil)
	if err != nil {
		return config, err
	}

	code, body, err := SingleFetchWithClient(req, c.HTTP)
	if err != nil {
		return config, err
	}
	if code != http.StatusOK {
		return config, fmt.Errorf("config fetch returned %d", code)
	}
	if err := json.Unmarshal(body, &config); err != nil {
		return config, fmt.Errorf("could not decode config: %w", err)
	}
	if config.Metrics == nil {
		config.Metrics = make(map[string]Mt.WaveformParameters)
	}
	return config, nil
}

func (c *Client) CreateGenerator(ctx context.Context, name string, p Mt.WaveformParameters) error {
	form := ParamsForm(p)
	form.Set("metric_name", BackendName(name))
	return c.post(ctx, "/add_metric", form)
}

func (c *Client) UpdateGenerator(ctx context.Context, name string, u Mt.ParameterUpdate) error {
	form := UpdateForm(u)
	form.Set("metric_name", BackendName(name))
	return c.post(ctx, "/update_metric", form)
}

func (c *Client) RemoveGenerator(ctx context.Context, name string) error {
	form := url.Values{}
	form.Set("metric_name", BackendName(name))
	return c.post(ctx, "/remove_metric", form)
}

// post sends a form and unwraps the {"success","message"} envelope
func (c *Client) post(ctx context.Context, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, UrlCat(c.BaseURL, path), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	code, body, err := SingleFetchWithClient(req, c.HTTP)
	if err != nil {
		return err
	}

	var result Mt.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("%s returned %d with an unreadable body: %w", path, code, err)
	}
	if !result.Success {
		return &RejectedError{Message: result.Message}
	}
	return nil
}

// ParamsForm encodes a full parameter set as form fields
func ParamsForm(p Mt.WaveformParameters) url.Values {
	form := url.Values{}
	form.Set("waveform_type", string(p.WaveformType))
	form.Set(ParamBaseValue, formatParam(p.BaseValue))
	form.Set(ParamAmplitude, formatParam(p.Amplitude))
	form.Set(ParamPeriod, formatParam(p.Period))
	form.Set(ParamPhaseOffset, formatParam(p.PhaseOffset))
	form.Set(ParamUpdateInterval, formatParam(p.UpdateInterval))
	return form
}

// UpdateForm encodes only the fields present in u
func UpdateForm(u Mt.ParameterUpdate) url.Values {
	form := url.Values{}
	if u.WaveformType != nil {
		form.Set("waveform_type", *u.WaveformType)
	}
	for param, v := range map[string]*float64{
		ParamBaseValue:      u.BaseValue,
		ParamAmplitude:      u.Amplitude,
		ParamPeriod:         u.Period,
		ParamPhaseOffset:    u.PhaseOffset,
		ParamUpdateInterval: u.UpdateInterval,
	} {
		if v != nil {
			form.Set(param, formatParam(*v))
		}
	}
	return form
}

func formatParam(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
