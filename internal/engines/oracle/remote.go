package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"k8s.io/utils/cpuset"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

// Remote oracle endpoints, relative to the base URL.
const (
	EvaluatePath   = "/v1/evaluate"
	TransitionPath = "/v1/transition"
	EnablePath     = "/v1/enable"
)

// EvaluateRequest is the body of a POST to EvaluatePath.
type EvaluateRequest struct {
	Event string `json:"event"`
	Value uint32 `json:"value"`
}

// EvaluateResponse is the answer to an EvaluateRequest. Mask uses the kernel
// cpu list format, e.g. "0-1,3".
type EvaluateResponse struct {
	Mask    string `json:"mask"`
	SlackUs uint32 `json:"slack_us"`
}

// TransitionReport is the body of a POST to TransitionPath.
type TransitionReport struct {
	Core      int    `json:"core"`
	Online    bool   `json:"online"`
	ElapsedUs uint64 `json:"elapsed_us"`
}

// EnableReport is the body of a POST to EnablePath.
type EnableReport struct {
	Enabled bool `json:"enabled"`
}

// RemoteError is returned when the remote oracle answers with a non-2xx status.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote oracle returned %d: %s", e.StatusCode, e.Message)
}

// RemoteOracle calls an external decision process over HTTP. The base URL is
// either http(s)://host:port or unix:///path/to/socket.
type RemoteOracle struct {
	base    string
	timeout time.Duration
	client  *http.Client
}

var (
	_ Oracle             = (*RemoteOracle)(nil)
	_ TransitionObserver = (*RemoteOracle)(nil)
	_ EnableObserver     = (*RemoteOracle)(nil)
)

// NewRemoteOracle creates a RemoteOracle. A nil client gets a default one,
// which for unix:// URLs dials the socket for every request.
func NewRemoteOracle(rawURL string, timeout time.Duration, client *http.Client) (*RemoteOracle, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid oracle url %q: %w", rawURL, err)
	}
	base := strings.TrimSuffix(rawURL, "/")
	switch u.Scheme {
	case "http", "https":
		if client == nil {
			client = &http.Client{}
		}
	case "unix":
		if u.Path == "" {
			return nil, fmt.Errorf("invalid oracle url %q: missing socket path", rawURL)
		}
		if client == nil {
			client = unixClient(u.Path)
		}
		base = "http://oracle"
	default:
		return nil, fmt.Errorf("invalid oracle url %q: unsupported scheme %q", rawURL, u.Scheme)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("oracle timeout must be > 0, got %s", timeout)
	}
	return &RemoteOracle{base: base, timeout: timeout, client: client}, nil
}

func unixClient(path string) *http.Client {
	var d net.Dialer
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return d.DialContext(ctx, "unix", path)
			},
		},
	}
}

// Evaluate implements Oracle.
func (o *RemoteOracle) Evaluate(ctx context.Context, event core.Event, value uint32) (core.Decision, error) {
	var resp EvaluateResponse
	if err := o.post(ctx, EvaluatePath, EvaluateRequest{Event: event.String(), Value: value}, &resp); err != nil {
		return core.Decision{}, fmt.Errorf("evaluate %s: %w", event, err)
	}
	mask, err := cpuset.Parse(resp.Mask)
	if err != nil {
		return core.Decision{}, fmt.Errorf("evaluate %s: invalid mask %q: %w", event, resp.Mask, err)
	}
	return core.Decision{
		Mask:  mask,
		Slack: time.Duration(resp.SlackUs) * time.Microsecond,
	}, nil
}

// ObserveTransition implements TransitionObserver.
func (o *RemoteOracle) ObserveTransition(ctx context.Context, t core.Transition) error {
	report := TransitionReport{
		Core:      int(t.Core),
		Online:    t.Online,
		ElapsedUs: uint64(t.Elapsed / time.Microsecond),
	}
	if err := o.post(ctx, TransitionPath, report, nil); err != nil {
		return fmt.Errorf("report core %d %s: %w", t.Core, t.Direction(), err)
	}
	return nil
}

// ObserveEnable implements EnableObserver.
func (o *RemoteOracle) ObserveEnable(ctx context.Context, enabled bool) error {
	if err := o.post(ctx, EnablePath, EnableReport{Enabled: enabled}, nil); err != nil {
		return fmt.Errorf("report enabled=%t: %w", enabled, err)
	}
	return nil
}

func (o *RemoteOracle) post(ctx context.Context, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RemoteError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
