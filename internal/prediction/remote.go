package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

// RemoteModel delegates to an external HTTP endpoint that accepts the feature
// vector as JSON and answers {result, confidence} or {error}.
type RemoteModel struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

func NewRemoteModel(url string, timeout time.Duration) (*RemoteModel, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	return &RemoteModel{url: url, client: &http.Client{Transport: transport}, timeout: timeout}, nil
}

func (m *RemoteModel) Name() string { return "remote" }

type remoteResponse struct {
	Result     string          `json:"result"`
	Confidence json.RawMessage `json:"confidence"`
	Error      string          `json:"error"`
}

func (m *RemoteModel) Predict(ctx context.Context, f Features) (Outcome, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	body, err := json.Marshal(f.Vector())
	if err != nil {
		return Outcome{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var out remoteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Outcome{}, fmt.Errorf("%w: status %d: undecodable response: %v", ErrUnavailable, resp.StatusCode, err)
	}

	if out.Error != "" {
		if resp.StatusCode >= http.StatusInternalServerError {
			return Outcome{}, fmt.Errorf("%w: %s", ErrUnavailable, out.Error)
		}
		return Outcome{}, &RejectedError{Msg: out.Error}
	}
	if resp.StatusCode != http.StatusOK || out.Result == "" {
		return Outcome{}, fmt.Errorf("%w: status %d without a result", ErrUnavailable, resp.StatusCode)
	}

	confidence, err := parseConfidence(out.Confidence)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Outcome{Result: out.Result, Confidence: confidence}, nil
}

// parseConfidence accepts 0.87, 87.12 or "87.12%" and returns a percentage.
// Bare numbers up to 1 are read as fractions.
func parseConfidence(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing confidence")
	}

	var (
		v       float64
		percent bool
	)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if strings.HasSuffix(s, "%") {
			percent = true
			s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		}
		if v, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, fmt.Errorf("invalid confidence %q", s)
		}
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("invalid confidence %s", raw)
	}

	if !percent && v <= 1 {
		v *= 100
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("confidence %v out of range", v)
	}
	return roundConfidence(v), nil
}
