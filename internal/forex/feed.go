package forex

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"swapcollector/config"
	"swapcollector/internal/market"

	"go.uber.org/zap"
)

const (
	connectionData = `[{"name":"ratesstreamer"}]`
	clientProtocol = "2.1"

	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Sink receives feed status transitions and recomputed offset deltas for
// external visibility.
type Sink interface {
	SetFeedStatus(ctx context.Context, status string) error
	PutOffset(ctx context.Context, symbol string, delta float64) error
}

// Feed consumes the SignalR server-sent-events stream of reference prices
// and keeps the OffsetTracker's reference leg current. The connection loop
// reconnects forever with a linearly growing, capped delay; any failure
// marks the feed offline and the tracker degraded, which keeps the last
// computed delta in service.
type Feed struct {
	cfg     config.ForexConfig
	symbol  string // collector symbol, used for the persisted offset key
	tracker *market.OffsetTracker
	sink    Sink
	logger  *zap.Logger
	client  *http.Client
}

func NewFeed(cfg config.ForexConfig, symbol string, tracker *market.OffsetTracker, sink Sink, logger *zap.Logger) *Feed {
	return &Feed{
		cfg:     cfg,
		symbol:  symbol,
		tracker: tracker,
		sink:    sink,
		logger:  logger,
		// No client timeout: the SSE body is a long-lived stream. Cancellation
		// comes from the context.
		client: &http.Client{},
	}
}

// Run blocks until ctx is cancelled, maintaining the stream.
func (f *Feed) Run(ctx context.Context) {
	f.setStatus(ctx, StatusOffline)

	attempt := 0
	for {
		if err := f.connectOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("reference feed disconnected", zap.Error(err))
		}
		f.tracker.MarkDegraded()
		f.setStatus(ctx, StatusOffline)

		attempt++
		delay := time.Duration(attempt) * 10 * time.Second
		if delay > time.Minute {
			delay = time.Minute
		}
		f.logger.Info("reconnecting reference feed", zap.Duration("delay", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// connectOnce performs the negotiate/connect/start/subscribe handshake and
// then reads the event stream until it ends or the context is cancelled.
func (f *Feed) connectOnce(ctx context.Context) error {
	token, err := f.negotiate(ctx)
	if err != nil {
		return fmt.Errorf("negotiate: %w", err)
	}

	stream, err := f.openStream(ctx, token)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer stream.Close()

	if err := f.start(ctx, token); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := f.subscribe(ctx, token); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("reference feed connected")

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "{}" || payload == "initialized" {
			continue
		}
		f.handleEvent(ctx, payload)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF // stream ended cleanly; caller reconnects
}

// handleEvent parses one SSE payload and applies any price rows it carries.
// Rows are pipe-separated: id|symbol|time|current|ask|bid|high|low.
func (f *Feed) handleEvent(ctx context.Context, payload string) {
	var event struct {
		M []struct {
			H string   `json:"H"`
			M string   `json:"M"`
			A []string `json:"A"`
		} `json:"M"`
	}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		f.logger.Warn("unparsable reference event", zap.String("raw", snippet(payload)), zap.Error(err))
		return
	}

	for _, msg := range event.M {
		if !strings.EqualFold(msg.H, "ratesstreamer") || msg.M != "updateMarketPrice" || len(msg.A) == 0 {
			continue
		}

		parts := strings.Split(msg.A[0], "|")
		if len(parts) < 8 {
			f.logger.Warn("short reference price row", zap.String("raw", snippet(msg.A[0])))
			continue
		}
		if parts[1] != f.cfg.Symbol {
			continue
		}

		// The bid column carries the tradable reference price.
		price, err := strconv.ParseFloat(parts[5], 64)
		if err != nil {
			f.logger.Warn("unparsable reference price", zap.String("raw", snippet(msg.A[0])), zap.Error(err))
			continue
		}

		f.tracker.SetReference(price)
		f.setStatus(ctx, StatusOnline)

		if delta, ok := f.tracker.Get(); ok && f.sink != nil {
			if err := f.sink.PutOffset(ctx, f.symbol, delta); err != nil {
				f.logger.Warn("failed to persist offset delta", zap.Error(err))
			}
		}
	}
}

func (f *Feed) negotiate(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("clientProtocol", clientProtocol)
	params.Set("connectionData", connectionData)
	params.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))

	body, err := f.get(ctx, f.cfg.BaseURL+"/negotiate?"+params.Encode())
	if err != nil {
		return "", err
	}

	var res struct {
		ConnectionToken string `json:"ConnectionToken"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("decode negotiate response: %w", err)
	}
	if res.ConnectionToken == "" {
		return "", fmt.Errorf("negotiate returned no token")
	}
	return res.ConnectionToken, nil
}

func (f *Feed) openStream(ctx context.Context, token string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.cfg.BaseURL+"/connect?"+f.tokenParams(token).Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("connect status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (f *Feed) start(ctx context.Context, token string) error {
	body, err := f.get(ctx, f.cfg.BaseURL+"/start?"+f.tokenParams(token).Encode())
	if err != nil {
		return err
	}
	if !strings.Contains(string(body), "started") {
		return fmt.Errorf("unexpected start response: %s", snippet(string(body)))
	}
	return nil
}

func (f *Feed) subscribe(ctx context.Context, token string) error {
	params := f.tokenParams(token)
	params.Set("tid", "6")

	msg := map[string]any{
		"H": "ratesstreamer",
		"M": "SubscribeToPriceUpdates",
		"A": []string{f.cfg.InstrumentID},
		"I": 0,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	form := url.Values{"data": {string(data)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.cfg.BaseURL+"/send?"+params.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subscribe status %d", resp.StatusCode)
	}
	return nil
}

func (f *Feed) tokenParams(token string) url.Values {
	params := url.Values{}
	params.Set("transport", "serverSentEvents")
	params.Set("clientProtocol", clientProtocol)
	params.Set("connectionToken", token)
	params.Set("connectionData", connectionData)
	return params
}

func (f *Feed) get(ctx context.Context, endpoint string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *Feed) setStatus(ctx context.Context, status string) {
	if f.sink == nil {
		return
	}
	if err := f.sink.SetFeedStatus(ctx, status); err != nil {
		f.logger.Warn("failed to update feed status", zap.String("status", status), zap.Error(err))
	}
}

func snippet(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
