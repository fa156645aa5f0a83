package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wonny/stratbook/internal/contracts"
	"github.com/wonny/stratbook/pkg/config"
	"github.com/wonny/stratbook/pkg/httputil"
	"github.com/wonny/stratbook/pkg/logger"
)

// Timing
const (
	PingInterval     = 30 * time.Second
	HandshakeTimeout = 10 * time.Second
)

// BridgeGateway talks to a gateway bridge process: REST for commands,
// a websocket stream for order, execution, commission and account events.
// One gateway serves many cycles; Connect reuses a live stream.
type BridgeGateway struct {
	cfg      config.GatewayConfig
	logger   *logger.Logger
	commands *httputil.Client // orders: never retried
	queries  *httputil.Client // idempotent requests
	inbox    *Inbox

	mu      sync.Mutex // serializes Connect and Close
	session *session
}

// session is one websocket stream with its read and ping loops
type session struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	readDone chan struct{}
	wg       sync.WaitGroup
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		conn:     conn,
		stopCh:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
}

// alive reports whether the read loop is still running
func (s *session) alive() bool {
	select {
	case <-s.readDone:
		return false
	default:
		return true
	}
}

func (s *session) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// close stops both loops and waits for them
func (s *session) close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := s.conn.Close()
	s.writeMu.Unlock()

	s.wg.Wait()
	return err
}

// NewBridgeGateway creates a bridge session (not yet connected)
func NewBridgeGateway(cfg config.GatewayConfig, log *logger.Logger) *BridgeGateway {
	commands := httputil.New(log).DisableRetry()
	queries := httputil.New(log).WithRetry(2, 500*time.Millisecond)
	if cfg.APIKey != "" {
		commands.WithHeader("X-API-Key", cfg.APIKey)
		queries.WithHeader("X-API-Key", cfg.APIKey)
	}

	return &BridgeGateway{
		cfg:      cfg,
		logger:   log.Component("gateway"),
		commands: commands,
		queries:  queries,
		inbox:    NewInbox(),
	}
}

// Inbox returns the session's event store
func (g *BridgeGateway) Inbox() *Inbox {
	return g.inbox
}

// Connect opens the event stream and waits for the ready event.
// A live stream from an earlier cycle is reused; a dead one is replaced.
func (g *BridgeGateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session != nil {
		if g.session.alive() {
			return nil
		}
		g.logger.Info("Gateway stream closed, reconnecting")
		_ = g.session.close()
		g.session = nil
	}

	timeout := g.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}

	header := http.Header{}
	if g.cfg.APIKey != "" {
		header.Set("X-API-Key", g.cfg.APIKey)
	}

	g.inbox.resetReady()
	conn, _, err := dialer.DialContext(ctx, g.cfg.WSURL, header)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrNotConnected, g.cfg.WSURL, err)
	}

	s := newSession(conn)
	s.wg.Add(2)
	go g.readLoop(s)
	go g.pingLoop(s)

	select {
	case <-g.inbox.Ready():
		g.session = s
		g.logger.WithField("url", g.cfg.WSURL).Info("Gateway session ready")
		return nil
	case <-ctx.Done():
		_ = s.close()
		return fmt.Errorf("%w: no ready event within %s", ErrNotConnected, timeout)
	}
}

// PlaceOrder submits one order. It is not retried: a lost response could
// otherwise place the same order twice.
func (g *BridgeGateway) PlaceOrder(ctx context.Context, action contracts.Action, quantity int64, symbol string) (int64, error) {
	req := orderRequest{
		Action:      action,
		Quantity:    quantity,
		Symbol:      symbol,
		SecType:     "STK",
		Exchange:    "SMART",
		Currency:    "USD",
		OrderType:   g.cfg.OrderType,
		TimeInForce: g.cfg.TimeInForce,
	}

	var resp orderResponse
	if err := g.commands.PostJSONInto(ctx, g.url("/orders"), req, &resp); err != nil {
		return 0, fmt.Errorf("place %s %d %s: %w", action, quantity, symbol, err)
	}
	if resp.OrderID == 0 {
		return 0, fmt.Errorf("place %s %d %s: %w", action, quantity, symbol, ErrNoOrderID)
	}
	return resp.OrderID, nil
}

// RequestAccountSummary asks the bridge to stream the given account tags
func (g *BridgeGateway) RequestAccountSummary(ctx context.Context, tags []string) error {
	req := accountSummaryRequest{
		Group: "All",
		Tags:  strings.Join(tags, ","),
	}
	if err := g.queries.PostJSONInto(ctx, g.url("/account/summary"), req, nil); err != nil {
		return fmt.Errorf("request account summary: %w", err)
	}
	return nil
}

// Close ends the current session. The gateway can Connect again afterwards.
func (g *BridgeGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session == nil {
		return nil
	}
	err := g.session.close()
	g.session = nil
	return err
}

func (g *BridgeGateway) url(path string) string {
	return strings.TrimRight(g.cfg.BaseURL, "/") + path
}

// readLoop decodes events into the inbox until the stream closes
func (g *BridgeGateway) readLoop(s *session) {
	defer s.wg.Done()
	defer close(s.readDone)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if s.stopping() {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.WithError(err).Warn("Gateway stream read failed")
			}
			return
		}

		if err := g.handleMessage(message); err != nil {
			g.logger.WithError(err).Warn("Ignoring malformed gateway event")
		}
	}
}

// handleMessage routes one event to the inbox
func (g *BridgeGateway) handleMessage(data []byte) error {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	switch ev.Type {
	case EventReady:
		g.inbox.MarkReady()

	case EventOrderStatus:
		var s OrderStatus
		if err := json.Unmarshal(ev.Data, &s); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		g.inbox.RecordStatus(s)

	case EventExecutionDetail:
		var e ExecutionDetail
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		g.inbox.RecordExecution(e)

	case EventCommissionReport:
		var c CommissionReport
		if err := json.Unmarshal(ev.Data, &c); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		g.inbox.RecordCommission(c)

	case EventAccountSummary:
		var a AccountTag
		if err := json.Unmarshal(ev.Data, &a); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		g.inbox.RecordAccount(a)

	case EventError:
		var e ErrorEvent
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		g.inbox.RecordError(e)
		g.logger.WithFields(map[string]interface{}{
			"order_id": e.OrderID,
			"code":     e.Code,
		}).Warn(e.Message)

	default:
		g.logger.WithField("type", ev.Type).Debug("Unknown gateway event")
	}
	return nil
}

func (g *BridgeGateway) pingLoop(s *session) {
	defer s.wg.Done()

	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-s.readDone:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				g.logger.WithError(err).Warn("Gateway ping failed")
			}
		}
	}
}
