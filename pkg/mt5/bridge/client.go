// Package bridge implements mt5.Terminal over a websocket connection to a
// terminal-side bridge daemon. Each venue call is a JSON request/response
// pair correlated by ID.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mt5-gateway/pkg/mt5"
)

// ErrClosed is returned for calls made after the connection is gone.
var ErrClosed = errors.New("bridge connection closed")

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID    uint64          `json:"id"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *bridgeError    `json:"error,omitempty"`
}

type bridgeError struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

// Client speaks the bridge protocol. The session guard serializes venue
// calls, so Client only has to protect its own connection bookkeeping.
type Client struct {
	URL         string
	CallTimeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	pending map[uint64]chan *response
	closed  bool
}

// New builds a bridge client for the given ws:// or wss:// URL.
func New(url string) *Client {
	return &Client{
		URL:         url,
		CallTimeout: 10 * time.Second,
		pending:     make(map[uint64]chan *response),
	}
}

// Initialize dials the bridge daemon and starts the read pump.
func (c *Client) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.Dial(c.URL, nil)
	if err != nil {
		return fmt.Errorf("dial bridge %s: %w", c.URL, err)
	}
	c.conn = conn
	c.closed = false
	go c.readPump(conn)
	return nil
}

func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!strings.Contains(err.Error(), "use of closed network connection") {
				log.Printf("bridge: read error: %v", err)
			}
			c.teardown()
			return
		}
		var resp response
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Printf("bridge: bad frame: %v", err)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (c *Client) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call sends one request and decodes the response data into out (when
// non-nil). A response carrying an error becomes a *mt5.TerminalError.
func (c *Client) call(method string, params, out any) error {
	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *response, 1)
	c.pending[id] = ch
	conn := c.conn
	err := conn.WriteJSON(request{ID: id, Method: method, Params: params})
	c.mu.Unlock()

	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("bridge write %s: %w", method, err)
	}

	timeout := c.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if !resp.OK {
			if resp.Error == nil {
				return fmt.Errorf("bridge %s failed without error detail", method)
			}
			return &mt5.TerminalError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if out != nil && len(resp.Data) > 0 && string(resp.Data) != "null" {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("bridge decode %s: %w", method, err)
			}
		}
		return nil
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("bridge %s timed out after %v", method, timeout)
	}
}

// --- mt5.Terminal ---

func (c *Client) Login(login int64, password, server string) error {
	return c.call("login", map[string]any{
		"login":    login,
		"password": password,
		"server":   server,
	}, nil)
}

func (c *Client) Shutdown() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := conn.Close()
	c.teardown()
	return err
}

func (c *Client) AccountInfo() (*mt5.AccountInfo, error) {
	var acct mt5.AccountInfo
	if err := c.call("account_info", nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *Client) Symbols() ([]string, error) {
	var names []string
	if err := c.call("symbols", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) SymbolSelect(symbol string, enable bool) bool {
	var selected bool
	if err := c.call("symbol_select", map[string]any{
		"symbol": symbol,
		"enable": enable,
	}, &selected); err != nil {
		return false
	}
	return selected
}

func (c *Client) SymbolInfo(symbol string) (*mt5.SymbolInfo, error) {
	var info *mt5.SymbolInfo
	if err := c.call("symbol_info", map[string]any{"symbol": symbol}, &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) SymbolTick(symbol string) (*mt5.Tick, error) {
	var tick *mt5.Tick
	if err := c.call("symbol_tick", map[string]any{"symbol": symbol}, &tick); err != nil {
		return nil, err
	}
	return tick, nil
}

func (c *Client) LastBar(symbol string) (*mt5.Bar, error) {
	var bar *mt5.Bar
	if err := c.call("last_bar", map[string]any{"symbol": symbol}, &bar); err != nil {
		return nil, err
	}
	return bar, nil
}

func (c *Client) OrderSend(req *mt5.TradeRequest) (*mt5.TradeResult, error) {
	var res *mt5.TradeResult
	if err := c.call("order_send", req, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Positions() ([]mt5.Position, error) {
	var out []mt5.Position
	if err := c.call("positions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PositionByTicket(ticket uint64) (*mt5.Position, error) {
	var pos *mt5.Position
	if err := c.call("position", map[string]any{"ticket": ticket}, &pos); err != nil {
		return nil, err
	}
	return pos, nil
}
