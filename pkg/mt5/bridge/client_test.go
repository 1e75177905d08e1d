package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mt5-gateway/pkg/mt5"
)

// fakeBridge answers bridge frames with canned method handlers.
type fakeBridge struct {
	handlers map[string]func(params json.RawMessage) (any, *bridgeError)
}

func (f *fakeBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req struct {
			ID     uint64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		resp := map[string]any{"id": req.ID}
		handler, ok := f.handlers[req.Method]
		if !ok {
			resp["ok"] = false
			resp["error"] = bridgeError{Code: 1, Message: "unknown method " + req.Method}
		} else if data, berr := handler(req.Params); berr != nil {
			resp["ok"] = false
			resp["error"] = berr
		} else {
			resp["ok"] = true
			resp["data"] = data
		}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func newBridgeClient(t *testing.T, handlers map[string]func(json.RawMessage) (any, *bridgeError)) *Client {
	t.Helper()
	server := httptest.NewServer(&fakeBridge{handlers: handlers})
	t.Cleanup(server.Close)

	client := New("ws" + strings.TrimPrefix(server.URL, "http"))
	client.CallTimeout = 2 * time.Second
	if err := client.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = client.Shutdown() })
	return client
}

func TestClientRoundTrip(t *testing.T) {
	client := newBridgeClient(t, map[string]func(json.RawMessage) (any, *bridgeError){
		"login": func(params json.RawMessage) (any, *bridgeError) {
			var p struct {
				Login  int64  `json:"login"`
				Server string `json:"server"`
			}
			if err := json.Unmarshal(params, &p); err != nil || p.Login != 1000001 || p.Server != "Demo-Server" {
				return nil, &bridgeError{Code: 2, Message: "bad params"}
			}
			return nil, nil
		},
		"account_info": func(json.RawMessage) (any, *bridgeError) {
			return mt5.AccountInfo{Login: 1000001, TradeExpert: true, Currency: "USD"}, nil
		},
		"symbols": func(json.RawMessage) (any, *bridgeError) {
			return []string{"EURUSD", "GBPUSD"}, nil
		},
	})

	if err := client.Login(1000001, "pass", "Demo-Server"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	acct, err := client.AccountInfo()
	if err != nil {
		t.Fatalf("AccountInfo: %v", err)
	}
	if acct.Login != 1000001 || !acct.TradeExpert {
		t.Errorf("unexpected account %+v", acct)
	}

	symbols, err := client.Symbols()
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "EURUSD" {
		t.Errorf("symbols = %v, want [EURUSD GBPUSD]", symbols)
	}
}

func TestClientErrorBecomesTerminalError(t *testing.T) {
	client := newBridgeClient(t, map[string]func(json.RawMessage) (any, *bridgeError){
		"order_send": func(json.RawMessage) (any, *bridgeError) {
			return nil, &bridgeError{Code: mt5.RetRequote, Message: "Requote"}
		},
	})

	_, err := client.OrderSend(&mt5.TradeRequest{Symbol: "EURUSD", Volume: 0.1, Side: mt5.SideBuy})
	var terr *mt5.TerminalError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TerminalError, got %v", err)
	}
	if terr.Code != mt5.RetRequote || !terr.Requote() {
		t.Errorf("code = %d, want requote 10013", terr.Code)
	}
}

func TestClientNullDataStaysNil(t *testing.T) {
	client := newBridgeClient(t, map[string]func(json.RawMessage) (any, *bridgeError){
		"symbol_tick": func(json.RawMessage) (any, *bridgeError) {
			return nil, nil
		},
	})

	tick, err := client.SymbolTick("EURUSD")
	if err != nil {
		t.Fatalf("SymbolTick: %v", err)
	}
	if tick != nil {
		t.Errorf("tick = %+v, want nil for null data", tick)
	}
}

func TestClientCallAfterShutdown(t *testing.T) {
	client := newBridgeClient(t, nil)
	if err := client.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if _, err := client.Symbols(); !errors.Is(err, ErrClosed) {
		t.Fatalf("error = %v, want ErrClosed", err)
	}
}

func TestClientInitializeIsIdempotent(t *testing.T) {
	client := newBridgeClient(t, map[string]func(json.RawMessage) (any, *bridgeError){
		"symbols": func(json.RawMessage) (any, *bridgeError) { return []string{}, nil },
	})

	if err := client.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if _, err := client.Symbols(); err != nil {
		t.Fatalf("Symbols after re-init: %v", err)
	}
}
