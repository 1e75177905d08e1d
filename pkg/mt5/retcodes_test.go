package mt5

import "testing"

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		code uint32
		want string
	}{
		{"done", RetDone, "Done"},
		{"requote", RetRequote, "Requote"},
		{"invalid params", RetInvalidParams, "Invalid parameters"},
		{"market closed", RetMarketClosed, "Market closed"},
		{"no money", RetNoMoney, "Insufficient funds"},
		{"prices changed", RetPriceChanged, "Prices changed"},
		{"invalid request", RetInvalidRequest, "Invalid request (check volume, symbol, or market status)"},
		{"invalid stops", RetInvalidStops, "Invalid SL/TP"},
		{"client disabled", RetClientDisabled, "AutoTrading disabled"},
		{"invalid filling", RetInvalidFilling, "Invalid order filling type"},
		{"unknown code", 12345, "Error 12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.code); got != tt.want {
				t.Fatalf("Describe(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestTerminalErrorRequote(t *testing.T) {
	requote := &TerminalError{Code: RetRequote, Message: "Requote"}
	if !requote.Requote() {
		t.Error("code 10013 must be a requote")
	}
	other := &TerminalError{Code: RetNoMoney}
	if other.Requote() {
		t.Error("code 10019 must not be a requote")
	}
}

func TestFillingModeSupported(t *testing.T) {
	tests := []struct {
		name string
		mask FillingMode
		want []FillingMode
	}{
		{"full mask in priority order", FillingFOK | FillingIOC | FillingReturn, []FillingMode{FillingFOK, FillingIOC, FillingReturn}},
		{"ioc and return", FillingIOC | FillingReturn, []FillingMode{FillingIOC, FillingReturn}},
		{"single mode", FillingReturn, []FillingMode{FillingReturn}},
		{"empty mask", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.mask.Supported()
			if len(got) != len(tt.want) {
				t.Fatalf("Supported() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Supported()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("BUY closes with SELL")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("SELL closes with BUY")
	}
}
