package mt5

import "fmt"

// Venue trade return codes. The set is closed: anything the table does not
// know is described generically, never dropped.
const (
	RetRequote        uint32 = 10013 // stale price, eligible for one retry
	RetDone           uint32 = 10009
	RetInvalidParams  uint32 = 10017
	RetMarketClosed   uint32 = 10018
	RetNoMoney        uint32 = 10019
	RetPriceChanged   uint32 = 10020
	RetInvalidRequest uint32 = 10021
	RetInvalidStops   uint32 = 10022
	RetClientDisabled uint32 = 10027
	RetInvalidFilling uint32 = 10030
)

var retcodeMessages = map[uint32]string{
	RetDone:           "Done",
	RetRequote:        "Requote",
	RetInvalidParams:  "Invalid parameters",
	RetMarketClosed:   "Market closed",
	RetNoMoney:        "Insufficient funds",
	RetPriceChanged:   "Prices changed",
	RetInvalidRequest: "Invalid request (check volume, symbol, or market status)",
	RetInvalidStops:   "Invalid SL/TP",
	RetClientDisabled: "AutoTrading disabled",
	RetInvalidFilling: "Invalid order filling type",
}

// Describe maps a venue return code to a human-readable reason. Unknown
// codes fall back to a generic "Error {code}" string.
func Describe(code uint32) string {
	if msg, ok := retcodeMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Error %d", code)
}
