package port

import "context"

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order types.
const (
	TypeMarket     = "MARKET"
	TypeLimit      = "LIMIT"
	TypeStopMarket = "STOP_MARKET"
)

// TimeInForceGTC keeps a limit order on book until cancelled.
const TimeInForceGTC = "GTC"

type OrderRequest struct {
	Symbol      string
	Side        string // BUY / SELL
	Type        string // MARKET / LIMIT / STOP_MARKET
	Quantity    float64
	Price       float64 // LIMIT only
	StopPrice   float64 // STOP_MARKET only
	TimeInForce string  // LIMIT only, defaults to GTC
}

type OrderResult struct {
	OrderID  string
	Symbol   string
	Side     string
	Status   string
	Quantity float64
	Price    float64
}

type Order struct {
	OrderID  string
	Symbol   string
	Side     string
	Type     string
	Status   string
	Quantity float64
	Price    float64
}

// TradingGateway is the synchronous order-management boundary. Failures are
// returned to the caller as typed errors and never swallowed.
type TradingGateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	ListOpenOrders(ctx context.Context, symbol string) ([]Order, error)
}

// InstrumentLister is the exchange reference-data boundary.
type InstrumentLister interface {
	ListInstruments(ctx context.Context) ([]string, error)
}
