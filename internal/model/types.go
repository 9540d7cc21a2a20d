package model

import (
	"time"

	"github.com/google/uuid"
)

// CentCentsPerCent is the fixed-point scale for cost accounting.
// One contract bought at P cents adds P*CentCentsPerCent to cumulative cost.
const CentCentsPerCent int64 = 100

// Side is one leg of a binary market.
type Side int

const (
	Yes Side = iota
	No
)

// Other returns the opposite contract side.
func (s Side) Other() Side {
	if s == Yes {
		return No
	}
	return Yes
}

func (s Side) String() string {
	if s == Yes {
		return "yes"
	}
	return "no"
}

// ParseSide converts the wire representation ("yes"/"no") to a Side.
func ParseSide(v string) (Side, bool) {
	switch v {
	case "yes":
		return Yes, true
	case "no":
		return No, true
	}
	return Yes, false
}

// TIF is the time-in-force of an order.
type TIF int

const (
	// IOC fills immediately against resting liquidity or is canceled.
	IOC TIF = iota
	// GTC rests on the book until filled or canceled.
	GTC
)

func (t TIF) String() string {
	if t == IOC {
		return "ioc"
	}
	return "gtc"
}

// -----------------------------------------------------------------------------
// Market-data events
// -----------------------------------------------------------------------------

// PriceLevel is one (price, quantity) entry of a book snapshot.
type PriceLevel struct {
	Price int // cents, 0-100
	Qty   int64
}

// BookSnapshot replaces the whole book for one market.
type BookSnapshot struct {
	Ticker     string
	Seq        int64
	Yes        []PriceLevel
	No         []PriceLevel
	ReceivedAt time.Time
}

// BookDelta is one incremental change to a resting-bid level.
type BookDelta struct {
	Ticker     string
	Seq        int64
	Side       Side
	Price      int   // cents
	Delta      int64 // signed quantity change
	ReceivedAt time.Time
}

// TradePrint is one executed trade on the public tape.
type TradePrint struct {
	Ticker     string
	TakerSide  Side
	YesPrice   int // cents
	NoPrice    int // cents
	Count      int64
	ReceivedAt time.Time
}

// Fill is an execution against one of our own orders.
type Fill struct {
	TradeID       string
	Ticker        string
	Side          Side // purchased side
	Price         int  // cents, for the purchased side
	Count         int64
	OrderID       string
	ClientOrderID uuid.UUID
	ReceivedAt    time.Time
}

// -----------------------------------------------------------------------------
// Execution commands
// -----------------------------------------------------------------------------

// PlaceOrder asks the execution task to submit a limit buy.
type PlaceOrder struct {
	Ticker        string
	Side          Side
	Price         int // cents, for the chosen side only
	Qty           int64
	TIF           TIF
	PostOnly      bool
	ClientOrderID uuid.UUID
}

// CancelOrder asks the execution task to cancel by exchange order id.
type CancelOrder struct {
	Ticker  string
	OrderID string
}

// ExecCommand is the single action a decision tick may emit.
// Exactly one of Place/Cancel is set.
type ExecCommand struct {
	Place  *PlaceOrder
	Cancel *CancelOrder
}

// PlaceCommand wraps a PlaceOrder as an ExecCommand.
func PlaceCommand(p PlaceOrder) ExecCommand {
	return ExecCommand{Place: &p}
}

// CancelCommand wraps a CancelOrder as an ExecCommand.
func CancelCommand(c CancelOrder) ExecCommand {
	return ExecCommand{Cancel: &c}
}
