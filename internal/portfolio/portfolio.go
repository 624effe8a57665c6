// Package portfolio implements the non-persistent paper-trading
// simulation behind the dashboard's buy/sell forms. Orders fill
// immediately at the caller-supplied price; nothing leaves the process.
package portfolio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradewatch/internal/model"
)

var (
	// ErrInsufficientCash is returned when a buy exceeds available cash.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInsufficientShares is returned when a sell exceeds the held
	// quantity.
	ErrInsufficientShares = errors.New("insufficient shares")
)

// Simulator tracks simulated cash, positions, and the order log in
// memory.
type Simulator struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*model.Position
	orders    []model.Order
}

// NewSimulator creates a simulator with the given starting cash.
func NewSimulator(startingCash float64) *Simulator {
	return &Simulator{
		cash:      startingCash,
		positions: make(map[string]*model.Position),
	}
}

// Buy fills a simulated market buy of qty shares at price. The average
// entry price of an existing position is blended.
func (s *Simulator) Buy(symbol string, qty, price float64) (*model.Order, error) {
	if qty <= 0 || price <= 0 {
		return nil, fmt.Errorf("qty and price must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cost := qty * price
	if cost > s.cash {
		return nil, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, cost, s.cash)
	}
	s.cash -= cost

	pos, ok := s.positions[symbol]
	if !ok {
		pos = &model.Position{Symbol: symbol}
		s.positions[symbol] = pos
	}
	total := pos.AvgPrice*pos.Qty + cost
	pos.Qty += qty
	pos.AvgPrice = total / pos.Qty

	order := model.Order{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Side:     model.OrderSideBuy,
		Qty:      qty,
		Price:    price,
		FilledAt: time.Now(),
	}
	s.orders = append(s.orders, order)
	return &order, nil
}

// Sell fills a simulated market sell of qty shares at price.
func (s *Simulator) Sell(symbol string, qty, price float64) (*model.Order, error) {
	if qty <= 0 || price <= 0 {
		return nil, fmt.Errorf("qty and price must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[symbol]
	if !ok || pos.Qty < qty {
		held := 0.0
		if ok {
			held = pos.Qty
		}
		return nil, fmt.Errorf("%w: selling %.2f, hold %.2f", ErrInsufficientShares, qty, held)
	}

	pos.Qty -= qty
	if pos.Qty == 0 {
		delete(s.positions, symbol)
	}
	s.cash += qty * price

	order := model.Order{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Side:     model.OrderSideSell,
		Qty:      qty,
		Price:    price,
		FilledAt: time.Now(),
	}
	s.orders = append(s.orders, order)
	return &order, nil
}

// Positions returns copies of all open positions.
func (s *Simulator) Positions() []model.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	return out
}

// Orders returns a copy of the fill log in execution order.
func (s *Simulator) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Account values the portfolio with the given price lookup. Positions
// whose symbol has no current price are valued at their entry price.
func (s *Simulator) Account(price func(symbol string) (float64, bool)) model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	equity := s.cash
	for _, p := range s.positions {
		px := p.AvgPrice
		if price != nil {
			if cur, ok := price(p.Symbol); ok {
				px = cur
			}
		}
		equity += p.Qty * px
	}
	return model.Account{Cash: s.cash, Equity: equity}
}
