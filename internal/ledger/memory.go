package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory ledger. It is the default mode and the test
// substrate. A single store-wide mutex makes every operation, and every
// InTx body, serializable.
type MemoryStore struct {
	mu     sync.RWMutex
	logger *zap.Logger

	users     map[int64]*types.User
	markets   map[int64]*types.Market
	orders    map[int64]*types.Order
	fills     []*types.Fill
	positions map[int64]*types.Position
	history   []*types.PricePoint

	nextUserID     int64
	nextMarketID   int64
	nextOrderID    int64
	nextFillID     int64
	nextPositionID int64
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	logger.Info("memory-ledger-initialized")
	return &MemoryStore{
		logger:    logger,
		users:     make(map[int64]*types.User),
		markets:   make(map[int64]*types.Market),
		orders:    make(map[int64]*types.Order),
		positions: make(map[int64]*types.Position),
	}
}

// memTx applies mutations directly to the store under its write lock and
// keeps before-images of every touched row. Rollback restores the images
// and drops appended fills, so a failed transaction leaves no trace.
type memTx struct {
	s *MemoryStore

	userImages     map[int64]*types.User
	marketImages   map[int64]*types.Market
	orderImages    map[int64]*types.Order
	positionImages map[int64]*types.Position
	newPositions   []int64
	fillsAppended  int
}

// InTx runs fn under the store write lock, rolling back all of fn's
// mutations if it returns an error.
func (s *MemoryStore) InTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:              s,
		userImages:     make(map[int64]*types.User),
		marketImages:   make(map[int64]*types.Market),
		orderImages:    make(map[int64]*types.Order),
		positionImages: make(map[int64]*types.Position),
	}

	err := fn(tx)
	if err != nil {
		tx.rollback()
		return err
	}

	return nil
}

func (t *memTx) rollback() {
	for id, img := range t.userImages {
		t.s.users[id] = img
	}
	for id, img := range t.marketImages {
		t.s.markets[id] = img
	}
	for id, img := range t.orderImages {
		t.s.orders[id] = img
	}
	for id, img := range t.positionImages {
		t.s.positions[id] = img
	}
	for _, id := range t.newPositions {
		delete(t.s.positions, id)
	}
	if t.fillsAppended > 0 {
		t.s.fills = t.s.fills[:len(t.s.fills)-t.fillsAppended]
	}
}

func (t *memTx) UserForUpdate(id int64) (*types.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	if _, saved := t.userImages[id]; !saved {
		img := *u
		t.userImages[id] = &img
	}
	out := *u
	return &out, nil
}

func (t *memTx) AdjustBalance(userID int64, delta int64) error {
	u, ok := t.s.users[userID]
	if !ok {
		return types.ErrUserNotFound
	}
	if u.Balance+delta < 0 {
		return types.ErrInsufficientFunds
	}
	if _, saved := t.userImages[userID]; !saved {
		img := *u
		t.userImages[userID] = &img
	}
	u.Balance += delta
	return nil
}

func (t *memTx) Market(id int64) (*types.Market, error) {
	m, ok := t.s.markets[id]
	if !ok {
		return nil, types.ErrMarketNotFound
	}
	out := *m
	return &out, nil
}

func (t *memTx) SetMarketResolved(marketID int64, outcome types.Side) error {
	m, ok := t.s.markets[marketID]
	if !ok {
		return types.ErrMarketNotFound
	}
	if _, saved := t.marketImages[marketID]; !saved {
		img := *m
		t.marketImages[marketID] = &img
	}
	m.Status = types.MarketSettled
	m.ResolvedOutcome = outcome
	return nil
}

func (t *memTx) Order(id int64) (*types.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, types.ErrOrderNotFound
	}
	out := *o
	return &out, nil
}

func (t *memTx) UpdateOrderFill(orderID int64, filled int64, status types.OrderStatus) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return types.ErrOrderNotFound
	}
	if _, saved := t.orderImages[orderID]; !saved {
		img := *o
		t.orderImages[orderID] = &img
	}
	o.Filled = filled
	o.Status = status
	return nil
}

func (t *memTx) InsertFill(f *types.Fill) (int64, error) {
	t.s.nextFillID++
	stored := *f
	stored.ID = t.s.nextFillID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	t.s.fills = append(t.s.fills, &stored)
	t.fillsAppended++
	f.ID = stored.ID
	return stored.ID, nil
}

func (t *memTx) Position(userID, marketID int64, side types.Side) (*types.Position, error) {
	for _, p := range t.s.positions {
		if p.UserID == userID && p.MarketID == marketID && p.Side == side {
			out := *p
			return &out, nil
		}
	}
	return nil, types.ErrPositionNotFound
}

func (t *memTx) UpsertPosition(p *types.Position) error {
	if p.ID == 0 {
		t.s.nextPositionID++
		stored := *p
		stored.ID = t.s.nextPositionID
		t.s.positions[stored.ID] = &stored
		t.newPositions = append(t.newPositions, stored.ID)
		p.ID = stored.ID
		return nil
	}

	existing, ok := t.s.positions[p.ID]
	if !ok {
		return types.ErrPositionNotFound
	}
	if _, saved := t.positionImages[p.ID]; !saved {
		img := *existing
		t.positionImages[p.ID] = &img
	}
	existing.Quantity = p.Quantity
	existing.AvgPrice = p.AvgPrice
	return nil
}

func (t *memTx) PositionsByMarket(marketID int64) ([]*types.Position, error) {
	var out []*types.Position
	for _, p := range t.s.positions {
		if p.MarketID == marketID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CancelRestingOrders(marketID int64) (int64, error) {
	var n int64
	for id, o := range t.s.orders {
		if o.MarketID == marketID && o.Resting() {
			if _, saved := t.orderImages[id]; !saved {
				img := *o
				t.orderImages[id] = &img
			}
			o.Status = types.OrderCancelled
			n++
		}
	}
	return n, nil
}

// --- Point operations ---

func (s *MemoryStore) CreateUser(ctx context.Context, u *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return types.ErrEmailTaken
		}
	}

	s.nextUserID++
	u.ID = s.nextUserID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	stored := *u
	s.users[u.ID] = &stored
	return nil
}

func (s *MemoryStore) User(ctx context.Context, id int64) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) UserByEmail(ctx context.Context, email string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, types.ErrUserNotFound
}

func (s *MemoryStore) CreateMarket(ctx context.Context, m *types.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.markets {
		if existing.Ticker == m.Ticker {
			return types.ErrTickerTaken
		}
	}

	s.nextMarketID++
	m.ID = s.nextMarketID
	if m.Status == "" {
		m.Status = types.MarketOpen
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	stored := *m
	s.markets[m.ID] = &stored
	return nil
}

func (s *MemoryStore) Market(ctx context.Context, id int64) (*types.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, types.ErrMarketNotFound
	}
	out := *m
	return &out, nil
}

func (s *MemoryStore) MarketByTicker(ctx context.Context, ticker string) (*types.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.markets {
		if m.Ticker == ticker {
			out := *m
			return &out, nil
		}
	}
	return nil, types.ErrMarketNotFound
}

func (s *MemoryStore) Markets(ctx context.Context, f MarketFilter) ([]*types.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Market
	for _, m := range s.markets {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o *types.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrderID++
	o.ID = s.nextOrderID
	if o.Status == "" {
		o.Status = types.OrderOpen
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	stored := *o
	s.orders[o.ID] = &stored
	return nil
}

func (s *MemoryStore) Order(ctx context.Context, id int64) (*types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, types.ErrOrderNotFound
	}
	out := *o
	return &out, nil
}

func (s *MemoryStore) OrdersByUser(ctx context.Context, userID int64, f OrderFilter) ([]*types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Order
	for _, o := range s.orders {
		if o.UserID != userID {
			continue
		}
		if f.MarketID != 0 && o.MarketID != f.MarketID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID }) // newest first
	return out, nil
}

func (s *MemoryStore) RestingOrders(ctx context.Context, marketID int64, side types.Side) ([]*types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Order
	for _, o := range s.orders {
		if o.MarketID == marketID && o.Side == side && o.Resting() {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, orderID int64, status types.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return types.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (s *MemoryStore) FillsByMarket(ctx context.Context, marketID int64, limit int) ([]*types.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Fill
	for i := len(s.fills) - 1; i >= 0; i-- { // newest first
		if s.fills[i].MarketID != marketID {
			continue
		}
		cp := *s.fills[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) FillsByUser(ctx context.Context, userID int64, limit int) ([]*types.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orderOwner := make(map[int64]int64, len(s.orders))
	for id, o := range s.orders {
		orderOwner[id] = o.UserID
	}

	var out []*types.Fill
	for i := len(s.fills) - 1; i >= 0; i-- {
		f := s.fills[i]
		if orderOwner[f.YesOrderID] != userID && orderOwner[f.NoOrderID] != userID {
			continue
		}
		cp := *f
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) LastTradePrice(ctx context.Context, marketID int64) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.fills) - 1; i >= 0; i-- {
		if s.fills[i].MarketID == marketID {
			return s.fills[i].Price, true, nil
		}
	}
	return 0, false, nil
}

func (s *MemoryStore) MarketVolume(ctx context.Context, marketID int64) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var volume, trades int64
	for _, f := range s.fills {
		if f.MarketID == marketID {
			volume += f.Quantity
			trades++
		}
	}
	return volume, trades, nil
}

func (s *MemoryStore) BestBid(ctx context.Context, marketID int64, side types.Side) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := 0
	found := false
	for _, o := range s.orders {
		if o.MarketID == marketID && o.Side == side && o.Resting() && o.Price > best {
			best = o.Price
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) Position(ctx context.Context, userID, marketID int64, side types.Side) (*types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.positions {
		if p.UserID == userID && p.MarketID == marketID && p.Side == side {
			out := *p
			return &out, nil
		}
	}
	return nil, types.ErrPositionNotFound
}

func (s *MemoryStore) PositionsByUser(ctx context.Context, userID int64) ([]*types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Position
	for _, p := range s.positions {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AppendPricePoint(ctx context.Context, marketID int64, price int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, &types.PricePoint{
		MarketID:  marketID,
		Price:     price,
		Timestamp: at,
	})
	return nil
}

func (s *MemoryStore) PriceHistory(ctx context.Context, marketID int64, since time.Time) ([]*types.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.PricePoint
	for _, p := range s.history {
		if p.MarketID == marketID && !p.Timestamp.Before(since) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory ledger.
func (s *MemoryStore) Close() error {
	s.logger.Info("closing-memory-ledger")
	return nil
}
