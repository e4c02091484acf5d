package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mercatus-exchange/mercatus/pkg/types"
	"go.uber.org/zap"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	DSN    string
	Logger *zap.Logger
}

// NewPostgresStore opens a connection to PostgreSQL and verifies it.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-ledger-connected")

	return &PostgresStore{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// Migrate applies the ledger schema idempotently.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	p.logger.Info("postgres-schema-applied")
	return nil
}

// pgTx adapts *sql.Tx to the ledger Tx interface.
type pgTx struct {
	tx *sql.Tx
}

// InTx runs fn inside one database transaction, committing on nil and
// rolling back otherwise.
func (p *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	err = fn(&pgTx{tx: tx})
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil {
			return fmt.Errorf("rollback after error: %v (original: %w)", rbErr, err)
		}
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (t *pgTx) UserForUpdate(id int64) (*types.User, error) {
	u := &types.User{}
	err := t.tx.QueryRow(
		`SELECT id, email, balance, created_at FROM users WHERE id = $1 FOR UPDATE`, id,
	).Scan(&u.ID, &u.Email, &u.Balance, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return u, nil
}

func (t *pgTx) AdjustBalance(userID int64, delta int64) error {
	res, err := t.tx.Exec(
		`UPDATE users SET balance = balance + $1 WHERE id = $2 AND balance + $1 >= 0`,
		delta, userID,
	)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		err = t.tx.QueryRow(`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return types.ErrUserNotFound
		}
		return types.ErrInsufficientFunds
	}

	return nil
}

func (t *pgTx) Market(id int64) (*types.Market, error) {
	return scanMarket(t.tx.QueryRow(
		`SELECT id, ticker, title, description, category, status, resolved_outcome, settlement_date, created_at
		 FROM markets WHERE id = $1`, id,
	))
}

func (t *pgTx) SetMarketResolved(marketID int64, outcome types.Side) error {
	res, err := t.tx.Exec(
		`UPDATE markets SET status = 'settled', resolved_outcome = $1 WHERE id = $2`,
		string(outcome), marketID,
	)
	if err != nil {
		return fmt.Errorf("resolve market: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return types.ErrMarketNotFound
	}
	return nil
}

func (t *pgTx) Order(id int64) (*types.Order, error) {
	return scanOrder(t.tx.QueryRow(
		`SELECT id, user_id, market_id, side, price, quantity, filled_quantity, status, created_at
		 FROM orders WHERE id = $1`, id,
	))
}

func (t *pgTx) UpdateOrderFill(orderID int64, filled int64, status types.OrderStatus) error {
	res, err := t.tx.Exec(
		`UPDATE orders SET filled_quantity = $1, status = $2 WHERE id = $3`,
		filled, string(status), orderID,
	)
	if err != nil {
		return fmt.Errorf("update order fill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return types.ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) InsertFill(f *types.Fill) (int64, error) {
	err := t.tx.QueryRow(
		`INSERT INTO fills (market_id, yes_order_id, no_order_id, price, quantity)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		f.MarketID, f.YesOrderID, f.NoOrderID, f.Price, f.Quantity,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert fill: %w", err)
	}
	return f.ID, nil
}

func (t *pgTx) Position(userID, marketID int64, side types.Side) (*types.Position, error) {
	p := &types.Position{}
	err := t.tx.QueryRow(
		`SELECT id, user_id, market_id, side, quantity, avg_price
		 FROM positions WHERE user_id = $1 AND market_id = $2 AND side = $3`,
		userID, marketID, string(side),
	).Scan(&p.ID, &p.UserID, &p.MarketID, &p.Side, &p.Quantity, &p.AvgPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query position: %w", err)
	}
	return p, nil
}

func (t *pgTx) UpsertPosition(p *types.Position) error {
	if p.ID == 0 {
		err := t.tx.QueryRow(
			`INSERT INTO positions (user_id, market_id, side, quantity, avg_price)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			p.UserID, p.MarketID, string(p.Side), p.Quantity, p.AvgPrice,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("insert position: %w", err)
		}
		return nil
	}

	res, err := t.tx.Exec(
		`UPDATE positions SET quantity = $1, avg_price = $2 WHERE id = $3`,
		p.Quantity, p.AvgPrice, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return types.ErrPositionNotFound
	}
	return nil
}

func (t *pgTx) PositionsByMarket(marketID int64) ([]*types.Position, error) {
	rows, err := t.tx.Query(
		`SELECT id, user_id, market_id, side, quantity, avg_price
		 FROM positions WHERE market_id = $1 ORDER BY id`, marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []*types.Position
	for rows.Next() {
		p := &types.Position{}
		err = rows.Scan(&p.ID, &p.UserID, &p.MarketID, &p.Side, &p.Quantity, &p.AvgPrice)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) CancelRestingOrders(marketID int64) (int64, error) {
	res, err := t.tx.Exec(
		`UPDATE orders SET status = 'cancelled' WHERE market_id = $1 AND status IN ('open', 'partial')`,
		marketID,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel orders: %w", err)
	}
	return res.RowsAffected()
}

// --- Point operations ---

func (p *PostgresStore) CreateUser(ctx context.Context, u *types.User) error {
	balance := u.Balance
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (email, balance) VALUES ($1, $2) RETURNING id, created_at`,
		u.Email, balance,
	).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return types.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (p *PostgresStore) User(ctx context.Context, id int64) (*types.User, error) {
	u := &types.User{}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, balance, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Balance, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (p *PostgresStore) UserByEmail(ctx context.Context, email string) (*types.User, error) {
	u := &types.User{}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, balance, created_at FROM users WHERE lower(email) = lower($1)`, email,
	).Scan(&u.ID, &u.Email, &u.Balance, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return u, nil
}

func (p *PostgresStore) CreateMarket(ctx context.Context, m *types.Market) error {
	if m.Status == "" {
		m.Status = types.MarketOpen
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO markets (ticker, title, description, category, status, settlement_date)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		m.Ticker, m.Title, m.Description, m.Category, string(m.Status), m.SettlementDate,
	).Scan(&m.ID, &m.CreatedAt)
	if isUniqueViolation(err) {
		return types.ErrTickerTaken
	}
	if err != nil {
		return fmt.Errorf("insert market: %w", err)
	}
	return nil
}

func (p *PostgresStore) Market(ctx context.Context, id int64) (*types.Market, error) {
	return scanMarket(p.db.QueryRowContext(ctx,
		`SELECT id, ticker, title, description, category, status, resolved_outcome, settlement_date, created_at
		 FROM markets WHERE id = $1`, id,
	))
}

func (p *PostgresStore) MarketByTicker(ctx context.Context, ticker string) (*types.Market, error) {
	return scanMarket(p.db.QueryRowContext(ctx,
		`SELECT id, ticker, title, description, category, status, resolved_outcome, settlement_date, created_at
		 FROM markets WHERE ticker = $1`, ticker,
	))
}

func (p *PostgresStore) Markets(ctx context.Context, f MarketFilter) ([]*types.Market, error) {
	query := `SELECT id, ticker, title, description, category, status, resolved_outcome, settlement_date, created_at
		 FROM markets WHERE 1=1`
	args := []interface{}{}

	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query markets: %w", err)
	}
	defer rows.Close()

	var out []*types.Market
	for rows.Next() {
		m, err := scanMarketRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateOrder(ctx context.Context, o *types.Order) error {
	if o.Status == "" {
		o.Status = types.OrderOpen
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, market_id, side, price, quantity, filled_quantity, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		o.UserID, o.MarketID, string(o.Side), o.Price, o.Quantity, o.Filled, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (p *PostgresStore) Order(ctx context.Context, id int64) (*types.Order, error) {
	return scanOrder(p.db.QueryRowContext(ctx,
		`SELECT id, user_id, market_id, side, price, quantity, filled_quantity, status, created_at
		 FROM orders WHERE id = $1`, id,
	))
}

func (p *PostgresStore) OrdersByUser(ctx context.Context, userID int64, f OrderFilter) ([]*types.Order, error) {
	query := `SELECT id, user_id, market_id, side, price, quantity, filled_quantity, status, created_at
		 FROM orders WHERE user_id = $1`
	args := []interface{}{userID}

	if f.MarketID != 0 {
		args = append(args, f.MarketID)
		query += fmt.Sprintf(" AND market_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY id DESC"

	return p.queryOrders(ctx, query, args...)
}

func (p *PostgresStore) RestingOrders(ctx context.Context, marketID int64, side types.Side) ([]*types.Order, error) {
	return p.queryOrders(ctx,
		`SELECT id, user_id, market_id, side, price, quantity, filled_quantity, status, created_at
		 FROM orders
		 WHERE market_id = $1 AND side = $2 AND status IN ('open', 'partial')`,
		marketID, string(side),
	)
}

func (p *PostgresStore) UpdateOrderStatus(ctx context.Context, orderID int64, status types.OrderStatus) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2`, string(status), orderID,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return types.ErrOrderNotFound
	}
	return nil
}

func (p *PostgresStore) FillsByMarket(ctx context.Context, marketID int64, limit int) ([]*types.Fill, error) {
	return p.queryFills(ctx,
		`SELECT id, market_id, yes_order_id, no_order_id, price, quantity, created_at
		 FROM fills WHERE market_id = $1 ORDER BY id DESC LIMIT $2`,
		marketID, nullableLimit(limit),
	)
}

func (p *PostgresStore) FillsByUser(ctx context.Context, userID int64, limit int) ([]*types.Fill, error) {
	return p.queryFills(ctx,
		`SELECT f.id, f.market_id, f.yes_order_id, f.no_order_id, f.price, f.quantity, f.created_at
		 FROM fills f
		 JOIN orders yo ON yo.id = f.yes_order_id
		 JOIN orders no ON no.id = f.no_order_id
		 WHERE yo.user_id = $1 OR no.user_id = $1
		 ORDER BY f.id DESC LIMIT $2`,
		userID, nullableLimit(limit),
	)
}

func (p *PostgresStore) LastTradePrice(ctx context.Context, marketID int64) (int, bool, error) {
	var price int
	err := p.db.QueryRowContext(ctx,
		`SELECT price FROM fills WHERE market_id = $1 ORDER BY id DESC LIMIT 1`, marketID,
	).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query last trade price: %w", err)
	}
	return price, true, nil
}

func (p *PostgresStore) MarketVolume(ctx context.Context, marketID int64) (int64, int64, error) {
	var volume, trades int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0), COUNT(*) FROM fills WHERE market_id = $1`, marketID,
	).Scan(&volume, &trades)
	if err != nil {
		return 0, 0, fmt.Errorf("query market volume: %w", err)
	}
	return volume, trades, nil
}

func (p *PostgresStore) BestBid(ctx context.Context, marketID int64, side types.Side) (int, bool, error) {
	var price sql.NullInt64
	err := p.db.QueryRowContext(ctx,
		`SELECT MAX(price) FROM orders
		 WHERE market_id = $1 AND side = $2 AND status IN ('open', 'partial')`,
		marketID, string(side),
	).Scan(&price)
	if err != nil {
		return 0, false, fmt.Errorf("query best bid: %w", err)
	}
	if !price.Valid {
		return 0, false, nil
	}
	return int(price.Int64), true, nil
}

func (p *PostgresStore) Position(ctx context.Context, userID, marketID int64, side types.Side) (*types.Position, error) {
	pos := &types.Position{}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, user_id, market_id, side, quantity, avg_price
		 FROM positions WHERE user_id = $1 AND market_id = $2 AND side = $3`,
		userID, marketID, string(side),
	).Scan(&pos.ID, &pos.UserID, &pos.MarketID, &pos.Side, &pos.Quantity, &pos.AvgPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query position: %w", err)
	}
	return pos, nil
}

func (p *PostgresStore) PositionsByUser(ctx context.Context, userID int64) ([]*types.Position, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, market_id, side, quantity, avg_price
		 FROM positions WHERE user_id = $1 ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []*types.Position
	for rows.Next() {
		pos := &types.Position{}
		err = rows.Scan(&pos.ID, &pos.UserID, &pos.MarketID, &pos.Side, &pos.Quantity, &pos.AvgPrice)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

func (p *PostgresStore) AppendPricePoint(ctx context.Context, marketID int64, price int, at time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO price_history (market_id, price, ts) VALUES ($1, $2, $3)`,
		marketID, price, at,
	)
	if err != nil {
		return fmt.Errorf("insert price point: %w", err)
	}
	return nil
}

func (p *PostgresStore) PriceHistory(ctx context.Context, marketID int64, since time.Time) ([]*types.PricePoint, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT market_id, price, ts FROM price_history
		 WHERE market_id = $1 AND ts >= $2 ORDER BY ts`, marketID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var out []*types.PricePoint
	for rows.Next() {
		pt := &types.PricePoint{}
		err = rows.Scan(&pt.MarketID, &pt.Price, &pt.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-ledger")
	return p.db.Close()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMarket(row rowScanner) (*types.Market, error) {
	m, err := scanMarketRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrMarketNotFound
	}
	return m, err
}

func scanMarketRow(row rowScanner) (*types.Market, error) {
	m := &types.Market{}
	var outcome sql.NullString
	err := row.Scan(&m.ID, &m.Ticker, &m.Title, &m.Description, &m.Category,
		&m.Status, &outcome, &m.SettlementDate, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if outcome.Valid {
		m.ResolvedOutcome = types.Side(outcome.String)
	}
	return m, nil
}

func scanOrder(row rowScanner) (*types.Order, error) {
	o := &types.Order{}
	err := row.Scan(&o.ID, &o.UserID, &o.MarketID, &o.Side, &o.Price,
		&o.Quantity, &o.Filled, &o.Status, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

func (p *PostgresStore) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*types.Order, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []*types.Order
	for rows.Next() {
		o := &types.Order{}
		err = rows.Scan(&o.ID, &o.UserID, &o.MarketID, &o.Side, &o.Price,
			&o.Quantity, &o.Filled, &o.Status, &o.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *PostgresStore) queryFills(ctx context.Context, query string, args ...interface{}) ([]*types.Fill, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fills: %w", err)
	}
	defer rows.Close()

	var out []*types.Fill
	for rows.Next() {
		f := &types.Fill{}
		err = rows.Scan(&f.ID, &f.MarketID, &f.YesOrderID, &f.NoOrderID, &f.Price, &f.Quantity, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullableLimit(limit int) interface{} {
	if limit <= 0 {
		return nil // LIMIT NULL means no limit
	}
	return limit
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
