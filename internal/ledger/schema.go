package ledger

// Schema is the PostgreSQL schema for the ledger. Applied idempotently by
// Migrate at startup and by the seed command.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id         BIGSERIAL PRIMARY KEY,
	email      TEXT UNIQUE NOT NULL,
	balance    BIGINT NOT NULL DEFAULT 100000 CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS markets (
	id               BIGSERIAL PRIMARY KEY,
	ticker           TEXT UNIQUE NOT NULL,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT 'general',
	status           TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed', 'settled')),
	resolved_outcome TEXT CHECK (resolved_outcome IN ('yes', 'no') OR resolved_outcome IS NULL),
	settlement_date  TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id              BIGSERIAL PRIMARY KEY,
	user_id         BIGINT NOT NULL REFERENCES users(id),
	market_id       BIGINT NOT NULL REFERENCES markets(id),
	side            TEXT NOT NULL CHECK (side IN ('yes', 'no')),
	price           INTEGER NOT NULL CHECK (price >= 1 AND price <= 99),
	quantity        BIGINT NOT NULL CHECK (quantity > 0),
	filled_quantity BIGINT NOT NULL DEFAULT 0 CHECK (filled_quantity >= 0 AND filled_quantity <= quantity),
	status          TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'partial', 'filled', 'cancelled')),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fills (
	id           BIGSERIAL PRIMARY KEY,
	market_id    BIGINT NOT NULL REFERENCES markets(id),
	yes_order_id BIGINT NOT NULL REFERENCES orders(id),
	no_order_id  BIGINT NOT NULL REFERENCES orders(id),
	price        INTEGER NOT NULL CHECK (price >= 1 AND price <= 99),
	quantity     BIGINT NOT NULL CHECK (quantity > 0),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS positions (
	id        BIGSERIAL PRIMARY KEY,
	user_id   BIGINT NOT NULL REFERENCES users(id),
	market_id BIGINT NOT NULL REFERENCES markets(id),
	side      TEXT NOT NULL CHECK (side IN ('yes', 'no')),
	quantity  BIGINT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
	avg_price INTEGER NOT NULL DEFAULT 0,
	UNIQUE (user_id, market_id, side)
);

CREATE TABLE IF NOT EXISTS price_history (
	id        BIGSERIAL PRIMARY KEY,
	market_id BIGINT NOT NULL REFERENCES markets(id),
	price     INTEGER NOT NULL,
	ts        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_orders_market_side_status ON orders (market_id, side, status);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id);
CREATE INDEX IF NOT EXISTS idx_fills_market ON fills (market_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_positions_user ON positions (user_id);
CREATE INDEX IF NOT EXISTS idx_price_history_market ON price_history (market_id, ts);
`
