package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"market-service/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:embed scripts/adjust_balance.lua
var adjustBalanceScript string

// Balances are stored in minor units (cents) so the Lua script can apply
// deltas with integer arithmetic and stay exact.
const balanceExponent = 2

type Client struct {
	rdb          *redis.Client
	adjustScript *redis.Script
}

// NewClient creates a new Redis-backed account ledger client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		adjustScript: redis.NewScript(adjustBalanceScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetBalance retrieves an owner's balance. Unknown owners have a zero balance.
func (c *Client) GetBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	key := balanceKey(ownerID)

	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}

	units, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance for %s: %w", ownerID, err)
	}

	return decimal.New(units, -balanceExponent), nil
}

// AdjustBalance applies a debit or credit atomically. The adjustment either
// fully applies or is rejected with ErrInsufficientFunds when it would
// overdraw; there is no partial effect.
func (c *Client) AdjustBalance(ctx context.Context, ownerID uuid.UUID, delta decimal.Decimal) error {
	units := delta.Shift(balanceExponent)
	if !units.IsInteger() {
		return fmt.Errorf("amount %s has more than %d decimal places", delta, balanceExponent)
	}

	result, err := c.adjustScript.Run(ctx, c.rdb, []string{balanceKey(ownerID)}, units.IntPart()).Result()
	if err != nil {
		return fmt.Errorf("adjust balance script failed: %w", err)
	}

	applied, ok := result.(int64)
	if !ok {
		return fmt.Errorf("unexpected script result type")
	}
	if applied != 1 {
		return models.ErrInsufficientFunds
	}

	return nil
}

// SetBalance overwrites an owner's balance. Used for seeding and tests.
func (c *Client) SetBalance(ctx context.Context, ownerID uuid.UUID, balance decimal.Decimal) error {
	units := balance.Shift(balanceExponent)
	if !units.IsInteger() {
		return fmt.Errorf("amount %s has more than %d decimal places", balance, balanceExponent)
	}
	return c.rdb.Set(ctx, balanceKey(ownerID), units.IntPart(), 0).Err()
}

func balanceKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("balance:%s", ownerID)
}
