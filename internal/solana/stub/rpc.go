package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"launch-sniper/internal/solana"
)

// ErrNotFound is returned when a requested mint has no stubbed data.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu sync.Mutex

	Transactions map[string]*solana.Transaction
	Accounts     map[string]*solana.AccountInfo
	Balances     map[string]uint64
	Largest      map[string][]solana.TokenAmount
	Supplies     map[string]*solana.TokenAmount

	// Err, when set, is returned by every call.
	Err error
	// SendErr, when set, is returned by SendTransaction.
	SendErr error
	// Sent records every transaction passed to SendTransaction.
	Sent []string
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Accounts:     make(map[string]*solana.AccountInfo),
		Balances:     make(map[string]uint64),
		Largest:      make(map[string][]solana.TokenAmount),
		Supplies:     make(map[string]*solana.TokenAmount),
	}
}

// GetTransaction returns the stubbed transaction, or nil if absent.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Transactions[signature], nil
}

// GetAccountInfo returns the stubbed account, or nil if absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Accounts[pubkey], nil
}

// GetBalance returns the stubbed balance, zero if absent.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Balances[pubkey], nil
}

// GetTokenLargestAccounts returns the stubbed accounts.
func (c *RPCClient) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	accounts, ok := c.Largest[mint]
	if !ok {
		return nil, ErrNotFound
	}
	return accounts, nil
}

// GetTokenSupply returns the stubbed supply.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	supply, ok := c.Supplies[mint]
	if !ok {
		return nil, ErrNotFound
	}
	return supply, nil
}

// SendTransaction records the transaction and returns a synthetic signature.
func (c *RPCClient) SendTransaction(_ context.Context, encoded string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.Sent = append(c.Sent, encoded)
	return fmt.Sprintf("stub-sig-%d", len(c.Sent)), nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// SetHolders stubs the largest accounts and supply of a mint.
func (c *RPCClient) SetHolders(mint string, supply string, decimals int, amounts ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	accounts := make([]solana.TokenAmount, len(amounts))
	for i, a := range amounts {
		accounts[i] = solana.TokenAmount{Address: fmt.Sprintf("holder-%d", i), Amount: a, Decimals: decimals}
	}
	c.Largest[mint] = accounts
	c.Supplies[mint] = &solana.TokenAmount{Amount: supply, Decimals: decimals}
}

// SetAccount stubs an account.
func (c *RPCClient) SetAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}

// SetBalance stubs a lamport balance.
func (c *RPCClient) SetBalance(pubkey string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[pubkey] = lamports
}
