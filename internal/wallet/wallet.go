// Package wallet holds the operator key: it reports the SOL balance and
// signs transactions built elsewhere.
package wallet

import (
	"context"
	"fmt"
	"strings"

	sol "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"launch-sniper/internal/solana"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

// Wallet is a local signer backed by a base58 private key.
type Wallet struct {
	key sol.PrivateKey
	rpc solana.RPCClient
}

// FromBase58 loads a wallet from a base58 encoded private key.
func FromBase58(privateKey string, rpc solana.RPCClient) (*Wallet, error) {
	key, err := sol.PrivateKeyFromBase58(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wallet key: %w", err)
	}
	return &Wallet{key: key, rpc: rpc}, nil
}

// PublicKey returns the wallet address.
func (w *Wallet) PublicKey() string {
	return w.key.PublicKey().String()
}

// Balance returns the SOL balance.
func (w *Wallet) Balance(ctx context.Context) (decimal.Decimal, error) {
	lamports, err := w.rpc.GetBalance(ctx, w.PublicKey())
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return FromLamports(lamports), nil
}

// SignTransaction signs a serialized transaction that names this wallet as
// a signer and returns the serialized signed transaction.
func (w *Wallet) SignTransaction(raw []byte) ([]byte, error) {
	tx, err := sol.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	own := w.key.PublicKey()
	if _, err := tx.Sign(func(pub sol.PublicKey) *sol.PrivateKey {
		if pub.Equals(own) {
			return &w.key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	out, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return out, nil
}

// FromLamports converts lamports to SOL.
func FromLamports(lamports uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(lamports)).Div(lamportsPerSOL)
}

// ToLamports converts SOL to lamports, truncating below one lamport.
func ToLamports(amount decimal.Decimal) uint64 {
	if amount.IsNegative() {
		return 0
	}
	return uint64(amount.Mul(lamportsPerSOL).Truncate(0).IntPart())
}
