package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used by the bot.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature. Returns nil if not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo retrieves an account. Returns nil if not found.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetBalance returns the account balance in lamports.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetTokenLargestAccounts returns the 20 largest token accounts of a mint.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAmount, error)

	// GetTokenSupply returns the total supply of a mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error)

	// SendTransaction submits a signed, base64 encoded transaction and returns its signature.
	SendTransaction(ctx context.Context, encoded string) (string, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	PostTokenBalances []TokenBalance
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}

// TokenBalance is a token account balance recorded in transaction meta.
type TokenBalance struct {
	AccountIndex int    `json:"accountIndex"`
	Mint         string `json:"mint"`
	Owner        string `json:"owner"`
}

// TokenAmount is a raw token amount with its decimals.
type TokenAmount struct {
	Address  string `json:"address,omitempty"`
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
