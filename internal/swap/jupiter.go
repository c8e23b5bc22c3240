// Package swap buys tokens with SOL through the Jupiter aggregator: quote,
// build, sign locally, send through RPC.
package swap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/httpclient"
	"launch-sniper/internal/logging"
	"launch-sniper/internal/retry"
	"launch-sniper/internal/wallet"
)

// DefaultBaseURL is the Jupiter swap API.
const DefaultBaseURL = "https://api.jup.ag/swap/v1"

// ErrNoRoute is returned when Jupiter has no route for the pair.
var ErrNoRoute = errors.New("no swap route")

// Signer signs transactions for the paying wallet.
type Signer interface {
	PublicKey() string
	SignTransaction(raw []byte) ([]byte, error)
}

// Sender submits signed transactions.
type Sender interface {
	SendTransaction(ctx context.Context, encoded string) (string, error)
}

// Jupiter executes SOL to token swaps.
type Jupiter struct {
	baseURL     string
	http        *httpclient.Client
	signer      Signer
	sender      Sender
	priorityFee uint64
	logger      *zap.Logger
}

// Option configures Jupiter.
type Option func(*Jupiter)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(j *Jupiter) {
		if u != "" {
			j.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPriorityFee sets the prioritization fee in lamports. Zero lets Jupiter pick.
func WithPriorityFee(lamports uint64) Option {
	return func(j *Jupiter) {
		j.priorityFee = lamports
	}
}

// WithTimeout sets the HTTP timeout for quote and swap calls.
func WithTimeout(d time.Duration) Option {
	return func(j *Jupiter) {
		httpclient.WithTimeout(d)(j.http)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(j *Jupiter) {
		j.logger = logging.OrNop(l)
	}
}

// NewJupiter creates a swap client paying from signer.
func NewJupiter(signer Signer, sender Sender, opts ...Option) *Jupiter {
	j := &Jupiter{
		baseURL: DefaultBaseURL,
		http: httpclient.New("jupiter",
			httpclient.WithRateLimit(5, 5),
			httpclient.WithRetry(retry.Options{MaxRetries: 1, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}),
		),
		signer: signer,
		sender: sender,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

type quoteError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
	OutAmount string `json:"outAmount"`
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports interface{}     `json:"prioritizationFeeLamports,omitempty"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	Error           string `json:"error"`
}

// Swap spends amount SOL on mint with the given slippage and returns the
// transaction signature.
func (j *Jupiter) Swap(ctx context.Context, mint string, amount decimal.Decimal, slippageBps int) (string, error) {
	lamports := wallet.ToLamports(amount)
	if lamports == 0 {
		return "", fmt.Errorf("swap amount %s rounds to zero lamports", amount)
	}

	quote, err := j.quote(ctx, mint, lamports, slippageBps)
	if err != nil {
		return "", err
	}

	req := swapRequest{
		QuoteResponse:           quote,
		UserPublicKey:           j.signer.PublicKey(),
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
	}
	if j.priorityFee > 0 {
		req.PrioritizationFeeLamports = j.priorityFee
	} else {
		req.PrioritizationFeeLamports = "auto"
	}

	var resp swapResponse
	if err := j.http.PostJSON(ctx, j.baseURL+"/swap", req, &resp); err != nil {
		return "", fmt.Errorf("build swap: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("build swap: %s", resp.Error)
	}
	if resp.SwapTransaction == "" {
		return "", fmt.Errorf("build swap: empty transaction")
	}

	raw, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return "", fmt.Errorf("decode swap transaction: %w", err)
	}
	signed, err := j.signer.SignTransaction(raw)
	if err != nil {
		return "", err
	}

	sig, err := j.sender.SendTransaction(ctx, base64.StdEncoding.EncodeToString(signed))
	if err != nil {
		return "", fmt.Errorf("send swap: %w", err)
	}

	j.logger.Info("swap sent",
		zap.String("mint", mint),
		zap.Uint64("lamports", lamports),
		zap.Int("slippage_bps", slippageBps),
		zap.String("signature", sig))
	return sig, nil
}

func (j *Jupiter) quote(ctx context.Context, mint string, lamports uint64, slippageBps int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("inputMint", domain.WSOLMint)
	q.Set("outputMint", mint)
	q.Set("amount", strconv.FormatUint(lamports, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("swapMode", "ExactIn")

	var raw json.RawMessage
	if err := j.http.GetJSON(ctx, j.baseURL+"/quote?"+q.Encode(), &raw); err != nil {
		if errors.Is(err, httpclient.ErrNotFound) {
			return nil, fmt.Errorf("quote %s: %w", mint, ErrNoRoute)
		}
		return nil, fmt.Errorf("quote %s: %w", mint, err)
	}

	var check quoteError
	if err := json.Unmarshal(raw, &check); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if check.Error != "" {
		return nil, fmt.Errorf("quote %s: %w: %s", mint, ErrNoRoute, check.Error)
	}
	if check.OutAmount == "" || check.OutAmount == "0" {
		return nil, fmt.Errorf("quote %s: %w", mint, ErrNoRoute)
	}
	return raw, nil
}
