// Package clob adapts the Polymarket CLOB's HTTP order-submission API
// and WebSocket market-data feed to the shapes pkg/execution and
// internal/feed need: single maker orders (never taker, never a YES/NO
// pair) and a stream of validated per-token order-book snapshots.
package clob

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

const polygonChainID = 137

// BaseURL is the Polymarket CLOB HTTP endpoint. Var rather than const
// so tests can point it at an httptest.Server.
var BaseURL = "https://clob.polymarket.com"

// OrderClient signs and submits maker orders via EIP-712 + HMAC. It
// never constructs a non-maker order: PostOnly is enforced upstream by
// types.NewOrder, and this client does not expose a path around it.
type OrderClient struct {
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string
	proxyAddress  string
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	httpClient    *http.Client
	logger        *zap.Logger
}

// Config configures an OrderClient.
type Config struct {
	APIKey        string
	Secret        string
	Passphrase    string
	PrivateKeyHex string
	ProxyAddress  string
	SignatureType int
	Logger        *zap.Logger
}

// NewOrderClient parses the signing key, derives the EOA address, and
// builds the chain-specific order builder for Polygon mainnet.
func NewOrderClient(cfg Config) (*OrderClient, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("derive public key: unexpected type")
	}
	address := crypto.PubkeyToAddress(*publicKeyECDSA).Hex()

	return &OrderClient{
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(big.NewInt(polygonChainID), nil),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        cfg.Logger,
	}, nil
}

// MakerAddress returns the proxy address if configured, else the EOA.
func (c *OrderClient) MakerAddress() string {
	if c.proxyAddress != "" {
		return c.proxyAddress
	}
	return c.address
}

// Place builds, signs, and submits a single maker order. Token amounts
// are always rounded to two decimals; tickSize selects the rounding
// precision of the USD amount.
func (c *OrderClient) Place(ctx context.Context, order types.Order, tickSize, minSize float64) (*types.OrderSubmissionResponse, error) {
	sizePrecision, amountPrecision := roundingConfig(tickSize)
	tokens := roundAmount(order.Size/order.Price, sizePrecision)
	if tokens < minSize {
		return nil, fmt.Errorf("order size %.4f below minimum %.4f tokens", tokens, minSize)
	}

	side := model.BUY
	if order.Side == types.Sell {
		side = model.SELL
	}

	makerUSD := roundAmount(tokens*order.Price, amountPrecision)
	orderData := &model.OrderData{
		Maker:         c.MakerAddress(),
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenId:       order.Token,
		MakerAmount:   usdToRawAmount(makerUSD),
		TakerAmount:   usdToRawAmount(tokens),
		Side:          side,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        c.address,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}

	signed, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, model.CTFExchange)
	if err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}

	c.logger.Info("maker-order-built",
		zap.String("maker", orderData.Maker),
		zap.String("token", order.Token),
		zap.Float64("price", order.Price),
		zap.Float64("size", order.Size))

	return c.submit(ctx, signed)
}

func (c *OrderClient) submit(ctx context.Context, order *model.SignedOrder) (*types.OrderSubmissionResponse, error) {
	reqBody, err := json.Marshal(types.OrderSubmissionRequest{
		Order:     toOrderJSON(order),
		Owner:     c.apiKey,
		OrderType: types.OrderType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := c.signedRequest(ctx, "/order", reqBody)
	if err != nil {
		return nil, err
	}

	body, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("CLOB error (status %d): %s", status, string(body))
	}

	var resp types.OrderSubmissionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// CancelOne sends a cancel for a single order ID.
func (c *OrderClient) CancelOne(ctx context.Context, orderID string) error {
	reqBody, err := json.Marshal(map[string]string{"orderID": orderID})
	if err != nil {
		return fmt.Errorf("marshal cancel request: %w", err)
	}
	httpReq, err := c.signedRequestMethod(ctx, http.MethodDelete, "/order", reqBody)
	if err != nil {
		return err
	}
	body, status, err := c.do(httpReq)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("CLOB cancel error (status %d): %s", status, string(body))
	}
	return nil
}

// OpenOrders fetches the account's resting orders from the CLOB.
func (c *OrderClient) OpenOrders(ctx context.Context) ([]types.OrderQueryResponse, error) {
	httpReq, err := c.signedRequestMethod(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, err
	}
	body, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("CLOB open-orders error (status %d): %s", status, string(body))
	}
	var resp []types.OrderQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse open orders: %w", err)
	}
	return resp, nil
}

// OrderStatus fetches a single order's current status.
func (c *OrderClient) OrderStatus(ctx context.Context, orderID string) (types.OrderQueryResponse, error) {
	var resp types.OrderQueryResponse
	httpReq, err := c.signedRequestMethod(ctx, http.MethodGet, "/order/"+orderID, nil)
	if err != nil {
		return resp, err
	}
	body, status, err := c.do(httpReq)
	if err != nil {
		return resp, err
	}
	if status != http.StatusOK {
		return resp, fmt.Errorf("CLOB order-status error (status %d): %s", status, string(body))
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("parse order status: %w", err)
	}
	return resp, nil
}

// CancelAll cancels every open order for this account.
func (c *OrderClient) CancelAll(ctx context.Context) error {
	httpReq, err := c.signedRequestMethod(ctx, http.MethodDelete, "/cancel-all", nil)
	if err != nil {
		return err
	}
	body, status, err := c.do(httpReq)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("CLOB cancel-all error (status %d): %s", status, string(body))
	}
	return nil
}

func (c *OrderClient) signedRequest(ctx context.Context, path string, body []byte) (*http.Request, error) {
	return c.signedRequestMethod(ctx, http.MethodPost, path, body)
}

func (c *OrderClient) signedRequestMethod(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signaturePayload := timestamp + method + path + string(body)

	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(signaturePayload))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, method, BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.address)
	return req, nil
}

func (c *OrderClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func toOrderJSON(order *model.SignedOrder) types.SignedOrderJSON {
	side := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		side = "SELL"
	}
	return types.SignedOrderJSON{
		Salt:          order.Salt.Int64(),
		Maker:         order.Maker.Hex(),
		Signer:        order.Signer.Hex(),
		Taker:         order.Taker.Hex(),
		TokenID:       order.TokenId.String(),
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Side:          side,
		Expiration:    order.Expiration.String(),
		Nonce:         order.Nonce.String(),
		FeeRateBps:    order.FeeRateBps.String(),
		SignatureType: int(order.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(order.Signature),
	}
}

func usdToRawAmount(usd float64) string {
	return fmt.Sprintf("%d", int64(usd*1_000_000))
}

// roundingConfig mirrors the CLOB's published tick-size -> precision
// table; unknown tick sizes fall back to the 0.01 entry.
func roundingConfig(tickSize float64) (sizePrecision, amountPrecision int) {
	switch tickSize {
	case 0.1:
		return 2, 3
	case 0.01:
		return 2, 4
	case 0.001:
		return 2, 5
	case 0.0001:
		return 2, 6
	default:
		return 2, 4
	}
}

func roundAmount(value float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(value*mult) / mult
}
