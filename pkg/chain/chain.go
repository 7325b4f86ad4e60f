// Package chain implements spec.md §6's on-chain settlement interface:
// collateral/token balance reads, conditional-token redemption, gas
// price, and a liveness probe. Adapted from pkg/wallet.Client's
// ERC-20 balanceOf/allowance ABI-call pattern, extended with a
// conditional-tokens redeemPositions call the wallet client never
// needed.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const redeemGasLimit = 300_000

var (
	erc20ABI = mustParseABI(`[
		{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
		{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
	]`)

	ctfABI = mustParseABI(`[
		{"constant":true,"inputs":[{"name":"conditionId","type":"bytes32"}],"name":"payoutDenominator","outputs":[{"name":"","type":"uint256"}],"type":"function"},
		{"constant":false,"inputs":[{"name":"collateralToken","type":"address"},{"name":"parentCollectionId","type":"bytes32"},{"name":"conditionId","type":"bytes32"},{"name":"indexSets","type":"uint256[]"}],"name":"redeemPositions","outputs":[],"type":"function"}
	]`)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: invalid embedded ABI: %v", err))
	}
	return parsed
}

// Interface is the on-chain settlement surface the engine's
// persistence/redemption paths depend on, per spec.md §6.
type Interface interface {
	USDCBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, tokenAddr string, owner common.Address) (*big.Int, error)
	BatchRedeem(ctx context.Context, conditionIDs []string) ([]string, error)
	IsConditionResolved(ctx context.Context, conditionID string) (bool, error)
	GasPriceGwei(ctx context.Context) (float64, error)
	IsHealthy(ctx context.Context) bool
}

// Config configures a Client.
type Config struct {
	RPCURL            string
	PrivateKeyHex     string
	USDCAddress       string
	ConditionalTokens string
	Logger            *zap.Logger
}

// Client implements Interface against Polygon mainnet via
// go-ethereum's ethclient, dialing fresh per call the way
// pkg/wallet.Client does — this process makes on-chain calls rarely
// enough (balance checks, end-of-day redemption) that holding a
// persistent connection isn't worth the reconnect bookkeeping.
type Client struct {
	rpcURL            string
	usdcAddress       common.Address
	conditionalTokens common.Address
	privateKey        *ecdsa.PrivateKey
	address           common.Address
	log               *zap.Logger
}

// NewClient parses the redeemer's signing key and returns a Client
// bound to the given RPC endpoint and contract addresses.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain: rpc url must not be empty")
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: parse private key: %w", err)
	}
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("chain: derive public key: unexpected type")
	}
	return &Client{
		rpcURL:            cfg.RPCURL,
		usdcAddress:       common.HexToAddress(cfg.USDCAddress),
		conditionalTokens: common.HexToAddress(cfg.ConditionalTokens),
		privateKey:        privateKey,
		address:           crypto.PubkeyToAddress(*publicKey),
		log:               cfg.Logger,
	}, nil
}

// USDCBalance returns owner's collateral balance in 6-decimal units.
func (c *Client) USDCBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return c.TokenBalance(ctx, c.usdcAddress.Hex(), owner)
}

// TokenBalance calls the ERC-20 balanceOf method on tokenAddr.
func (c *Client) TokenBalance(ctx context.Context, tokenAddr string, owner common.Address) (*big.Int, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc: %w", err)
	}
	defer client.Close()

	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("chain: pack balanceOf: %w", err)
	}

	token := common.HexToAddress(tokenAddr)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call balanceOf: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// IsConditionResolved reports whether the conditional-tokens contract
// has recorded a non-zero payout denominator for conditionID — the
// on-chain signal that an oracle has reported the outcome.
func (c *Client) IsConditionResolved(ctx context.Context, conditionID string) (bool, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return false, fmt.Errorf("chain: dial rpc: %w", err)
	}
	defer client.Close()

	data, err := ctfABI.Pack("payoutDenominator", common.HexToHash(conditionID))
	if err != nil {
		return false, fmt.Errorf("chain: pack payoutDenominator: %w", err)
	}

	ct := c.conditionalTokens
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &ct, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("chain: call payoutDenominator: %w", err)
	}
	return new(big.Int).SetBytes(result).Sign() > 0, nil
}

// BatchRedeem submits one redeemPositions transaction per condition ID
// that IsConditionResolved reports resolved, skipping the rest, and
// returns the transaction hashes actually submitted. A failure to
// redeem one condition does not block the others.
func (c *Client) BatchRedeem(ctx context.Context, conditionIDs []string) ([]string, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: fetch chain id: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("chain: build transactor: %w", err)
	}

	var hashes []string
	for _, conditionID := range conditionIDs {
		resolved, err := c.IsConditionResolved(ctx, conditionID)
		if err != nil {
			c.log.Warn("redeem-skip-resolution-check-failed", zap.String("condition-id", conditionID), zap.Error(err))
			continue
		}
		if !resolved {
			continue
		}

		nonce, err := client.PendingNonceAt(ctx, c.address)
		if err != nil {
			c.log.Warn("redeem-skip-nonce-failed", zap.String("condition-id", conditionID), zap.Error(err))
			continue
		}
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			c.log.Warn("redeem-skip-gas-price-failed", zap.String("condition-id", conditionID), zap.Error(err))
			continue
		}

		data, err := ctfABI.Pack("redeemPositions",
			c.usdcAddress,
			common.Hash{},
			common.HexToHash(conditionID),
			[]*big.Int{big.NewInt(1), big.NewInt(2)},
		)
		if err != nil {
			c.log.Warn("redeem-skip-pack-failed", zap.String("condition-id", conditionID), zap.Error(err))
			continue
		}

		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &c.conditionalTokens,
			Value:    big.NewInt(0),
			Gas:      redeemGasLimit,
			GasPrice: gasPrice,
			Data:     data,
		})
		signedTx, err := auth.Signer(auth.From, tx)
		if err != nil {
			c.log.Warn("redeem-skip-sign-failed", zap.String("condition-id", conditionID), zap.Error(err))
			continue
		}
		if err := client.SendTransaction(ctx, signedTx); err != nil {
			c.log.Warn("redeem-send-failed", zap.String("condition-id", conditionID), zap.Error(err))
			continue
		}

		c.log.Info("redeem-submitted", zap.String("condition-id", conditionID), zap.String("tx-hash", signedTx.Hash().Hex()))
		hashes = append(hashes, signedTx.Hash().Hex())
	}
	return hashes, nil
}

// GasPriceGwei returns the network's suggested legacy gas price in gwei.
func (c *Client) GasPriceGwei(ctx context.Context) (float64, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return 0, fmt.Errorf("chain: dial rpc: %w", err)
	}
	defer client.Close()

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: suggest gas price: %w", err)
	}
	gwei := new(big.Float).Quo(new(big.Float).SetInt(gasPrice), big.NewFloat(1e9))
	f, _ := gwei.Float64()
	return f, nil
}

// IsHealthy reports whether the RPC endpoint currently answers within
// a short bound.
func (c *Client) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return false
	}
	defer client.Close()

	_, err = client.BlockNumber(ctx)
	return err == nil
}

// Address returns the redeemer's derived EOA address.
func (c *Client) Address() common.Address {
	return c.address
}

var _ Interface = (*Client)(nil)
