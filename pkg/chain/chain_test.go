package chain

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const testPrivateKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid_config",
			cfg: Config{
				RPCURL:            "https://polygon-rpc.com",
				PrivateKeyHex:     testPrivateKeyHex,
				USDCAddress:       "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
				ConditionalTokens: "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045",
				Logger:            zap.NewNop(),
			},
			wantErr: false,
		},
		{
			name: "empty_rpc_url",
			cfg: Config{
				PrivateKeyHex: testPrivateKeyHex,
				Logger:        zap.NewNop(),
			},
			wantErr: true,
		},
		{
			name: "malformed_private_key",
			cfg: Config{
				RPCURL:        "https://polygon-rpc.com",
				PrivateKeyHex: "not-hex",
				Logger:        zap.NewNop(),
			},
			wantErr: true,
		},
		{
			name: "0x_prefixed_private_key",
			cfg: Config{
				RPCURL:        "https://polygon-rpc.com",
				PrivateKeyHex: "0x" + testPrivateKeyHex,
				Logger:        zap.NewNop(),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if client.rpcURL != tt.cfg.RPCURL {
				t.Errorf("rpcURL = %v, want %v", client.rpcURL, tt.cfg.RPCURL)
			}
			wantKey, err := crypto.HexToECDSA(strings.TrimPrefix(tt.cfg.PrivateKeyHex, "0x"))
			if err != nil {
				t.Fatalf("reference key parse: %v", err)
			}
			wantAddr := crypto.PubkeyToAddress(wantKey.PublicKey)
			if client.Address() != wantAddr {
				t.Errorf("Address() = %v, want %v", client.Address(), wantAddr)
			}
		})
	}
}

func TestIsHealthy_UnreachableRPC(t *testing.T) {
	client, err := NewClient(Config{
		RPCURL:        "http://127.0.0.1:1",
		PrivateKeyHex: testPrivateKeyHex,
		Logger:        zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.IsHealthy(t.Context()) {
		t.Error("IsHealthy() = true for an unreachable endpoint, want false")
	}
}
