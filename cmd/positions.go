package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/wallet"
)

//nolint:gochecknoglobals // Cobra boilerplate
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Display current wallet positions",
	Long: `Fetches positions for the configured wallet from Polymarket's data
API and prints market, outcome, size, and P&L for each, sorted by P&L.`,
	Args: cobra.NoArgs,
	RunE: runPositions,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(positionsCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	rpcURL := os.Getenv("POLYGON_RPC_URL")
	if rpcURL == "" {
		rpcURL = "https://polygon-rpc.com"
	}

	privateKeyHex := os.Getenv("POLYMARKET_PRIVATE_KEY")
	if privateKeyHex == "" {
		return fmt.Errorf("POLYMARKET_PRIVATE_KEY not set")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	client, err := wallet.NewClient(rpcURL, zap.NewNop())
	if err != nil {
		return fmt.Errorf("build wallet client: %w", err)
	}

	positions, err := client.GetPositions(cmd.Context(), address)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	if len(positions) == 0 {
		fmt.Println("No positions found.")
		return nil
	}

	sort.Slice(positions, func(i, j int) bool { return positions[i].CashPnL > positions[j].CashPnL })

	fmt.Printf("%-40s %-6s %-10s %-10s %-10s\n", "Market", "Side", "Size", "Value", "PnL")
	for _, p := range positions {
		market := p.MarketSlug
		if len(market) > 38 {
			market = market[:38] + ".."
		}
		fmt.Printf("%-40s %-6s %-10.2f %-10.2f %-10.2f\n", market, p.Outcome, p.Size, p.Value, p.CashPnL)
	}
	return nil
}
