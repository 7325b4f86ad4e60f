package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/clob"
)

//nolint:gochecknoglobals // Cobra boilerplate
var cancelOrdersDryRun bool

//nolint:gochecknoglobals // Cobra boilerplate
var cancelOrdersCmd = &cobra.Command{
	Use:   "cancel-orders",
	Short: "Cancel all open orders on the CLOB",
	Long: `Cancel every resting order atomically via the CLOB's cancel-all
endpoint. Use --dry-run to list open orders without canceling them.`,
	Args: cobra.NoArgs,
	RunE: runCancelOrders,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(cancelOrdersCmd)
	cancelOrdersCmd.Flags().BoolVar(&cancelOrdersDryRun, "dry-run", false, "list open orders without canceling")
}

func runCancelOrders(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	client, err := newDebugOrderClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orders, err := client.OpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("fetch open orders: %w", err)
	}
	if len(orders) == 0 {
		fmt.Println("No open orders found.")
		return nil
	}

	fmt.Printf("%-12s %-16s %-6s %-8s %-10s\n", "Order ID", "Token", "Side", "Price", "Size")
	var locked float64
	for _, o := range orders {
		id := o.OrderID
		if len(id) > 10 {
			id = id[:10] + ".."
		}
		fmt.Printf("%-12s %-16s %-6s %-8.4f %-10.2f\n", id, o.TokenID, o.Side, o.Price, o.Size)
		locked += o.Price * o.Size
	}
	fmt.Printf("\nTotal: %d orders, $%.2f locked\n", len(orders), locked)

	if cancelOrdersDryRun {
		fmt.Println("\n[DRY RUN] No orders were canceled.")
		return nil
	}

	fmt.Println("\nCanceling all orders...")
	if err := client.CancelAll(ctx); err != nil {
		return fmt.Errorf("cancel all orders: %w", err)
	}
	fmt.Println("Cancellation request submitted.")
	return nil
}

// newDebugOrderClient builds a bare CLOB order client from environment
// credentials, shared by the operator-facing debug commands.
func newDebugOrderClient() (*clob.OrderClient, error) {
	sigType := 0
	if raw := os.Getenv("POLYMARKET_SIGNATURE_TYPE"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid POLYMARKET_SIGNATURE_TYPE: %w", err)
		}
		sigType = v
	}

	return clob.NewOrderClient(clob.Config{
		APIKey:        os.Getenv("POLYMARKET_API_KEY"),
		Secret:        os.Getenv("POLYMARKET_SECRET"),
		Passphrase:    os.Getenv("POLYMARKET_PASSPHRASE"),
		PrivateKeyHex: os.Getenv("POLYMARKET_PRIVATE_KEY"),
		ProxyAddress:  os.Getenv("POLYMARKET_PROXY_ADDRESS"),
		SignatureType: sigType,
		Logger:        zap.NewNop(),
	})
}
