package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ikkim/storefront-cart/config"
	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/ikkim/storefront-cart/internal/export"
	"github.com/ikkim/storefront-cart/internal/gateway"
	"github.com/ikkim/storefront-cart/internal/session"
)

// Exports a cart from the backend as an XLSX quote, for support staff.
//
//	go run ./cmd/quote -session <token> [-bearer <jwt>] [-out quote.xlsx]
func main() {
	sessionToken := flag.String("session", "", "anonymous session token of the cart")
	bearer := flag.String("bearer", "", "bearer token of a logged-in user")
	out := flag.String("out", "quote.xlsx", "output file")
	flag.Parse()

	if *sessionToken == "" && *bearer == "" {
		log.Fatal("Usage: go run ./cmd/quote -session <token> [-bearer <jwt>] [-out quote.xlsx]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	ctx := context.Background()
	identity := session.NewIdentity(session.NewMemoryTokenStore(), "cli", "storefront-cart-cli")
	identity.Adopt(ctx, *sessionToken)
	identity.SetBearer(*bearer)

	client, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, identity)
	if err != nil {
		log.Fatal("Failed to create gateway client:", err)
	}

	fmt.Printf("Fetching cart from %s\n", cfg.Backend.BaseURL)
	resp, err := client.GetCart(ctx)
	if err != nil {
		log.Fatal("Failed to fetch cart: ", gateway.Message(err))
	}
	if resp.Empty {
		fmt.Println("No cart for this identity, nothing to export.")
		return
	}

	c := cart.Normalize(resp.Cart)
	f, err := os.Create(*out)
	if err != nil {
		log.Fatal("Failed to create output file:", err)
	}
	defer f.Close()

	if err := export.WriteQuote(f, c); err != nil {
		log.Fatal("Failed to write quote:", err)
	}

	fmt.Printf("Exported %d lines (%d items, total %.2f) to %s\n", len(c.Items), c.TotalItemCount, c.TotalFinal, *out)
}
