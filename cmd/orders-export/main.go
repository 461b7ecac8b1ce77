package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ikkim/storefront/config"
	"github.com/ikkim/storefront/internal/auth"
	"github.com/ikkim/storefront/internal/orders"
	"github.com/ikkim/storefront/internal/tokenstore"
	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/ikkim/storefront/pkg/logger"
)

func main() {
	// 명령줄 인자 확인
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/orders-export/main.go <output.xlsx>  (STOREFRONT_EMAIL and STOREFRONT_PASSWORD must be set)")
	}
	outPath := os.Args[1]

	email := os.Getenv("STOREFRONT_EMAIL")
	password := os.Getenv("STOREFRONT_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("STOREFRONT_EMAIL and STOREFRONT_PASSWORD are required")
	}

	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Initialize(logger.Config{Level: "warn", Format: "console"})

	api, err := apiclient.NewClient(apiclient.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		MaxRetries: cfg.Backend.MaxRetries,
		RetryUnit:  cfg.Backend.RetryUnit,
	})
	if err != nil {
		log.Fatal("Failed to create backend client:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// 일회성 세션: 토큰은 메모리에만 둔다
	creds := tokenstore.For(tokenstore.NewMemoryStore(time.Hour), "orders-export")
	bound := api.Bind(creds, nil)
	holder := auth.NewHolder(bound, creds, nil)

	fmt.Printf("Logging in as %s\n", email)
	if _, err := holder.Login(ctx, email, password); err != nil {
		log.Fatal("Login failed:", err)
	}
	defer holder.Logout(context.Background())

	list, err := orders.NewService(bound, nil).MyOrders(ctx)
	if err != nil {
		log.Fatal("Failed to fetch orders:", err)
	}
	fmt.Printf("Total orders to export: %d\n", len(list))

	f, err := os.Create(outPath)
	if err != nil {
		log.Fatal("Failed to create output file:", err)
	}
	defer f.Close()

	if err := orders.ExportXLSX(list, f); err != nil {
		log.Fatal("Failed to write XLSX:", err)
	}
	fmt.Printf("Orders written to %s\n", outPath)
}
