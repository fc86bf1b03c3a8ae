package cli

import (
	"encoding/json"
	"fmt"

	"pricebot/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect the product catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Run:   runProductsList,
	}
	list.Flags().Int("skip", 0, "Products to skip")
	list.Flags().IntP("limit", "l", 100, "Max results")
	list.Flags().StringP("query", "q", "", "Only products whose name or description contains this text")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		Run:   runProductsGet,
	}

	cmd.AddCommand(list, get)
	RootCmd.AddCommand(cmd)
}

func runProductsList(cmd *cobra.Command, args []string) {
	skip, _ := cmd.Flags().GetInt("skip")
	limit, _ := cmd.Flags().GetInt("limit")
	query, _ := cmd.Flags().GetString("query")

	cfg := loadConfig()
	log := newLogger(cfg)
	defer log.Sync()

	products, closeFn, err := openProducts(cfg, log)
	if err != nil {
		exitErr("open products", err)
	}
	defer closeFn()

	var page *service.ProductPage
	if query != "" {
		page, err = products.SearchProducts(cmd.Context(), query, skip, limit)
	} else {
		page, err = products.ListPage(cmd.Context(), skip, limit)
	}
	if err != nil {
		exitErr("list products", err)
	}

	b, _ := json.MarshalIndent(page, "", "  ")
	fmt.Println(string(b))
}

func runProductsGet(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	log := newLogger(cfg)
	defer log.Sync()

	products, closeFn, err := openProducts(cfg, log)
	if err != nil {
		exitErr("open products", err)
	}
	defer closeFn()

	product, err := products.GetProduct(cmd.Context(), args[0])
	if err != nil {
		exitErr("get product", err)
	}

	b, _ := json.MarshalIndent(product, "", "  ")
	fmt.Println(string(b))
}
