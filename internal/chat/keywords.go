package chat

import (
	"strings"

	"pricebot/internal/domain"
)

// Keyword sets are matched as plain substrings of the lower-cased message,
// so "ok" also matches "book" and "no" matches "know".
var (
	listKeywords        = []string{"list", "show"}
	productNounKeywords = []string{"product", "item"}
	deleteKeywords      = []string{"delete", "remove"}
	editKeywords        = []string{"edit", "update"}
	priceKeywords       = []string{"price", "cost"}
	affirmativeKeywords = []string{"yes", "confirm", "proceed", "ok"}
	negativeKeywords    = []string{"no", "cancel", "abort"}
)

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// matchProduct returns the first product, in directory order, whose
// lower-cased name occurs anywhere in the lower-cased text.
func matchProduct(lower string, products []domain.Product) *domain.Product {
	for i := range products {
		name := strings.ToLower(products[i].Name)
		if name == "" {
			continue
		}
		if strings.Contains(lower, name) {
			p := products[i]
			return &p
		}
	}
	return nil
}
