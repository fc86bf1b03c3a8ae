package chat

import (
	"fmt"

	"pricebot/internal/domain"
)

const (
	replyListEmpty            = "You don't have any products yet. Would you like to add one? You can create a new product from the dashboard."
	replyList                 = "Here are all your products:"
	replyDeleteCandidatesNone = "You don't have any products to delete."
	replyDeleteCandidates     = "Which product would you like to delete? Reply with its name:"
	replyEditCandidatesNone   = "You don't have any products to edit."
	replyEditCandidates       = "Which product would you like to edit? Reply with its name:"
	replyCancelled            = "Action cancelled. Is there anything else I can help you with?"
	replyDirectoryFailed      = "I couldn't refresh your product list, so I'm working from the last copy I have."
	replyApology              = "Sorry, something went wrong while processing your message. Please try again."

	replyGreeting  = "Hello! How can I assist you with your products today?"
	replyHelp      = "I can help you manage your products, update prices, and provide market insights. Try asking me to 'change the price of Smartphone X Pro to $849.99', 'delete Wireless Headphones' or 'list my products'."
	replyThanks    = "You're welcome! Is there anything else I can help you with?"
	replyRecommend = "Based on current market trends, I recommend reviewing the prices of your best-selling products. Ask me to show your products to get started."
	replyUnknown   = "I'm not sure how to help with that. You can ask me to update product information, change prices, or provide market insights for specific products."

	notifyDirectoryFailed = "Failed to load products."
)

// smalltalk is evaluated top to bottom; the first entry whose keywords occur in the message answers
var smalltalk = []struct {
	keywords []string
	reply    string
}{
	{[]string{"hello", "hi"}, replyGreeting},
	{[]string{"help"}, replyHelp},
	{[]string{"thank"}, replyThanks},
	{[]string{"recommend", "suggestion"}, replyRecommend},
}

func confirmDeleteText(name string) string {
	return fmt.Sprintf("Are you sure you want to delete \"%s\"? This action cannot be undone.", name)
}

func deletedText(name string) string {
	return fmt.Sprintf("Product \"%s\" has been deleted successfully.", name)
}

func deleteFailedText(name string) string {
	return fmt.Sprintf("Sorry, I couldn't delete \"%s\". Please try again later.", name)
}

func editPromptText(name string) string {
	return fmt.Sprintf("What would you like to update for \"%s\"? You can change the price, description, or other details.", name)
}

func editDetailsText(name string) string {
	return fmt.Sprintf("What specific details would you like to update for \"%s\"?", name)
}

func priceConfirmText(a *domain.PendingAction) string {
	if a.OutsideRange() {
		return fmt.Sprintf("Warning: The price %s for \"%s\" is outside the recommended range (%s - %s). Do you still want to proceed?",
			formatPrice(*a.ProposedPrice), a.ProductName, formatPrice(*a.MinPrice), formatPrice(*a.MaxPrice))
	}
	return fmt.Sprintf("Are you sure you want to change the price of \"%s\" from %s to %s?",
		a.ProductName, priceOrUnknown(a.CurrentPrice), priceOrUnknown(a.ProposedPrice))
}

func priceAskText(a *domain.PendingAction) string {
	text := fmt.Sprintf("What price would you like to set for \"%s\"? The current price is %s.", a.ProductName, priceOrUnknown(a.CurrentPrice))
	if a.MinPrice != nil && a.MaxPrice != nil {
		text += fmt.Sprintf(" The recommended range is %s - %s.", formatPrice(*a.MinPrice), formatPrice(*a.MaxPrice))
	}
	return text
}

func priceMissingText(a *domain.PendingAction) string {
	return fmt.Sprintf("Please specify the new price for \"%s\". The current price is %s.", a.ProductName, priceOrUnknown(a.CurrentPrice))
}

func priceUpdatedText(a *domain.PendingAction) string {
	text := fmt.Sprintf("Price for \"%s\" has been updated from %s to %s.", a.ProductName, priceOrUnknown(a.CurrentPrice), formatPrice(*a.ProposedPrice))
	if a.OutsideRange() {
		text += " Note that this price is outside the recommended range."
	}
	return text
}

func priceFailedText(name string) string {
	return fmt.Sprintf("Sorry, I couldn't update the price of \"%s\". Please try again later.", name)
}
