package chat

import (
	"context"
	"fmt"
	"strings"

	"pricebot/internal/domain"

	"go.uber.org/zap"
)

// rule is one entry of the dispatch table. Rules are evaluated in order and
// the first whose predicate holds handles the turn.
type rule struct {
	name   string
	match  func(t *turn) bool
	handle func(ctx context.Context, t *turn) error
}

// dispatchTable returns the rules in priority order. The order decides
// which intent wins when a message looks like several at once.
func (r *Resolver) dispatchTable() []rule {
	return []rule{
		{name: "list", match: isListIntent, handle: r.handleList},
		{name: "delete-candidates", match: isGenericDelete, handle: r.handleDeleteCandidates},
		{name: "delete-selection", match: isDeleteSelection, handle: r.handleDeleteSelection},
		{name: "delete-product", match: isProductDelete, handle: r.handleStageDelete},
		{name: "edit-candidates", match: isGenericEdit, handle: r.handleEditCandidates},
		{name: "edit-product", match: isProductEdit, handle: r.handleStageEdit},
		{name: "set-price", match: isSetPrice, handle: r.handleStagePrice},
		{name: "pending-reply", match: isPendingReply, handle: r.handlePendingReply},
		{name: "smalltalk", match: always, handle: r.handleSmalltalk},
	}
}

func isListIntent(t *turn) bool {
	return containsAny(t.lower, listKeywords) && containsAny(t.lower, productNounKeywords)
}

func isGenericDelete(t *turn) bool {
	return t.match == nil && containsAny(t.lower, deleteKeywords) && containsAny(t.lower, productNounKeywords)
}

// retriggers reports whether the message names a product together with an
// action keyword, which takes precedence over a pending delete.
func retriggers(t *turn) bool {
	if t.match == nil {
		return false
	}
	return containsAny(t.lower, deleteKeywords) ||
		containsAny(t.lower, editKeywords) ||
		containsAny(t.lower, priceKeywords)
}

func isDeleteSelection(t *turn) bool {
	return t.pending != nil && t.pending.Kind == domain.ActionDelete && !retriggers(t)
}

func isProductDelete(t *turn) bool {
	return t.match != nil && (containsAny(t.lower, deleteKeywords) || t.selection == selectionDelete)
}

func isGenericEdit(t *turn) bool {
	return t.match == nil && containsAny(t.lower, editKeywords) && containsAny(t.lower, productNounKeywords)
}

func isProductEdit(t *turn) bool {
	return t.match != nil && (containsAny(t.lower, editKeywords) || t.selection == selectionEdit)
}

func isSetPrice(t *turn) bool {
	return t.match != nil && containsAny(t.lower, priceKeywords)
}

func isPendingReply(t *turn) bool {
	if t.pending == nil {
		return false
	}
	if containsAny(t.lower, affirmativeKeywords) || containsAny(t.lower, negativeKeywords) {
		return true
	}
	if t.pending.Kind == domain.ActionSetPrice && t.pending.ProposedPrice == nil {
		_, ok := ExtractPrice(t.lower)
		return ok
	}
	return false
}

func always(*turn) bool { return true }

func (r *Resolver) handleList(_ context.Context, t *turn) error {
	if len(t.products) == 0 {
		r.reply(t, replyListEmpty, nil)
		return nil
	}
	r.reply(t, replyList, attach(t.products))
	return nil
}

func (r *Resolver) handleDeleteCandidates(_ context.Context, t *turn) error {
	if len(t.products) == 0 {
		r.reply(t, replyDeleteCandidatesNone, nil)
		return nil
	}
	t.conv.openSelection(selectionDelete)
	r.reply(t, replyDeleteCandidates, attach(t.products))
	return nil
}

func (r *Resolver) handleDeleteSelection(ctx context.Context, t *turn) error {
	if containsAny(t.lower, negativeKeywords) {
		r.cancel(t)
		return nil
	}
	return r.commit(ctx, t)
}

func (r *Resolver) handleStageDelete(_ context.Context, t *turn) error {
	r.stage(t, &domain.PendingAction{
		Kind:        domain.ActionDelete,
		ProductID:   t.match.ID,
		ProductName: t.match.Name,
	})
	r.reply(t, confirmDeleteText(t.match.Name), nil)
	return nil
}

func (r *Resolver) handleEditCandidates(_ context.Context, t *turn) error {
	if len(t.products) == 0 {
		r.reply(t, replyEditCandidatesNone, nil)
		return nil
	}
	t.conv.openSelection(selectionEdit)
	r.reply(t, replyEditCandidates, attach(t.products))
	return nil
}

func (r *Resolver) handleStageEdit(_ context.Context, t *turn) error {
	r.stage(t, &domain.PendingAction{
		Kind:         domain.ActionEdit,
		ProductID:    t.match.ID,
		ProductName:  t.match.Name,
		CurrentPrice: float(t.match.Price),
	})
	r.reply(t, editPromptText(t.match.Name), nil)
	return nil
}

func (r *Resolver) handleStagePrice(_ context.Context, t *turn) error {
	p := t.match
	action := &domain.PendingAction{
		Kind:         domain.ActionSetPrice,
		ProductID:    p.ID,
		ProductName:  p.Name,
		CurrentPrice: float(p.Price),
		MinPrice:     cloneFloat(p.MinPrice),
		MaxPrice:     cloneFloat(p.MaxPrice),
	}

	// Digits inside the product name ("Series 5") are not a price.
	rest := strings.ReplaceAll(t.lower, strings.ToLower(p.Name), " ")
	if price, ok := ExtractPrice(rest); ok {
		action.ProposedPrice = float(price)
		r.stage(t, action)
		r.reply(t, priceConfirmText(action), nil)
		return nil
	}

	r.stage(t, action)
	r.reply(t, priceAskText(action), nil)
	return nil
}

func (r *Resolver) handlePendingReply(ctx context.Context, t *turn) error {
	switch {
	case containsAny(t.lower, affirmativeKeywords):
		return r.commit(ctx, t)
	case containsAny(t.lower, negativeKeywords):
		r.cancel(t)
		return nil
	}

	price, ok := ExtractPrice(t.lower)
	if !ok {
		return nil
	}
	action := clonePending(t.pending)
	action.ProposedPrice = float(price)
	r.stage(t, action)
	r.reply(t, priceConfirmText(action), nil)
	return nil
}

func (r *Resolver) handleSmalltalk(_ context.Context, t *turn) error {
	for _, entry := range smalltalk {
		if containsAny(t.lower, entry.keywords) {
			r.reply(t, entry.reply, nil)
			return nil
		}
	}
	r.reply(t, replyUnknown, nil)
	return nil
}

func (r *Resolver) cancel(t *turn) {
	r.clear(t)
	r.reply(t, replyCancelled, nil)
}

// commit resolves the pending action. Edits and price actions without a
// price only re-prompt and stay pending; deletes and complete price
// changes call the mutator once and always clear the slot.
func (r *Resolver) commit(ctx context.Context, t *turn) error {
	action := t.pending

	// A commit, once started, is not aborted by the caller going away.
	ctx = context.WithoutCancel(ctx)

	switch action.Kind {
	case domain.ActionEdit:
		r.reply(t, editDetailsText(action.ProductName), nil)
		return nil

	case domain.ActionDelete:
		r.clear(t)
		if err := r.mutator.DeleteProduct(ctx, action.ProductID); err != nil {
			r.logger.Error("Failed to delete product",
				zap.String("session_id", t.conv.ID),
				zap.String("product_id", action.ProductID),
				zap.Error(err),
			)
			r.reply(t, deleteFailedText(action.ProductName), nil)
			r.notify(ctx, t, domain.NotificationError, "Failed to delete "+action.ProductName+".")
			return nil
		}
		r.reply(t, deletedText(action.ProductName), nil)
		r.notify(ctx, t, domain.NotificationSuccess, action.ProductName+" has been removed from your catalog.")
		return nil

	case domain.ActionSetPrice:
		if action.ProposedPrice == nil {
			r.reply(t, priceMissingText(action), nil)
			return nil
		}
		r.clear(t)
		price := *action.ProposedPrice
		if _, err := r.mutator.UpdateProduct(ctx, action.ProductID, domain.ProductUpdate{Price: &price}); err != nil {
			r.logger.Error("Failed to update product price",
				zap.String("session_id", t.conv.ID),
				zap.String("product_id", action.ProductID),
				zap.Float64("price", price),
				zap.Error(err),
			)
			r.reply(t, priceFailedText(action.ProductName), nil)
			r.notify(ctx, t, domain.NotificationError, "Failed to update the price of "+action.ProductName+".")
			return nil
		}
		r.reply(t, priceUpdatedText(action), nil)
		if action.OutsideRange() {
			r.notify(ctx, t, domain.NotificationError,
				action.ProductName+" price has been changed to "+formatPrice(price)+", which is outside the recommended range.")
		} else {
			r.notify(ctx, t, domain.NotificationSuccess,
				action.ProductName+" price has been changed to "+formatPrice(price)+".")
		}
		return nil
	}

	return fmt.Errorf("unknown pending action kind %q", action.Kind)
}
