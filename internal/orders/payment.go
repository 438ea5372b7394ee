package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/pasoklink/pasoklink/internal/market"
)

// SubmitPaymentProof records an opaque proof reference uploaded by the
// buyer and parks the payment in pending_review.
func (s *Service) SubmitPaymentProof(ctx context.Context, actor market.Actor, orderID, proofRef string) (*market.Order, error) {
	if proofRef == "" {
		return nil, fmt.Errorf("%w: empty payment proof", market.ErrInvalidInput)
	}
	ord, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(ord, actor, market.RoleBuyer); err != nil {
		return nil, err
	}
	if ord.PaymentStatus == market.PaymentCompleted {
		return nil, fmt.Errorf("%w: payment already completed", market.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	_, err = s.DB.Exec(ctx, `
		UPDATE orders SET payment_proof = $2, payment_status = $3, updated_at = $4
		WHERE id = $1`,
		orderID, proofRef, market.PaymentPendingReview, now)
	if err != nil {
		return nil, err
	}
	if err := s.appendActivityDB(ctx, orderID, actor, "payment_proof",
		"Payment proof submitted", now); err != nil {
		return nil, err
	}

	ord.PaymentProof = proofRef
	ord.PaymentStatus = market.PaymentPendingReview
	ord.UpdatedAt = now

	s.Notifier.Notify(ctx, ord.SupplierID, "payment_submitted", "Payment proof",
		fmt.Sprintf("Payment proof submitted for order %s", ord.Reference),
		map[string]any{"order_id": ord.ID})
	return ord, nil
}

// ConfirmPayment: supplier marks the reviewed payment completed.
func (s *Service) ConfirmPayment(ctx context.Context, actor market.Actor, orderID string) (*market.Order, error) {
	return s.reviewPayment(ctx, actor, orderID, true)
}

// RejectPayment clears the proof and returns the payment to pending.
// The order status is left untouched; the buyer re-uploads.
func (s *Service) RejectPayment(ctx context.Context, actor market.Actor, orderID string) (*market.Order, error) {
	return s.reviewPayment(ctx, actor, orderID, false)
}

func (s *Service) reviewPayment(ctx context.Context, actor market.Actor, orderID string, approve bool) (*market.Order, error) {
	ord, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(ord, actor, market.RoleSupplier); err != nil {
		return nil, err
	}
	if ord.PaymentStatus != market.PaymentPendingReview {
		return nil, fmt.Errorf("%w: no payment under review", market.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	action, message := "payment_confirm", "Payment confirmed by supplier"
	if approve {
		_, err = s.DB.Exec(ctx, `
			UPDATE orders SET payment_status = $2, updated_at = $3
			WHERE id = $1 AND payment_status = $4`,
			orderID, market.PaymentCompleted, now, market.PaymentPendingReview)
		ord.PaymentStatus = market.PaymentCompleted
	} else {
		action, message = "payment_reject", "Payment proof rejected, please re-upload"
		_, err = s.DB.Exec(ctx, `
			UPDATE orders SET payment_status = $2, payment_proof = NULL, updated_at = $3
			WHERE id = $1 AND payment_status = $4`,
			orderID, market.PaymentPending, now, market.PaymentPendingReview)
		ord.PaymentStatus = market.PaymentPending
		ord.PaymentProof = ""
	}
	if err != nil {
		return nil, err
	}
	if err := s.appendActivityDB(ctx, orderID, actor, action, message, now); err != nil {
		return nil, err
	}
	ord.UpdatedAt = now

	s.Notifier.Notify(ctx, ord.BuyerID, action, "Payment update",
		fmt.Sprintf("Order %s: %s", ord.Reference, message),
		map[string]any{"order_id": ord.ID})
	return ord, nil
}
