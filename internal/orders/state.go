package orders

import (
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// InitialStatus picks where a fresh order starts: card payments wait for
// gateway confirmation, everything else goes straight to preparing.
func InitialStatus(paymentMethod enums.PaymentMethod) enums.OrderStatus {
	if paymentMethod == enums.PaymentMethodCardGateway {
		return enums.OrderStatusPendingPayment
	}
	return enums.OrderStatusPreparing
}

// checkTransition validates a requested move against the lifecycle. Pickup
// orders go through ready_for_pickup, delivery orders through
// out_for_delivery; pending_payment leaves only via the gateway
// confirmation hook or cancellation.
func checkTransition(order *models.Order, target enums.OrderStatus) error {
	from := order.Status

	if from.IsTerminal() {
		return &IllegalTransitionError{From: from, To: target, Reason: "order is in a terminal state"}
	}
	if target == enums.OrderStatusCancelled {
		return nil
	}

	switch from {
	case enums.OrderStatusPendingPayment:
		return &IllegalTransitionError{From: from, To: target, Reason: "payment has not been confirmed"}

	case enums.OrderStatusPreparing:
		switch {
		case target == enums.OrderStatusReadyForPickup && order.DeliveryMethod == enums.DeliveryMethodPickup:
			return nil
		case target == enums.OrderStatusOutForDelivery && order.DeliveryMethod == enums.DeliveryMethodDelivery:
			return nil
		case target == enums.OrderStatusReadyForPickup || target == enums.OrderStatusOutForDelivery:
			return &IllegalTransitionError{From: from, To: target, Reason: "does not match the order's delivery method"}
		}

	case enums.OrderStatusReadyForPickup, enums.OrderStatusOutForDelivery:
		if target == enums.OrderStatusDelivered {
			return checkDeliveredGate(order, target)
		}
	}

	return &IllegalTransitionError{From: from, To: target}
}

// checkDeliveredGate blocks delivery of bank-transfer orders until the
// transfer has been explicitly confirmed.
func checkDeliveredGate(order *models.Order, target enums.OrderStatus) error {
	if order.PaymentMethod == enums.PaymentMethodBankTransfer && !order.TransferConfirmed {
		return &IllegalTransitionError{
			From:   order.Status,
			To:     target,
			Reason: "bank transfer has not been confirmed",
		}
	}
	return nil
}
