package broker

import "time"

// PaymentEventType is the phase of a payment attempt an event reports.
type PaymentEventType string

const (
	PaymentEventAttempt PaymentEventType = "attempt"
	PaymentEventSuccess PaymentEventType = "success"
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent is a payment lifecycle notification emitted by the broker
// at the attempt, settle, and fail points of Fetch, Complete, and sweep.
type PaymentEvent struct {
	Type      PaymentEventType
	Timestamp time.Time

	URL     string
	Service string
	Amount  string
	Asset   string
	Network string

	Payer       string
	Recipient   string
	Transaction string

	Err error
}

// PaymentCallback receives payment lifecycle events. Invoked synchronously
// during payment processing, so it should be fast.
type PaymentCallback func(PaymentEvent)
