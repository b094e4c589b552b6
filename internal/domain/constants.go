package domain

const (
	RoleClient   = "CLIENT"
	RoleProvider = "PROVIDER"
	RoleAdmin    = "ADMIN"
)

const (
	BookingStatusPending    = "PENDING"
	BookingStatusConfirmed  = "CONFIRMED"
	BookingStatusInProgress = "IN_PROGRESS"
	BookingStatusCompleted  = "COMPLETED"
	BookingStatusCancelled  = "CANCELLED"
	BookingStatusDisputed   = "DISPUTED"
	BookingStatusFailed     = "FAILED"
)

// Payment lifecycle. PENDING and SUBMITTED are open; PAID and FAILED are
// terminal and never rewritten. SUBMITTED marks a charge the provider
// acknowledged over HTTP but answered with a non-zero ResponseCode; it is
// kept distinguishable from PENDING so the status poller can triage it.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusSubmitted = "SUBMITTED"
	PaymentStatusPaid      = "PAID"
	PaymentStatusFailed    = "FAILED"
)

const (
	PayoutStatusPending   = "PENDING"
	PayoutStatusCompleted = "COMPLETED"
	PayoutStatusFailed    = "FAILED"
)

const (
	VerificationStatusPending  = "PENDING"
	VerificationStatusApproved = "APPROVED"
	VerificationStatusRejected = "REJECTED"
)

const (
	DisputeStatusOpen     = "OPEN"
	DisputeStatusResolved = "RESOLVED"
	DisputeStatusRejected = "REJECTED"
)

// Dead-letter kinds for callbacks that could not be applied.
const (
	CallbackKindUnmatched   = "UNMATCHED"
	CallbackKindLateSuccess = "LATE_SUCCESS"
	CallbackKindMalformed   = "MALFORMED"
)

func IsTerminalPaymentStatus(s string) bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// PaymentBlocksNew reports whether an existing payment forbids starting
// another charge for the same booking. Only FAILED attempts are retryable;
// PENDING, SUBMITTED and PAID all block, otherwise a slow callback could
// race a second prompt into a double charge.
func PaymentBlocksNew(s string) bool {
	return s != PaymentStatusFailed
}

// NextBookingStatusOnPayment is the booking transition applied when its
// payment completes: CONFIRMED advances to IN_PROGRESS, every other state is
// left untouched (a late or duplicate success must not move a booking that
// has already progressed or been cancelled).
func NextBookingStatusOnPayment(current string) (string, bool) {
	if current == BookingStatusConfirmed {
		return BookingStatusInProgress, true
	}
	return current, false
}
