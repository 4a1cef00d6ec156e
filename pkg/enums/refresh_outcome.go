package enums

// RefreshOutcome is the tri-state result of a manual gateway refresh.
type RefreshOutcome string

const (
	// RefreshOutcomeUpdated means the gateway confirmed a state the local
	// ledger now reflects.
	RefreshOutcomeUpdated RefreshOutcome = "updated"
	// RefreshOutcomePending means the gateway reported no new information.
	RefreshOutcomePending RefreshOutcome = "pending"
	// RefreshOutcomeUnsupported means the refresh cannot be performed for this
	// subscription (Razorpay refresh requires a payment id we do not hold).
	RefreshOutcomeUnsupported RefreshOutcome = "unsupported"
)

// String implements fmt.Stringer.
func (r RefreshOutcome) String() string {
	return string(r)
}
