package domain

// CheckStatus is the state of a single pre-trade validation check.
type CheckStatus string

const (
	CheckStatusPending CheckStatus = "pending"
	CheckStatusPassed  CheckStatus = "passed"
	CheckStatusFailed  CheckStatus = "failed"
)

// PreflightCheck is one named validation performed before an open request is
// allowed. Visible controls the staged reveal only; it carries no semantic
// weight for the pass/fail outcome.
type PreflightCheck struct {
	Key     string
	Label   string
	Status  CheckStatus
	Error   string
	Visible bool
}

// PreflightKeys is the fixed, ordered set of checks run before every open.
var PreflightKeys = []struct {
	Key   string
	Label string
}{
	{"wallet_balance", "Wallet balance"},
	{"price_consensus", "Price consensus"},
	{"funding_validation", "Funding validation"},
	{"protocol_capacity", "Protocol capacity"},
	{"fee_market", "Fee market"},
	{"opportunity_simulation", "Opportunity simulation"},
}

// CheckResult is the engine's verdict for one check in a preflight batch.
type CheckResult struct {
	Key    string
	Passed bool
	Error  string
}
