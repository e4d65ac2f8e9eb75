package domain

// ErrorInfo is the human rendering of an engine error code. The taxonomy keeps
// a single source of truth so the same code renders identically no matter
// which component surfaced it.
type ErrorInfo struct {
	Code        string
	Title       string
	Description string
	DocsURL     string
}

const docsBase = "https://docs.basisdesk.io/errors/"

// errorTaxonomy maps engine error codes to their user-facing rendering.
var errorTaxonomy = map[string]ErrorInfo{
	"AUTH-0001": {
		Code:        "AUTH-0001",
		Title:       "Wallet not connected",
		Description: "Connect a wallet before submitting orders.",
		DocsURL:     docsBase + "auth-0001",
	},
	"AUTH-0002": {
		Code:        "AUTH-0002",
		Title:       "Session expired",
		Description: "The engine session has expired; reconnect to continue.",
		DocsURL:     docsBase + "auth-0002",
	},
	"RISK-0001": {
		Code:        "RISK-0001",
		Title:       "Leverage limit exceeded",
		Description: "Requested leverage is above the maximum allowed for this asset.",
		DocsURL:     docsBase + "risk-0001",
	},
	"RISK-0002": {
		Code:        "RISK-0002",
		Title:       "Insufficient margin",
		Description: "The account does not hold enough collateral for this position.",
		DocsURL:     docsBase + "risk-0002",
	},
	"RISK-0003": {
		Code:        "RISK-0003",
		Title:       "Health factor too low",
		Description: "Opening this position would push the account below the liquidation threshold.",
		DocsURL:     docsBase + "risk-0003",
	},
	"FUND-0001": {
		Code:        "FUND-0001",
		Title:       "Funding rate flipped",
		Description: "The funding rate moved against the position between quote and execution.",
		DocsURL:     docsBase + "fund-0001",
	},
	"EXEC-0001": {
		Code:        "EXEC-0001",
		Title:       "Order rejected",
		Description: "The venue rejected one leg of the order; no position was opened.",
		DocsURL:     docsBase + "exec-0001",
	},
	"EXEC-0002": {
		Code:        "EXEC-0002",
		Title:       "Partial fill timeout",
		Description: "A leg did not fill within the execution window and was unwound.",
		DocsURL:     docsBase + "exec-0002",
	},
	"CAP-0001": {
		Code:        "CAP-0001",
		Title:       "Protocol capacity reached",
		Description: "The venue cannot absorb this size right now; try a smaller position.",
		DocsURL:     docsBase + "cap-0001",
	},
}

// ResolveError looks up an engine error code in the taxonomy. The second
// return value is false for unknown codes; callers then fall back to the raw
// engine message.
func ResolveError(code string) (ErrorInfo, bool) {
	info, ok := errorTaxonomy[code]
	return info, ok
}
