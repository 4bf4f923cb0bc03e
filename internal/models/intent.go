package models

import "strings"

// IntentType is the top level classification of a user query.
type IntentType string

const (
	IntentGeneralQuery  IntentType = "general_query"
	IntentActionRequest IntentType = "action_request"
	IntentClarification IntentType = "clarification"
)

// Intents lists every intent in the order the classifier prompt presents them.
var Intents = []IntentType{IntentGeneralQuery, IntentActionRequest, IntentClarification}

func (i IntentType) Valid() bool {
	switch i {
	case IntentGeneralQuery, IntentActionRequest, IntentClarification:
		return true
	}
	return false
}

// DeFiAction is a transaction type the assistant can prepare.
type DeFiAction string

const (
	ActionDeposit      DeFiAction = "deposit"
	ActionWithdraw     DeFiAction = "withdraw"
	ActionSwap         DeFiAction = "swap"
	ActionBorrow       DeFiAction = "borrow"
	ActionLend         DeFiAction = "lend"
	ActionStake        DeFiAction = "stake"
	ActionUnstake      DeFiAction = "unstake"
	ActionClaimRewards DeFiAction = "claim_rewards"
)

var DeFiActions = []DeFiAction{
	ActionDeposit, ActionWithdraw, ActionSwap, ActionBorrow,
	ActionLend, ActionStake, ActionUnstake, ActionClaimRewards,
}

// ParseDeFiAction maps free text onto a known action, ignoring case and
// surrounding whitespace.
func ParseDeFiAction(s string) (DeFiAction, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	for _, a := range DeFiActions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// KnownTokens are the symbols suggested to users and accepted without warning.
var KnownTokens = []string{"ETH", "USDC", "USDT", "DAI", "WBTC", "AAVE", "UNI", "COMP"}

// KnownProtocols are matched against raw queries when the model omits a protocol.
var KnownProtocols = []string{
	"aave", "uniswap", "compound", "curve", "balancer", "sushiswap",
	"maker", "yearn", "1inch", "venus", "pancakeswap", "anchor",
}

// IsKnownToken reports whether sym is one of KnownTokens.
func IsKnownToken(sym string) bool {
	sym = strings.ToUpper(sym)
	for _, t := range KnownTokens {
		if t == sym {
			return true
		}
	}
	return false
}
