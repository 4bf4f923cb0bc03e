package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ActionDetails accumulates the parameters of a DeFi transaction across
// conversation turns. Every field is optional until the user supplies it.
type ActionDetails struct {
	Action      *DeFiAction `json:"action"`
	Amount      *float64    `json:"amount"`
	TokenIn     *string     `json:"token_in"`
	TokenOut    *string     `json:"token_out"`
	Protocol    *string     `json:"protocol"`
	PoolAddress *string     `json:"pool_address,omitempty"`
	Chain       *string     `json:"chain,omitempty"`
	Slippage    *float64    `json:"slippage"`
	Deadline    *int        `json:"deadline,omitempty"`
	GasPrice    *string     `json:"gas_price,omitempty"`
	Recipient   *string     `json:"recipient,omitempty"`
	APYMin      *float64    `json:"apy_min,omitempty"`
	APYMax      *float64    `json:"apy_max,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
}

// Field names used in missing-parameter lists and question tables.
const (
	FieldAction   = "action"
	FieldAmount   = "amount"
	FieldTokenIn  = "token_in"
	FieldTokenOut = "token_out"
	FieldProtocol = "protocol"
)

// Merge overwrites every field for which next carries a value.
func (d ActionDetails) Merge(next ActionDetails) ActionDetails {
	merged := d
	if next.Action != nil {
		merged.Action = next.Action
	}
	if next.Amount != nil {
		merged.Amount = next.Amount
	}
	if next.TokenIn != nil {
		merged.TokenIn = next.TokenIn
	}
	if next.TokenOut != nil {
		merged.TokenOut = next.TokenOut
	}
	if next.Protocol != nil {
		merged.Protocol = next.Protocol
	}
	if next.PoolAddress != nil {
		merged.PoolAddress = next.PoolAddress
	}
	if next.Chain != nil {
		merged.Chain = next.Chain
	}
	if next.Slippage != nil {
		merged.Slippage = next.Slippage
	}
	if next.Deadline != nil {
		merged.Deadline = next.Deadline
	}
	if next.GasPrice != nil {
		merged.GasPrice = next.GasPrice
	}
	if next.Recipient != nil {
		merged.Recipient = next.Recipient
	}
	if next.APYMin != nil {
		merged.APYMin = next.APYMin
	}
	if next.APYMax != nil {
		merged.APYMax = next.APYMax
	}
	if next.Notes != nil {
		merged.Notes = next.Notes
	}
	return merged
}

// IsEmpty reports whether no parameter has been collected yet.
func (d ActionDetails) IsEmpty() bool {
	return d == ActionDetails{}
}

// Summary renders the collected parameters for model prompts.
func (d ActionDetails) Summary() string {
	var parts []string
	if d.Action != nil {
		parts = append(parts, "Action: "+string(*d.Action))
	}
	if d.Amount != nil {
		parts = append(parts, "Amount: "+FormatAmount(*d.Amount))
	}
	if has(d.TokenIn) {
		parts = append(parts, "From token: "+*d.TokenIn)
	}
	if has(d.TokenOut) {
		parts = append(parts, "To token: "+*d.TokenOut)
	}
	if has(d.Protocol) {
		parts = append(parts, "Protocol: "+*d.Protocol)
	}
	if d.Slippage != nil {
		parts = append(parts, "Slippage: "+FormatAmount(*d.Slippage)+"%")
	}
	if len(parts) == 0 {
		return "No transaction details collected yet."
	}
	return "Current transaction: " + strings.Join(parts, ", ")
}

// RequiredFields returns the parameters an action needs before it can be
// confirmed, in the order users are asked for them.
func RequiredFields(action *DeFiAction) []string {
	if action == nil {
		return []string{FieldAction, FieldAmount, FieldTokenIn}
	}
	switch *action {
	case ActionSwap:
		return []string{FieldAction, FieldAmount, FieldTokenIn, FieldTokenOut}
	case ActionDeposit, ActionWithdraw, ActionLend, ActionBorrow:
		return []string{FieldAction, FieldAmount, FieldTokenIn, FieldProtocol}
	case ActionStake, ActionUnstake:
		return []string{FieldAction, FieldAmount, FieldTokenIn}
	case ActionClaimRewards:
		return []string{FieldAction, FieldProtocol}
	}
	return []string{FieldAction, FieldAmount, FieldTokenIn}
}

// HasField reports whether the named parameter has been collected.
func (d ActionDetails) HasField(field string) bool {
	switch field {
	case FieldAction:
		return d.Action != nil
	case FieldAmount:
		return d.Amount != nil
	case FieldTokenIn:
		return has(d.TokenIn)
	case FieldTokenOut:
		return has(d.TokenOut)
	case FieldProtocol:
		return has(d.Protocol)
	}
	return false
}

// CompletionStatus is the field-presence view of an ActionDetails value.
type CompletionStatus struct {
	RequiredFields       []string `json:"required_fields"`
	MissingRequired      []string `json:"missing_required"`
	CompletionPercentage int      `json:"completion_percentage"`
	IsReadyForExecution  bool     `json:"is_ready_for_execution"`
	NextQuestions        []string `json:"next_questions"`
	ConfirmationMessage  string   `json:"confirmation_message,omitempty"`
	EstimatedGas         string   `json:"estimated_gas"`
	RiskWarnings         []string `json:"risk_warnings"`
}

var fieldPrompts = map[string]string{
	FieldAction:   "What would you like to do (swap, deposit, lend, stake...)?",
	FieldAmount:   "How much would you like to use?",
	FieldTokenIn:  "Which token will you use?",
	FieldTokenOut: "Which token would you like to receive?",
	FieldProtocol: "Which protocol should we use?",
}

var gasEstimates = map[DeFiAction]string{
	ActionSwap:         "~150,000 gas",
	ActionDeposit:      "~200,000 gas",
	ActionLend:         "~200,000 gas",
	ActionWithdraw:     "~180,000 gas",
	ActionBorrow:       "~250,000 gas",
	ActionStake:        "~120,000 gas",
	ActionUnstake:      "~120,000 gas",
	ActionClaimRewards: "~100,000 gas",
}

// CompletionStatus computes which required fields are still missing.
func (d ActionDetails) CompletionStatus() CompletionStatus {
	required := RequiredFields(d.Action)
	status := CompletionStatus{
		RequiredFields:  required,
		MissingRequired: []string{},
		NextQuestions:   []string{},
		RiskWarnings:    d.riskWarnings(),
		EstimatedGas:    "Unknown",
	}

	present := 0
	for _, f := range required {
		if d.HasField(f) {
			present++
			continue
		}
		status.MissingRequired = append(status.MissingRequired, f)
		status.NextQuestions = append(status.NextQuestions, fieldPrompts[f])
	}

	status.CompletionPercentage = int(math.Round(100 * float64(present) / float64(len(required))))
	status.IsReadyForExecution = len(status.MissingRequired) == 0

	if d.Action != nil {
		if gas, ok := gasEstimates[*d.Action]; ok {
			status.EstimatedGas = gas
		}
	}
	if status.IsReadyForExecution {
		status.ConfirmationMessage = d.Describe()
	}
	return status
}

// Describe renders a one line description such as "Swap 100 USDC for ETH on Uniswap".
func (d ActionDetails) Describe() string {
	if d.Action == nil {
		return ""
	}
	verb := strings.ReplaceAll(string(*d.Action), "_", " ")
	var b strings.Builder
	b.WriteString(strings.ToUpper(verb[:1]) + verb[1:])
	if d.Amount != nil {
		b.WriteString(" " + FormatAmount(*d.Amount))
	}
	if has(d.TokenIn) {
		b.WriteString(" " + *d.TokenIn)
	}
	if has(d.TokenOut) {
		b.WriteString(" for " + *d.TokenOut)
	}
	if has(d.Protocol) {
		b.WriteString(" on " + *d.Protocol)
	}
	return b.String()
}

func (d ActionDetails) riskWarnings() []string {
	warnings := []string{}
	if d.Amount != nil && *d.Amount > 10000 {
		warnings = append(warnings, "Large transaction amount - double-check before confirming")
	}
	if d.Slippage != nil && *d.Slippage > 5 {
		warnings = append(warnings, fmt.Sprintf("High slippage tolerance (%s%%) may result in a worse price", FormatAmount(*d.Slippage)))
	}
	if d.Action != nil && *d.Action == ActionBorrow {
		warnings = append(warnings, "Borrowed positions can be liquidated if collateral value drops")
	}
	return warnings
}

// FormatAmount prints a float without trailing zeros.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func has(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
