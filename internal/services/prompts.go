package services

import (
	"fmt"
	"strings"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

const assistantSystem = "You are a DeFi assistant. Answer accurately and concisely. Never invent protocol facts, prices or addresses."

func intentPrompt(query string) string {
	labels := make([]string, len(models.Intents))
	for i, in := range models.Intents {
		labels[i] = string(in)
	}
	return fmt.Sprintf(`Classify the user's message into exactly one intent:
- general_query: the user wants information or an explanation
- action_request: the user wants to perform a DeFi transaction (swap, deposit, stake...)
- clarification: the message is too vague to act on

Reply with one of: %s

Message: %s
Intent:`, strings.Join(labels, ", "), query)
}

func actionPrompt(current, query string) string {
	actions := make([]string, len(models.DeFiActions))
	for i, a := range models.DeFiActions {
		actions[i] = fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf(`Current: %s
User: %s

Extract JSON only. Do NOT add any text outside JSON.

- action: one of [%s] or null
- amount: numeric value only, or null
- token_in: token symbol (e.g., "ETH", "USDC") or null
- token_out: token symbol or null
- protocol: string or null
- slippage: numeric value or null

Only extract info from this message. Do not infer from prior context. Return strictly valid JSON.`,
		current, query, strings.Join(actions, ","))
}

func questionPrompt(current string, missing []string, history []string) string {
	ctx := "No previous context"
	if len(history) > 0 {
		if len(history) > 3 {
			history = history[len(history)-3:]
		}
		ctx = strings.Join(history, "\n")
	}
	return fmt.Sprintf(`Current: %s
Missing: %s
Recent messages:
%s

Generate question JSON for the first missing field:
{"question": "conversational question", "field": "field_name", "suggestions": ["opt1", "opt2", "opt3"]}

Be helpful and concise.`, current, strings.Join(missing, ", "), ctx)
}

func refinePrompt(query, context string) string {
	if context == "" {
		context = "(no context)"
	}
	return fmt.Sprintf(`Improve and complete the DeFi answer using the database context.
Keep it accurate; do not invent facts. Be concise.

User: %s
Database context:
%s

Final improved answer:`, query, context)
}

func fallbackPrompt(query string) string {
	return fmt.Sprintf(`The user asked: %s
Provide a concise, correct DeFi answer. If ambiguous, ask 1 clarifying question.`, query)
}

func subIntentPrompt(query string) string {
	return fmt.Sprintf(`Classify the wallet request into one of: %s.
Reply with the label only.

Request: %s
Label:`, strings.Join(subIntentLabels(), ", "), query)
}

func transferPrompt(query string) string {
	return fmt.Sprintf(`Extract the token transfer from the message as JSON only:
{"amount": number or null, "token": "symbol" or null, "recipient": "0x address" or null}

Message: %s`, query)
}

func paymentPrompt(query string) string {
	return fmt.Sprintf(`Extract the service payment from the message as JSON only:
{"service": "api_access" | "data_feed" | "oracle_query" or null, "amount": number or null, "token": "ETH" | "USDC" | "USDT" | "DAI" or null}

Message: %s`, query)
}

func pricePrompt(query string) string {
	return fmt.Sprintf(`Extract the cryptocurrency symbol from the message. Return JSON only:
{"symbol": "SYMBOL" or null}

Message: %s`, query)
}
