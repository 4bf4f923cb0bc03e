package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

// ActionExtractor pulls transaction parameters out of a single message.
type ActionExtractor struct {
	llm Completer
	log *zap.Logger
}

func NewActionExtractor(c Completer, log *zap.Logger) *ActionExtractor {
	return &ActionExtractor{llm: c, log: log.Named("extractor")}
}

var protocolPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(models.KnownProtocols))
	for i, p := range models.KnownProtocols {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
	}
	return out
}()

// Extract returns only what the message itself says. current is shown to the
// model so it can resolve short answers such as "100" or "USDC".
func (e *ActionExtractor) Extract(ctx context.Context, query string, current models.ActionDetails) models.ActionDetails {
	out, err := e.llm.Complete(ctx, llm.TaskAction, llm.Request{
		Prompt: actionPrompt(current.Summary(), query),
		Input:  query,
		JSON:   true,
	})

	var details models.ActionDetails
	if err != nil {
		e.log.Warn("action model failed", zap.Error(err))
	} else if fields, perr := decodeJSONObject(out); perr != nil {
		e.log.Debug("unparseable extraction", zap.String("output", out), zap.Error(perr))
	} else {
		details = detailsFromFields(fields)
	}

	if details.Protocol == nil {
		details.Protocol = ProtocolMention(query)
	}
	return details
}

// ProtocolMention finds the first known protocol named in text.
func ProtocolMention(text string) *string {
	for i, re := range protocolPatterns {
		if re.MatchString(text) {
			p := models.KnownProtocols[i]
			if p != "1inch" {
				p = strings.ToUpper(p)
			}
			return &p
		}
	}
	return nil
}

var errNoJSON = errors.New("no JSON object in output")

// decodeJSONObject tolerates markdown fences and prose around the object.
func decodeJSONObject(out string) (map[string]any, error) {
	s := strings.TrimSpace(out)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, errNoJSON
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func detailsFromFields(f map[string]any) models.ActionDetails {
	var d models.ActionDetails
	if s, ok := stringField(f, "action"); ok {
		if a, ok := models.ParseDeFiAction(s); ok {
			d.Action = &a
		}
	}
	if v, ok := numberField(f, "amount"); ok {
		d.Amount = &v
	}
	if s, ok := stringField(f, "token_in"); ok {
		s = strings.ToUpper(s)
		d.TokenIn = &s
	}
	if s, ok := stringField(f, "token_out"); ok {
		s = strings.ToUpper(s)
		d.TokenOut = &s
	}
	if s, ok := stringField(f, "protocol"); ok {
		d.Protocol = &s
	}
	if v, ok := numberField(f, "slippage"); ok {
		d.Slippage = &v
	}
	return d
}

func stringField(f map[string]any, key string) (string, bool) {
	s, ok := f[key].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return "", false
	}
	return s, true
}

// numberField accepts JSON numbers and numeric strings like "1,000" or "0.5%".
func numberField(f map[string]any, key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.ReplaceAll(v, ",", ""), "%"))
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
