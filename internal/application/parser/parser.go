package parser

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"impulsebot/internal/domain"
)

// DefaultStrategy labels signals that carry no strategy tag.
const DefaultStrategy = "DEFAULT"

var (
	actionRe   = regexp.MustCompile(`(?i)\b(buy|sell|long|short)\b`)
	symbolRe   = regexp.MustCompile(`(?i)\b(?:buy|sell|long|short)\b[\s:@-]*([A-Za-z][A-Za-z0-9._]{2,14})`)
	strategyRe = regexp.MustCompile(`\[([A-Za-z0-9_-]+)\]`)
	confRe     = regexp.MustCompile(`(?i)conf(?:idence)?\s*[=:]\s*(0?\.\d+|1(?:\.0+)?)`)
)

// alert is the TradingView-style JSON body.
type alert struct {
	Symbol     string  `json:"symbol"`
	Strategy   string  `json:"strategy"`
	Side       string  `json:"side"`
	Confidence float64 `json:"confidence"`
}

// Parse normalizes a raw alert into a Signal. It accepts a TradingView
// JSON body first and falls back to free-text extraction. ok=false means
// the input is ignored with no state change.
func Parse(raw string) (domain.Signal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Signal{}, false
	}

	if strings.HasPrefix(raw, "{") {
		if sig, ok := parseJSON(raw); ok {
			return sig, true
		}
		// malformed JSON is not worth a regex pass
		return domain.Signal{}, false
	}
	return parseText(raw)
}

func parseJSON(raw string) (domain.Signal, bool) {
	var a alert
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return domain.Signal{}, false
	}

	action, ok := normalizeAction(a.Side)
	if !ok || a.Symbol == "" {
		return domain.Signal{}, false
	}

	strategy := strings.ToUpper(strings.TrimSpace(a.Strategy))
	if strategy == "" {
		strategy = DefaultStrategy
	}

	return domain.Signal{
		Symbol:     strings.ToUpper(strings.TrimSpace(a.Symbol)),
		Strategy:   strategy,
		Action:     action,
		Confidence: a.Confidence,
		Raw:        raw,
	}, true
}

func parseText(raw string) (domain.Signal, bool) {
	actionMatch := actionRe.FindString(raw)
	symbolMatch := symbolRe.FindStringSubmatch(raw)
	if actionMatch == "" || symbolMatch == nil {
		return domain.Signal{}, false
	}

	action, ok := normalizeAction(actionMatch)
	if !ok {
		return domain.Signal{}, false
	}

	sig := domain.Signal{
		Symbol:   strings.ToUpper(symbolMatch[1]),
		Strategy: DefaultStrategy,
		Action:   action,
		Raw:      raw,
	}

	if m := strategyRe.FindStringSubmatch(raw); m != nil {
		sig.Strategy = strings.ToUpper(m[1])
	}
	if m := confRe.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			sig.Confidence = v
		}
	}
	return sig, true
}

func normalizeAction(s string) (domain.Action, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return domain.ActionBuy, true
	case "sell", "short":
		return domain.ActionSell, true
	}
	return "", false
}
