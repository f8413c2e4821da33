package openai

import "strings"

// USD per 1M tokens (input, output).
type price struct {
	input  float64
	output float64
}

// Longest prefix wins, so dated snapshots ("gpt-4o-mini-2024-07-18") resolve to their family.
var prices = map[string]price{
	"gpt-4o-mini":   {0.15, 0.60},
	"gpt-4o":        {2.50, 10.00},
	"gpt-4.1-nano":  {0.10, 0.40},
	"gpt-4.1-mini":  {0.40, 1.60},
	"gpt-4.1":       {2.00, 8.00},
	"gpt-4-turbo":   {10.00, 30.00},
	"gpt-3.5-turbo": {0.50, 1.50},
}

// EstimateCost returns the USD cost of a completion. Unknown models price as gpt-4o-mini.
func EstimateCost(model string, u Usage) float64 {
	p := prices[DefaultModel]
	best := ""
	for prefix, pr := range prices {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best, p = prefix, pr
		}
	}
	return (float64(u.PromptTokens)*p.input + float64(u.CompletionTokens)*p.output) / 1_000_000
}
