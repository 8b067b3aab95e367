// internal/policy/obligations.go
package policy

import "github.com/arbiterhq/arbiter/internal/types"

/*
 * Obligation processing.
 *
 * Extracts enforcement side-instructions attached to the deciding rule.
 * Obligations are advisory: the caller enforces them (masking fields,
 * requiring approval, rate limiting), this component only surfaces them.
 * Params maps are copied so callers cannot mutate shared compiled rules.
 */

// ObligationsFor returns the deciding rule's obligations for the final
// effect. Nil deciding rule (default deny) yields none.
func ObligationsFor(deciding *MatchedRule, _ types.Effect) []Obligation {
	if deciding == nil || deciding.Rule == nil || len(deciding.Rule.Obligations) == 0 {
		return nil
	}

	out := make([]Obligation, 0, len(deciding.Rule.Obligations))
	for _, ob := range deciding.Rule.Obligations {
		out = append(out, Obligation{
			Type:   ob.Type,
			Params: copyParams(ob.Params),
		})
	}
	return out
}

func copyParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
