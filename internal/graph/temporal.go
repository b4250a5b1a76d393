package graph

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/open-landscape/landscaper/models"
)

// EndOfTime is the open end of every living validity interval
// (2031-01-01 UTC). A relationship is expired by moving its "to" below
// this value.
const EndOfTime int64 = 1924905600

// Relationship labels used in the landscape. STATE ties identities to
// their state chain; everything else is structural.
const (
	RelState      = "STATE"
	RelInternal   = "INTERNAL"
	RelDeployedOn = "DEPLOYED_ON"
	RelRunsOn     = "RUNS_ON"
	RelRequires   = "REQUIRES"
	RelHosts      = "HOSTS"
	RelDeployedBy = "DEPLOYED_BY"
	RelOwnedBy    = "OWNED_BY"
	RelLinksTo    = "LINKS_TO"
)

// structuralRels is the relationship type union used by graph traversals.
var structuralRels = strings.Join([]string{
	RelInternal, RelDeployedOn, RelRunsOn, RelRequires,
	RelHosts, RelDeployedBy, RelOwnedBy, RelLinksTo,
}, "|")

// livingClause filters relationships alive at $at and still alive at
// $until ($at + timeframe). With a zero timeframe both bind to the same
// instant.
const livingClause = "r.from <= $at AND r.to > $until"

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// safeLabel validates a label or relationship type before it is spliced
// into a cypher statement. Labels cannot be passed as parameters, so
// anything that is not a plain identifier is rejected.
func safeLabel(label string) (string, error) {
	if !identifierPattern.MatchString(label) {
		return "", fmt.Errorf("invalid label: %q", label)
	}
	return label, nil
}

// encodeAttrs flattens a state for storage. Neo4j properties cannot hold
// maps or mixed lists, so nested values are JSON-encoded into strings.
func encodeAttrs(state models.State) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) any {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(encoded)
}

// decodeAttrs is the inverse of encodeAttrs: JSON-looking strings are
// unpacked back into structured values.
func decodeAttrs(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v any) any {
	str, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(str)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return v
	}
	return decoded
}

// mergeAttributes combines identity and state properties into the flat
// attribute map of a graph node. State keys that clash with a reserved
// identity key are renamed to "<type>-<key>", with numeric suffixes if
// even that is taken.
func mergeAttributes(identity, state map[string]any) map[string]any {
	out := make(map[string]any, len(identity)+len(state))
	for k, v := range identity {
		out[k] = v
	}

	nodeType, _ := identity[models.TypeProp].(string)
	for k, v := range state {
		out[uniqueAttributeName(k, nodeType, out)] = v
	}
	return out
}

func uniqueAttributeName(key, nodeType string, taken map[string]any) string {
	if _, clash := taken[key]; !clash {
		return key
	}
	renamed := fmt.Sprintf("%s-%s", nodeType, key)
	if _, clash := taken[renamed]; !clash {
		return renamed
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", renamed, i)
		if _, clash := taken[candidate]; !clash {
			return candidate
		}
	}
}
