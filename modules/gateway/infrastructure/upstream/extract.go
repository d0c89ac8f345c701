package upstream

import (
	"strconv"
	"strings"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
)

// NoResponseSentinel is returned when no candidate path yields a reply.
const NoResponseSentinel = "No response received"

// extraction chains: candidate paths tried in order per dialect. Dotted
// segments, numeric segments index into arrays. The axie and langflow
// chains intentionally overlap.
var extractionChains = map[chatprofile.RequestFormat][]string{
	chatprofile.FormatAxie: {
		"outputs.0.outputs.0.results.message.text",
		"outputs.0.outputs.0.messages.0.message",
		"output.text",
		"text",
		"message",
	},
	chatprofile.FormatLangflow: {
		"outputs.0.outputs.0.results.message.text",
		"outputs.0.outputs.0.artifacts.message",
		"output",
		"result",
		"text",
		"message",
	},
	chatprofile.FormatOpenAI: {
		"choices.0.message.content",
	},
	chatprofile.FormatAnthropic: {
		"content.0.text",
		"completion",
	},
	chatprofile.FormatCohere: {
		"generations.0.text",
		"text",
	},
	chatprofile.FormatGeneric: {
		"response",
		"output",
		"text",
		"message",
	},
}

// order in which unrecognized formats borrow first candidates from the
// known dialects
var firstCandidateOrder = []chatprofile.RequestFormat{
	chatprofile.FormatAxie,
	chatprofile.FormatLangflow,
	chatprofile.FormatOpenAI,
	chatprofile.FormatAnthropic,
	chatprofile.FormatCohere,
}

// ExtractReply walks the format's candidate paths and returns the first
// non-empty string it finds. Never panics, never errors; missing
// intermediate keys simply fail that candidate. Pure function.
func ExtractReply(payload map[string]any, format chatprofile.RequestFormat) string {
	chain, known := extractionChains[format]
	if !known {
		chain = extractionChains[chatprofile.FormatGeneric]
	}

	for _, path := range chain {
		if reply, ok := lookupString(payload, path); ok {
			return reply
		}
	}

	if !known {
		for _, other := range firstCandidateOrder {
			if reply, ok := lookupString(payload, extractionChains[other][0]); ok {
				return reply
			}
		}
	}

	return NoResponseSentinel
}

// lookupString resolves a dotted path against decoded JSON, tolerating
// missing keys, wrong types and out-of-range indices.
func lookupString(payload map[string]any, path string) (string, bool) {
	var current any = payload
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return "", false
			}
			current = value
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", false
			}
			current = node[idx]
		default:
			return "", false
		}
	}

	reply, ok := current.(string)
	if !ok || reply == "" {
		return "", false
	}
	return reply, true
}
