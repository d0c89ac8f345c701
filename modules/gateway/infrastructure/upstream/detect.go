package upstream

import (
	"strings"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
)

// DetectFormat classifies an endpoint URL into a wire dialect. Pure,
// case-insensitive substring matching; precedence is fixed and an explicit
// format pinned on the profile always wins over detection.
func DetectFormat(endpoint string) chatprofile.RequestFormat {
	url := strings.ToLower(endpoint)
	switch {
	case strings.Contains(url, "openai.com"):
		return chatprofile.FormatOpenAI
	case strings.Contains(url, "langflow"), strings.Contains(url, "astra.datastax.com"), strings.Contains(url, "datastax"):
		return chatprofile.FormatLangflow
	case strings.Contains(url, "axiestudio.se"), strings.Contains(url, "axiestudio"):
		return chatprofile.FormatAxie
	case strings.Contains(url, "anthropic.com"):
		return chatprofile.FormatAnthropic
	case strings.Contains(url, "cohere.ai"), strings.Contains(url, "cohere.com"):
		return chatprofile.FormatCohere
	default:
		return chatprofile.FormatGeneric
	}
}

// ResolveFormat applies the pin-wins rule for a profile.
func ResolveFormat(profile chatprofile.ChatProfile) chatprofile.RequestFormat {
	if format := profile.RequestFormat(); format != chatprofile.FormatAuto {
		return format
	}
	return DetectFormat(profile.Endpoint())
}
