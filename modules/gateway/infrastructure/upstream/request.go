package upstream

import (
	"net/url"
	"strings"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
)

// Request is a canonical upstream call: final URL, flat headers and a JSON
// body ready for marshalling.
type Request struct {
	URL     string
	Headers map[string]string
	Body    map[string]any
}

// BuildRequest turns a profile plus one user message into the wire request
// for the profile's dialect. format must already be resolved (pin or
// detection); the profile is treated as read-only.
func BuildRequest(profile chatprofile.ChatProfile, format chatprofile.RequestFormat, message, sessionID string) Request {
	return Request{
		URL:     buildURL(profile),
		Headers: buildHeaders(profile),
		Body:    buildBody(format, message, sessionID, profile.CustomPayload()),
	}
}

func buildURL(profile chatprofile.ChatProfile) string {
	endpoint := profile.Endpoint()
	if profile.AuthMethod() != chatprofile.AuthQuery {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "api_key=" + url.QueryEscape(profile.APIKey())
}

func buildHeaders(profile chatprofile.ChatProfile) map[string]string {
	headers := map[string]string{
		"Content-Type":  "application/json",
		"Accept":        "application/json",
		"Cache-Control": "no-cache",
		"Connection":    "keep-alive",
	}

	switch profile.AuthMethod() {
	case chatprofile.AuthHeader:
		headers["x-api-key"] = profile.APIKey()
	case chatprofile.AuthBearer:
		headers["Authorization"] = "Bearer " + profile.APIKey()
	case chatprofile.AuthQuery:
		// key travels in the URL
	case chatprofile.AuthBody:
		// declared in the configuration enum but deliberately inert;
		// awaiting product clarification on where the key should land
	}

	// tenant-supplied headers win over everything above
	for k, v := range profile.CustomHeaders() {
		headers[k] = v
	}
	return headers
}

func buildBody(format chatprofile.RequestFormat, message, sessionID string, custom map[string]any) map[string]any {
	var body map[string]any

	switch format {
	case chatprofile.FormatAxie:
		body = map[string]any{
			"output_type": "chat",
			"input_type":  "chat",
			"input_value": message,
			"session_id":  sessionID,
		}
	case chatprofile.FormatLangflow:
		body = map[string]any{
			"input_value": message,
			"output_type": "chat",
			"input_type":  "chat",
			"session_id":  sessionID,
		}
	case chatprofile.FormatOpenAI:
		body = map[string]any{
			"model": "gpt-3.5-turbo",
			"messages": []any{
				map[string]any{"role": "user", "content": message},
			},
			"max_tokens":  1000,
			"temperature": 0.7,
		}
	case chatprofile.FormatAnthropic:
		body = map[string]any{
			"model":      "claude-3-sonnet-20240229",
			"max_tokens": 1000,
			"messages": []any{
				map[string]any{"role": "user", "content": message},
			},
		}
	case chatprofile.FormatCohere:
		body = map[string]any{
			"prompt":      message,
			"max_tokens":  1000,
			"temperature": 0.7,
		}
	case chatprofile.FormatGeneric:
		body = map[string]any{
			"message":    message,
			"session_id": sessionID,
		}
	case chatprofile.FormatCustom:
		// the tenant owns the shape; message and session are appended
		// afterwards so they cannot be clobbered
		body = make(map[string]any, len(custom)+2)
		for k, v := range custom {
			body[k] = v
		}
		body["message"] = message
		body["sessionId"] = sessionID
		return body
	default:
		body = map[string]any{
			"input":   message,
			"session": sessionID,
		}
	}

	// tenant-supplied payload fields merge last and may override named ones
	for k, v := range custom {
		body[k] = v
	}
	return body
}
