package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonLLMStream      ReasonCode = "llm_stream"
	ReasonLLMRateLimit   ReasonCode = "llm_rate_limit"
	ReasonLLMCircuitOpen ReasonCode = "llm_circuit_open"

	ReasonProviderUnknown      ReasonCode = "provider_unknown"
	ReasonProviderUnconfigured ReasonCode = "provider_unconfigured"

	ReasonToolArgsMissing ReasonCode = "tool_args_missing"
	ReasonToolArgsParse   ReasonCode = "tool_args_parse"
	ReasonToolInvoke      ReasonCode = "tool_invoke"

	ReasonMCPConnect ReasonCode = "mcp_connect"

	ReasonTransportAuth ReasonCode = "transport_auth"
	ReasonTransportSend ReasonCode = "transport_send"

	ReasonConfig ReasonCode = "config"
)
