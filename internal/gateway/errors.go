package gateway

// Kind names the gateway's error taxonomy, by kind rather than Go type, so
// logs can be grepped uniformly across the whole ingress pipeline.
type Kind string

const (
	KindMalformedHeader   Kind = "malformed_header"
	KindAuthFailed        Kind = "auth_failed"
	KindEarlyDataDecode   Kind = "early_data_decode_error"
	KindDialFailedPrimary Kind = "dial_failed_primary"
	KindDialFailedRetry   Kind = "dial_failed_retry"
	KindUpstreamIdle      Kind = "upstream_idle"
	KindTransportError    Kind = "transport_error"
	KindDoHQueryError     Kind = "doh_query_error"
)
