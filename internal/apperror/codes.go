package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain access
const (
	CodeChainConnectionFailed Code = "CHAIN_CONNECTION_FAILED"
	CodeChainSubscribeFailed  Code = "CHAIN_SUBSCRIBE_FAILED"
	CodeChainRPCError         Code = "CHAIN_RPC_ERROR"
	CodeChainTimeout          Code = "CHAIN_TIMEOUT"
	CodeBlockNotFound         Code = "BLOCK_NOT_FOUND"
	CodeContractCallFailed    Code = "CONTRACT_CALL_FAILED"
)

// Relays and bundles
const (
	CodeRelayConnectionFailed Code = "RELAY_CONNECTION_FAILED"
	CodeRelayRejected         Code = "RELAY_REJECTED"
	CodeRelayExhausted        Code = "RELAY_EXHAUSTED"
	CodeBundleDuplicate       Code = "BUNDLE_DUPLICATE"
	CodeBundleInvalid         Code = "BUNDLE_INVALID"
)

// Prices and oracles
const (
	CodePriceUnavailable Code = "PRICE_UNAVAILABLE"
	CodePriceStale       Code = "PRICE_STALE"
	CodeInvalidQuote     Code = "INVALID_QUOTE"
	CodeOracleDecode     Code = "ORACLE_DECODE_FAILED"

	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"
	CodeExchangeAPIError         Code = "EXCHANGE_API_ERROR"
)

// Gate decisions
const (
	CodeRiskLimitBreached  Code = "RISK_LIMIT_BREACHED"
	CodeEmergencyStop      Code = "RISK_EMERGENCY_STOP"
	CodeTradingDisabled    Code = "RISK_TRADING_DISABLED"
	CodeProfitBelowMinimum Code = "PROFIT_BELOW_MINIMUM"
	CodeLowConfidence      Code = "PROFIT_LOW_CONFIDENCE"
	CodeSafetyRejected     Code = "SAFETY_REJECTED"
	CodeReorgDetected      Code = "SAFETY_REORG_DETECTED"
	CodeNonceConflict      Code = "SAFETY_NONCE_CONFLICT"
	CodeChainDesync        Code = "SAFETY_CHAIN_DESYNC"
)

// Supervision and persistence
const (
	CodeHealthCheckFailed  Code = "HEALTH_CHECK_FAILED"
	CodeRecoveryExhausted  Code = "HEALTH_RECOVERY_EXHAUSTED"
	CodeJournalWriteFailed Code = "JOURNAL_WRITE_FAILED"
	CodeDispatchFailed     Code = "DISPATCH_FAILED"

	CodeCacheMiss   Code = "CACHE_MISS"
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
