package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeChainConnectionFailed: "Failed to connect to chain node",
	CodeChainSubscribeFailed:  "Failed to subscribe to new heads",
	CodeChainRPCError:         "Chain RPC call failed",
	CodeChainTimeout:          "Chain RPC call timed out",
	CodeBlockNotFound:         "Block not found",
	CodeContractCallFailed:    "Contract call failed",

	CodeRelayConnectionFailed: "Failed to reach relay",
	CodeRelayRejected:         "Relay rejected bundle",
	CodeRelayExhausted:        "No relay accepted the bundle",
	CodeBundleDuplicate:       "Similar bundle submitted recently",
	CodeBundleInvalid:         "Bundle is invalid",

	CodePriceUnavailable: "Price unavailable",
	CodePriceStale:       "Price is stale",
	CodeInvalidQuote:     "Invalid quote data",
	CodeOracleDecode:     "Failed to decode oracle response",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",
	CodeExchangeAPIError:         "Exchange API error",

	CodeRiskLimitBreached:  "Risk limit breached",
	CodeEmergencyStop:      "Emergency stop active",
	CodeTradingDisabled:    "Trading disabled",
	CodeProfitBelowMinimum: "Net profit below threshold",
	CodeLowConfidence:      "Low confidence score",
	CodeSafetyRejected:     "Safety check rejected trade",
	CodeReorgDetected:      "Chain reorganization detected",
	CodeNonceConflict:      "Nonce conflict",
	CodeChainDesync:        "Chain head moved backwards",

	CodeHealthCheckFailed:  "Health check failed",
	CodeRecoveryExhausted:  "Recovery retries exhausted",
	CodeJournalWriteFailed: "Failed to write decision journal",
	CodeDispatchFailed:     "Failed to dispatch bundle",

	CodeCacheMiss:   "Cache miss",
	CodeCircuitOpen: "Circuit breaker is open",
}

// categories places codes into the failure taxonomy. Unlisted codes are
// CategoryInfrastructure.
var categories = map[Code]Category{
	CodePriceStale:       CategoryStaleness,
	CodePriceUnavailable: CategoryStaleness,

	CodeReorgDetected: CategoryConsensus,
	CodeChainDesync:   CategoryConsensus,

	CodeNonceConflict:   CategoryConflict,
	CodeBundleDuplicate: CategoryConflict,

	CodeRiskLimitBreached: CategoryRiskBreach,
	CodeEmergencyStop:     CategoryRiskBreach,
	CodeRecoveryExhausted: CategoryRiskBreach,

	CodeInvalidInput:       CategoryRejection,
	CodeValidationError:    CategoryRejection,
	CodeProfitBelowMinimum: CategoryRejection,
	CodeLowConfidence:      CategoryRejection,
	CodeSafetyRejected:     CategoryRejection,
	CodeTradingDisabled:    CategoryRejection,
}
