package errors

// Error codes returned in the "error" field of every error response.
// Format: CATEGORY_SPECIFIC_DETAIL. Frontends map messages from these.

const (
	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput    = "VALIDATION_INVALID_INPUT"    // malformed body or query
	ValidationInvalidQuantity = "VALIDATION_INVALID_QUANTITY" // quantity below 1
	ValidationRequired        = "VALIDATION_REQUIRED"         // missing field

	// ==================== Client (CLIENT_) ====================
	ClientSessionUnavailable = "CLIENT_SESSION_UNAVAILABLE" // session could not be created

	// ==================== Cart (CART_) ====================
	CartOperationFailed = "CART_OPERATION_FAILED" // the mutation ended in an error state
	CartRejected        = "CART_REJECTED"         // backend refused the request
	CartUnavailable     = "CART_UNAVAILABLE"      // backend unreachable
	CartInvalidResponse = "CART_INVALID_RESPONSE" // backend sent malformed JSON

	// ==================== Search (SEARCH_) ====================
	SearchSuperseded = "SEARCH_SUPERSEDED" // a newer query replaced this one

	// ==================== Export (QUOTE_) ====================
	QuoteExportFailed = "QUOTE_EXPORT_FAILED" // XLSX could not be built
	QuoteUploadFailed = "QUOTE_UPLOAD_FAILED" // S3 upload failed

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError = "INTERNAL_SERVER_ERROR"
	InternalConfigError = "INTERNAL_CONFIG_ERROR"
)
