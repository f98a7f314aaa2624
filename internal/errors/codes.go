package errors

// Error code constants.
// Format: CATEGORY_SPECIFIC_DETAIL
// The frontend maps these codes to display messages.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"        // login required
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS" // wrong email/password
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthAccountInactive    = "AUTH_ACCOUNT_INACTIVE"

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden    = "AUTHZ_FORBIDDEN"
	AuthzRoleNotFound = "AUTHZ_ROLE_NOT_FOUND"
	AuthzStaffOnly    = "AUTHZ_STAFF_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID     = "VALIDATION_INVALID_ID"
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT"
	ValidationRequired      = "VALIDATION_REQUIRED"

	// ==================== Registration (REGISTRATION_) ====================
	RegistrationNotFound            = "REGISTRATION_NOT_FOUND"
	RegistrationInvalidState        = "REGISTRATION_INVALID_STATE"         // operation not legal for current status
	RegistrationAlreadySubmitted    = "REGISTRATION_ALREADY_SUBMITTED"
	RegistrationDocumentsIncomplete = "REGISTRATION_DOCUMENTS_INCOMPLETE"
	RegistrationDeclarationRequired = "REGISTRATION_DECLARATION_REQUIRED"
	RegistrationNumberConflict      = "REGISTRATION_NUMBER_CONFLICT" // numbering retries exhausted
	RegistrationNotesRequired       = "REGISTRATION_NOTES_REQUIRED"  // reject without notes

	// ==================== Document (DOCUMENT_) ====================
	DocumentNotFound        = "DOCUMENT_NOT_FOUND"
	DocumentInvalidType     = "DOCUMENT_INVALID_TYPE"
	DocumentInvalidFileType = "DOCUMENT_INVALID_FILE_TYPE"
	DocumentFileTooLarge    = "DOCUMENT_FILE_TOO_LARGE"
	DocumentLocked          = "DOCUMENT_LOCKED" // registration no longer DRAFT
	DocumentUploadFailed    = "DOCUMENT_UPLOAD_FAILED"

	// ==================== Payment (PAYMENT_) ====================
	PaymentNotFound         = "PAYMENT_NOT_FOUND"
	PaymentInvalidState     = "PAYMENT_INVALID_STATE"
	PaymentAlreadyPaid      = "PAYMENT_ALREADY_PAID"
	PaymentSignatureInvalid = "PAYMENT_SIGNATURE_INVALID"
	PaymentGatewayError     = "PAYMENT_GATEWAY_ERROR"

	// ==================== Resource (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Rate limiting (RATE_) ====================
	RateLimitExceeded = "RATE_LIMIT_EXCEEDED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
)
