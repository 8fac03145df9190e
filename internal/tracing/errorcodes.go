package tracing

// ErrorCode is a member of the closed error-code vocabulary the validation
// engine and commit stage emit (spec §4.D, §7).
type ErrorCode string

const (
	ECRequired          ErrorCode = "E_REQUIRED"
	ECType              ErrorCode = "E_TYPE"
	ECRange             ErrorCode = "E_RANGE"
	ECEnum              ErrorCode = "E_ENUM"
	ECRegex             ErrorCode = "E_REGEX"
	ECLotFormat         ErrorCode = "E_LOT_FORMAT"
	ECDateFormat        ErrorCode = "E_DATE_FORMAT"
	ECHeaderMismatch    ErrorCode = "E_HEADER_MISMATCH"
	ECUniqueInFile      ErrorCode = "E_UNIQUE_IN_FILE"
	ECUniqueInDB        ErrorCode = "E_UNIQUE_IN_DB"
	ECFKMissing         ErrorCode = "E_FK_MISSING"
	ECBatchMixedFormat  ErrorCode = "E_BATCH_MIXED_FORMAT"
	ECBatchMixedSchema  ErrorCode = "E_BATCH_MIXED_SCHEMA"
	ECBatchMixedTenant  ErrorCode = "E_BATCH_MIXED_TENANT"
	ECFileDuplicate     ErrorCode = "E_FILE_DUPLICATE"
	ECInternal          ErrorCode = "E_INTERNAL"
	ECResultTooLarge    ErrorCode = "E_RESULT_TOO_LARGE"
)
