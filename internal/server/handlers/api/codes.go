package api

const (
	// Generic request/server errors
	CodeInvalidRequest   = "E_INVALID_REQUEST"    // bad or invalid request
	CodeRateLimited      = "E_RATE_LIMITED"       // rate limit exceeded
	CodeInternalError    = "E_INTERNAL_ERROR"     // internal server error
	CodeAccessDenied     = "E_ACCESS_DENIED"      // access denied
	CodeNotFound         = "E_NOT_FOUND"          // route not found
	CodeMethodNotAllowed = "E_METHOD_NOT_ALLOWED" // method not allowed on route
	CodePayloadTooLarge  = "E_PAYLOAD_TOO_LARGE"  // request body or inline image too large
	CodeNotConfigured    = "E_NOT_CONFIGURED"     // a required upstream is not configured

	// Catalog errors
	CodeEntryNotFound          = "E_ENTRY_NOT_FOUND"         // no manifest entry has the given id.
	CodeConcurrentModification = "E_CONCURRENT_MODIFICATION" // the manifest changed between read and write.
	CodeManifestReadFailed     = "E_MANIFEST_READ_FAILED"    // the manifest could not be read or parsed.
	CodeManifestWriteFailed    = "E_MANIFEST_WRITE_FAILED"   // the manifest could not be written.
	CodeMediaWriteFailed       = "E_MEDIA_WRITE_FAILED"      // the media file could not be written.
	CodeInvalidFilename        = "E_INVALID_FILENAME"        // the filename is empty or contains a path.

	// Generation errors
	CodeUpstreamFailed = "E_UPSTREAM_FAILED" // the generation upstream could not be reached.
)
