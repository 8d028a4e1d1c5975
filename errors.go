package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeAccountDisabled    = "ACCOUNT_DISABLED"
	TextCodeTokenMissing       = "TOKEN_MISSING"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeUnknownSubject     = "UNKNOWN_SUBJECT"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	TextCodeDataParseError     = "DATA_PARSE_ERROR"
)

// ErrDuplicateEmail is returned when a registration collides with an
// existing account, whether caught by the pre-check or by the database
// uniqueness constraint.
var ErrDuplicateEmail = errors.New("an account with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrInvalidCredentials covers both unknown email and wrong password so
// callers cannot probe which addresses have accounts.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrAccountDisabled is returned for deactivated accounts after the
// credential or token check has already passed.
var ErrAccountDisabled = errors.New("account is disabled", errors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(errors.CodeForbidden)

// ErrTokenMissing means no bearer token was presented
var ErrTokenMissing = errors.New("no authentication token provided", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed covers every token defect other than expiry: bad
// structure, bad signature, unexpected algorithm, missing subject.
var ErrTokenMalformed = errors.New("invalid authentication token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired means the token was well formed and correctly signed
// but its expiry has passed.
var ErrTokenExpired = errors.New("authentication token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrUnknownSubject means the token verified but its subject no longer
// resolves to an account.
var ErrUnknownSubject = errors.New("token subject does not resolve to an account", errors.CategoryAuth).
	WithTextCode(TextCodeUnknownSubject).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty plaintext before hashing
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrUnableToDecodeSession unable to decode JWT claims into a session
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput).
	WithTextCode(TextCodeDataParseError).
	WithCode(errors.CodeBadRequest)

// IsDuplicateEmailError reports whether err is the typed registration
// conflict, from either the pre-check or the constraint translation.
func IsDuplicateEmailError(err error) bool {
	return hasTextCode(err, TextCodeDuplicateEmail)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) || hasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) || hasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

func hasTextCode(err error, textCode string) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == textCode
	}
	return false
}
