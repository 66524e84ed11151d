package middleware

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	goIdem "github.com/MrEthical07/goIdem"
	"github.com/MrEthical07/goIdem/identity"
)

// Error codes returned in the JSON body of rejected requests.
const (
	CodeKeyMissing       = "idempotency_key_missing"
	CodeKeyInvalid       = "idempotency_key_invalid"
	CodeKeyReused        = "idempotency_key_reused"
	CodeInProgress       = "request_in_progress"
	CodeTooLarge         = "request_too_large"
	CodeBodyUnreadable   = "request_body_unreadable"
	CodeStoreUnavailable = "idempotency_store_unavailable"
	CodeInvalidCaller    = "invalid_caller_identity"
	CodeInternal         = "internal_error"
)

var errBodyUnreadable = errors.New("request body unreadable")

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Hint  string `json:"hint,omitempty"`
}

func writeError(w http.ResponseWriter, replayHeader string, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: "internal server error", Code: CodeInternal}

	switch {
	case errors.Is(err, goIdem.ErrMissingIdempotencyKey):
		status = http.StatusBadRequest
		body = errorBody{Error: "missing idempotency key", Code: CodeKeyMissing}
	case errors.Is(err, goIdem.ErrInvalidIdempotencyKey):
		status = http.StatusBadRequest
		body = errorBody{Error: "invalid idempotency key", Code: CodeKeyInvalid}
	case errors.Is(err, goIdem.ErrPayloadMismatch):
		status = http.StatusConflict
		body = errorBody{
			Error: "idempotency key already used for a different request",
			Code:  CodeKeyReused,
			Hint:  "generate a new idempotency key for a request with a different payload",
		}
	case errors.Is(err, goIdem.ErrInFlightConflict):
		status = http.StatusConflict
		body = errorBody{Error: "a request with this idempotency key is still processing", Code: CodeInProgress}
		if wait, ok := goIdem.RetryAfterHint(err); ok && wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
	case errors.Is(err, goIdem.ErrRequestTooLarge):
		status = http.StatusRequestEntityTooLarge
		body = errorBody{Error: "request body too large", Code: CodeTooLarge}
	case errors.Is(err, errBodyUnreadable):
		status = http.StatusBadRequest
		body = errorBody{Error: "request body could not be read", Code: CodeBodyUnreadable}
	case errors.Is(err, goIdem.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		body = errorBody{Error: "idempotency store unavailable, retry later", Code: CodeStoreUnavailable}
	case errors.Is(err, identity.ErrInvalidIdentity):
		status = http.StatusUnauthorized
		body = errorBody{Error: "invalid caller identity", Code: CodeInvalidCaller}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayHeader, "false")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
