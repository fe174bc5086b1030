package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

// Códigos de error estables de la API. Los clientes hacen switch sobre
// estos strings; no se renombran.
const (
	CodeInvalidRequest      = "invalid_request"
	CodeInvalidState        = "invalid_state"
	CodeAuthorizationFailed = "authorization_failed"
	CodeCallbackFailed      = "callback_failed"
	CodeSessionNotFound     = "session_not_found"
	CodeSessionInvalid      = "session_invalid"
	CodeNotConnected        = "not_connected"
	CodeAlreadyConnected    = "already_connected"
	CodeConnectionFailed    = "connection_failed"
	CodeUserNotFound        = "user_not_found"
	CodeInternalError       = "internal_error"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeRateLimited         = "rate_limited"
	CodeForbidden           = "forbidden"
)

func WriteError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		RequestID:        rid,
	})
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON: decodifica JSON de forma tolerante (NO falla por campos desconocidos).
// Valida Content-Type y limita el tamaño del body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Content-Type debe ser application/json")
		return false
	}
	// máx 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "json inválido")
		return false
	}
	return true
}
