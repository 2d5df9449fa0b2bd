package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	reqctx "committeeDashboard/utils"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// SuccessResponse represents a standardized success response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	if code >= http.StatusInternalServerError {
		slog.Error("api error", "code", code, "message", message)
	} else {
		slog.Debug("api error", "code", code, "message", message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	response := ErrorResponse{
		Error:   getErrorType(code),
		Message: message,
		Code:    code,
	}

	_ = json.NewEncoder(w).Encode(response)
}

// RespondWithJSON sends a standardized JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.With("error", err).Error("failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// RespondWithSuccess sends a standardized success response
func RespondWithSuccess(w http.ResponseWriter, data interface{}, message string) {
	response := SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	}

	RespondWithJSON(w, http.StatusOK, response)
}

// Common error response functions
func AuthenticationError(w http.ResponseWriter) {
	RespondWithError(w, http.StatusUnauthorized, "Authentication required")
}

func AuthorizationError(w http.ResponseWriter) {
	RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
}

func BadRequestError(w http.ResponseWriter, message string) {
	RespondWithError(w, http.StatusBadRequest, message)
}

func NotFoundError(w http.ResponseWriter, resource string) {
	RespondWithError(w, http.StatusNotFound, resource+" not found")
}

func InternalServerError(w http.ResponseWriter, message string) {
	RespondWithError(w, http.StatusInternalServerError, message)
}

// RequireAuthentication returns the signed-in profile id, or responds 401
func RequireAuthentication(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := reqctx.GetUserID(r)
	if !ok {
		AuthenticationError(w)
		return "", false
	}
	return userID, true
}

// RequireAdmin responds 403 unless the signed-in user is an admin
func RequireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !reqctx.IsAdmin(r) {
		AuthorizationError(w)
		return false
	}
	return true
}

// getErrorType returns a human-readable error type based on status code
func getErrorType(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusRequestEntityTooLarge:
		return "Payload Too Large"
	case http.StatusTooManyRequests:
		return "Rate Limited"
	case http.StatusInternalServerError:
		return "Internal Server Error"
	case http.StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Error"
	}
}
