package routehandlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreybb/doorman/auth"
	"github.com/coreybb/doorman/datastore"
	"github.com/coreybb/doorman/webutil"
)

type TokenHandler struct {
	Tokens *datastore.TokenRepository
	Auth   *auth.Authenticator
}

func NewTokenHandler(tokens *datastore.TokenRepository, authenticator *auth.Authenticator) *TokenHandler {
	return &TokenHandler{Tokens: tokens, Auth: authenticator}
}

// HandleCreateToken is the login operation: it trades phone+password
// for a fresh session token.
func (h *TokenHandler) HandleCreateToken(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Missing required field(s)")
	}
	defer r.Body.Close()

	phone := strings.TrimSpace(requestData.Phone)
	password := strings.TrimSpace(requestData.Password)
	if phone == "" || password == "" {
		return webutil.ErrBadRequest("Missing required field(s)")
	}

	token, err := h.Auth.Issue(r.Context(), phone, password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUserNotFound):
		return webutil.ErrBadRequest("Could not find the specified user")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return webutil.ErrBadRequest("Password did not match the specified user's stored password")
	default:
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Could not create the new token", err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, token)
	return nil
}

// HandleGetToken returns the token object for the id in the query string.
func (h *TokenHandler) HandleGetToken(w http.ResponseWriter, r *http.Request) error {
	id, ok := tokenID(r.URL.Query().Get("id"))
	if !ok {
		return webutil.ErrBadRequest("Missing required field, or field invalid")
	}

	token, err := h.Tokens.GetTokenByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return webutil.ErrNotFound("")
		}
		return fmt.Errorf("failed to retrieve token %s: %w", id, err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, token)
	return nil
}

// HandleExtendToken pushes an unexpired token's expiry out by one TTL.
// Required payload: id and extend == true.
func (h *TokenHandler) HandleExtendToken(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		ID     string `json:"id"`
		Extend bool   `json:"extend"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Missing required field(s) or field(s) are invalid.")
	}
	defer r.Body.Close()

	id, ok := tokenID(requestData.ID)
	if !ok || !requestData.Extend {
		return webutil.ErrBadRequest("Missing required field(s) or field(s) are invalid.")
	}

	err := h.Auth.Extend(r.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrTokenExpired):
		return webutil.ErrBadRequest("The token has already expired, and cannot be extended.")
	case errors.Is(err, datastore.ErrNotFound):
		return webutil.ErrBadRequest("Specified token does not exist.")
	default:
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Could not update the token's expiration.", err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, nil)
	return nil
}

// HandleDeleteToken revokes the token named by the id query parameter.
func (h *TokenHandler) HandleDeleteToken(w http.ResponseWriter, r *http.Request) error {
	id, ok := tokenID(r.URL.Query().Get("id"))
	if !ok {
		return webutil.ErrBadRequest("Missing required field")
	}

	if err := h.Auth.Revoke(r.Context(), id); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return webutil.ErrBadRequest("Could not find the specified token.")
		}
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Could not delete the specified token", err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, nil)
	return nil
}

// tokenID trims raw and accepts it only at the fixed generated length,
// restricted to key-safe characters.
func tokenID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if len(id) != auth.TokenIDLength || !datastore.ValidKey(id) {
		return "", false
	}
	return id, true
}
