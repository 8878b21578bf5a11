package routehandlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreybb/doorman/auth"
	"github.com/coreybb/doorman/datastore"
	"github.com/coreybb/doorman/models"
	"github.com/coreybb/doorman/webutil"
)

const msgInvalidToken = "Missing required token in header, or token is expired"

type UserHandler struct {
	Users  *datastore.UserRepository
	Auth   *auth.Authenticator
	Hasher webutil.PasswordHasher

	// StrictUpdateAuth controls the token check on update. The legacy
	// behavior (false) only requires that a token header is present;
	// strict mode verifies it against the target phone like get/delete.
	StrictUpdateAuth bool
}

func NewUserHandler(users *datastore.UserRepository, authenticator *auth.Authenticator, hasher webutil.PasswordHasher, strictUpdateAuth bool) *UserHandler {
	return &UserHandler{
		Users:            users,
		Auth:             authenticator,
		Hasher:           hasher,
		StrictUpdateAuth: strictUpdateAuth,
	}
}

// HandleCreateUser registers a new account.
// Required payload: firstName, lastName, phone, password, tosAgreement (true).
func (h *UserHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		FirstName    string `json:"firstName"`
		LastName     string `json:"lastName"`
		Phone        string `json:"phone"`
		Password     string `json:"password"`
		TOSAgreement bool   `json:"tosAgreement"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Missing required fields")
	}
	defer r.Body.Close()

	firstName := strings.TrimSpace(requestData.FirstName)
	lastName := strings.TrimSpace(requestData.LastName)
	phone := strings.TrimSpace(requestData.Phone)
	password := strings.TrimSpace(requestData.Password)

	if firstName == "" || lastName == "" || password == "" || !datastore.ValidKey(phone) || !requestData.TOSAgreement {
		return webutil.ErrBadRequest("Missing required fields")
	}

	hashedPassword, err := h.Hasher.Hash(password)
	if err != nil {
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Could not hash the password", err)
	}

	newUser := models.User{
		Phone:          phone,
		FirstName:      firstName,
		LastName:       lastName,
		HashedPassword: hashedPassword,
		TOSAgreement:   true,
	}
	if err := h.Users.CreateUser(r.Context(), &newUser); err != nil {
		if errors.Is(err, datastore.ErrAlreadyExists) {
			return webutil.ErrBadRequest("A user with that phone number already exists")
		}
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Could not create the new user", err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, nil)
	return nil
}

// HandleGetUser returns the account for the phone in the query string.
// The caller must present a valid token for that phone. The stored
// password digest is stripped from the response by the model's json tag.
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) error {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if !datastore.ValidKey(phone) {
		return webutil.ErrBadRequest("Missing required field")
	}

	token := r.Header.Get(webutil.HeaderToken)
	if !h.Auth.Verify(r.Context(), token, phone) {
		return webutil.ErrForbidden(msgInvalidToken)
	}

	user, err := h.Users.GetUserByPhone(r.Context(), phone)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return webutil.ErrNotFound("")
		}
		return fmt.Errorf("failed to retrieve user %s: %w", phone, err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, user)
	return nil
}

// HandleUpdateUser applies a partial update: any of firstName, lastName
// and password, at least one required.
func (h *UserHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) error {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if !datastore.ValidKey(phone) {
		return webutil.ErrBadRequest("Missing required fields")
	}

	var requestData struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Password  string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Missing fields to update")
	}
	defer r.Body.Close()

	firstName := strings.TrimSpace(requestData.FirstName)
	lastName := strings.TrimSpace(requestData.LastName)
	password := strings.TrimSpace(requestData.Password)
	if firstName == "" && lastName == "" && password == "" {
		return webutil.ErrBadRequest("Missing fields to update")
	}

	token := r.Header.Get(webutil.HeaderToken)
	if h.StrictUpdateAuth {
		if !h.Auth.Verify(r.Context(), token, phone) {
			return webutil.ErrForbidden(msgInvalidToken)
		}
	} else if token == "" {
		// Legacy behavior: only the presence of a token header is
		// checked here, not its binding to this phone.
		return webutil.ErrForbidden(msgInvalidToken)
	}

	user, err := h.Users.GetUserByPhone(r.Context(), phone)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return webutil.ErrBadRequest("The specified user does not exist")
		}
		return fmt.Errorf("failed to retrieve user %s: %w", phone, err)
	}

	if firstName != "" {
		user.FirstName = firstName
	}
	if lastName != "" {
		user.LastName = lastName
	}
	if password != "" {
		hashedPassword, err := h.Hasher.Hash(password)
		if err != nil {
			return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Could not hash the password", err)
		}
		user.HashedPassword = hashedPassword
	}

	if err := h.Users.UpdateUser(r.Context(), user); err != nil {
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Could not update the user", err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, nil)
	return nil
}

// HandleDeleteUser removes the account for the phone in the query
// string. The caller must present a valid token for that phone.
func (h *UserHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) error {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if !datastore.ValidKey(phone) {
		return webutil.ErrBadRequest("Missing required fields")
	}

	token := r.Header.Get(webutil.HeaderToken)
	if !h.Auth.Verify(r.Context(), token, phone) {
		return webutil.ErrForbidden(msgInvalidToken)
	}

	if _, err := h.Users.GetUserByPhone(r.Context(), phone); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return webutil.ErrBadRequest("Could not find the specified user")
		}
		return fmt.Errorf("failed to retrieve user %s: %w", phone, err)
	}

	if err := h.Users.DeleteUser(r.Context(), phone); err != nil {
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Could not delete the specified user", err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, nil)
	return nil
}
