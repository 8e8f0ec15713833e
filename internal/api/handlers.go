package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"walkie/internal/auth"
	"walkie/internal/filestore"
	"walkie/internal/models"
	"walkie/internal/push"
	"walkie/internal/relay"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

// maxUploadSize caps a single chat file upload.
const maxUploadSize = 32 << 20

type API struct {
	auth     *auth.AuthService
	engine   *relay.Engine
	files    filestore.FileStore
	notifier *push.Notifier
	log      *slog.Logger
}

func New(authService *auth.AuthService, engine *relay.Engine, files filestore.FileStore, notifier *push.Notifier, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		auth:     authService,
		engine:   engine,
		files:    files,
		notifier: notifier,
		log:      logger,
	}
}

func (a *API) getToken(r *http.Request) string {
	token := r.Header.Get("token")
	if token == "" {
		if c, err := r.Cookie("token"); err == nil {
			token = c.Value
		}
	}
	return token
}

// RequireAuth rejects requests without a live session token.
func (a *API) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.auth.GetUsername(a.getToken(r)); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("failed to encode response", "error", err)
	}
}

func (a *API) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := a.auth.Register(req.Username, req.Password); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrUserExists) {
			status = http.StatusConflict
		}
		a.writeJSON(w, status, models.APIResponse{Success: false, Message: err.Error()})
		return
	}

	a.writeJSON(w, http.StatusOK, models.APIResponse{Success: true})
}

type loginResponse struct {
	models.APIResponse
	Token       string `json:"token,omitempty"`
	Username    string `json:"username,omitempty"`
	TokenExpiry int64  `json:"tokenExpiry,omitempty"`
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest

	// Support both JSON and form bodies.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	token, err := a.auth.Login(req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			a.writeJSON(w, http.StatusUnauthorized, models.APIResponse{Success: false, Message: err.Error()})
			return
		}
		a.log.Error("login failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	expiry := a.auth.TokenExpiryUnix()
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		Expires:  time.Unix(expiry, 0),
	})

	a.writeJSON(w, http.StatusOK, loginResponse{
		APIResponse: models.APIResponse{Success: true},
		Token:       token,
		Username:    req.Username,
		TokenExpiry: expiry,
	})
}

func (a *API) LogoffHandler(w http.ResponseWriter, r *http.Request) {
	if token := a.getToken(r); token != "" {
		_ = a.auth.Logoff(token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		MaxAge:   -1,
	})

	w.WriteHeader(http.StatusOK)
}

// SessionHandler returns the identity behind the current session token.
func (a *API) SessionHandler(w http.ResponseWriter, r *http.Request) {
	username, err := a.auth.GetUsername(a.getToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"username": username})
}

// MessagesHandler returns the stored history for a room, oldest first.
func (a *API) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.engine.History(r.URL.Query().Get("room"))
	if err != nil {
		a.log.Error("failed to load history", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	a.writeJSON(w, http.StatusOK, msgs)
}

// ClearMessagesHandler wipes every room's history.
func (a *API) ClearMessagesHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.ClearAll(); err != nil {
		a.log.Error("failed to clear messages", "error", err)
		a.writeJSON(w, http.StatusInternalServerError, models.APIResponse{Success: false, Message: "failed to clear messages"})
		return
	}
	a.writeJSON(w, http.StatusOK, models.APIResponse{Success: true})
}

// UploadHandler accepts a multipart chat file, stores it under a
// server-assigned name and relays it as a file message to the sender's
// room.
func (a *API) UploadHandler(w http.ResponseWriter, r *http.Request) {
	username, err := a.auth.GetUsername(a.getToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "File too large or malformed form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("chatFile")
	if err != nil {
		http.Error(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Sniff the real content type from the first bytes rather than
	// trusting the client-declared one.
	head := make([]byte, 261)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}
	head = head[:n]

	mimetype := header.Header.Get("Content-Type")
	ext := filepath.Ext(header.Filename)
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		mimetype = kind.MIME.Value
		ext = "." + kind.Extension
	}

	storedName := uuid.NewString() + ext
	size, err := a.files.Save(io.MultiReader(bytes.NewReader(head), file), storedName)
	if err != nil {
		a.log.Error("failed to store upload", "error", err)
		http.Error(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	msg, err := a.engine.SubmitFile(username, r.FormValue("color"), r.FormValue("room"), models.FileInfo{
		Name:     header.Filename,
		Path:     "/uploads/" + storedName,
		Size:     size,
		Mimetype: mimetype,
	})
	if err != nil {
		var vErr *relay.ValidationError
		if errors.As(err, &vErr) {
			a.writeJSON(w, http.StatusBadRequest, models.APIResponse{Success: false, Message: vErr.Reason})
			return
		}
		a.log.Error("failed to relay upload", "error", err)
		a.writeJSON(w, http.StatusInternalServerError, models.APIResponse{Success: false, Message: "failed to relay upload"})
		return
	}

	a.writeJSON(w, http.StatusOK, struct {
		models.APIResponse
		Message models.Message `json:"data"`
	}{
		APIResponse: models.APIResponse{Success: true},
		Message:     msg,
	})
}

// GetUploadHandler serves a stored upload back to the client.
func (a *API) GetUploadHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	blob, err := a.files.Get(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer blob.Close()

	head := make([]byte, 261)
	n, err := io.ReadFull(blob, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	head = head[:n]

	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		w.Header().Set("Content-Type", kind.MIME.Value)
	}

	if _, err := io.Copy(w, io.MultiReader(bytes.NewReader(head), blob)); err != nil {
		a.log.Error("failed to serve upload", "name", name, "error", err)
	}
}

// PushKeyHandler returns the VAPID public key a browser needs to create a
// push subscription.
func (a *API) PushKeyHandler(w http.ResponseWriter, r *http.Request) {
	if a.notifier == nil || !a.notifier.Enabled() {
		http.Error(w, "Push notifications are not configured", http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"publicKey": a.notifier.PublicKey()})
}

// PushSubscribeHandler stores the browser's push subscription for the
// logged-in user.
func (a *API) PushSubscribeHandler(w http.ResponseWriter, r *http.Request) {
	username, err := a.auth.GetUsername(a.getToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if a.notifier == nil || !a.notifier.Enabled() {
		a.writeJSON(w, http.StatusNotFound, models.APIResponse{Success: false, Message: "push notifications are not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<10))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := a.notifier.Subscribe(username, body); err != nil {
		a.writeJSON(w, http.StatusBadRequest, models.APIResponse{Success: false, Message: fmt.Sprintf("failed to subscribe: %v", err)})
		return
	}
	a.writeJSON(w, http.StatusOK, models.APIResponse{Success: true})
}
