package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"sparkchat/auth"
	"sparkchat/domain"
	apperrors "sparkchat/errors"
	"sparkchat/observability"
	"sparkchat/services"
)

// Server wires the HTTP endpoints (token issuance, setup, matchmaking
// join) and the websocket endpoint onto the chat service.
type Server struct {
	log      *slog.Logger
	service  services.IChatService
	tokens   *auth.TokenManager
	captcha  *auth.CaptchaVerifier // nil when disabled
	monitor  *observability.Monitor
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, service services.IChatService, tokens *auth.TokenManager,
	captcha *auth.CaptchaVerifier, monitor *observability.Monitor) *Server {
	return &Server{
		log:     log,
		service: service,
		tokens:  tokens,
		captcha: captcha,
		monitor: monitor,
		upgrader: websocket.Upgrader{
			// Browser clients come from the separate frontend origin;
			// origin policy is enforced by the CORS layer, not here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /token", s.handleToken)
	mux.HandleFunc("GET /token/username-exist", s.handleUsernameExist)
	mux.HandleFunc("GET /token/validate", s.handleValidate)
	mux.HandleFunc("GET /token/logout", s.handleLogout)
	mux.HandleFunc("POST /setup/info", s.handleSetupInfo)
	mux.HandleFunc("POST /setup/mode", s.handleSetupMode)
	mux.HandleFunc("POST /matchmaking/join", s.handleMatchmakingJoin)
	mux.HandleFunc("GET /matchmaking/stats/people", s.handleStats)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, "I work!")
}

// handleToken issues a connection credential for a free username.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if err := auth.ValidateUsername(username); err != nil {
		http.Error(w, "Invalid username format", http.StatusBadRequest)
		return
	}
	username = auth.TruncateUsername(username)

	if s.service.IsConnected(username) {
		http.Error(w, fmt.Sprintf("Username %s already taken", username), http.StatusConflict)
		return
	}

	if s.captcha != nil {
		captchaToken := r.Header.Get("hcaptcha-token")
		if captchaToken == "" {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		valid, err := s.captcha.Verify(r.Context(), captchaToken)
		if err != nil || !valid {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
	}

	token, err := s.tokens.Generate(username)
	if err != nil {
		s.log.Error("Could not sign token", "username", username, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]string{"token": token})
}

func (s *Server) handleUsernameExist(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if err := auth.ValidateUsername(username); err != nil {
		http.Error(w, "Invalid username format", http.StatusBadRequest)
		return
	}
	s.writeJSON(w, map[string]bool{"exist": s.service.IsConnected(username)})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	username, err := s.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	fmt.Fprint(w, username)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	username, err := s.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Invalid token", http.StatusBadRequest)
		return
	}
	s.service.Logout(r.Context(), username)
	fmt.Fprint(w, "Logged out")
}

func (s *Server) handleSetupInfo(w http.ResponseWriter, r *http.Request) {
	username, ok := s.authorize(w, r)
	if !ok {
		return
	}

	var req auth.SetupInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Missing or invalid fields", http.StatusBadRequest)
		return
	}
	if err := auth.ValidateSetupInfo(req); err != nil {
		http.Error(w, "Missing or invalid fields", http.StatusBadRequest)
		return
	}

	s.service.SetupInfo(username, domain.Profile{
		Gender:    domain.Gender(req.Gender),
		Age:       req.Age,
		Interests: req.Interests,
	})
	fmt.Fprint(w, "Setup info received")
}

func (s *Server) handleSetupMode(w http.ResponseWriter, r *http.Request) {
	username, ok := s.authorize(w, r)
	if !ok {
		return
	}

	var req auth.SetupModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Missing or invalid mode", http.StatusBadRequest)
		return
	}
	if err := auth.ValidateSetupMode(req); err != nil {
		http.Error(w, "Missing or invalid mode", http.StatusBadRequest)
		return
	}

	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, "Missing or invalid mode", http.StatusBadRequest)
		return
	}
	if err := s.service.SetupMode(username, mode); err != nil {
		http.Error(w, "Need login first", http.StatusForbidden)
		return
	}
	fmt.Fprint(w, "Mode updated")
}

func (s *Server) handleMatchmakingJoin(w http.ResponseWriter, r *http.Request) {
	username, ok := s.authorize(w, r)
	if !ok {
		return
	}

	switch err := s.service.JoinMatchmaking(r.Context(), username); {
	case err == nil:
		fmt.Fprint(w, "Joined matchmaking")
	case errors.Is(err, apperrors.ErrNotRegistered):
		http.Error(w, "Need login first", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrSetupIncomplete):
		http.Error(w, "User setup is not complete", http.StatusForbidden)
	default:
		s.log.Error("Could not join matchmaking", "username", username, "error", err)
		http.Error(w, "Matchmaking unavailable", http.StatusInternalServerError)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}

	counts, err := s.service.WaitingCounts(r.Context())
	if err != nil {
		s.log.Error("Could not read waiting counts", "error", err)
		http.Error(w, "Stats unavailable", http.StatusInternalServerError)
		return
	}
	payload := map[string]any{"waiting": counts}
	if s.monitor != nil {
		payload["process"] = s.monitor.Latest()
	}
	s.writeJSON(w, payload)
}

// handleWebsocket upgrades the connection, attaches it to the registry
// and pumps inbound frames until the client goes away. The connection
// must be upgraded before a close code can be delivered, so rejections
// close immediately after the handshake with a distinct terminal
// reason.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	conn := NewConn(raw)

	if token == "" {
		_ = conn.Close(domain.CloseInvalidToken, domain.ReasonTokenMissing)
		return
	}
	username, err := s.tokens.Verify(token)
	if err != nil {
		_ = conn.Close(domain.CloseInvalidToken, domain.ReasonInvalidToken)
		return
	}

	if err := s.service.Attach(r.Context(), username, conn); err != nil {
		if errors.Is(err, apperrors.ErrSetupMissing) {
			_ = conn.Close(domain.ClosePolicyViolation, domain.ReasonSetupMissing)
		} else {
			s.log.Error("Could not attach session", "username", username, "error", err)
			_ = conn.Close(domain.CloseInternalError, "Internal error")
		}
		return
	}

	// The read loop may outlive the request context (client holds the
	// socket open); cleanup must still run when the loop ends, unless
	// the user already reconnected on a fresh handle.
	defer s.service.DetachIfCurrent(context.Background(), username, conn)

	for {
		_, payload, err := raw.ReadMessage()
		if err != nil {
			s.log.Info("Websocket closed", "username", username, "error", err)
			return
		}
		s.service.HandleFrame(r.Context(), username, payload)
	}
}

// authorize resolves the username from the Authorization header.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Header.Get("Authorization")
	if token == "" {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return "", false
	}
	username, err := s.tokens.Verify(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return "", false
	}
	return username, true
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Could not encode response", "error", err)
	}
}
