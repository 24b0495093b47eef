// Package mcservicetest — синтетический motley_cue для тестов движка.
// Поведение (состояние аккаунта, список issuer'ов, падающий deploy)
// настраивается полями Server между запросами.
package mcservicetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/giffels/mccli/internal/domain"
	"github.com/giffels/mccli/internal/mcservice"
)

// Server — httptest-обертка с настраиваемым состоянием аккаунта.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	Description  string // сигнатура сервиса; подменяется для негативных тестов
	SupportedOPs []string
	State        domain.AccountState
	Message      string
	SSHUser      string
	DeployFails  bool
	DeployStatus int // HTTP-код падающего deploy, по умолчанию 500

	StatusCalls int
	DeployCalls int
}

// New поднимает фикстуру с дефолтным "здоровым" сервисом.
func New() *Server {
	s := &Server{
		Description:  mcservice.Signature,
		SupportedOPs: []string{"https://aai.egi.eu/oidc"},
		State:        domain.StateNotDeployed,
		Message:      "account not deployed",
		SSHUser:      "testuser",
		DeployStatus: http.StatusInternalServerError,
	}

	r := chi.NewRouter()
	r.Get("/", s.handleRoot)
	r.Get("/info", s.handleInfo)
	r.Get("/info/authorisation", s.handleAuthorisation)
	r.Get("/user/get_status", s.handleStatus)
	r.Get("/user/deploy", s.handleDeploy)

	s.Server = httptest.NewServer(r)
	return s
}

// NewTLS — то же, но с самоподписанным TLS-сертификатом,
// для проверки поведения при ошибке верификации.
func NewTLS() *Server {
	s := New()
	s.Server.Close()

	r := chi.NewRouter()
	r.Get("/", s.handleRoot)
	r.Get("/info", s.handleInfo)
	r.Get("/info/authorisation", s.handleAuthorisation)
	r.Get("/user/get_status", s.handleStatus)
	r.Get("/user/deploy", s.handleDeploy)

	s.Server = httptest.NewTLSServer(r)
	return s
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"description": s.Description})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"login info":    map[string]string{"ssh_host": "localhost"},
		"supported OPs": s.SupportedOPs,
	})
}

func (s *Server) handleAuthorisation(w http.ResponseWriter, r *http.Request) {
	if !hasBearer(r) {
		writeJSON(w, http.StatusForbidden, map[string]any{"state": "", "message": "no authorisation header"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authorisation_type": "vo-based",
		"authorised_vos":     []string{"urn:mace:egi.eu:group:test"},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusCalls++
	if !hasBearer(r) {
		writeJSON(w, http.StatusForbidden, map[string]any{"state": "", "message": "no authorisation header"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": string(s.State), "message": s.Message})
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeployCalls++
	if !hasBearer(r) {
		writeJSON(w, http.StatusForbidden, map[string]any{"state": "", "message": "no authorisation header"})
		return
	}
	if s.DeployFails {
		writeJSON(w, s.DeployStatus, map[string]any{
			"state":   string(s.State),
			"message": "failed to create local account",
		})
		return
	}
	// Успешный deploy переводит аккаунт в deployed; повторный deploy — обновление
	s.State = domain.StateDeployed
	s.Message = "username " + s.SSHUser + " deployed"
	writeJSON(w, http.StatusOK, map[string]any{
		"state":       string(domain.StateDeployed),
		"message":     "account deployed",
		"credentials": map[string]any{"ssh_user": s.SSHUser, "ssh_host": "localhost"},
	})
}

// SetState подменяет состояние аккаунта под мьютексом.
func (s *Server) SetState(state domain.AccountState, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	s.Message = message
}

// Calls возвращает счетчики запросов status/deploy.
func (s *Server) Calls() (status, deploy int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StatusCalls, s.DeployCalls
}

func hasBearer(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	return strings.HasPrefix(header, "Bearer ") && len(header) > len("Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
