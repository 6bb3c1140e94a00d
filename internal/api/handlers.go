package api

import (
	"encoding/json"
	"net/http"
	"time"

	"teleop_go/internal/models"
	"teleop_go/pkg/logger"
)

// SessionService é a visão da sessão exposta pela API: snapshots somente
// leitura e o encaminhamento de operações de trajetória ao laço de
// controle (a API nunca muta estado diretamente)
type SessionService interface {
	Snapshot() models.SessionSnapshot
	IsRunning() bool
	Request(op, name string) error
}

// PathwayLister enumera as trajetórias gravadas em disco
type PathwayLister interface {
	List() ([]string, error)
}

// Handler concentra os endpoints REST do serviço
type Handler struct {
	session  SessionService
	pathways PathwayLister
}

// NewHandler cria o conjunto de handlers da API
func NewHandler(session SessionService, pathways PathwayLister) *Handler {
	return &Handler{session: session, pathways: pathways}
}

// GetStatus responde um resumo do estado da sessão
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "método não permitido")
		return
	}

	state := h.session.Snapshot()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"running":        h.session.IsRunning(),
		"mode":           state.Mode,
		"space":          state.Space,
		"selector":       state.Selector,
		"emergency_stop": state.EmergencyStop,
		"input_stale":    state.InputStale,
		"pathway":        state.Pathway,
		"timestamp":      time.Now(),
	})
}

// GetState responde o snapshot completo da sessão
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "método não permitido")
		return
	}
	respondWithJSON(w, http.StatusOK, h.session.Snapshot())
}

// GetPathways lista as trajetórias gravadas em disco
func (h *Handler) GetPathways(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "método não permitido")
		return
	}

	names, err := h.pathways.List()
	if err != nil {
		logger.Errorf("Erro ao listar trajetórias: %v", err)
		respondWithError(w, http.StatusInternalServerError, "erro ao listar trajetórias")
		return
	}
	if names == nil {
		names = []string{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"pathways": names,
		"count":    len(names),
	})
}

// pathwayCommand é o corpo aceito em POST /api/pathways/command
type pathwayCommand struct {
	Op   string `json:"op"`
	Name string `json:"name,omitempty"`
}

var allowedPathwayOps = map[string]bool{
	"save":            true,
	"load":            true,
	"clear":           true,
	"toggle_loop":     true,
	"toggle_playback": true,
	"stop_playback":   true,
	"set_name":        true,
}

// PostPathwayCommand encaminha uma operação de trajetória ao laço de
// controle; a resposta confirma apenas o enfileiramento, o resultado
// chega aos observadores como evento
func (h *Handler) PostPathwayCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "método não permitido")
		return
	}

	var cmd pathwayCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondWithError(w, http.StatusBadRequest, "corpo inválido")
		return
	}
	if !allowedPathwayOps[cmd.Op] {
		respondWithError(w, http.StatusBadRequest, "operação desconhecida: "+cmd.Op)
		return
	}

	if err := h.session.Request(cmd.Op, cmd.Name); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": true,
		"op":       cmd.Op,
	})
}

// respondWithJSON escreve uma resposta JSON com o status indicado
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Erro ao escrever resposta JSON: %v", err)
	}
}

// respondWithError escreve uma resposta de erro padronizada
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
