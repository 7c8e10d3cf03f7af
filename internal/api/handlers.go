package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/tahcohcat/meechain/internal/apperr"
	"github.com/tahcohcat/meechain/internal/auth"
	"github.com/tahcohcat/meechain/internal/governance"
	"github.com/tahcohcat/meechain/internal/llm"
	"github.com/tahcohcat/meechain/internal/logger"
	"github.com/tahcohcat/meechain/internal/mining"
	"github.com/tahcohcat/meechain/internal/models"
	"github.com/tahcohcat/meechain/internal/progress"
	"github.com/tahcohcat/meechain/internal/services"
	"github.com/tahcohcat/meechain/internal/tts"
)

type Handler struct {
	progress     *services.ProgressService
	achievements *services.AchievementService
	auth         *auth.Authenticator
	limiter      *KeyedRateLimiter
	ws           http.Handler
	validate     *validator.Validate
	logger       *logger.Log
}

type Deps struct {
	Progress     *services.ProgressService
	Achievements *services.AchievementService
	Auth         *auth.Authenticator
	Limiter      *KeyedRateLimiter
	WebSocket    http.Handler
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		progress:     d.Progress,
		achievements: d.Achievements,
		auth:         d.Auth,
		limiter:      d.Limiter,
		ws:           d.WebSocket,
		validate:     validator.New(),
		logger:       logger.New().With("component", "api"),
	}
}

// RegisterRoutes mounts the public and wallet-gated routes on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	public := api.NewRoute().Subrouter()
	if h.limiter != nil {
		public.Use(h.limiter.Middleware)
	}
	public.HandleFunc("/connect", h.auth.ConnectHandler).Methods("POST")
	public.HandleFunc("/disconnect", h.Disconnect).Methods("POST")
	public.HandleFunc("/catalog", h.Catalog).Methods("GET")

	private := api.NewRoute().Subrouter()
	private.Use(h.auth.Middleware)
	if h.limiter != nil {
		private.Use(h.limiter.Middleware)
	}
	private.HandleFunc("/progress", h.GetProgress).Methods("GET")
	private.HandleFunc("/state", h.GetState).Methods("GET")
	private.HandleFunc("/actions/mint", h.Mint).Methods("POST")
	private.HandleFunc("/actions/persona", h.CreatePersona).Methods("POST")
	private.HandleFunc("/proposals/analyze", h.AnalyzeProposal).Methods("POST")
	private.HandleFunc("/mining/start", h.StartMining).Methods("POST")
	private.HandleFunc("/mining/stop", h.StopMining).Methods("POST")
	private.HandleFunc("/mining", h.MiningStatus).Methods("GET")
	private.HandleFunc("/achievements", h.ListAchievements).Methods("GET")
	private.HandleFunc("/achievements/{id}", h.GetAchievement).Methods("GET")
	private.HandleFunc("/timeline", h.GetTimeline).Methods("GET")
	private.HandleFunc("/timeline", h.PostTimelineEvent).Methods("POST")
	private.HandleFunc("/notification", h.GetNotification).Methods("GET")
	private.HandleFunc("/notification/dismiss", h.DismissNotification).Methods("POST")
	private.HandleFunc("/notification/audio", h.NotificationAudio).Methods("GET")

	if h.ws != nil {
		ws := r.NewRoute().Subrouter()
		ws.Use(h.auth.Middleware)
		ws.Handle("/ws", h.ws)
	}
}

// player is only called behind auth.Middleware.
func player(r *http.Request) string {
	id, _ := auth.PlayerFromContext(r.Context())
	return id
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var unknown *services.UnknownAchievementError
	var appErr *apperr.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.As(err, &unknown):
		appErr = apperr.NotFound(unknown.Error())
		appErr.Suggestion = unknown.Suggestion
	case errors.Is(err, llm.ErrDisabled):
		appErr = apperr.Unavailable("Proposal analysis is not configured")
	case errors.Is(err, tts.ErrDisabled):
		appErr = apperr.Unavailable("Voice-over is not configured")
	case errors.Is(err, governance.ErrEmptyProposal),
		errors.Is(err, models.ErrUnknownEventType),
		errors.Is(err, progress.ErrReservedEventType):
		appErr = apperr.BadRequest(err.Error())
	case errors.Is(err, mining.ErrAlreadyRunning), errors.Is(err, mining.ErrNotRunning):
		appErr = apperr.Conflict(err.Error())
	case errors.Is(err, services.ErrNoNotification):
		appErr = apperr.NotFound(err.Error())
	default:
		h.logger.WithError(err).With("path", r.URL.Path).Error("request failed")
	}
	if appErr == nil {
		apperr.Write(w, err)
		return
	}
	apperr.Write(w, appErr)
}

// POST /api/v1/disconnect
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.auth.PlayerFromRequest(r); ok {
		if err := h.progress.Disconnect(r.Context(), id); err != nil {
			h.logger.WithError(err).With("player", id).Warn("failed to unload player on disconnect")
		}
	}
	h.auth.DisconnectHandler(w, r)
}

type catalogEntry struct {
	ID          string `json:"id"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// GET /api/v1/catalog
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	defs := h.achievements.Catalog().All()
	out := make([]catalogEntry, 0, len(defs))
	for _, d := range defs {
		out = append(out, catalogEntry{ID: d.ID, Icon: d.Icon, Title: d.Name, Description: d.Description, Category: d.Category})
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]interface{}{"achievements": out})
}

// GET /api/v1/progress
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	st, err := h.progress.Store(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	unlocked := []string{}
	for _, a := range st.Achievements() {
		unlocked = append(unlocked, a.AchievementID)
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"progress":     st.Snapshot(),
		"achievements": unlocked,
	})
}

// GET /api/v1/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	st, err := h.progress.Store(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := progress.Update{State: st.State()}
	if n, ok := st.Notification(); ok {
		resp.Notification = &n
	}
	apperr.WriteJSON(w, http.StatusOK, resp)
}

// POST /api/v1/actions/mint
func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	res, err := h.progress.Mint(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, res)
}

// POST /api/v1/actions/persona
func (h *Handler) CreatePersona(w http.ResponseWriter, r *http.Request) {
	res, err := h.progress.CreatePersona(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, res)
}

// POST /api/v1/proposals/analyze
func (h *Handler) AnalyzeProposal(w http.ResponseWriter, r *http.Request) {
	var req governance.Proposal
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperr.Write(w, apperr.BadRequest("body is required and limited to 8000 characters"))
		return
	}

	analysis, res, err := h.progress.AnalyzeProposal(r.Context(), player(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"analysis": analysis,
		"result":   res,
	})
}

// POST /api/v1/mining/start
func (h *Handler) StartMining(w http.ResponseWriter, r *http.Request) {
	status, err := h.progress.StartMining(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, status)
}

// POST /api/v1/mining/stop
func (h *Handler) StopMining(w http.ResponseWriter, r *http.Request) {
	if err := h.progress.StopMining(player(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/mining
func (h *Handler) MiningStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.progress.MiningStatus(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, status)
}

// GET /api/v1/achievements
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	st, err := h.progress.Store(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": h.achievements.GetPlayerAchievements(st),
	})
}

// GET /api/v1/achievements/{id}
func (h *Handler) GetAchievement(w http.ResponseWriter, r *http.Request) {
	st, err := h.progress.Store(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	v, err := h.achievements.GetAchievement(st, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, v)
}

// GET /api/v1/timeline?limit=N
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	st, err := h.progress.Store(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	events := st.Timeline()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			apperr.Write(w, apperr.BadRequest("limit must be a non-negative integer"))
			return
		}
		if limit < len(events) {
			events = events[:limit]
		}
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

type timelineRequest struct {
	Type     string `json:"type" validate:"required"`
	Message  string `json:"message" validate:"required,max=280"`
	ChainTag string `json:"chain_tag" validate:"max=64"`
}

// POST /api/v1/timeline
func (h *Handler) PostTimelineEvent(w http.ResponseWriter, r *http.Request) {
	var req timelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperr.Write(w, apperr.BadRequest("type and message are required"))
		return
	}

	ev, err := h.progress.RecordEvent(r.Context(), player(r), models.EventType(req.Type), req.Message, req.ChainTag)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, ev)
}

// GET /api/v1/notification
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	st, err := h.progress.Store(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, ok := st.Notification()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, n)
}

// POST /api/v1/notification/dismiss
func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	st, err := h.progress.Store(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]bool{"dismissed": st.Dismiss()})
}

// GET /api/v1/notification/audio
func (h *Handler) NotificationAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := h.progress.Announcement(r.Context(), player(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(audio)
}
