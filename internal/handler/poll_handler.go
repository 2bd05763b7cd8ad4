package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"schedpoll/internal/middleware"
	"schedpoll/internal/service"
	"schedpoll/pkg/errors"
	"schedpoll/pkg/logger"
)

// DefaultBestSlots is how many best slots the grid returns unless asked otherwise
const DefaultBestSlots = 5

// PollHandler serves the /api/poll endpoints
type PollHandler struct {
	polls  service.PollService
	logger *logger.Logger
}

// NewPollHandler creates a new poll handler
func NewPollHandler(polls service.PollService, log *logger.Logger) *PollHandler {
	return &PollHandler{polls: polls, logger: log}
}

// Routes mounts every poll endpoint. Mutating endpoints sit behind PollAuth,
// which limits failed credentials per client through failures; login and
// create-user are rate limited per client address.
func (h *PollHandler) Routes(authorizer service.Authorizer, limiter, failures *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	r.Post("/create", h.CreatePoll)
	r.Post("/data", h.GetPollData)
	r.Post("/grid", h.GetGrid)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, h.logger))
		r.Post("/login", h.Login)
		r.Post("/create-user", h.CreateMember)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.PollAuth(authorizer, failures, h.logger))
		r.Post("/save-att", h.SaveAttendance)
		r.Post("/save", h.SaveAttendance)
		r.Post("/save-info", h.SaveAuxInfo)
		r.Post("/withdraw", h.Withdraw)
		r.Post("/delete-user", h.DeleteMember)
		r.Post("/set-open", h.SetOpen)
		r.Post("/delete", h.DeletePoll)
	})

	return r
}

type loginRequest struct {
	Token  string `json:"token"`
	UserID int64  `json:"userId"`
	Pass   string `json:"pass"`
}

type dataRequest struct {
	Token string `json:"token"`
	OTT   string `json:"ott"`
}

type gridRequest struct {
	Token    string `json:"token"`
	Lock     bool   `json:"lock"`
	ViewerID int64  `json:"viewerId"`
	Best     *int   `json:"best"`
}

type saveAttendanceRequest struct {
	AttData map[string]bool `json:"attData"`
}

type saveAuxInfoRequest struct {
	UserData struct {
		AuxInfo map[string]interface{} `json:"auxInfo"`
	} `json:"userData"`
}

type deleteMemberRequest struct {
	UserID int64 `json:"userId"`
}

type setOpenRequest struct {
	Open *bool `json:"open"`
}

// CreatePoll handles POST /api/poll/create
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePollInput
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.polls.CreatePoll(r.Context(), req)
	if err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}

	h.respondJSON(w, http.StatusOK, res)
}

// Login handles POST /api/poll/login
func (h *PollHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	info, err := h.polls.Login(r.Context(), req.Token, req.UserID, req.Pass)
	if err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}

	h.respondJSON(w, http.StatusOK, info)
}

// CreateMember handles POST /api/poll/create-user
func (h *PollHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMemberInput
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.polls.CreateMember(r.Context(), req)
	if err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int64{"userId": id})
}

// GetPollData handles POST /api/poll/data
func (h *PollHandler) GetPollData(w http.ResponseWriter, r *http.Request) {
	var req dataRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.polls.PollView(r.Context(), req.Token, req.OTT)
	if err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.respondJSON(w, http.StatusOK, view)
}

// GetGrid handles POST /api/poll/grid
func (h *PollHandler) GetGrid(w http.ResponseWriter, r *http.Request) {
	var req gridRequest
	if !h.decode(w, r, &req) {
		return
	}

	best := DefaultBestSlots
	if req.Best != nil {
		best = *req.Best
	}

	grid, err := h.polls.Grid(r.Context(), req.Token, req.Lock, req.ViewerID, best)
	if err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}

	h.respondJSON(w, http.StatusOK, grid)
}

// SaveAttendance handles POST /api/poll/save-att
func (h *PollHandler) SaveAttendance(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req saveAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.polls.SaveAttendance(r.Context(), actor, req.AttData); err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}
	h.respondText(w, "Saved")
}

// SaveAuxInfo handles POST /api/poll/save-info
func (h *PollHandler) SaveAuxInfo(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req saveAuxInfoRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.polls.SaveAuxInfo(r.Context(), actor, req.UserData.AuxInfo); err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}
	h.respondText(w, "Saved")
}

// Withdraw handles POST /api/poll/withdraw
func (h *PollHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := h.polls.Withdraw(r.Context(), actor); err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}
	h.respondText(w, "Withdrawn")
}

// DeleteMember handles POST /api/poll/delete-user
func (h *PollHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req deleteMemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.polls.DeleteMember(r.Context(), actor, req.UserID); err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}
	h.respondText(w, "Deleted")
}

// SetOpen handles POST /api/poll/set-open
func (h *PollHandler) SetOpen(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req setOpenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Open == nil {
		middleware.WriteError(w, r, errors.NewValidationError("open is required", nil), h.logger)
		return
	}

	if err := h.polls.SetOpen(r.Context(), actor, *req.Open); err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}
	h.respondText(w, "Updated")
}

// DeletePoll handles POST /api/poll/delete
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := h.polls.DeletePoll(r.Context(), actor); err != nil {
		middleware.WriteError(w, r, err, h.logger)
		return
	}
	h.respondText(w, "Deleted")
}

func (h *PollHandler) actor(w http.ResponseWriter, r *http.Request) (*service.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		h.logger.Error("Actor not found in context")
		middleware.WriteError(w, r, errors.NewAuthenticationError("Not authenticated"), h.logger)
		return nil, false
	}
	return actor, true
}

func (h *PollHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, middleware.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, r, errors.NewValidationError("Invalid request body", nil), h.logger)
		return false
	}
	return true
}

func (h *PollHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *PollHandler) respondText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(msg))
}
