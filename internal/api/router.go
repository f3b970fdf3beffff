package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/git-sakshii/RealPrep-AI-App/internal/audio"
	"github.com/git-sakshii/RealPrep-AI-App/internal/middleware"
	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
	"github.com/git-sakshii/RealPrep-AI-App/internal/services"
)

const maxUploadBytes = 15 << 20

// Router wires the HTTP surface to the services.
type Router struct {
	auth     *services.AuthService
	sessions *services.SessionService
	spool    *audio.Spool
	log      *slog.Logger
}

func NewRouter(auth *services.AuthService, sessions *services.SessionService, spool *audio.Spool, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{auth: auth, sessions: sessions, spool: spool, log: log}
}

// Routes builds the route table. Authentication claims are parsed for every
// request; the authed subrouter additionally rejects anonymous ones.
func (rt *Router) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithAuth)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", rt.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", rt.handleLogin).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.RequireAuth)
	authed.HandleFunc("/me", rt.handleGetMe).Methods(http.MethodGet)
	authed.HandleFunc("/me", rt.handlePutMe).Methods(http.MethodPut)
	authed.HandleFunc("/sessions", rt.handleCreateSession).Methods(http.MethodPost)
	authed.HandleFunc("/sessions/{id}", rt.handleGetSession).Methods(http.MethodGet)
	authed.HandleFunc("/sessions/{id}/recording", rt.handleStartRecording).Methods(http.MethodPost)
	authed.HandleFunc("/sessions/{id}/answer", rt.handleAnswer).Methods(http.MethodPost)
	authed.HandleFunc("/sessions/{id}/frame", rt.handleFrame).Methods(http.MethodPost)
	authed.HandleFunc("/sessions/{id}/playback", rt.handlePlayback).Methods(http.MethodPost)
	authed.HandleFunc("/sessions/{id}/finish", rt.handleFinish).Methods(http.MethodPost)
	authed.HandleFunc("/results/{id}", rt.handleResult).Methods(http.MethodGet)
	authed.HandleFunc("/history", rt.handleHistory).Methods(http.MethodGet)
	authed.HandleFunc("/interview-config", rt.handleGetConfig).Methods(http.MethodGet)
	authed.HandleFunc("/interview-config", rt.handlePutConfig).Methods(http.MethodPut)

	// The session ID is an unguessable capability; the feed carries no
	// credentials because browsers cannot set websocket headers.
	r.HandleFunc("/ws/sessions/{id}", rt.handleSessionFeed)

	return r
}

// POST /api/auth/register — {email, password, profile}
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string             `json:"email"`
		Password string             `json:"password"`
		Profile  models.UserProfile `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := rt.auth.Register(req.Email, req.Password, req.Profile)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": res.Token, "user_id": res.UserID})
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := rt.auth.Login(req.Email, req.Password)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": res.Token, "user_id": res.UserID})
}

func (rt *Router) handleGetMe(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	profile, err := rt.auth.Profile(uid)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) handlePutMe(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	var profile models.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	updated, err := rt.auth.UpdateProfile(uid, profile)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// POST /api/sessions — {config, resume}
func (rt *Router) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	var req struct {
		Config models.InterviewConfig `json:"config"`
		Resume string                 `json:"resume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := rt.sessions.Start(r.Context(), uid, req.Config, req.Resume)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": res.Session, "audio": res.Audio})
}

func (rt *Router) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := rt.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, err)
		return
	}
	if uid, _ := middleware.UserIDFromContext(r.Context()); sess.UserID != uid {
		rt.writeError(w, services.NewNotFoundError("session not found"))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (rt *Router) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.StartRecording(mux.Vars(r)["id"]); err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": models.StateUserSpeaking})
}

// POST /api/sessions/{id}/answer — multipart "audio" part or a raw WAV body.
func (rt *Router) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	clip, filename, err := readUpload(r, "audio", "answer.wav")
	if err != nil {
		rt.writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	if !audio.IsWAV(clip) {
		rt.writeError(w, services.NewInvalidError("audio must be WAV"))
		return
	}
	if rt.spool != nil {
		if _, err := rt.spool.Save(id, clip, ".wav"); err != nil {
			rt.log.Warn("failed to spool recording", "session_id", id, "error", err)
		}
	}
	turn, err := rt.sessions.SubmitAnswer(id, clip, filename)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{
		Candidate:     turn.Candidate,
		Interviewer:   turn.Interviewer,
		Audio:         turn.Audio,
		QuestionIndex: turn.QuestionIndex,
		Advanced:      turn.Advanced,
		Finalized:     turn.Finalized,
		ResultID:      turn.ResultID,
	})
}

type turnResponse struct {
	Candidate     models.Message  `json:"candidate"`
	Interviewer   *models.Message `json:"interviewer,omitempty"`
	Audio         []byte          `json:"audio,omitempty"`
	QuestionIndex int             `json:"question_index"`
	Advanced      bool            `json:"advanced"`
	Finalized     bool            `json:"finalized"`
	ResultID      string          `json:"result_id,omitempty"`
}

// POST /api/sessions/{id}/frame — multipart "image" part or a raw body.
func (rt *Router) handleFrame(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	frame, _, err := readUpload(r, "image", "frame.jpg")
	if err != nil {
		rt.writeError(w, services.NewInvalidError(err.Error()))
		return
	}
	scores, err := rt.sessions.CaptureFrame(id, frame)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": scores})
}

func (rt *Router) handlePlayback(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.PlaybackDone(mux.Vars(r)["id"]); err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": models.StateIdle})
}

func (rt *Router) handleFinish(w http.ResponseWriter, r *http.Request) {
	resultID, err := rt.sessions.Finish(mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result_id": resultID})
}

func (rt *Router) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := rt.sessions.Result(mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, err)
		return
	}
	if uid, _ := middleware.UserIDFromContext(r.Context()); result.UserID != "" && result.UserID != uid {
		rt.writeError(w, services.NewNotFoundError("result not found"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) handleHistory(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := rt.sessions.History(uid, limit)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	if results == nil {
		results = []*models.SessionResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	cfg, err := rt.sessions.SavedConfig(uid)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (rt *Router) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	var cfg models.InterviewConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := rt.sessions.SaveConfig(uid, cfg); err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// readUpload accepts either a multipart form with the named file part or the
// raw request body, capped at maxUploadBytes.
func readUpload(r *http.Request, part, fallbackName string) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		file, header, err := r.FormFile(part)
		if err != nil {
			return nil, "", errors.New(part + " part required")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		return data, header.Filename, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty upload")
	}
	return data, fallbackName, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		code = string(svcErr.Code)
		switch svcErr.Code {
		case services.ErrorInvalid:
			status = http.StatusBadRequest
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorConflict, services.ErrorBusy:
			status = http.StatusConflict
		case services.ErrorBadGateway:
			status = http.StatusBadGateway
		}
	}
	if status == http.StatusInternalServerError {
		rt.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": code, "message": err.Error()})
}
