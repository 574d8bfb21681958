package webserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"coachmastery/analysis"
	"coachmastery/auth"
	"coachmastery/database"
	"coachmastery/localization"
	"coachmastery/simulation"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxAudioBytes caps uploaded session recordings at 100 MB.
const maxAudioBytes = 100 << 20

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string         `json:"token"`
	User  *database.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrEmailTaken) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not register account")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not log in")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
}

func (s *Server) handleAnalyzeTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}

	lang := requestLanguage(r)
	if req.Language != "" {
		lang = localization.Resolve(req.Language)
	}

	userID := auth.UserID(r.Context())
	audit := s.analysis.AuditSession(r.Context(), userID, analysis.Content{Transcript: req.Transcript}, lang)

	s.persistAnalysis(r, userID, lang, audit)
	writeJSON(w, http.StatusOK, audit)
}

func (s *Server) handleAnalyzeAudio(w http.ResponseWriter, r *http.Request) {
	if s.media == nil {
		writeError(w, http.StatusServiceUnavailable, "audio analysis is not configured")
		return
	}

	path, mimeType, cleanup, ok := s.spoolAudio(w, r)
	if !ok {
		return
	}
	defer cleanup()

	handle, err := s.media.UploadAudio(r.Context(), path, mimeType)
	if err != nil {
		s.logger.Logger(r.Context()).Error("[Webserver] Audio upload failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not upload audio for analysis")
		return
	}
	defer s.media.DeleteMedia(r.Context(), handle)

	lang := requestLanguage(r)
	userID := auth.UserID(r.Context())
	audit := s.analysis.AuditSession(r.Context(), userID, analysis.Content{Media: handle}, lang)

	s.persistAnalysis(r, userID, lang, audit)
	writeJSON(w, http.StatusOK, audit)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read audio file")
		return
	}

	transcript, err := s.transcriber.Transcribe(r.Context(), data)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not transcribe audio")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"transcript": transcript})
}

// spoolAudio writes the uploaded file to a temp path because the media
// upload API takes a filename.
func (s *Server) spoolAudio(w http.ResponseWriter, r *http.Request) (path, mimeType string, cleanup func(), ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return "", "", nil, false
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "session-audio-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not store audio")
		return "", "", nil, false
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		writeError(w, http.StatusInternalServerError, "could not store audio")
		return "", "", nil, false
	}
	tmp.Close()

	mimeType = header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}

	return tmp.Name(), mimeType, func() { os.Remove(tmp.Name()) }, true
}

// persistAnalysis stores a completed audit. Failed audits and storage
// errors do not affect the HTTP response.
func (s *Server) persistAnalysis(r *http.Request, userID string, lang localization.Language, audit *analysis.SessionAudit) {
	if audit == nil || audit.Analysis == nil || audit.Analysis.Error != "" {
		return
	}

	report, err := json.Marshal(audit.Analysis)
	if err != nil {
		return
	}

	record := &database.SessionRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       "analysis",
		Language:   string(lang),
		ReportJSON: report,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveSession(r.Context(), record); err != nil {
		s.logger.Logger(r.Context()).Error("[Webserver] Could not persist analysis", zap.Error(err))
	}
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	quiz := s.training.GenerateQuiz(r.Context(), auth.UserID(r.Context()), requestLanguage(r))
	writeJSON(w, http.StatusOK, quiz)
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	scenario := s.training.GenerateScenario(r.Context(), auth.UserID(r.Context()), requestLanguage(r))
	writeJSON(w, http.StatusOK, scenario)
}

type gradeRequest struct {
	Scenario string `json:"scenario"`
	Response string `json:"response"`
}

func (s *Server) handleGradeResponse(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Scenario == "" || req.Response == "" {
		writeError(w, http.StatusBadRequest, "scenario and response are required")
		return
	}

	grade, err := s.training.GradeResponse(r.Context(), auth.UserID(r.Context()), req.Scenario, req.Response, requestLanguage(r))
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not grade response")
		return
	}
	writeJSON(w, http.StatusOK, grade)
}

func (s *Server) handleBadQuestion(w http.ResponseWriter, r *http.Request) {
	markerID := r.URL.Query().Get("marker_id")
	bad, err := s.training.GenerateBadQuestion(r.Context(), auth.UserID(r.Context()), markerID, requestLanguage(r))
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not generate question")
		return
	}
	writeJSON(w, http.StatusOK, bad)
}

type rephraseRequest struct {
	BadQuestion string `json:"bad_question"`
	Rewrite     string `json:"rewrite"`
	MarkerID    string `json:"marker_id"`
}

func (s *Server) handleRephrase(w http.ResponseWriter, r *http.Request) {
	var req rephraseRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BadQuestion == "" || req.Rewrite == "" {
		writeError(w, http.StatusBadRequest, "bad_question and rewrite are required")
		return
	}

	grade, err := s.training.EvaluateRephrase(r.Context(), auth.UserID(r.Context()), req.BadQuestion, req.Rewrite, req.MarkerID, requestLanguage(r))
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not evaluate rewrite")
		return
	}
	writeJSON(w, http.StatusOK, grade)
}

type startSessionRequest struct {
	Persona  string `json:"persona"`
	Topic    string `json:"topic"`
	Language string `json:"language"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lang := requestLanguage(r)
	if req.Language != "" {
		lang = localization.Resolve(req.Language)
	}

	session := s.simulation.Start(r.Context(), auth.UserID(r.Context()), req.Persona, req.Topic, lang)
	s.putSession(session)

	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	live, ok := s.session(chi.URLParam(r, "sessionID"), auth.UserID(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	writeJSON(w, http.StatusOK, live.session)
}

type coachTurnRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleCoachTurn(w http.ResponseWriter, r *http.Request) {
	live, ok := s.session(chi.URLParam(r, "sessionID"), auth.UserID(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req coachTurnRequest
	if err := readJSON(r, &req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	live.mu.Lock()
	outcome, err := s.simulation.CoachTurn(r.Context(), live.session, req.Message)
	live.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type endSessionResponse struct {
	Report         *simulation.FinalReport     `json:"report"`
	HiddenAnalyses []simulation.TurnEvaluation `json:"hidden_analyses"`
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	live, ok := s.session(chi.URLParam(r, "sessionID"), userID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	live.mu.Lock()
	defer live.mu.Unlock()
	session := live.session

	report := s.simulation.End(r.Context(), session)
	s.dropSession(session.ID)

	if data, err := json.Marshal(report); err == nil {
		record := &database.SessionRecord{
			ID:         session.ID,
			UserID:     userID,
			Kind:       "simulation",
			Language:   string(session.Language),
			ReportJSON: data,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.store.SaveSession(r.Context(), record); err != nil {
			s.logger.Logger(r.Context()).Error("[Webserver] Could not persist session report", zap.Error(err))
		}
	}

	// The per-turn evaluations stay hidden until the session ends.
	writeJSON(w, http.StatusOK, endSessionResponse{
		Report:         report,
		HiddenAnalyses: session.HiddenAnalyses,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.store.GetUserHistory(r.Context(), auth.UserID(r.Context()), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	if records == nil {
		records = []database.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": records})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	summary, err := s.usage.Summary(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load usage")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.recommend.BuildPlan(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not build training plan")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type tutorRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleTutor(w http.ResponseWriter, r *http.Request) {
	var req tutorRequest
	if err := readJSON(r, &req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.knowledge.Ask(r.Context(), auth.UserID(r.Context()), req.Question, requestLanguage(r))
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not answer question")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
