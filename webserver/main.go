package webserver

import (
	"context"
	"net/http"
	"sync"

	"coachmastery/analysis"
	"coachmastery/auth"
	"coachmastery/database"
	"coachmastery/knowledge"
	"coachmastery/logger"
	"coachmastery/modelapi"
	"coachmastery/recommend"
	"coachmastery/simulation"
	"coachmastery/training"
	"coachmastery/usage"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// MediaStore uploads session recordings for multimodal analysis and
// cleans them up afterwards.
type MediaStore interface {
	UploadAudio(ctx context.Context, path string, mimeType string) (*modelapi.MediaHandle, error)
	DeleteMedia(ctx context.Context, handle *modelapi.MediaHandle)
}

// Transcriber converts recorded audio to a speaker-tagged transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

type ServerConnectProps struct {
	Logger      *logger.LogMiddleware
	Auth        *auth.Service
	Store       database.Store
	Analysis    *analysis.Engine
	Simulation  *simulation.Engine
	Training    *training.Engine
	Knowledge   *knowledge.Engine
	Recommend   *recommend.Engine
	Usage       *usage.Tracker
	Media       MediaStore
	Transcriber Transcriber
}

// Server is the HTTP surface over every engine. Live roleplay sessions
// are held in memory; only final reports are persisted.
type Server struct {
	logger      *logger.LogMiddleware
	auth        *auth.Service
	store       database.Store
	analysis    *analysis.Engine
	simulation  *simulation.Engine
	training    *training.Engine
	knowledge   *knowledge.Engine
	recommend   *recommend.Engine
	usage       *usage.Tracker
	media       MediaStore
	transcriber Transcriber

	mu       sync.Mutex
	sessions map[string]*liveSession
}

// liveSession serializes access to one in-memory roleplay. The
// simulation engine mutates session state in place, so every handler
// touching a live session holds its lock.
type liveSession struct {
	mu      sync.Mutex
	session *simulation.Session
}

func Connect(args ServerConnectProps) *Server {
	return &Server{
		logger:      args.Logger,
		auth:        args.Auth,
		store:       args.Store,
		analysis:    args.Analysis,
		simulation:  args.Simulation,
		training:    args.Training,
		knowledge:   args.Knowledge,
		recommend:   args.Recommend,
		usage:       args.Usage,
		media:       args.Media,
		transcriber: args.Transcriber,
		sessions:    make(map[string]*liveSession),
	}
}

// Handler assembles the route tree.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(requestLoggerMiddleware(s.logger))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", s.handleRegister)
		api.Post("/auth/login", s.handleLogin)

		api.Group(func(private chi.Router) {
			private.Use(s.auth.Middleware)

			private.Post("/analysis/transcript", s.handleAnalyzeTranscript)
			private.Post("/analysis/audio", s.handleAnalyzeAudio)
			private.Post("/analysis/transcribe", s.handleTranscribe)

			private.Get("/training/quiz", s.handleQuiz)
			private.Get("/training/scenario", s.handleScenario)
			private.Post("/training/grade", s.handleGradeResponse)
			private.Get("/training/bad-question", s.handleBadQuestion)
			private.Post("/training/rephrase", s.handleRephrase)

			private.Post("/sessions", s.handleStartSession)
			private.Get("/sessions/{sessionID}", s.handleGetSession)
			private.Post("/sessions/{sessionID}/turns", s.handleCoachTurn)
			private.Post("/sessions/{sessionID}/end", s.handleEndSession)

			private.Get("/history", s.handleHistory)
			private.Get("/usage", s.handleUsage)
			private.Get("/plan", s.handlePlan)
			private.Post("/tutor", s.handleTutor)
		})
	})

	return otelhttp.NewHandler(router, "webserver")
}

// session returns a live session owned by the requesting user.
func (s *Server) session(sessionID, userID string) (*liveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.sessions[sessionID]
	if !ok || live.session.UserID != userID {
		return nil, false
	}
	return live, true
}

func (s *Server) putSession(session *simulation.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &liveSession{session: session}
}

func (s *Server) dropSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func requestLoggerMiddleware(logger *logger.LogMiddleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger.Logger(ctx).Info("Request Received", zap.String("url", r.URL.Path), zap.String("method", r.Method))
			next.ServeHTTP(w, r)
			logger.Logger(ctx).Info("Request Completed", zap.String("path", r.URL.Path), zap.String("method", r.Method))
		})
	}
}
