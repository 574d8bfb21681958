package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coachmastery/database"
	"coachmastery/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	issuer   = "coachmastery"
	tokenTTL = 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
)

// Claims extends jwt.RegisteredClaims with the account's email.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type ServiceConnectProps struct {
	Logger *logger.LogMiddleware
	Store  database.Store
	Secret string
}

// Service handles account registration, login, and bearer-token
// verification. Tokens are HS256 JWTs signed with the shared secret.
type Service struct {
	logger *logger.LogMiddleware
	store  database.Store
	secret []byte
}

func Connect(args ServiceConnectProps) *Service {
	return &Service{
		logger: args.Logger,
		store:  args.Store,
		secret: []byte(args.Secret),
	}
}

// Register creates an account with a bcrypt-hashed password and returns
// a fresh token.
func (s *Service) Register(ctx context.Context, email, password string) (string, *database.User, error) {
	tracer := otel.Tracer("auth/Register")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return "", nil, ErrEmailTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		span.RecordError(err)
		return "", nil, fmt.Errorf("checking existing account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return "", nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &database.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		span.RecordError(err)
		return "", nil, fmt.Errorf("creating account: %w", err)
	}

	s.logger.Logger(ctx).Info("[Auth] Account registered", zap.String("user_id", user.ID))

	token, err := s.issueToken(user)
	if err != nil {
		span.RecordError(err)
		return "", nil, err
	}
	return token, user, nil
}

// Login verifies credentials and returns a fresh token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, *database.User, error) {
	tracer := otel.Tracer("auth/Login")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		span.RecordError(err)
		return "", nil, fmt.Errorf("looking up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		span.RecordError(err)
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) issueToken(user *database.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			ID:        uuid.NewString(),
		},
		Email: user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a bearer token.
func (s *Service) VerifyToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("validating token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

type contextKey string

const userIDKey contextKey = "auth.user_id"

// UserID returns the authenticated account ID, or "" outside the
// middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Middleware rejects requests without a valid "Bearer <token>" header
// and stamps the account ID onto the request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := s.VerifyToken(tokenStr)
		if err != nil {
			s.logger.Logger(r.Context()).Warn("[Auth] Rejected token", zap.Error(err))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
