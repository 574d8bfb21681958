package firestoredb

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"coachmastery/database"
	"coachmastery/logger"
)

type Store struct {
	client *firestore.Client
	logger *logger.LogMiddleware
}

type StoreConnectProps struct {
	Logger    *logger.LogMiddleware
	ProjectID string
}

// Connect creates a Firestore-backed store for deployments without a
// Postgres instance.
func Connect(ctx context.Context, args StoreConnectProps) (*Store, error) {
	if args.ProjectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, args.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	args.Logger.Logger(ctx).Info("[Firestore] Database client started")
	return &Store{client: client, logger: args.Logger}, nil
}

func (s *Store) usersCol() *firestore.CollectionRef {
	return s.client.Collection("users")
}

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) usageCol() *firestore.CollectionRef {
	return s.client.Collection("usage_logs")
}

type userDoc struct {
	Email        string    `firestore:"email"`
	PasswordHash string    `firestore:"password_hash"`
	CreatedAt    time.Time `firestore:"created_at"`
}

type sessionDoc struct {
	UserID    string    `firestore:"user_id"`
	Kind      string    `firestore:"kind"`
	Language  string    `firestore:"language"`
	Report    []byte    `firestore:"report"`
	CreatedAt time.Time `firestore:"created_at"`
}

type usageDoc struct {
	UserID      string    `firestore:"user_id"`
	ServiceType string    `firestore:"service_type"`
	Model       string    `firestore:"model"`
	TotalTokens int64     `firestore:"total_tokens"`
	CostUSD     float64   `firestore:"cost_usd"`
	CreatedAt   time.Time `firestore:"created_at"`
}

func (s *Store) CreateUser(ctx context.Context, user *database.User) error {
	doc := userDoc{
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	}

	_, err := s.usersCol().Doc(user.ID).Create(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore CreateUser: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	iter := s.usersCol().Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, database.ErrNotFound
	}
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("firestore GetUserByEmail: %w", err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetUserByEmail decode: %w", err)
	}

	return &database.User{
		ID:           snap.Ref.ID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s *Store) SaveSession(ctx context.Context, record *database.SessionRecord) error {
	doc := sessionDoc{
		UserID:    record.UserID,
		Kind:      record.Kind,
		Language:  record.Language,
		Report:    []byte(record.ReportJSON),
		CreatedAt: record.CreatedAt,
	}

	_, err := s.sessionsCol().Doc(record.ID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore SaveSession: %w", err)
	}
	return nil
}

func (s *Store) GetUserHistory(ctx context.Context, userID string, limit int) ([]database.SessionRecord, error) {
	q := s.sessionsCol().Where("user_id", "==", userID).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []database.SessionRecord
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore GetUserHistory: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode sessionDoc: %w", err)
		}

		out = append(out, database.SessionRecord{
			ID:         snap.Ref.ID,
			UserID:     doc.UserID,
			Kind:       doc.Kind,
			Language:   doc.Language,
			ReportJSON: doc.Report,
			CreatedAt:  doc.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) AddUsageLog(ctx context.Context, log *database.UsageLog) error {
	doc := usageDoc{
		UserID:      log.UserID,
		ServiceType: log.ServiceType,
		Model:       log.Model,
		TotalTokens: int64(log.TotalTokens),
		CostUSD:     log.CostUSD,
		CreatedAt:   log.CreatedAt,
	}

	_, err := s.usageCol().Doc(log.ID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AddUsageLog: %w", err)
	}
	return nil
}

func (s *Store) GetUserUsage(ctx context.Context, userID string) (*database.UsageSummary, error) {
	iter := s.usageCol().Where("user_id", "==", userID).Documents(ctx)
	defer iter.Stop()

	summary := database.UsageSummary{UserID: userID}
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore GetUserUsage: %w", err)
		}

		var doc usageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode usageDoc: %w", err)
		}

		summary.TotalCalls++
		summary.TotalTokens += doc.TotalTokens
		summary.TotalCostUSD += doc.CostUSD
	}
	return &summary, nil
}
