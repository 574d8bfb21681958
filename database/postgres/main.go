package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"coachmastery/database"
	"coachmastery/logger"

	_ "github.com/lib/pq"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type DatabaseConnectProps struct {
	Logger *logger.LogMiddleware
}

type Database struct {
	conn   *sql.DB
	logger *logger.LogMiddleware
}

func Connect(ctx context.Context, args DatabaseConnectProps) *Database {
	tracer := otel.Tracer("postgres/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	connectRetries := 5
	var conn *sql.DB
	var err error
	var connStr string

	logger := args.Logger.Logger(ctx)

	for connectRetries > 0 {
		conn, err, connStr = getConnection(ctx)
		if err == nil {
			logger.Info("[Postgres] Database client started")
			break
		}
		connectRetries -= 1
		sleepTime := 5
		logger.Error(
			"[Postgres] Could not connect to Postgres. Retrying after sleeping.",
			zap.Error(err),
			zap.Int("Retries Left", connectRetries),
			zap.Int("Sleep Time", sleepTime),
			zap.String("Connection String", connStr))
		time.Sleep(time.Second * time.Duration(sleepTime))
	}

	if connectRetries <= 0 {
		logger.Error("[Postgres] Failed to Connect to Postgres")
		span.RecordError(fmt.Errorf("failed to connect to Postgres"))
		os.Exit(1)
	}

	return &Database{conn: conn, logger: args.Logger}
}

func getConnection(ctx context.Context) (*sql.DB, error, string) {
	tracer := otel.Tracer("postgres/getConnection")
	_, span := tracer.Start(ctx, "getConnection")
	defer span.End()

	host := os.Getenv("POSTGRES_DB_HOST")
	port := os.Getenv("POSTGRES_DB_PORT")
	user := os.Getenv("POSTGRES_DB_USER")
	password := os.Getenv("POSTGRES_DB_PASS")
	dbname := os.Getenv("POSTGRES_DB_NAME")

	sslMode := "disable"

	postgresqlDbInfo := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslMode,
	)

	db, err := sql.Open("postgres", postgresqlDbInfo)
	if err != nil {
		span.RecordError(err)
		return nil, err, postgresqlDbInfo
	}
	err = db.Ping()
	if err != nil {
		span.RecordError(err)
		return nil, err, postgresqlDbInfo
	}

	return db, nil, ""
}

func (d *Database) CreateUser(ctx context.Context, user *database.User) error {
	tracer := otel.Tracer("postgres/CreateUser")
	ctx, span := tracer.Start(ctx, "CreateUser")
	defer span.End()

	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not create user", zap.Error(err))
		span.RecordError(err)
		return fmt.Errorf("could not create user")
	}

	return nil
}

func (d *Database) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	tracer := otel.Tracer("postgres/GetUserByEmail")
	ctx, span := tracer.Start(ctx, "GetUserByEmail")
	defer span.End()

	var user database.User
	err := d.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not fetch user", zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("could not fetch user")
	}

	return &user, nil
}

func (d *Database) SaveSession(ctx context.Context, record *database.SessionRecord) error {
	tracer := otel.Tracer("postgres/SaveSession")
	ctx, span := tracer.Start(ctx, "SaveSession")
	defer span.End()

	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, kind, language, report, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.UserID, record.Kind, record.Language, []byte(record.ReportJSON), record.CreatedAt)
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not save session",
			zap.Error(err),
			zap.String("session_id", record.ID))
		span.RecordError(err)
		return fmt.Errorf("could not save session")
	}

	return nil
}

func (d *Database) GetUserHistory(ctx context.Context, userID string, limit int) ([]database.SessionRecord, error) {
	tracer := otel.Tracer("postgres/GetUserHistory")
	ctx, span := tracer.Start(ctx, "GetUserHistory")
	defer span.End()

	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, user_id, kind, language, report, created_at FROM sessions
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not fetch history", zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("could not fetch history")
	}
	defer rows.Close()

	var records []database.SessionRecord
	for rows.Next() {
		var record database.SessionRecord
		var report []byte
		if err := rows.Scan(&record.ID, &record.UserID, &record.Kind, &record.Language, &report, &record.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("could not fetch history")
		}
		record.ReportJSON = report
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not fetch history")
	}

	return records, nil
}

func (d *Database) AddUsageLog(ctx context.Context, log *database.UsageLog) error {
	tracer := otel.Tracer("postgres/AddUsageLog")
	ctx, span := tracer.Start(ctx, "AddUsageLog")
	defer span.End()

	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO usage_logs (id, user_id, service_type, model, total_tokens, cost_usd, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, log.UserID, log.ServiceType, log.Model, log.TotalTokens, log.CostUSD, log.CreatedAt)
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not add usage log", zap.Error(err))
		span.RecordError(err)
		return fmt.Errorf("could not add usage log")
	}

	return nil
}

func (d *Database) GetUserUsage(ctx context.Context, userID string) (*database.UsageSummary, error) {
	tracer := otel.Tracer("postgres/GetUserUsage")
	ctx, span := tracer.Start(ctx, "GetUserUsage")
	defer span.End()

	summary := database.UsageSummary{UserID: userID}
	err := d.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost_usd), 0)
		 FROM usage_logs WHERE user_id = $1`,
		userID).Scan(&summary.TotalCalls, &summary.TotalTokens, &summary.TotalCostUSD)
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not fetch usage summary", zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("could not fetch usage summary")
	}

	return &summary, nil
}
