package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// UserStore implements the store.UserStore interface using a PostgreSQL
// database as the storage backend. Password hashing happens here so callers
// never persist plaintext.
type UserStore struct {
	db         store.DBTX
	bcryptCost int
	logger     *slog.Logger
}

// NewUserStore creates a new PostgreSQL implementation of the UserStore
// interface. A bcryptCost of 0 selects bcrypt.DefaultCost.
func NewUserStore(db store.DBTX, bcryptCost int, logger *slog.Logger) *UserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &UserStore{
		db:         db,
		bcryptCost: bcryptCost,
		logger:     logger.With(slog.String("component", "user_store")),
	}
}

var _ store.UserStore = (*UserStore)(nil)

// Create implements store.UserStore.Create.
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	if user.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.HashedPassword = string(hashed)
		user.Password = ""
	}

	query := `
		INSERT INTO users (id, name, email, hashed_password, email_verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.HashedPassword,
		user.EmailVerifiedAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate email during user creation",
				slog.String("user_id", user.ID.String()))
			return fmt.Errorf("%w: %v", store.ErrEmailExists, err)
		}
		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return MapError(err)
	}

	log.Info("user created", slog.String("user_id", user.ID.String()))
	return nil
}

// GetByID implements store.UserStore.GetByID.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, name, email, hashed_password, email_verified_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return s.scanUser(ctx, s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail implements store.UserStore.GetByEmail.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, name, email, hashed_password, email_verified_at, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return s.scanUser(ctx, s.db.QueryRowContext(ctx, query, email))
}

// ListOthers implements store.UserStore.ListOthers.
func (s *UserStore) ListOthers(ctx context.Context, excludeID uuid.UUID) ([]*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, email, hashed_password, email_verified_at, created_at, updated_at
		FROM users
		WHERE id != $1
		ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		log.Error("failed to list users", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var users []*domain.User
	for rows.Next() {
		var user domain.User
		var verifiedAt sql.NullTime
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.HashedPassword,
			&verifiedAt,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, MapError(err)
		}
		if verifiedAt.Valid {
			t := verifiedAt.Time
			user.EmailVerifiedAt = &t
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return users, nil
}

// WithTx implements store.UserStore.WithTx.
func (s *UserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &UserStore{db: tx, bcryptCost: s.bcryptCost, logger: s.logger}
}

// scanUser reads one user row, mapping sql.ErrNoRows to ErrUserNotFound.
func (s *UserStore) scanUser(ctx context.Context, row *sql.Row) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var user domain.User
	var verifiedAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.HashedPassword,
		&verifiedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to scan user row", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if verifiedAt.Valid {
		t := verifiedAt.Time.UTC()
		user.EmailVerifiedAt = &t
	}

	return &user, nil
}

// nowUTC is a seam for tests that need deterministic timestamps.
var nowUTC = func() time.Time { return time.Now().UTC() }
