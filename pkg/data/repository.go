package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Repository defines the interface for bridge security persistence
type Repository interface {
	// Validator operations
	SaveValidator(ctx context.Context, validator *Validator) error
	GetValidator(ctx context.Context, id string) (*Validator, error)
	ListValidators(ctx context.Context, filter ValidatorFilter) ([]*Validator, error)
	UpdateValidator(ctx context.Context, validator *Validator) error

	// Security proof operations
	SaveProof(ctx context.Context, proof *SecurityProof) error
	GetProof(ctx context.Context, transactionID string) (*SecurityProof, error)

	// Challenge operations
	SaveChallenge(ctx context.Context, challenge *ChallengeInfo) error
	GetChallenge(ctx context.Context, transactionID string) (*ChallengeInfo, error)
	UpdateChallengeStatus(ctx context.Context, transactionID string, status ChallengeStatus) error
	ListChallenges(ctx context.Context, filter ChallengeFilter) ([]*ChallengeInfo, error)
}

// ValidatorFilter defines filter parameters for validator queries
type ValidatorFilter struct {
	MinReputation *float64
	MaxReputation *float64
	Active        *bool
	Limit         int
	Offset        int
}

// ChallengeFilter defines filter parameters for challenge queries
type ChallengeFilter struct {
	Status    ChallengeStatus
	FromTime  *time.Time
	ToTime    *time.Time
	MinAmount *float64
	Limit     int
	Offset    int
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository instance
func NewPostgresRepository(ctx context.Context, connStr string, logger *zap.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresRepository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close releases all database resources
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Pool exposes the underlying connection pool for schema management and
// health checks
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// SaveValidator persists a validator to the database
func (r *PostgresRepository) SaveValidator(ctx context.Context, validator *Validator) error {
	if err := validator.Validate(); err != nil {
		return fmt.Errorf("validating validator: %w", err)
	}

	query := `
		INSERT INTO validators (
			id, display_name, public_key, reputation, active, joined_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)`

	_, err := r.pool.Exec(ctx, query,
		validator.ID, validator.DisplayName, validator.PublicKey,
		validator.Reputation, validator.Active, validator.JoinedAt,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting validator: %w", err)
	}

	return nil
}

// GetValidator retrieves a validator by ID
func (r *PostgresRepository) GetValidator(ctx context.Context, id string) (*Validator, error) {
	query := `
		SELECT id, display_name, public_key, reputation, active, joined_at
		FROM validators
		WHERE id = $1`

	validator := &Validator{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&validator.ID, &validator.DisplayName, &validator.PublicKey,
		&validator.Reputation, &validator.Active, &validator.JoinedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying validator: %w", err)
	}

	return validator, nil
}

// ListValidators retrieves validators based on filter criteria
func (r *PostgresRepository) ListValidators(ctx context.Context, filter ValidatorFilter) ([]*Validator, error) {
	query := `
		SELECT id, display_name, public_key, reputation, active, joined_at
		FROM validators
		WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.MinReputation != nil {
		query += fmt.Sprintf(" AND reputation >= $%d", argPos)
		args = append(args, *filter.MinReputation)
		argPos++
	}
	if filter.MaxReputation != nil {
		query += fmt.Sprintf(" AND reputation <= $%d", argPos)
		args = append(args, *filter.MaxReputation)
		argPos++
	}
	if filter.Active != nil {
		query += fmt.Sprintf(" AND active = $%d", argPos)
		args = append(args, *filter.Active)
		argPos++
	}

	query += " ORDER BY joined_at"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
		argPos++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying validators: %w", err)
	}
	defer rows.Close()

	var validators []*Validator
	for rows.Next() {
		validator := &Validator{}
		if err := rows.Scan(
			&validator.ID, &validator.DisplayName, &validator.PublicKey,
			&validator.Reputation, &validator.Active, &validator.JoinedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning validator row: %w", err)
		}
		validators = append(validators, validator)
	}

	return validators, rows.Err()
}

// UpdateValidator updates an existing validator's mutable fields
func (r *PostgresRepository) UpdateValidator(ctx context.Context, validator *Validator) error {
	query := `
		UPDATE validators
		SET reputation = $2, active = $3
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, validator.ID, validator.Reputation, validator.Active)
	if err != nil {
		return fmt.Errorf("updating validator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveProof persists a security proof keyed by transaction id
func (r *PostgresRepository) SaveProof(ctx context.Context, proof *SecurityProof) error {
	query := `
		INSERT INTO security_proofs (
			transaction_id, proof_hash, generated_at, payload
		) VALUES (
			$1, $2, $3, $4
		)`

	_, err := r.pool.Exec(ctx, query,
		proof.TransactionID, proof.ProofHash, proof.GeneratedAt, proof.Payload,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting security proof: %w", err)
	}

	return nil
}

// GetProof retrieves a security proof by transaction id
func (r *PostgresRepository) GetProof(ctx context.Context, transactionID string) (*SecurityProof, error) {
	query := `
		SELECT transaction_id, proof_hash, generated_at, payload
		FROM security_proofs
		WHERE transaction_id = $1`

	proof := &SecurityProof{}
	err := r.pool.QueryRow(ctx, query, transactionID).Scan(
		&proof.TransactionID, &proof.ProofHash, &proof.GeneratedAt, &proof.Payload,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying security proof: %w", err)
	}

	return proof, nil
}

// SaveChallenge persists a challenge record
func (r *PostgresRepository) SaveChallenge(ctx context.Context, challenge *ChallengeInfo) error {
	query := `
		INSERT INTO challenges (
			transaction_id, amount, start_time, expiry_time, status
		) VALUES (
			$1, $2, $3, $4, $5
		)`

	_, err := r.pool.Exec(ctx, query,
		challenge.TransactionID, challenge.Amount, challenge.StartTime,
		challenge.ExpiryTime, string(challenge.Status),
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting challenge: %w", err)
	}

	return nil
}

// GetChallenge retrieves a challenge record by transaction id
func (r *PostgresRepository) GetChallenge(ctx context.Context, transactionID string) (*ChallengeInfo, error) {
	query := `
		SELECT transaction_id, amount, start_time, expiry_time, status
		FROM challenges
		WHERE transaction_id = $1`

	challenge := &ChallengeInfo{}
	var status string
	err := r.pool.QueryRow(ctx, query, transactionID).Scan(
		&challenge.TransactionID, &challenge.Amount, &challenge.StartTime,
		&challenge.ExpiryTime, &status,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying challenge: %w", err)
	}

	challenge.Status = ChallengeStatus(status)
	return challenge, nil
}

// UpdateChallengeStatus transitions a challenge record's status
func (r *PostgresRepository) UpdateChallengeStatus(ctx context.Context, transactionID string, status ChallengeStatus) error {
	query := `
		UPDATE challenges
		SET status = $2
		WHERE transaction_id = $1`

	tag, err := r.pool.Exec(ctx, query, transactionID, string(status))
	if err != nil {
		return fmt.Errorf("updating challenge status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListChallenges retrieves challenges based on filter criteria
func (r *PostgresRepository) ListChallenges(ctx context.Context, filter ChallengeFilter) ([]*ChallengeInfo, error) {
	query := `
		SELECT transaction_id, amount, start_time, expiry_time, status
		FROM challenges
		WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, string(filter.Status))
		argPos++
	}
	if filter.FromTime != nil {
		query += fmt.Sprintf(" AND start_time >= $%d", argPos)
		args = append(args, *filter.FromTime)
		argPos++
	}
	if filter.ToTime != nil {
		query += fmt.Sprintf(" AND start_time <= $%d", argPos)
		args = append(args, *filter.ToTime)
		argPos++
	}
	if filter.MinAmount != nil {
		query += fmt.Sprintf(" AND amount >= $%d", argPos)
		args = append(args, *filter.MinAmount)
		argPos++
	}

	query += " ORDER BY start_time DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
		argPos++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*ChallengeInfo
	for rows.Next() {
		challenge := &ChallengeInfo{}
		var status string
		if err := rows.Scan(
			&challenge.TransactionID, &challenge.Amount, &challenge.StartTime,
			&challenge.ExpiryTime, &status,
		); err != nil {
			return nil, fmt.Errorf("scanning challenge row: %w", err)
		}
		challenge.Status = ChallengeStatus(status)
		challenges = append(challenges, challenge)
	}

	return challenges, rows.Err()
}

func isPgDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
