package backend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresDirectory implements Directory using PostgreSQL.
type PostgresDirectory struct {
	db *pgxpool.Pool
}

// NewPostgresDirectory builds a Postgres-backed directory.
func NewPostgresDirectory(db *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// Create inserts a user and its workspaces in one transaction.
func (d *PostgresDirectory) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	tx, err := d.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	_, err = tx.Exec(ctx, `INSERT INTO directory_users (id, username, email, password_hash, multifactor, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, userID, user.Username, user.Email, user.PasswordHash, user.Multifactor, user.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrUserExists
		}
		return err
	}
	for _, ws := range user.Workspaces {
		wsID, err := uuid.Parse(ws.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO directory_workspaces (id, user_id, name, url) VALUES ($1, $2, $3, $4)`,
			wsID, userID, ws.Name, ws.URL); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// FindByUsername fetches a user by username.
func (d *PostgresDirectory) FindByUsername(ctx context.Context, username string) (User, error) {
	row := d.db.QueryRow(ctx, `SELECT id, username, email, password_hash, multifactor, created_at
        FROM directory_users WHERE username = $1`, username)
	return d.scanUser(ctx, row)
}

// FindByID fetches a user by identifier.
func (d *PostgresDirectory) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row := d.db.QueryRow(ctx, `SELECT id, username, email, password_hash, multifactor, created_at
        FROM directory_users WHERE id = $1`, userID)
	return d.scanUser(ctx, row)
}

func (d *PostgresDirectory) scanUser(ctx context.Context, row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		user      User
	)
	if err := row.Scan(&id, &user.Username, &user.Email, &user.PasswordHash, &user.Multifactor, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = createdAt.UTC()

	rows, err := d.db.Query(ctx, `SELECT id, name, url FROM directory_workspaces WHERE user_id = $1 ORDER BY name`, id)
	if err != nil {
		return User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			wsID uuid.UUID
			ws   Workspace
		)
		if err := rows.Scan(&wsID, &ws.Name, &ws.URL); err != nil {
			return User{}, err
		}
		ws.ID = wsID.String()
		user.Workspaces = append(user.Workspaces, ws)
	}
	return user, rows.Err()
}
