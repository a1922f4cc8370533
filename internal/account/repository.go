package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists accounts, their workspaces and social links.
type Repository interface {
	UpsertAccount(ctx context.Context, acct Account) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	FindByUsername(ctx context.Context, username string) (Account, error)
	DefaultAccountID(ctx context.Context) (string, error)
	SetDefault(ctx context.Context, id string) error
	RemoveAccount(ctx context.Context, id string) error
	ReplaceWorkspaces(ctx context.Context, accountID string, workspaces []Workspace) error
	FindWorkspace(ctx context.Context, id string) (Workspace, error)
	SaveSocialLink(ctx context.Context, link SocialLink) error
	SocialLinks(ctx context.Context, accountID string) ([]SocialLink, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertAccount inserts the account or refreshes the token of the existing
// account with the same username.
func (r *PostgresRepository) UpsertAccount(ctx context.Context, acct Account) (Account, error) {
	id := uuid.New()
	if acct.ID != "" {
		parsed, err := uuid.Parse(acct.ID)
		if err != nil {
			return Account{}, err
		}
		id = parsed
	}
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (id, username, auth_token, created_at, last_synced_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (username) DO UPDATE SET auth_token = EXCLUDED.auth_token, last_synced_at = EXCLUDED.last_synced_at
        RETURNING id, username, auth_token, created_at, last_synced_at`,
		id, acct.Username, acct.AuthToken, acct.CreatedAt.UTC(), acct.LastSyncedAt.UTC())
	return scanAccount(row)
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, username, auth_token, created_at, last_synced_at FROM accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

// FindByUsername fetches an account by username.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, username, auth_token, created_at, last_synced_at FROM accounts WHERE username = $1`, username)
	return scanAccount(row)
}

// DefaultAccountID returns the id of the default account.
func (r *PostgresRepository) DefaultAccountID(ctx context.Context) (string, error) {
	var id uuid.UUID
	if err := r.db.QueryRow(ctx, `SELECT id FROM accounts WHERE is_default`).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoDefault
		}
		return "", err
	}
	return id.String(), nil
}

// SetDefault makes id the only default account.
func (r *PostgresRepository) SetDefault(ctx context.Context, id string) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `UPDATE accounts SET is_default = FALSE WHERE is_default AND id <> $1`, accountID); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `UPDATE accounts SET is_default = TRUE WHERE id = $1`, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// RemoveAccount deletes the account; its workspaces stay but become unlinked.
func (r *PostgresRepository) RemoveAccount(ctx context.Context, id string) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceWorkspaces swaps the stored workspaces of an account.
func (r *PostgresRepository) ReplaceWorkspaces(ctx context.Context, accountID string, workspaces []Workspace) error {
	acctID, err := uuid.Parse(accountID)
	if err != nil {
		return ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM workspaces WHERE account_id = $1`, acctID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, ws := range workspaces {
		wsID, err := uuid.Parse(ws.ID)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO workspaces (id, account_id, name, url) VALUES ($1, $2, $3, $4)
            ON CONFLICT (id) DO UPDATE SET account_id = EXCLUDED.account_id, name = EXCLUDED.name, url = EXCLUDED.url`,
			wsID, acctID, ws.Name, ws.URL)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// FindWorkspace fetches a workspace by identifier.
func (r *PostgresRepository) FindWorkspace(ctx context.Context, id string) (Workspace, error) {
	wsID, err := uuid.Parse(id)
	if err != nil {
		return Workspace{}, ErrNotFound
	}
	var (
		idVal     uuid.UUID
		accountID *uuid.UUID
		ws        Workspace
	)
	err = r.db.QueryRow(ctx, `SELECT id, account_id, name, url FROM workspaces WHERE id = $1`, wsID).
		Scan(&idVal, &accountID, &ws.Name, &ws.URL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Workspace{}, ErrNotFound
		}
		return Workspace{}, err
	}
	ws.ID = idVal.String()
	if accountID != nil {
		ws.AccountID = accountID.String()
	}
	return ws, nil
}

// SaveSocialLink records or refreshes the link for the account and provider.
func (r *PostgresRepository) SaveSocialLink(ctx context.Context, link SocialLink) error {
	accountID, err := uuid.Parse(link.AccountID)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `INSERT INTO social_links (account_id, provider, subject, linked_at) VALUES ($1, $2, $3, $4)
        ON CONFLICT (account_id, provider) DO UPDATE SET subject = EXCLUDED.subject, linked_at = EXCLUDED.linked_at`,
		accountID, link.Provider, link.Subject, link.LinkedAt.UTC())
	return err
}

// SocialLinks lists the links of an account.
func (r *PostgresRepository) SocialLinks(ctx context.Context, accountID string) ([]SocialLink, error) {
	acctID, err := uuid.Parse(accountID)
	if err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT provider, subject, linked_at FROM social_links WHERE account_id = $1 ORDER BY provider`, acctID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []SocialLink
	for rows.Next() {
		link := SocialLink{AccountID: accountID}
		var linkedAt time.Time
		if err := rows.Scan(&link.Provider, &link.Subject, &linkedAt); err != nil {
			return nil, err
		}
		link.LinkedAt = linkedAt.UTC()
		links = append(links, link)
	}
	return links, rows.Err()
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		id       uuid.UUID
		acct     Account
		syncedAt *time.Time
	)
	if err := row.Scan(&id, &acct.Username, &acct.AuthToken, &acct.CreatedAt, &syncedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acct.ID = id.String()
	acct.CreatedAt = acct.CreatedAt.UTC()
	if syncedAt != nil {
		acct.LastSyncedAt = syncedAt.UTC()
	}
	return acct, nil
}
