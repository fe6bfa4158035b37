package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/mailgate/internal/model"
)

// PostgresCredentialRepo はPostgreSQLを使用した資格情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// FindByUserID は指定user_idの有効な資格情報を取得する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByUserID(ctx context.Context, userID string) (*model.UserCredential, error) {
	cred := &model.UserCredential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, email, display_name, access_token, refresh_token,
		        token_expires_at, is_active, created_at, updated_at
		 FROM user_credentials
		 WHERE user_id = $1 AND is_active = TRUE`,
		userID,
	).Scan(
		&cred.ID, &cred.UserID, &cred.Email, &cred.DisplayName,
		&cred.AccessToken, &cred.RefreshToken, &cred.TokenExpiresAt,
		&cred.IsActive, &cred.CreatedAt, &cred.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	return cred, nil
}

// Upsert は資格情報をuser_idをキーにUPSERTする。
func (r *PostgresCredentialRepo) Upsert(ctx context.Context, cred *model.UserCredential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_credentials
		 (id, user_id, email, display_name, access_token, refresh_token, token_expires_at, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		     email = EXCLUDED.email,
		     display_name = EXCLUDED.display_name,
		     access_token = EXCLUDED.access_token,
		     refresh_token = EXCLUDED.refresh_token,
		     token_expires_at = EXCLUDED.token_expires_at,
		     is_active = TRUE,
		     updated_at = EXCLUDED.updated_at`,
		cred.ID, cred.UserID, cred.Email, cred.DisplayName,
		cred.AccessToken, cred.RefreshToken, cred.TokenExpiresAt, cred.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// UpdateTokens はトークンと有効期限を上書きする。
// refreshTokenが空の場合は既存のリフレッシュトークンを維持する。
func (r *PostgresCredentialRepo) UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	var err error
	if refreshToken != "" {
		_, err = r.db.ExecContext(ctx,
			`UPDATE user_credentials
			 SET access_token = $1, refresh_token = $2, token_expires_at = $3, updated_at = now()
			 WHERE user_id = $4`,
			accessToken, refreshToken, expiresAt, userID,
		)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE user_credentials
			 SET access_token = $1, token_expires_at = $2, updated_at = now()
			 WHERE user_id = $3`,
			accessToken, expiresAt, userID,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return nil
}

// Deactivate は資格情報を論理無効化する。
func (r *PostgresCredentialRepo) Deactivate(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_credentials SET is_active = FALSE, updated_at = now() WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
