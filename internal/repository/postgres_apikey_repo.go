package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mailgate/internal/model"
)

// PostgresAPIKeyRepo はPostgreSQLを使用したAPIキーリポジトリ。
type PostgresAPIKeyRepo struct {
	db *sql.DB
}

// NewPostgresAPIKeyRepo はPostgresAPIKeyRepoを生成する。
func NewPostgresAPIKeyRepo(db *sql.DB) *PostgresAPIKeyRepo {
	return &PostgresAPIKeyRepo{db: db}
}

// Create はAPIキーを作成する。
func (r *PostgresAPIKeyRepo) Create(ctx context.Context, key *model.APIKey) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, api_key, user_id, name, is_active, created_at)
		 VALUES ($1, $2, $3, $4, TRUE, $5)`,
		key.ID, key.Key, key.UserID, key.Name, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// FindWithCredential はAPIキーを資格情報とJOINして取得する。
// キー・資格情報のいずれかが無効または不存在の場合はnil, nilを返す。
func (r *PostgresAPIKeyRepo) FindWithCredential(ctx context.Context, apiKey string) (*model.APIKey, *model.UserCredential, error) {
	key := &model.APIKey{}
	cred := &model.UserCredential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT a.id, a.api_key, a.user_id, a.name, a.last_used_at, a.is_active, a.created_at,
		        u.id, u.user_id, u.email, u.display_name, u.access_token, u.refresh_token,
		        u.token_expires_at, u.is_active, u.created_at, u.updated_at
		 FROM api_keys a
		 JOIN user_credentials u ON a.user_id = u.user_id
		 WHERE a.api_key = $1 AND a.is_active = TRUE AND u.is_active = TRUE`,
		apiKey,
	).Scan(
		&key.ID, &key.Key, &key.UserID, &key.Name, &key.LastUsedAt,
		&key.IsActive, &key.CreatedAt,
		&cred.ID, &cred.UserID, &cred.Email, &cred.DisplayName,
		&cred.AccessToken, &cred.RefreshToken, &cred.TokenExpiresAt,
		&cred.IsActive, &cred.CreatedAt, &cred.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find api key: %w", err)
	}

	return key, cred, nil
}

// TouchLastUsed はlast_used_atを現在時刻に更新する。
func (r *PostgresAPIKeyRepo) TouchLastUsed(ctx context.Context, apiKey string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE api_key = $1`,
		apiKey,
	)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	return nil
}

// Deactivate はAPIキーを論理無効化する。
func (r *PostgresAPIKeyRepo) Deactivate(ctx context.Context, apiKey string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = FALSE WHERE api_key = $1`,
		apiKey,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate api key: %w", err)
	}
	return nil
}

// ListByUserID は指定ユーザーのAPIキー一覧を作成日時の降順で返す。
func (r *PostgresAPIKeyRepo) ListByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, api_key, user_id, name, last_used_at, is_active, created_at
		 FROM api_keys
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*model.APIKey
	for rows.Next() {
		key := &model.APIKey{}
		if err := rows.Scan(
			&key.ID, &key.Key, &key.UserID, &key.Name,
			&key.LastUsedAt, &key.IsActive, &key.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate api keys: %w", err)
	}

	return keys, nil
}

// compile-time interface check
var _ APIKeyRepository = (*PostgresAPIKeyRepo)(nil)
