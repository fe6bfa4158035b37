package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mailgate/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_sessions (id, session_token, user_id, expires_at, is_active, created_at)
		 VALUES ($1, $2, $3, $4, TRUE, $5)`,
		session.ID, session.SessionToken, session.UserID, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindWithCredential はセッションを資格情報とJOINして取得する。
// セッション・資格情報のいずれかが無効または不存在の場合はnil, nilを返す。
func (r *PostgresSessionRepo) FindWithCredential(ctx context.Context, sessionToken string) (*model.Session, *model.UserCredential, error) {
	session := &model.Session{}
	cred := &model.UserCredential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.session_token, s.user_id, s.expires_at, s.is_active, s.created_at,
		        u.id, u.user_id, u.email, u.display_name, u.access_token, u.refresh_token,
		        u.token_expires_at, u.is_active, u.created_at, u.updated_at
		 FROM user_sessions s
		 JOIN user_credentials u ON s.user_id = u.user_id
		 WHERE s.session_token = $1 AND s.is_active = TRUE AND u.is_active = TRUE`,
		sessionToken,
	).Scan(
		&session.ID, &session.SessionToken, &session.UserID, &session.ExpiresAt,
		&session.IsActive, &session.CreatedAt,
		&cred.ID, &cred.UserID, &cred.Email, &cred.DisplayName,
		&cred.AccessToken, &cred.RefreshToken, &cred.TokenExpiresAt,
		&cred.IsActive, &cred.CreatedAt, &cred.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, cred, nil
}

// Deactivate はセッションを論理無効化する。
func (r *PostgresSessionRepo) Deactivate(ctx context.Context, sessionToken string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE session_token = $1`,
		sessionToken,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return nil
}

// DeactivateByUserID は指定ユーザーの全セッションを論理無効化する。
func (r *PostgresSessionRepo) DeactivateByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate user sessions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
