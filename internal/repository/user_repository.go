package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ecommerce-backend/internal/model"
)

// UserRepo persists user records in the `users` table.  Password hashing
// and id generation happen in the auth service; the repository only moves
// rows.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,email,password_hash,first_name,last_name,phone,role," +
	"oauth_provider,oauth_provider_id,is_email_verified,last_login_at,created_at,updated_at"

// Create inserts a user row.  The caller supplies the id and an already
// normalized email.  A duplicate email surfaces as ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id,email,password_hash,first_name,last_name,phone,role,oauth_provider,oauth_provider_id,is_email_verified) VALUES (?,?,?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Role,
		u.OAuthProvider, u.OAuthProviderID, u.IsEmailVerified)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// GetByOAuth fetches a user by its linked (provider, provider id) pair.
func (r *UserRepo) GetByOAuth(ctx context.Context, provider, providerID string) (model.User, error) {
	return r.getOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE oauth_provider=? AND oauth_provider_id=? LIMIT 1",
		provider, providerID)
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...interface{}) (model.User, error) {
	var (
		u          model.User
		hash       sql.NullString
		phone      sql.NullString
		provider   sql.NullString
		providerID sql.NullString
		lastLogin  sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &hash, &u.FirstName, &u.LastName, &phone, &u.Role,
		&provider, &providerID, &u.IsEmailVerified, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	if hash.Valid {
		u.PasswordHash = &hash.String
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	if provider.Valid {
		u.OAuthProvider = &provider.String
	}
	if providerID.Valid {
		u.OAuthProviderID = &providerID.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// LinkOAuth attaches an OAuth identity to an existing account.
func (r *UserRepo) LinkOAuth(ctx context.Context, userID, provider, providerID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET oauth_provider=?, oauth_provider_id=? WHERE id=?",
		provider, providerID, userID)
	return err
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", hash, userID)
	return err
}

// UpdateLastLogin stamps the most recent successful login.
func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login_at=? WHERE id=?", time.Now().UTC(), userID)
	return err
}

// UpdateProfile applies the non-nil profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID string, firstName, lastName, phone *string) error {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if firstName != nil {
		sets = append(sets, "first_name=?")
		args = append(args, *firstName)
	}
	if lastName != nil {
		sets = append(sets, "last_name=?")
		args = append(args, *lastName)
	}
	if phone != nil {
		sets = append(sets, "phone=?")
		args = append(args, *phone)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, userID)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	return err
}

// Delete removes the user row.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", userID)
	return err
}
