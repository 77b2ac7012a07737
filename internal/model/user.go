package model

import "time"

// Roles assigned to users.  The role is embedded in access-token claims and
// checked by the role middleware.
const (
    RoleCustomer = "customer"
    RoleAdmin    = "admin"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column.  PasswordHash is nil for
// OAuth-only accounts; OAuthProvider and OAuthProviderID are set together
// or not at all.  A valid user always has at least one of the two
// credentials.
//
// Fields:
//  ID              - primary key (uuid).
//  Email           - unique, lower-cased email address.
//  PasswordHash    - bcrypt hashed password (nullable for OAuth accounts).
//  FirstName       - given name.
//  LastName        - family name.
//  Phone           - optional phone number.
//  Role            - "customer" or "admin".
//  OAuthProvider   - external identity provider name (nullable).
//  OAuthProviderID - subject id at the provider (nullable).
//  IsEmailVerified - whether the email was confirmed.
//  LastLoginAt     - timestamp of the most recent login (nullable).
//  CreatedAt       - timestamp of creation.
//  UpdatedAt       - timestamp of last update.
type User struct {
    ID              string     // users.id
    Email           string     // users.email
    PasswordHash    *string    // users.password_hash (nullable)
    FirstName       string     // users.first_name
    LastName        string     // users.last_name
    Phone           *string    // users.phone (nullable)
    Role            string     // users.role
    OAuthProvider   *string    // users.oauth_provider (nullable)
    OAuthProviderID *string    // users.oauth_provider_id (nullable)
    IsEmailVerified bool       // users.is_email_verified
    LastLoginAt     *time.Time // users.last_login_at (nullable)
    CreatedAt       time.Time  // users.created_at
    UpdatedAt       time.Time  // users.updated_at
}

// PublicUser is the externally visible projection of a User.  It never
// carries the password hash and is what auth responses and profile
// endpoints return.
type PublicUser struct {
    ID              string `json:"id"`
    Email           string `json:"email"`
    FirstName       string `json:"first_name"`
    LastName        string `json:"last_name"`
    Role            string `json:"role"`
    IsEmailVerified bool   `json:"is_email_verified"`
}

// Public returns the safe projection of the user.
func (u User) Public() PublicUser {
    return PublicUser{
        ID:              u.ID,
        Email:           u.Email,
        FirstName:       u.FirstName,
        LastName:        u.LastName,
        Role:            u.Role,
        IsEmailVerified: u.IsEmailVerified,
    }
}
