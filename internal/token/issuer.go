package token

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/google/uuid"

    "github.com/iliyamo/ecommerce-backend/internal/model"
)

// Verification failures collapse to these two errors.  Callers must not
// learn whether a token was malformed, expired or carried a bad signature;
// both map to 401 at the boundary.
var (
    ErrInvalid = errors.New("invalid or expired token")
    ErrRevoked = errors.New("token revoked")
)

// AccessClaims is the claim set of a short-lived access token.  Subject
// holds the user id.  Access tokens are stateless: validity is signature
// plus expiry, nothing is persisted.
type AccessClaims struct {
    Email string `json:"email"`
    Role  string `json:"role"`
    jwt.RegisteredClaims
}

// RefreshClaims is the claim set of a long-lived refresh token.  The
// registered ID claim (jti) is the token id tracked by the revocation
// store; Family groups every rotation descended from one login.
type RefreshClaims struct {
    Family string `json:"token_family"`
    jwt.RegisteredClaims
}

// Pair is a freshly issued access/refresh token pair.
type Pair struct {
    AccessToken    string
    AccessExpires  time.Time
    RefreshToken   string
    RefreshExpires time.Time
}

// UserSource supplies subject identity during rotation, when only the
// refresh claims are at hand and the new access token needs the user's
// current email and role.
type UserSource interface {
    GetByID(ctx context.Context, id string) (model.User, error)
}

// Issuer creates and verifies both token kinds.  Access and refresh tokens
// are signed with separate HS256 secrets.  The revocation store holds one
// entry per live refresh-token id with a TTL mirroring the token expiry.
type Issuer struct {
    accessSecret  []byte
    refreshSecret []byte
    accessTTL     time.Duration
    refreshTTL    time.Duration
    store         RevocationStore
    users         UserSource
}

// NewIssuer wires an Issuer from explicit dependencies.  TTLs follow the
// config units: minutes for access tokens, days for refresh tokens.
func NewIssuer(accessSecret, refreshSecret string, accessTTLMin, refreshTTLDays int, store RevocationStore, users UserSource) *Issuer {
    return &Issuer{
        accessSecret:  []byte(accessSecret),
        refreshSecret: []byte(refreshSecret),
        accessTTL:     time.Duration(accessTTLMin) * time.Minute,
        refreshTTL:    time.Duration(refreshTTLDays) * 24 * time.Hour,
        store:         store,
        users:         users,
    }
}

// AccessTTLSeconds is the lifetime advertised as expires_in in auth
// responses.
func (i *Issuer) AccessTTLSeconds() int { return int(i.accessTTL / time.Second) }

// IssueAccessToken signs a new access token for the user.  No state is
// written anywhere.
func (i *Issuer) IssueAccessToken(u model.User) (string, time.Time, error) {
    now := time.Now().UTC()
    exp := now.Add(i.accessTTL)
    claims := AccessClaims{
        Email: u.Email,
        Role:  u.Role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   u.ID,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
    if err != nil {
        return "", time.Time{}, err
    }
    return signed, exp, nil
}

// IssueRefreshToken signs a refresh token with a fresh token id and a fresh
// family, and records the id in the revocation store.
func (i *Issuer) IssueRefreshToken(ctx context.Context, u model.User) (string, time.Time, error) {
    return i.issueRefresh(ctx, u.ID, uuid.NewString())
}

// issueRefresh signs a refresh token in the given family.  Rotation calls
// this with the old token's family so the lineage stays intact.
func (i *Issuer) issueRefresh(ctx context.Context, userID, family string) (string, time.Time, error) {
    now := time.Now().UTC()
    exp := now.Add(i.refreshTTL)
    tokenID := uuid.NewString()
    claims := RefreshClaims{
        Family: family,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   userID,
            ID:        tokenID,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
    if err != nil {
        return "", time.Time{}, err
    }
    entry := Entry{UserID: userID, Family: family, IssuedAt: now}
    if err := i.store.Put(ctx, userID, tokenID, entry, i.refreshTTL); err != nil {
        return "", time.Time{}, fmt.Errorf("record refresh token: %w", err)
    }
    return signed, exp, nil
}

// IssuePair issues an access and a refresh token for the user.
func (i *Issuer) IssuePair(ctx context.Context, u model.User) (Pair, error) {
    access, accessExp, err := i.IssueAccessToken(u)
    if err != nil {
        return Pair{}, err
    }
    refresh, refreshExp, err := i.IssueRefreshToken(ctx, u)
    if err != nil {
        return Pair{}, err
    }
    return Pair{
        AccessToken:    access,
        AccessExpires:  accessExp,
        RefreshToken:   refresh,
        RefreshExpires: refreshExp,
    }, nil
}

// VerifyAccessToken checks signature and expiry of an access token.  Any
// failure is reported as ErrInvalid.
func (i *Issuer) VerifyAccessToken(raw string) (AccessClaims, error) {
    var claims AccessClaims
    if err := i.parse(raw, &claims, i.accessSecret); err != nil {
        return AccessClaims{}, ErrInvalid
    }
    return claims, nil
}

// VerifyRefreshToken checks signature and expiry of a refresh token.  It
// does not consult the revocation store; Rotate does that.
func (i *Issuer) VerifyRefreshToken(raw string) (RefreshClaims, error) {
    var claims RefreshClaims
    if err := i.parse(raw, &claims, i.refreshSecret); err != nil {
        return RefreshClaims{}, ErrInvalid
    }
    return claims, nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims, secret []byte) error {
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
        }
        return secret, nil
    })
    if err != nil || !tok.Valid {
        if err == nil {
            err = ErrInvalid
        }
        return err
    }
    return nil
}

// Rotate exchanges a refresh token for a new token pair.  Only the first
// presentation of a given token id succeeds: the id is deleted before the
// new pair is issued, so a concurrent or later replay finds it absent and
// fails as ErrRevoked.  A replay of a well-signed token whose id is gone is
// treated as theft and takes the whole family down with it.
//
// A revocation-store read failure also fails as ErrRevoked: accepting a
// token we cannot check would reopen sessions after a logout race.
func (i *Issuer) Rotate(ctx context.Context, raw string) (Pair, error) {
    claims, err := i.VerifyRefreshToken(raw)
    if err != nil {
        return Pair{}, err
    }
    userID, tokenID := claims.Subject, claims.ID

    entry, ok, err := i.store.Get(ctx, userID, tokenID)
    if err != nil {
        log.Printf("token: revocation store unavailable during rotate, failing closed: %v", err)
        return Pair{}, ErrRevoked
    }
    if !ok {
        // The signature is fine but the id was already consumed.  This is
        // a replay; invalidate every descendant of the original login.
        if n, derr := i.store.DeleteFamily(ctx, userID, claims.Family); derr == nil && n > 0 {
            log.Printf("token: replay detected for user %s, revoked %d tokens in family %s", userID, n, claims.Family)
        }
        return Pair{}, ErrRevoked
    }
    removed, err := i.store.Delete(ctx, userID, tokenID)
    if err != nil {
        return Pair{}, fmt.Errorf("consume refresh token: %w", err)
    }
    if !removed {
        // Another rotation consumed the id between our read and delete.
        // Same treatment as a replay of a spent token.
        if n, derr := i.store.DeleteFamily(ctx, userID, claims.Family); derr == nil && n > 0 {
            log.Printf("token: replay detected for user %s, revoked %d tokens in family %s", userID, n, claims.Family)
        }
        return Pair{}, ErrRevoked
    }

    u, err := i.users.GetByID(ctx, userID)
    if err != nil {
        return Pair{}, fmt.Errorf("load token subject: %w", err)
    }
    access, accessExp, err := i.IssueAccessToken(u)
    if err != nil {
        return Pair{}, err
    }
    refresh, refreshExp, err := i.issueRefresh(ctx, userID, entry.Family)
    if err != nil {
        return Pair{}, err
    }
    return Pair{
        AccessToken:    access,
        AccessExpires:  accessExp,
        RefreshToken:   refresh,
        RefreshExpires: refreshExp,
    }, nil
}

// Revoke deletes the revocation-store entry for the token's id.  Revoking a
// malformed, expired or already-revoked token is a no-op, never an error.
func (i *Issuer) Revoke(ctx context.Context, raw string) error {
    claims, err := i.VerifyRefreshToken(raw)
    if err != nil {
        return nil
    }
    _, err = i.store.Delete(ctx, claims.Subject, claims.ID)
    return err
}

// RevokeAll deletes every live refresh token of the user.  Used on password
// change and account deletion to force re-authentication everywhere.
func (i *Issuer) RevokeAll(ctx context.Context, userID string) error {
    n, err := i.store.DeleteAll(ctx, userID)
    if err != nil {
        return err
    }
    if n > 0 {
        log.Printf("token: revoked %d refresh tokens for user %s", n, userID)
    }
    return nil
}
