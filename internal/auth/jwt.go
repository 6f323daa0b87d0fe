package auth

import (
	"errors"
	"time"

	"chatdesk/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// ===========================================================================
// JWT Service
// Credentials are issued by the identity service; chatdesk only validates
// them and turns the claims into a Principal. GenerateToken exists for the
// seed command and tests
// ===========================================================================

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Role of the caller
type Role string

const (
	RoleVisitor Role = "visitor"
	RoleAgent   Role = "agent"
	RoleAdmin   Role = "admin"
)

// IsValid known role
func (r Role) IsValid() bool {
	return r == RoleVisitor || r == RoleAgent || r == RoleAdmin
}

// IsStaff agents and admins act on the admin side of a chat
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// Principal pre-validated caller identity
type Principal struct {
	ID   string
	Name string
	Role Role
}

// Claims custom JWT claims
type Claims struct {
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
	jwt.RegisteredClaims
}

// JWTService validates bearer tokens
type JWTService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTService creates a JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// GenerateToken signs a token for the principal
func (s *JWTService) GenerateToken(p Principal, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Name: p.Name,
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken validates the token and returns the principal
func (s *JWTService) ValidateToken(tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || !claims.Role.IsValid() {
		return nil, ErrInvalidToken
	}

	return &Principal{ID: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}
