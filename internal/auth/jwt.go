package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the sync server needs from a bearer credential: who owns
// the vault and which device is speaking.
type Claims struct {
	Sub       string `json:"sub"` // owner id
	DeviceID  string `json:"dev"`
	TokenID   string `json:"jti"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

type JWTSigner struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	Iss  string
	TTL  time.Duration
}

func NewJWTSigner(priv ed25519.PrivateKey, iss string, ttl time.Duration) *JWTSigner {
	pub := priv.Public().(ed25519.PublicKey)
	return &JWTSigner{Priv: priv, Pub: pub, Iss: iss, TTL: ttl}
}

func GenerateEd25519() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	return priv, pub, err
}

func (s *JWTSigner) IssueToken(sub, deviceID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.TTL)

	claims := jwt.MapClaims{
		"iss": s.Iss,
		"sub": sub,
		"dev": deviceID,
		"iat": now.Unix(),
		"exp": exp.Unix(),
		"jti": randomJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	ss, err := token.SignedString(s.Priv)
	return ss, exp, err
}

func (s *JWTSigner) ParseAndValidate(tokenStr string) (*Claims, error) {
	keyFunc := func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodEdDSA {
			return nil, errors.New("unexpected signing method")
		}
		return s.Pub, nil
	}

	tok, err := jwt.ParseWithClaims(
		tokenStr,
		jwt.MapClaims{},
		keyFunc,
		jwt.WithIssuer(s.Iss),
	)
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	std := tok.Claims.(jwt.MapClaims)

	getString := func(k string) string {
		if v, ok := std[k].(string); ok {
			return v
		}
		return ""
	}
	getInt64 := func(k string) int64 {
		switch v := std[k].(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		default:
			return 0
		}
	}

	return &Claims{
		Sub:       getString("sub"),
		DeviceID:  getString("dev"),
		TokenID:   getString("jti"),
		IssuedAt:  getInt64("iat"),
		ExpiresAt: getInt64("exp"),
	}, nil
}

func randomJTI() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
