// Package auth covers the outward-facing access concerns: minting
// room-scoped access tokens for voice sessions and rate limiting the
// endpoints that hand them out.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "conduit-backend/pkg/errors"
)

const tokenTTL = 15 * time.Minute

// VideoGrant scopes a token to joining one media room.
type VideoGrant struct {
	RoomJoin bool   `json:"roomJoin"`
	Room     string `json:"room"`
}

// AgentDispatch asks the media server to place a named agent into the
// room when the participant connects.
type AgentDispatch struct {
	AgentName string `json:"agent_name"`
}

// RoomConfig carries per-room settings embedded in the token.
type RoomConfig struct {
	Agents []AgentDispatch `json:"agents,omitempty"`
}

// Claims is the signed token body understood by the media server.
type Claims struct {
	jwt.RegisteredClaims
	Name       string      `json:"name,omitempty"`
	Video      VideoGrant  `json:"video"`
	RoomConfig *RoomConfig `json:"roomConfig,omitempty"`
	// Metadata rides along to the agent; we use it for the project id.
	Metadata string `json:"metadata,omitempty"`
}

// TokenMinter mints participant access tokens signed with the media
// server API secret.
type TokenMinter struct {
	apiKey    string
	apiSecret string
	agentName string
}

// NewTokenMinter creates a minter for the given API key pair. agentName
// is dispatched into every room the tokens grant access to.
func NewTokenMinter(apiKey, apiSecret, agentName string) *TokenMinter {
	return &TokenMinter{apiKey: apiKey, apiSecret: apiSecret, agentName: agentName}
}

// Mint returns a signed token granting identity access to roomName. The
// project id is carried as participant metadata so the dispatched agent
// knows which workflow to run.
func (m *TokenMinter) Mint(identity, displayName, roomName, projectID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		Name:     displayName,
		Video:    VideoGrant{RoomJoin: true, Room: roomName},
		Metadata: projectID,
	}
	if m.agentName != "" {
		claims.RoomConfig = &RoomConfig{
			Agents: []AgentDispatch{{AgentName: m.agentName}},
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.apiSecret))
	if err != nil {
		return "", pkgerrors.NewInternalError("failed to sign access token").WithCause(err)
	}
	return signed, nil
}

// Verify parses and validates a token minted by this key pair. Used in
// tests and by the agent worker to read back its dispatch metadata.
func (m *TokenMinter) Verify(signed string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, pkgerrors.NewValidationError("unexpected token signing method")
		}
		return []byte(m.apiSecret), nil
	}, jwt.WithIssuer(m.apiKey))
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid access token: " + err.Error())
	}
	return claims, nil
}
