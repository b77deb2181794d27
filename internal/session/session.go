// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session reads the scope of the signed in user from their session
// token. The device does not hold the server signing key, so claims are
// read without verification and only drive what the device displays and
// subscribes to. The server re-checks the token on every request.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blinklabs-io/eventlog/schedule"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpired      = errors.New("session token expired")
)

// Claims is the payload of a session token
type Claims struct {
	Role    string `json:"role"`
	StaffID string `json:"staff_id,omitempty"`
	GroupID int64  `json:"group_id,omitempty"`
	jwt.RegisteredClaims
}

// Session is the parsed scope of a user
type Session struct {
	ExpiresAt time.Time
	Token     string
	Subject   string
	StaffID   string
	Role      schedule.Role
	GroupID   int64
}

// Parse extracts the session from a bearer token, with or without the
// "Bearer " prefix
func Parse(token string) (Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Session{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	ret := Session{
		Token:   token,
		Subject: claims.Subject,
		StaffID: claims.StaffID,
		Role:    schedule.ParseRole(claims.Role),
		GroupID: claims.GroupID,
	}
	if claims.ExpiresAt != nil {
		ret.ExpiresAt = claims.ExpiresAt.Time
	}
	return ret, nil
}

// Check returns ErrExpired when the session has expired at now
func (s Session) Check(now time.Time) error {
	if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
		return fmt.Errorf("%w at %s", ErrExpired, s.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
