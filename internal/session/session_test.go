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

package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/eventlog/schedule"
)

func sign(t *testing.T, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("server-only-secret"))
	require.NoError(t, err)
	return tok
}

func TestParse(t *testing.T) {
	exp := time.Date(2025, 3, 3, 17, 0, 0, 0, time.UTC)
	tok := sign(t, Claims{
		Role:    "student",
		GroupID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "2021_00123",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := Parse("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, schedule.RoleSubject, s.Role)
	assert.Equal(t, int64(7), s.GroupID)
	assert.Equal(t, "2021_00123", s.Subject)
	assert.Equal(t, tok, s.Token)
	assert.True(t, exp.Equal(s.ExpiresAt))

	require.NoError(t, s.Check(exp.Add(-time.Minute)))
	require.ErrorIs(t, s.Check(exp), ErrExpired)
}

func TestParseStaff(t *testing.T) {
	s, err := Parse(sign(t, Claims{Role: "Staff", StaffID: "F-12"}))
	require.NoError(t, err)
	assert.Equal(t, schedule.RoleStaff, s.Role)
	assert.Equal(t, "F-12", s.StaffID)
	assert.True(t, s.ExpiresAt.IsZero())
	require.NoError(t, s.Check(time.Now()))
}

func TestParseInvalid(t *testing.T) {
	for _, tok := range []string{"", "Bearer ", "not-a-jwt", "a.b.c"} {
		_, err := Parse(tok)
		require.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}
