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

package token

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, passphrase string) *Codec {
	t.Helper()
	c, err := NewCodecFromPassphrase(passphrase)
	require.NoError(t, err)
	return c
}

func TestRoundTrip(t *testing.T) {
	c := newTestCodec(t, "shared-secret")
	for _, occ := range []int64{0, 1, 5, 42, 987654321} {
		for _, subj := range []string{"S1", "2021_00123", "abc"} {
			payload := fmt.Sprintf("eventlog-%d-%s", occ, subj)
			tok, err := c.Encode(payload)
			require.NoError(t, err)
			got, err := c.Decode(tok)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			p, err := c.DecodePayload(tok)
			require.NoError(t, err)
			assert.Equal(t, Payload{OccurrenceID: occ, SubjectID: subj}, p)
		}
	}
}

func TestEncodeUsesFreshNonce(t *testing.T) {
	c := newTestCodec(t, "shared-secret")
	a, err := c.Encode("eventlog-1-S1")
	require.NoError(t, err)
	b, err := c.Encode("eventlog-1-S1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecodeForeignKey(t *testing.T) {
	ours := newTestCodec(t, "shared-secret")
	theirs := newTestCodec(t, "other-secret")
	tok, err := theirs.Encode("eventlog-5-S1")
	require.NoError(t, err)
	_, err = ours.Decode(tok)
	require.ErrorIs(t, err, ErrDecrypt)
	require.NotErrorIs(t, err, ErrFormat)
}

func TestDecodeGarbage(t *testing.T) {
	c := newTestCodec(t, "shared-secret")
	tok, err := c.Encode("eventlog-5-S1")
	require.NoError(t, err)
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	for _, input := range []string{
		"",
		"not base64 !!!",
		"AAAA",
		tampered,
		tok[:len(tok)-4],
		"https://example.com/qr",
	} {
		got, err := c.Decode(input)
		require.ErrorIs(t, err, ErrDecrypt, "input %q", input)
		assert.Empty(t, got)
	}
}

func TestDecodeFormatErrors(t *testing.T) {
	c := newTestCodec(t, "shared-secret")
	for _, payload := range []string{
		"attendance-5-S1",
		"eventlog-5",
		"eventlog-5-S1-extra",
		"eventlog-five-S1",
		"eventlogx-5-S1",
		"eventlog-5-",
	} {
		tok, err := c.Encode(payload)
		require.NoError(t, err)
		_, err = c.Decode(tok)
		require.ErrorIs(t, err, ErrFormat, "payload %q", payload)
	}
}

func TestEncodePayloadRejectsSeparator(t *testing.T) {
	c := newTestCodec(t, "shared-secret")
	_, err := c.EncodePayload(Payload{OccurrenceID: 1, SubjectID: "a-b"})
	require.ErrorIs(t, err, ErrFormat)
	tok, err := c.EncodePayload(Payload{OccurrenceID: 1, SubjectID: "ab"})
	require.NoError(t, err)
	assert.False(t, strings.ContainsAny(tok, "+/="), "token must be URL safe")
}

func TestNewCodecKeyLength(t *testing.T) {
	_, err := NewCodec(make([]byte, 16))
	require.ErrorIs(t, err, ErrInvalidKeyLength)
	_, err = NewCodecFromPassphrase("")
	require.ErrorIs(t, err, ErrInvalidKeyLength)
	key, err := DeriveKey([]byte("x"))
	require.NoError(t, err)
	require.Len(t, key, KeySize)
}
