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

// Package token encrypts and decrypts the identity payload carried by an
// attendance QR code.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// PayloadPrefix is the literal first field of every payload
	PayloadPrefix = "eventlog"
	// KeySize is the AES-256 key length in bytes
	KeySize = 32

	payloadSeparator = "-"
	kdfInfo          = "eventlog-token-key"
)

var (
	ErrDecrypt          = errors.New("token could not be decrypted")
	ErrFormat           = errors.New("token payload is malformed")
	ErrInvalidKeyLength = errors.New("invalid key length")
)

var encoding = base64.RawURLEncoding

// Codec is safe for concurrent use
type Codec struct {
	aead cipher.AEAD
}

// NewCodec returns a Codec for a 32 byte pre-shared key
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeyLength, len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: gcm}, nil
}

// NewCodecFromPassphrase derives the key from a shared passphrase with
// HKDF-SHA256
func NewCodecFromPassphrase(passphrase string) (*Codec, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty passphrase", ErrInvalidKeyLength)
	}
	key, err := DeriveKey([]byte(passphrase))
	if err != nil {
		return nil, err
	}
	return NewCodec(key)
}

// DeriveKey stretches secret into a KeySize key
func DeriveKey(secret []byte) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, nil, []byte(kdfInfo))
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Encode encrypts payload and returns a URL-safe base64 token. The random
// nonce is prepended to the ciphertext.
func (c *Codec) Encode(payload string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(payload), nil)
	return encoding.EncodeToString(sealed), nil
}

// Decode decrypts a token produced by Encode and validates the payload
// format. Anything that cannot be opened with the configured key yields
// ErrDecrypt; a decrypted payload of the wrong shape yields ErrFormat.
func (c *Codec) Decode(tok string) (string, error) {
	payload, err := c.open(tok)
	if err != nil {
		return "", err
	}
	if _, err := ParsePayload(payload); err != nil {
		return "", err
	}
	return payload, nil
}

func (c *Codec) open(tok string) (string, error) {
	blob, err := encoding.DecodeString(strings.TrimSpace(tok))
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding", ErrDecrypt)
	}
	ns := c.aead.NonceSize()
	if len(blob) < ns+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}
	plain, err := c.aead.Open(nil, blob[:ns], blob[ns:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// EncodePayload formats and encrypts p
func (c *Codec) EncodePayload(p Payload) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	return c.Encode(p.String())
}

// DecodePayload decrypts and parses a token
func (c *Codec) DecodePayload(tok string) (Payload, error) {
	payload, err := c.open(tok)
	if err != nil {
		return Payload{}, err
	}
	return ParsePayload(payload)
}

// Payload identifies a subject for one event occurrence
type Payload struct {
	OccurrenceID int64
	SubjectID    string
}

func (p Payload) String() string {
	return PayloadPrefix + payloadSeparator +
		strconv.FormatInt(p.OccurrenceID, 10) + payloadSeparator +
		p.SubjectID
}

func (p Payload) validate() error {
	if p.SubjectID == "" {
		return fmt.Errorf("%w: empty subject id", ErrFormat)
	}
	if strings.Contains(p.SubjectID, payloadSeparator) {
		return fmt.Errorf("%w: subject id contains %q", ErrFormat, payloadSeparator)
	}
	return nil
}

// ParsePayload parses "eventlog-<occurrenceId>-<subjectId>"
func ParsePayload(s string) (Payload, error) {
	if !strings.HasPrefix(s, PayloadPrefix) {
		return Payload{}, fmt.Errorf("%w: missing %q prefix", ErrFormat, PayloadPrefix)
	}
	fields := strings.Split(s, payloadSeparator)
	if len(fields) != 3 || fields[0] != PayloadPrefix {
		return Payload{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrFormat, len(fields))
	}
	occ, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: occurrence id %q", ErrFormat, fields[1])
	}
	ret := Payload{OccurrenceID: occ, SubjectID: fields[2]}
	if err := ret.validate(); err != nil {
		return Payload{}, err
	}
	return ret, nil
}
