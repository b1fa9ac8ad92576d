package access

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"
)

// Checker decides whether a submitted code grants access.
type Checker interface {
	IsValidAccessCode(ctx context.Context, code string) bool
}

// StaticCodes is a fixed allow-list. Entries that look like bcrypt hashes are
// matched with bcrypt, everything else with a constant-time comparison.
type StaticCodes struct {
	plain  [][]byte
	hashed [][]byte
}

func NewStaticCodes(codes []string) *StaticCodes {
	s := &StaticCodes{}
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if isBcryptHash(c) {
			s.hashed = append(s.hashed, []byte(c))
		} else {
			s.plain = append(s.plain, []byte(c))
		}
	}
	return s
}

func (s *StaticCodes) Len() int { return len(s.plain) + len(s.hashed) }

func (s *StaticCodes) IsValidAccessCode(_ context.Context, code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	candidate := []byte(code)

	match := 0
	for _, p := range s.plain {
		match |= subtle.ConstantTimeCompare(p, candidate)
	}
	if match == 1 {
		return true
	}
	for _, h := range s.hashed {
		if bcrypt.CompareHashAndPassword(h, candidate) == nil {
			return true
		}
	}
	return false
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

// LoadCodesFile reads a {"users": [...]} document. A missing file yields no
// codes and no error.
func LoadCodesFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read access codes: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse access codes %s: invalid JSON", path)
	}
	users := gjson.GetBytes(data, "users")
	if !users.IsArray() {
		return nil, fmt.Errorf("parse access codes %s: missing users array", path)
	}

	var codes []string
	for _, u := range users.Array() {
		switch u.Type {
		case gjson.String:
			codes = append(codes, u.String())
		case gjson.Number:
			codes = append(codes, u.Raw)
		}
	}
	return codes, nil
}

// SplitCodes parses a comma separated list of codes.
func SplitCodes(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AnyOf accepts a code if any checker does, in order.
type AnyOf []Checker

func (a AnyOf) IsValidAccessCode(ctx context.Context, code string) bool {
	for _, c := range a {
		if c != nil && c.IsValidAccessCode(ctx, code) {
			return true
		}
	}
	return false
}
