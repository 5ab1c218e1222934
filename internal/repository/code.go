package repository

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/google/uuid"
)

const DefaultMaxCodeAttempts = 5

// CodeGenerator produces candidate ticket QR tokens.
type CodeGenerator func() (string, error)

// NewTicketCode returns 32 upper-case hex characters from a random UUID.
func NewTicketCode() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(id[:])), nil
}

type LedgerSettings struct {
	Codes           CodeGenerator
	MaxCodeAttempts int
}

type LedgerOption func(*LedgerSettings)

func WithCodeGenerator(g CodeGenerator) LedgerOption {
	return func(s *LedgerSettings) {
		if g != nil {
			s.Codes = g
		}
	}
}

func WithMaxCodeAttempts(n int) LedgerOption {
	return func(s *LedgerSettings) {
		if n > 0 {
			s.MaxCodeAttempts = n
		}
	}
}

func NewLedgerSettings(opts ...LedgerOption) LedgerSettings {
	s := LedgerSettings{Codes: NewTicketCode, MaxCodeAttempts: DefaultMaxCodeAttempts}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// AssignUniqueCode draws codes until try reports no collision. try returns
// collided=true when the code is already taken and the next one should be drawn.
func (s LedgerSettings) AssignUniqueCode(ctx context.Context, try func(ctx context.Context, code string) (collided bool, err error)) (string, error) {
	for attempt := 0; attempt < s.MaxCodeAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := s.Codes()
		if err != nil {
			return "", err
		}
		collided, err := try(ctx, code)
		if err != nil {
			return "", err
		}
		if !collided {
			return code, nil
		}
	}
	return "", domain.Errorf(domain.ErrCodeGenerationExhausted, "could not generate a unique ticket code after %d attempts", s.MaxCodeAttempts)
}
