package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/trustflow-labs/trustflow/internal/api"
)

// ErrEmptyContent is returned when there is nothing to verify.
var ErrEmptyContent = errors.New("verify: empty content")

// txHashPattern matches a 0x-prefixed 64-digit hex transaction hash.
var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ValidateTxHash rejects malformed hashes before any network call.
func ValidateTxHash(hash string) error {
	if !txHashPattern.MatchString(hash) {
		return fmt.Errorf("verify: %q is not a valid transaction hash", hash)
	}
	return nil
}

// Backend is the slice of the API client the verification console needs.
type Backend interface {
	VerifyText(ctx context.Context, text string) (*api.VerifyResult, error)
	VerifyFile(ctx context.Context, filename string, content io.Reader) (*api.VerifyResult, error)
	LookupTx(ctx context.Context, txHash string) (*api.TxRecord, error)
}

// Service drives the content-verification console.
type Service struct {
	backend Backend
	logger  *log.Logger
}

// NewService builds a verification service over the given backend.
func NewService(backend Backend, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{backend: backend, logger: logger}
}

// CheckText verifies a piece of text against anchored generation records.
func (s *Service) CheckText(ctx context.Context, text string) (*api.VerifyResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}
	result, err := s.backend.VerifyText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("verify text: %w", err)
	}
	s.logger.Debug("text verification completed", "status", result.Status, "check_result", result.CheckResult)
	return result, nil
}

// CheckFile verifies an image file for a watermark or an anchored match.
func (s *Service) CheckFile(ctx context.Context, path string) (*api.VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("verify: open %s: %w", path, err)
	}
	defer f.Close()

	result, err := s.backend.VerifyFile(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, fmt.Errorf("verify file: %w", err)
	}
	s.logger.Debug("file verification completed", "status", result.Status, "check_result", result.CheckResult)
	return result, nil
}

// LookupHash queries the anchored record behind a transaction hash. The
// hash is validated client-side first.
func (s *Service) LookupHash(ctx context.Context, txHash string) (*api.TxRecord, error) {
	if err := ValidateTxHash(txHash); err != nil {
		return nil, err
	}
	record, err := s.backend.LookupTx(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("lookup tx %s: %w", txHash, err)
	}
	return record, nil
}
