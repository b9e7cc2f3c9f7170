package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/models"
	"truckmitr/storage"
)

var ErrEmptyCertificate = errors.New("certificate response carried no document")

type CertificateService interface {
	Generate(ctx context.Context, owner int64, moduleID int64) (*models.Certificate, error)
}

type certificateService struct {
	dev device
	api backend.API
	log logger.ILogger
	dir string
}

func NewCertificateService(stg storage.IStorage, api backend.API, log logger.ILogger, dir string) CertificateService {
	return &certificateService{dev: device{kv: stg.KV()}, api: api, log: log, dir: dir}
}

type certificateResponse struct {
	PDF               string `json:"pdf"`
	PDFBase64         string `json:"pdf_base64"`
	CertificateBase64 string `json:"certificate_base64"`
	FileName          string `json:"file_name"`
}

func (r certificateResponse) document() string {
	for _, s := range []string{r.PDFBase64, r.CertificateBase64, r.PDF} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Generate asks the backend for the PDF and writes it under dir/<owner>/.
func (s *certificateService) Generate(ctx context.Context, owner int64, moduleID int64) (*models.Certificate, error) {
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	err = s.api.Do(ctx, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathCertificate,
		Token:  tok,
		Body:   map[string]any{"module_id": moduleID},
		Out:    &raw,
	})
	if err != nil {
		return nil, err
	}

	var resp certificateResponse
	if err := json.Unmarshal(unwrapData(raw), &resp); err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	pdf, err := decodeDocument(resp.document())
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		s.log.Warning("certificate does not look like a PDF", logger.Int64("module_id", moduleID))
	}

	name := filepath.Base(resp.FileName)
	if name == "." || name == "/" || name == "" {
		name = "certificate_" + strconv.FormatInt(moduleID, 10) + ".pdf"
	}
	dir := filepath.Join(s.dir, strconv.FormatInt(owner, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return nil, err
	}

	s.log.Info("certificate saved", logger.Int64("owner_id", owner), logger.String("path", path))
	return &models.Certificate{FileName: name, Path: path, Size: len(pdf)}, nil
}

func decodeDocument(s string) ([]byte, error) {
	if i := strings.Index(s, "base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len("base64,"):]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyCertificate
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode certificate base64: %w", err)
	}
	return b, nil
}
