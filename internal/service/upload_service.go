package service

import (
	"classwork_backend/internal/util"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type UploadKind string

const (
	UploadImage UploadKind = "image"
	UploadPDF   UploadKind = "pdf"
)

type uploadRule struct {
	mime    string
	maxSize int64
	exts    []string
}

var uploadRules = map[UploadKind]uploadRule{
	UploadImage: {mime: util.MimeImage, maxSize: util.MaxImageSize, exts: util.AllowedImageExtensions},
	UploadPDF:   {mime: util.MimePDF, maxSize: util.MaxPDFSize, exts: []string{".pdf"}},
}

type UploadRef struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// UploadService 题目图片和考试答案 PDF 的上传
type UploadService struct {
	Storage StorageProvider
	now     func() time.Time
}

func NewUploadService(storage StorageProvider) *UploadService {
	return &UploadService{Storage: storage, now: time.Now}
}

func (s *UploadService) Save(ctx context.Context, kind UploadKind, fh *multipart.FileHeader) (*UploadRef, error) {
	rule, ok := uploadRules[kind]
	if !ok {
		return nil, util.InvalidInputf("unknown upload kind %q", kind)
	}
	if fh.Size <= 0 || fh.Size > rule.maxSize {
		return nil, util.InvalidInputf("file size must be within 1..%d bytes", rule.maxSize)
	}
	if !util.HasExtension(fh.Filename, rule.exts) {
		return nil, util.InvalidInputf("file extension not allowed: %s", filepath.Ext(fh.Filename))
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	contentType, err := util.ValidateMimeType(src, []string{rule.mime})
	if err != nil {
		return nil, util.InvalidInputf("%s", err.Error())
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	name := fmt.Sprintf("%ss/%s/%s%s", kind, s.now().Format("20060102"), uuid.NewString(), strings.ToLower(filepath.Ext(fh.Filename)))
	url, err := s.Storage.Upload(ctx, name, src, fh.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("store upload %s: %w", name, err)
	}
	return &UploadRef{Name: name, URL: url, ContentType: contentType, Size: fh.Size}, nil
}
