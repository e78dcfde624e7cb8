package service

import (
	"net/url"
	"path"
	"strings"

	"github.com/garyjia/open-audit/internal/domain/entity"
)

// CandidateStrategy produces one URL to try when re-serving a stored document
type CandidateStrategy interface {
	Name() string
	Candidate(doc *entity.Document) (string, bool)
}

// DirectStrategy fetches the stored URL as is
type DirectStrategy struct{}

func (DirectStrategy) Name() string { return "direct" }

func (DirectStrategy) Candidate(doc *entity.Document) (string, bool) {
	return doc.FileURL, doc.FileURL != ""
}

// RawPassthroughStrategy rewrites the storage transform segment of a PDF URL into the
// raw passthrough segment, e.g. "/image/upload/" to "/raw/upload/".
type RawPassthroughStrategy struct {
	TransformSegment string
	RawSegment       string
}

func (RawPassthroughStrategy) Name() string { return "raw_passthrough" }

func (s RawPassthroughStrategy) Candidate(doc *entity.Document) (string, bool) {
	if s.TransformSegment == "" || s.TransformSegment == s.RawSegment {
		return "", false
	}
	if !isPDFAsset(doc) || !strings.Contains(doc.FileURL, s.TransformSegment) {
		return "", false
	}
	return strings.Replace(doc.FileURL, s.TransformSegment, s.RawSegment, 1), true
}

// DefaultStrategies returns direct first, then the raw passthrough
func DefaultStrategies(transformSegment, rawSegment string) []CandidateStrategy {
	return []CandidateStrategy{
		DirectStrategy{},
		RawPassthroughStrategy{TransformSegment: transformSegment, RawSegment: rawSegment},
	}
}

func isPDFAsset(doc *entity.Document) bool {
	if doc.MimeType == entity.MimeTypePDF {
		return true
	}
	p := doc.FileURL
	if u, err := url.Parse(doc.FileURL); err == nil {
		p = u.Path
	}
	return strings.EqualFold(path.Ext(p), ".pdf")
}

// extensionFor maps the fetched content type to a download extension
func extensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return "jpg"
	case strings.Contains(ct, "png"):
		return "png"
	default:
		return "pdf"
	}
}
