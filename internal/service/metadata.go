package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ipfsScheme = "ipfs://"

	// maxMetadataSize caps how much of a metadata document is read
	maxMetadataSize = 1 << 20
)

// MetadataCache stores resolved metadata documents keyed by URL
type MetadataCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
}

// MetadataError describes a metadata fetch that reached the host but did not
// produce a JSON document
type MetadataError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *MetadataError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("metadata request to %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("metadata at %s is not valid JSON: %v", e.URL, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// MetadataService fetches NFT metadata documents
type MetadataService struct {
	httpClient *http.Client
	gateway    string
	cache      MetadataCache
	logger     *zap.Logger
}

// NewMetadataService creates a new metadata service. cache may be nil.
func NewMetadataService(gateway string, timeout time.Duration, cache MetadataCache, logger *zap.Logger) *MetadataService {
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return &MetadataService{
		httpClient: &http.Client{Timeout: timeout},
		gateway:    gateway,
		cache:      cache,
		logger:     logger,
	}
}

// ResolveURL rewrites an ipfs:// URI to the configured HTTP gateway. Other
// URIs are returned unchanged.
func (s *MetadataService) ResolveURL(tokenURI string) string {
	if strings.HasPrefix(tokenURI, ipfsScheme) {
		return s.gateway + strings.TrimPrefix(tokenURI, ipfsScheme)
	}
	return tokenURI
}

// Resolve fetches the metadata document for tokenURI
func (s *MetadataService) Resolve(ctx context.Context, tokenURI string) (json.RawMessage, error) {
	url := s.ResolveURL(tokenURI)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, url)
		if err != nil {
			s.logger.Warn("Metadata cache read failed", zap.String("url", url), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	doc, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, url, doc); err != nil {
			s.logger.Warn("Metadata cache write failed", zap.String("url", url), zap.Error(err))
		}
	}

	return doc, nil
}

func (s *MetadataService) fetch(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata URL %q: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &MetadataError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var doc json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &MetadataError{URL: url, Err: err}
	}

	s.logger.Debug("Fetched metadata", zap.String("url", url), zap.Int("bytes", len(body)))
	return doc, nil
}
