package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"bountyd/internal/domain"
)

// IPFS talks to a Kubo node over its HTTP API. Blocks are added with
// explicit parameters so the node returns the same CIDv1 raw+sha2-256
// identifier the rest of the system computes locally; a mismatch is an
// error, not something to paper over.
type IPFS struct {
	apiURL     string
	httpClient *http.Client
}

func NewIPFS(apiURL string, httpClient *http.Client) (*IPFS, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("ipfs api url is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IPFS{apiURL: strings.TrimRight(apiURL, "/"), httpClient: httpClient}, nil
}

func (s *IPFS) Put(ctx context.Context, data []byte) (string, error) {
	want, err := CID(data)
	if err != nil {
		return "", err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "blob")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	endpoint := s.apiURL + "/api/v0/add?" + url.Values{
		"cid-version": {"1"},
		"raw-leaves":  {"true"},
		"hash":        {"sha2-256"},
		"pin":         {"true"},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: ipfs add: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ipfs add returned status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var added struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return "", fmt.Errorf("%w: decode ipfs add response: %v", domain.ErrUpstreamUnavailable, err)
	}
	if added.Hash != want {
		return "", fmt.Errorf("ipfs returned cid %s, expected %s", added.Hash, want)
	}
	return want, nil
}

func (s *IPFS) Get(ctx context.Context, id string) ([]byte, error) {
	endpoint := s.apiURL + "/api/v0/cat?" + url.Values{"arg": {id}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ipfs cat: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if isNotFoundBody(raw) {
			return nil, fmt.Errorf("%w: cid %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: ipfs cat returned status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read ipfs cat response: %v", domain.ErrUpstreamUnavailable, err)
	}
	if !VerifyCID(id, data) {
		return nil, fmt.Errorf("ipfs returned bytes not matching cid %s", id)
	}
	return data, nil
}

func isNotFoundBody(raw []byte) bool {
	var apiErr struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no link")
}
