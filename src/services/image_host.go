package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/models"
)

type cloudinaryUploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

type cloudinaryDestroyResponse struct {
	Result string `json:"result"`
}

type cloudinaryService struct {
	client    *resty.Client
	cloudName string
	apiKey    string
	apiSecret string
}

// NewImageHostService builds a Cloudinary-backed image host client.
func NewImageHostService(cloudName, apiKey, apiSecret string) ImageHostService {
	client := resty.New().
		SetBaseURL(fmt.Sprintf("https://api.cloudinary.com/v1_1/%s", cloudName)).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &cloudinaryService{
		client:    client,
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// sign builds the request signature: sha1 of the sorted non-auth params
// concatenated with the API secret.
func (s *cloudinaryService) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	payload := strings.Join(pairs, "&") + s.apiSecret
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Upload stores the image under a per-user folder with a per-trade public
// id, so host-side assets stay traceable to their trade.
func (s *cloudinaryService) Upload(ctx context.Context, file io.Reader, userID, tradeID int64) (*models.Screenshot, error) {
	folder := fmt.Sprintf("trading-app/user_%d", userID)
	publicID := fmt.Sprintf("trade_%d_%d", tradeID, time.Now().UnixMilli())
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	signedParams := map[string]string{
		"folder":    folder,
		"public_id": publicID,
		"timestamp": timestamp,
	}

	var uploadResp cloudinaryUploadResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFileReader("file", publicID, file).
		SetFormData(map[string]string{
			"folder":    folder,
			"public_id": publicID,
			"timestamp": timestamp,
			"api_key":   s.apiKey,
			"signature": s.sign(signedParams),
		}).
		SetResult(&uploadResp).
		SetError(&uploadResp).
		Post("/image/upload")
	if err != nil {
		return nil, fmt.Errorf("image host upload failed: %w", err)
	}
	if resp.IsError() || uploadResp.SecureURL == "" {
		logger.L.Error("image host rejected upload", "status", resp.StatusCode(), "message", uploadResp.Error.Message)
		return nil, fmt.Errorf("image host rejected upload (status %d): %s", resp.StatusCode(), uploadResp.Error.Message)
	}

	return &models.Screenshot{
		URL:      uploadResp.SecureURL,
		PublicID: uploadResp.PublicID,
	}, nil
}

func (s *cloudinaryService) Destroy(ctx context.Context, publicID string) error {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signedParams := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}

	var destroyResp cloudinaryDestroyResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"public_id": publicID,
			"timestamp": timestamp,
			"api_key":   s.apiKey,
			"signature": s.sign(signedParams),
		}).
		SetResult(&destroyResp).
		Post("/image/destroy")
	if err != nil {
		return fmt.Errorf("image host destroy failed: %w", err)
	}
	// "not found" counts as destroyed: the asset is gone either way.
	if resp.IsError() || (destroyResp.Result != "ok" && destroyResp.Result != "not found") {
		return fmt.Errorf("image host refused to destroy %s (status %d, result %q)", publicID, resp.StatusCode(), destroyResp.Result)
	}
	return nil
}

// PublicIDFromURL re-derives the host-side handle from a delivery URL:
// everything after the version segment that follows "/upload/", with the
// file extension stripped. Returns false for URLs not owned by the host.
func (s *cloudinaryService) PublicIDFromURL(url string) (string, bool) {
	if !strings.Contains(url, "cloudinary.com") {
		return "", false
	}
	parts := strings.Split(url, "/")
	uploadIdx := -1
	for i, part := range parts {
		if part == "upload" {
			uploadIdx = i
			break
		}
	}
	if uploadIdx == -1 || uploadIdx+2 >= len(parts) {
		return "", false
	}
	publicID := strings.Join(parts[uploadIdx+2:], "/")
	if dot := strings.LastIndex(publicID, "."); dot != -1 {
		publicID = publicID[:dot]
	}
	return publicID, publicID != ""
}
