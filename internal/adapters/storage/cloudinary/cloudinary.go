package cloudinary

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kino/internal/ports"
)

// Client implements ports.StorageProvider against the Cloudinary upload
// API using an unsigned upload preset. ObjectKey maps to the Cloudinary
// public_id.
type Client struct {
	cloudName    string
	uploadPreset string
	apiKey       string
	apiSecret    string
	http         *http.Client
}

type Config struct {
	CloudName    string
	UploadPreset string
	// APIKey/APISecret are only needed for DeleteObject (signed destroy).
	APIKey    string
	APISecret string
}

func New(cfg Config) *Client {
	return &Client{
		cloudName:    cfg.CloudName,
		uploadPreset: cfg.UploadPreset,
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		http:         &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) Provider() string { return "cloudinary" }

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Bytes     int64  `json:"bytes"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		var err error
		defer func() { pw.CloseWithError(err) }()

		if err = form.WriteField("upload_preset", c.uploadPreset); err != nil {
			return
		}
		// public_id sin extensión: Cloudinary la deriva del recurso.
		if err = form.WriteField("public_id", strings.TrimSuffix(in.ObjectKey, ".mp4")); err != nil {
			return
		}

		var part io.Writer
		part, err = form.CreateFormFile("file", in.ObjectKey)
		if err != nil {
			return
		}
		if _, err = io.Copy(part, in.Reader); err != nil {
			return
		}
		err = form.Close()
	}()

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/video/upload", c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	res, err := c.http.Do(req)
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("cloudinary upload failed: %w", err)
	}
	defer res.Body.Close()

	var out uploadResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("cloudinary: invalid response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := out.Error.Message
		if msg == "" {
			msg = res.Status
		}
		return ports.PutObjectOutput{}, fmt.Errorf("cloudinary upload failed: %s", msg)
	}

	return ports.PutObjectOutput{
		ObjectKey: out.PublicID,
		Size:      out.Bytes,
		URL:       out.SecureURL,
	}, nil
}

// GetObject is not supported: Cloudinary assets are fetched by their
// public secure_url, which the video record already stores.
func (c *Client) GetObject(ctx context.Context, objectKey string) (io.ReadCloser, string, int64, error) {
	return nil, "", 0, fmt.Errorf("cloudinary: GetObject not supported, use the stored result url")
}

func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	if c.apiKey == "" || c.apiSecret == "" {
		return fmt.Errorf("cloudinary: delete requires api key and secret")
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	toSign := "public_id=" + objectKey + "&timestamp=" + ts + c.apiSecret
	sum := sha1.Sum([]byte(toSign))

	form := url.Values{}
	form.Set("public_id", objectKey)
	form.Set("timestamp", ts)
	form.Set("api_key", c.apiKey)
	form.Set("signature", hex.EncodeToString(sum[:]))

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/video/destroy", c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("cloudinary destroy failed: %s", res.Status)
	}
	return nil
}

var _ ports.StorageProvider = (*Client)(nil)
