package boundary

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"vaultcore/internal/platform/config"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/pkg/platform/circuit"
)

// HTTPClient talks to the boundary service over its private HTTP API. Calls
// authenticate with a short-lived HS256 service token; a circuit breaker
// sheds load once the service starts failing.
type HTTPClient struct {
	http    *resty.Client
	token   []byte
	breaker *circuit.Breaker
}

// NewHTTPClient builds a boundary client from configuration.
func NewHTTPClient(cfg config.BoundaryConfig) *HTTPClient {
	http := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount)

	return &HTTPClient{
		http:    http,
		token:   []byte(cfg.ServiceToken),
		breaker: circuit.New("boundary", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
	}
}

// Wire types. Binary fields travel base64-encoded.
type (
	decryptRequest struct {
		SealedVaultKey string            `json:"sealed_vault_key"`
		Items          []wireSealedItem  `json:"items"`
	}
	wireSealedItem struct {
		Ref    string `json:"ref"`
		Sealed string `json:"sealed"`
	}
	largeRequest struct {
		SealedVaultKey string          `json:"sealed_vault_key"`
		Items          []wireLargeItem `json:"items"`
	}
	wireLargeItem struct {
		Ref    string `json:"ref"`
		DocRef string `json:"doc_ref"`
	}
	fingerprintRequest struct {
		SealedVaultKey string                `json:"sealed_vault_key"`
		Items          []wireFingerprintItem `json:"items"`
	}
	wireFingerprintItem struct {
		Ref    string `json:"ref"`
		Salt   string `json:"salt"`
		Sealed string `json:"sealed"`
	}
	batchResponse struct {
		Results []wireResult `json:"results"`
	}
	wireResult struct {
		Ref   string `json:"ref"`
		Value string `json:"value"`
	}
)

func (c *HTTPClient) BatchDecrypt(ctx context.Context, sealedVaultKey []byte, items []SealedItem) (map[string][]byte, error) {
	req := decryptRequest{SealedVaultKey: base64.StdEncoding.EncodeToString(sealedVaultKey)}
	for _, item := range items {
		req.Items = append(req.Items, wireSealedItem{
			Ref:    item.Ref,
			Sealed: base64.StdEncoding.EncodeToString(item.Sealed),
		})
	}
	return c.post(ctx, "/v1/batch_decrypt", req, len(items))
}

func (c *HTTPClient) BatchDecryptLarge(ctx context.Context, sealedVaultKey []byte, items []LargeItem) (map[string][]byte, error) {
	req := largeRequest{SealedVaultKey: base64.StdEncoding.EncodeToString(sealedVaultKey)}
	for _, item := range items {
		req.Items = append(req.Items, wireLargeItem{Ref: item.Ref, DocRef: item.DocRef})
	}
	return c.post(ctx, "/v1/batch_decrypt_large", req, len(items))
}

func (c *HTTPClient) BatchFingerprint(ctx context.Context, sealedVaultKey []byte, items []FingerprintItem) (map[string][]byte, error) {
	req := fingerprintRequest{SealedVaultKey: base64.StdEncoding.EncodeToString(sealedVaultKey)}
	for _, item := range items {
		req.Items = append(req.Items, wireFingerprintItem{
			Ref:    item.Ref,
			Salt:   base64.StdEncoding.EncodeToString(item.Salt),
			Sealed: base64.StdEncoding.EncodeToString(item.Sealed),
		})
	}
	return c.post(ctx, "/v1/batch_fingerprint", req, len(items))
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, want int) (map[string][]byte, error) {
	if want > MaxBatchSize {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "batch of %d exceeds boundary limit %d", want, MaxBatchSize)
	}
	if c.breaker.IsOpen() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "boundary circuit open")
	}

	token, err := c.serviceToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign boundary token")
	}

	var out batchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&out).
		Post(path)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, dErrors.Wrapf(err, dErrors.CodeBoundary, "boundary call %s failed", path)
	}
	if resp.IsError() {
		c.breaker.RecordFailure()
		return nil, dErrors.Newf(dErrors.CodeBoundary, "boundary call %s returned %d", path, resp.StatusCode())
	}
	c.breaker.RecordSuccess()

	results := make(map[string][]byte, len(out.Results))
	for _, r := range out.Results {
		value, err := base64.StdEncoding.DecodeString(r.Value)
		if err != nil {
			return nil, dErrors.Wrapf(err, dErrors.CodeBoundary, "malformed boundary result for ref %q", r.Ref)
		}
		results[r.Ref] = value
	}
	if len(results) != want {
		return nil, dErrors.Newf(dErrors.CodeBoundary, "boundary returned %d results, want %d", len(results), want)
	}
	return results, nil
}

// serviceToken mints a short-lived HS256 token identifying this engine to
// the boundary service.
func (c *HTTPClient) serviceToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "vaultcore",
		Audience:  []string{"boundary"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.token)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// IsRetryable classifies a boundary failure: transport-level failures are
// retryable, malformed-payload ones are not.
func IsRetryable(err error) bool {
	if dErrors.HasCode(err, dErrors.CodeUnavailable) {
		return true
	}
	return dErrors.HasCode(err, dErrors.CodeBoundary) && !dErrors.HasCode(err, dErrors.CodeValidation)
}
