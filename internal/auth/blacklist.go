package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-sales-orders/internal/config"
	"github.com/ariefcatur/go-sales-orders/internal/integration"
)

const (
	verifyTokenPath  = "/api/v1/user/verify-token-status"
	blacklistTimeout = 5 * time.Second
	usersServiceName = "users"
)

type poster interface {
	Post(ctx context.Context, path string, body any) (*integration.Response, error)
}

// BlacklistClient asks the users service whether a token was revoked.
type BlacklistClient struct {
	client poster
	logger *zap.Logger
}

func NewBlacklistClient(baseURL, serviceToken string, logger *zap.Logger) *BlacklistClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	headers := map[string]string{}
	if serviceToken != "" {
		headers["Authorization"] = "Bearer " + serviceToken
	}
	c := integration.New(integration.Options{
		Service: usersServiceName,
		Config: config.GatewayConfig{
			BaseURL:     baseURL,
			ContentType: "application/json",
			Headers:     headers,
		},
		Timeout: blacklistTimeout,
		Retries: 1,
		Logger:  logger,
	})
	return &BlacklistClient{client: c, logger: logger}
}

type verifyTokenResponse struct {
	Data struct {
		IsBlacklisted bool  `json:"isBlacklisted"`
		IsValidToken  *bool `json:"isValidToken"`
	} `json:"data"`
}

// IsBlacklisted fails open: any communication or decoding failure is logged
// and the token is allowed.
func (b *BlacklistClient) IsBlacklisted(ctx context.Context, token string) bool {
	res, err := b.client.Post(ctx, verifyTokenPath, map[string]string{"token": token})
	if err != nil {
		b.logger.Error("token blacklist check failed", zap.Error(err))
		return false
	}
	var body verifyTokenResponse
	if err := res.Decode(&body); err != nil {
		b.logger.Error("token blacklist check failed", zap.Error(err))
		return false
	}
	return body.Data.IsBlacklisted
}
