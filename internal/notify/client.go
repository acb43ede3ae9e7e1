// Package notify sends admin-channel notifications for upload intake and
// review outcomes. All sends are fire-and-forget: a failed notification
// is logged and never fails the triggering operation.
package notify

import (
	"context"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Config holds Lark bot configuration
type Config struct {
	AppID       string
	AppSecret   string
	AdminChatID string // chat the finance admins watch
}

// Client wraps the Lark SDK client for chat messaging
type Client struct {
	client      *lark.Client
	adminChatID string
	logger      *zap.Logger
}

// NewClient creates a new Lark client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &Client{
		client:      client,
		adminChatID: cfg.AdminChatID,
		logger:      logger,
	}
}

// SendToAdminChat posts a text message to the admin chat
func (c *Client) SendToAdminChat(ctx context.Context, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(c.adminChatID).
			MsgType("text").
			Content(content).
			Build()).
		Build()

	resp, err := c.client.Im.Message.Create(ctx, req)
	if err != nil {
		c.logger.Error("Failed to send message",
			zap.String("chat_id", c.adminChatID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		c.logger.Error("API returned failure",
			zap.String("chat_id", c.adminChatID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	c.logger.Debug("Message sent",
		zap.String("message_id", messageID),
		zap.String("chat_id", c.adminChatID))

	return messageID, nil
}
