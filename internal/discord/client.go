// Package discord はDiscord REST APIを使ったギルド・ロール操作を提供する。
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/metafam/metagame/internal/model"
)

// restSession はdiscordgo.Sessionのうち使用するREST操作。
type restSession interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Client はBotトークンで認証したDiscordクライアント。
// Gatewayには接続せず、REST呼び出しのみ行う。
type Client struct {
	session restSession
	logger  *slog.Logger
}

// NewClient はBotトークンからClientを生成する。
func NewClient(token string, logger *slog.Logger) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("Discordセッションの作成に失敗しました: %w", err)
	}
	return &Client{session: s, logger: logger}, nil
}

// Guild はギルドを取得する。存在しない、またはBotが未参加の場合はnilを返す。
func (c *Client) Guild(ctx context.Context, guildID string) (*model.ChatGuild, error) {
	g, err := c.session.Guild(guildID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ギルドの取得に失敗しました (%s): %w", guildID, err)
	}
	return &model.ChatGuild{ID: g.ID, Name: g.Name}, nil
}

// Member はギルドメンバーを取得する。未参加の場合はnilを返す。
func (c *Client) Member(ctx context.Context, guildID, userID string) (*model.ChatMember, error) {
	m, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メンバーの取得に失敗しました (%s): %w", userID, err)
	}
	return &model.ChatMember{UserID: userID, Roles: m.Roles}, nil
}

// RemoveRole はメンバーからロールを外す。
// メンバーがロールを持っていない場合はAPIを呼ばずにfalseを返す。
func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	if roleID == "" {
		return false, nil
	}

	m, err := c.Member(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	if m == nil || !m.HasRole(roleID) {
		return false, nil
	}

	if err := c.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("ロールの削除に失敗しました (%s): %w", roleID, err)
	}

	c.logger.Debug("ロールを削除しました",
		slog.String("user_id", userID),
		slog.String("role_id", roleID),
	)
	return true, nil
}

// AddRole はメンバーにロールを付与する。既に付与済みでもエラーにしない。
func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := c.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("ロールの付与に失敗しました (%s): %w", roleID, err)
	}
	return nil
}

// isNotFound はDiscord APIの404応答かを判定する。
func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
