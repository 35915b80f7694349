package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/metafam/metagame/internal/model"
)

// maxResponseSize はGraphQL応答の最大読み込みサイズ（10MB）。
const maxResponseSize = 10 * 1024 * 1024

const topPlayersQuery = `query GetTopPlayers($limit: Int!) {
  player(
    limit: $limit
    order_by: { total_xp: desc }
    where: { availableHours: { _gte: 0 } }
  ) {
    id
    username
    ethereumAddress
    availableHours
    timezone
    colorMask
    type {
      id
    }
    skills {
      Skill {
        id
        category
        name
      }
    }
  }
}`

// SourcePlayer は本番GraphQLから取得したプレイヤー。
type SourcePlayer struct {
	ID              string  `json:"id"`
	Username        string  `json:"username"`
	EthereumAddress string  `json:"ethereumAddress"`
	AvailableHours  *int    `json:"availableHours"`
	Timezone        *string `json:"timezone"`
	ColorMask       *int    `json:"colorMask"`
	Type            *struct {
		ID int `json:"id"`
	} `json:"type"`
	Skills []struct {
		Skill model.Skill `json:"Skill"`
	} `json:"skills"`
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type topPlayersResponse struct {
	Data struct {
		Player []SourcePlayer `json:"player"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// ProductionSource は本番HasuraのGraphQLエンドポイントからプレイヤーを取得する。
type ProductionSource struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewProductionSource はProductionSourceを生成する。
func NewProductionSource(httpClient *http.Client, logger *slog.Logger, endpoint string) *ProductionSource {
	return &ProductionSource{httpClient: httpClient, logger: logger, endpoint: endpoint}
}

// FetchTopPlayers は総XP上位limit人のプレイヤーを取得する。
func (s *ProductionSource) FetchTopPlayers(ctx context.Context, limit int) ([]SourcePlayer, error) {
	body, err := json.Marshal(graphQLRequest{
		Query:         topPlayersQuery,
		OperationName: "GetTopPlayers",
		Variables:     map[string]any{"limit": limit},
	})
	if err != nil {
		return nil, fmt.Errorf("GraphQLリクエストの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("GraphQLリクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("本番GraphQLへの接続に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("本番GraphQLがステータス%dを返しました", resp.StatusCode)
	}

	var out topPlayersResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("GraphQL応答のデコードに失敗しました: %w", err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			msgs[i] = e.Message
		}
		return nil, errors.New("graphql: " + strings.Join(msgs, "; "))
	}

	s.logger.Debug("本番プレイヤーを取得しました", slog.Int("count", len(out.Data.Player)))
	return out.Data.Player, nil
}

// AccountMigrator はローカルバックエンドのアカウント移行アクションを呼び出す。
type AccountMigrator struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewAccountMigrator はAccountMigratorを生成する。
func NewAccountMigrator(httpClient *http.Client, logger *slog.Logger, endpoint string) *AccountMigrator {
	return &AccountMigrator{httpClient: httpClient, logger: logger, endpoint: endpoint}
}

// ForceMigrate は移行エンドポイントにPOSTし、応答をログに記録する。
func (m *AccountMigrator) ForceMigrate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, nil)
	if err != nil {
		return fmt.Errorf("アカウント移行リクエストの生成に失敗しました: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("アカウント移行の呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	var result json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&result); err != nil {
		return fmt.Errorf("アカウント移行の応答のデコードに失敗しました: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("アカウント移行がステータス%dを返しました: %s", resp.StatusCode, result)
	}

	m.logger.Info("アカウント移行を実行しました", slog.String("result", string(result)))
	return nil
}
