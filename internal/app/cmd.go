package app

import "strconv"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はHasuraアクション/トリガーを受けるAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はプロフィール再同期ワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandSeed は本番の上位プレイヤーでローカルDBを初期化することを示す。
	CommandSeed Command = "seed"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "seed":
		return CommandSeed
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// isMigrateDown は "migrate down" が指定されたかを返す。
func isMigrateDown(args []string) bool {
	return len(args) >= 2 && args[0] == string(CommandMigrate) && args[1] == "down"
}

// seedPlayerCount は "seed N" の人数指定を返す。指定がない、または不正な場合はdefaultNを返す。
func seedPlayerCount(args []string, defaultN int) int {
	if len(args) < 2 {
		return defaultN
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n <= 0 {
		return defaultN
	}
	return n
}
