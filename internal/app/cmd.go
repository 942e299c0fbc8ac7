package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandGateway はエッジゲートウェイモードで起動することを示す。
	CommandGateway Command = "gateway"
	// CommandProbe はバックエンドに対する疎通プローブを実行することを示す。
	// 認証からエッグ取得までの一連のフローを1回実行して終了する。
	CommandProbe Command = "probe"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandGatewayを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandGateway
	}

	switch args[0] {
	case "gateway":
		return CommandGateway
	case "probe":
		return CommandProbe
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandGateway
	}
}
