// Command vidshare は動画共有サービスのAPIサーバーを起動する。
//
// サブコマンド:
//
//	serve        APIサーバーを起動する（デフォルト）
//	migrate      プロフィールストアのマイグレーションを適用する
//	healthcheck  稼働中のサーバーの /health を確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/vidshare/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "vidshare: %v\n", err)
		os.Exit(1)
	}
}
