// cmd/mailmerge/main.go
// 命令列入口

package main

import (
	"os"

	"mail-merge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
