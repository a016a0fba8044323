package main

import (
	"context"
	"fmt"
	"os"
)

// 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
