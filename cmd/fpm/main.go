// Command fpm synchronizes file bundles over plain git.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fpm-dev/fpm/internal/cli"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	cmd := cli.NewCLI(version)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
