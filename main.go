package main

import (
	"github.com/spf13/cobra"

	"github.com/festivo/gamehub/logger"
)

const releaseVersion = "1.0.0"

func main() {
	logger.Init()
	cobra.CheckErr(newCmd().Execute())
}
