package main

import (
	"packsync/cmd"
	"packsync/logger"

	_ "go.uber.org/automaxprocs/maxprocs"
)

func main() {
	log := logger.InitLogger()
	defer logger.Sync()
	cmd.Execute(log)
}
