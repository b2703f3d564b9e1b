package main

import (
	"chat_relay/internal/config"
	"chat_relay/internal/service/app"
	"chat_relay/internal/utils/log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	// os.Args[0] is the program name, os.Args[1:] are arguments
	if len(os.Args) < 3 {
		log.Fatal("usage: client <username> <peer>")
	}

	username, peer := os.Args[1], os.Args[2]

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatal("load config failed", zap.Error(err))
	}
	if err := log.Init(cfg.LogLevel); err != nil {
		log.Fatal("init logger failed", zap.Error(err))
	}

	c, err := app.NewApp(cfg.RelayURL)
	if err != nil {
		log.Fatal("create client failed", zap.Error(err))
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-done
		c.Stop()
	}()

	if err := c.Run(username, peer); err != nil {
		log.Fatal("chat client stopped", zap.Error(err))
	}
	c.Stop()
}
