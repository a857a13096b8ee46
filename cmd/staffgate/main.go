package main

import (
	"log"

	"github.com/m3rciful/staffgate/bot"
	"github.com/m3rciful/staffgate/config"
	corecmd "github.com/m3rciful/staffgate/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := carrier.(*config.AppConfig)
			if !ok {
				log.Fatal("unexpected config type")
			}
			return bot.Bootstrap(cfg)
		},
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
