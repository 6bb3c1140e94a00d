package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teleop_go/internal/config"
	"teleop_go/internal/server"
	"teleop_go/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.json", "caminho do arquivo de configuração")
	flag.Parse()

	logger.Init(logger.InfoLevel)
	defer logger.Close()

	displayBanner()

	// Carregar configurações
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Erro ao carregar configurações: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.FileEnabled {
		if err := logger.EnableFileLogging(cfg.Logging.Dir, "teleop"); err != nil {
			logger.Warnf("Log em arquivo indisponível: %v", err)
		}
	}

	logger.Infof("Laço de controle a %dms por tick, servidor na porta %d",
		cfg.Control.TickRateMs, cfg.Server.Port)

	// Criar e iniciar o servidor
	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatalf("Erro ao criar servidor: %v", err)
	}

	// Iniciar o servidor em uma goroutine separada
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatalf("Erro ao iniciar o servidor: %v", err)
		}
	}()

	// Captura de sinais para shutdown gracioso
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Desligando servidor...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Erro durante o shutdown do servidor: %v", err)
	}

	logger.Info("Servidor encerrado com sucesso")
}

// displayBanner exibe um banner de inicialização
func displayBanner() {
	banner := `
 _______ _______        _______  _____   _____
    |    |______ |      |______ |     | |_____]
    |    |______ |_____ |______ |_____| |

            AR4  DUAL-ARM  TELEOP  v1.0
 `
	fmt.Println(banner)
	fmt.Printf("Iniciando em %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
}
