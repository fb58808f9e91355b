package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/suPer8Hu/biz-assistant/internal/config"
	"github.com/suPer8Hu/biz-assistant/internal/db"
	"github.com/suPer8Hu/biz-assistant/internal/httpapi"
	"github.com/suPer8Hu/biz-assistant/internal/store/rabbitmq"
	"github.com/suPer8Hu/biz-assistant/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	db.Migrate(gdb)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		log.Printf("redis unavailable, rate limiting disabled: %v", err)
		rds = nil
	}
	cancel()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbitmq unavailable, async chat disabled: %v", err)
		pub = nil
	} else {
		defer pub.Close()
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	r := httpapi.NewRouter(gdb, cfg, rds, pub)
	log.Printf("server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
