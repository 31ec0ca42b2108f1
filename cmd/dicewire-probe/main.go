// Command dicewire-probe opens a dicewire session against a live endpoint,
// prints every event and inbound message, and optionally sends a chat
// message on an interval. It is a manual smoke-testing tool, not part of the
// library API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	dicewire "github.com/JokerTrickster/dicewire-go"
	"github.com/JokerTrickster/dicewire-go/contracts"
	"github.com/JokerTrickster/dicewire-go/messaging"
)

func main() {
	var (
		addr     = flag.String("addr", "ws://localhost:8080/socket", "server websocket URL")
		token    = flag.String("token", "", "bearer token for the handshake")
		chat     = flag.String("chat", "", "chat text to send on an interval (empty sends nothing)")
		interval = flag.Duration("interval", 5*time.Second, "send interval")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *addr, *token, *chat, *interval); err != nil {
		logger.Error("probe failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr, token, chat string, interval time.Duration) error {
	client, err := dicewire.New(dicewire.DefaultConfig(addr), dicewire.WithLogger(logger))
	if err != nil {
		return err
	}
	defer client.Close()

	if token != "" {
		client.SetToken(token)
	}

	client.Subscribe(func(evt messaging.Event) {
		switch evt.Kind {
		case messaging.EventStateChanged:
			fmt.Printf("state: %s\n", evt.State)
		case messaging.EventMessageReceived:
			fmt.Printf("recv %s %s: %s\n", evt.Envelope.Type, evt.Envelope.ID, evt.Envelope.Payload)
		case messaging.EventMessageSendFailed:
			fmt.Printf("send failed %s: %v\n", evt.MessageID, evt.Reason)
		case messaging.EventQueueOverflow:
			fmt.Printf("queue overflow, %d pending\n", evt.QueueSize)
		case messaging.EventReconnectAttempt:
			fmt.Printf("reconnect attempt %d/%d\n", evt.Attempt, evt.MaxAttempts)
		case messaging.EventReconnected:
			fmt.Println("reconnected")
		case messaging.EventReconnectExhausted:
			fmt.Printf("reconnect exhausted: %v\n", evt.Reason)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx); err != nil {
		return err
	}
	logger.Info("connected", "addr", addr)

	if chat == "" {
		<-ctx.Done()
		return nil
	}

	payload, err := json.Marshal(map[string]string{"text": chat})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			env, err := client.Send(contracts.TypeChat, payload, contracts.PriorityNormal)
			if err != nil {
				logger.Warn("enqueue failed", "error", err)
				continue
			}
			logger.Debug("enqueued", "id", env.ID, "pending", client.QueueLen())
		}
	}
}
