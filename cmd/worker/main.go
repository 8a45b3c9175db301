package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pickup/internal/audit"
	"pickup/internal/config"
	"pickup/internal/guardian"
	"pickup/internal/notify"
	"pickup/internal/pickup"
	"pickup/internal/queue"
	"pickup/internal/store"
)

// Worker consumes lifecycle and registry events, writes the audit trail and
// notifies parents about decisions on their requests.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "pickup:events")
	}

	auditWriter := audit.NewWriter(db.Client)
	pusher := notify.New(cfg.PushGatewayURL, cfg.PushSkip)

	if !cfg.PushSkip {
		if err := pusher.Health(ctx); err != nil {
			log.Printf("WARNING: push gateway not available: %v", err)
			log.Println("Worker will retry notification delivery per event")
		} else {
			log.Println("Push gateway connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for events...")
	for msg := range messages {
		switch msg.Type {
		case pickup.MessageType:
			handleTransition(ctx, msg, auditWriter, pusher)
		case guardian.MessageType:
			handleGuardianChange(ctx, msg, auditWriter)
		default:
			log.Printf("skipping unknown message type %q", msg.Type)
		}
	}

	log.Println("worker stopped")
}

func handleTransition(ctx context.Context, msg queue.Message, w *audit.Writer, pusher *notify.Client) {
	evt, err := pickup.DecodeTransition(msg)
	if err != nil {
		log.Printf("decode transition event failed: %v", err)
		return
	}

	entry := audit.Entry{
		ActorID:  evt.ActorID,
		Action:   fmt.Sprintf("pickup.%s", evt.To),
		Entity:   "pickup_request",
		EntityID: evt.RequestID,
		Detail:   evt.Reason,
		At:       evt.At,
	}
	if err := w.Insert(ctx, entry); err != nil {
		log.Printf("audit write failed for request %s: %v", evt.RequestID, err)
	}

	// Parents hear about decisions, not about their own creations or
	// cancellations.
	var title, body string
	switch evt.To {
	case pickup.StatusApproved:
		title, body = "Pickup approved", "Your pickup request was approved. Show the QR code at the gate."
	case pickup.StatusRejected:
		title, body = "Pickup rejected", evt.Reason
	case pickup.StatusCompleted:
		title, body = "Pickup completed", "Your child has been picked up."
	default:
		return
	}
	if err := pusher.Send(ctx, notify.Notification{UserID: evt.RequesterID, Title: title, Body: body}); err != nil {
		log.Printf("notify failed for request %s: %v", evt.RequestID, err)
	}
}

func handleGuardianChange(ctx context.Context, msg queue.Message, w *audit.Writer) {
	change, err := guardian.DecodeChange(msg)
	if err != nil {
		log.Printf("decode guardian change failed: %v", err)
		return
	}
	entry := audit.Entry{
		ActorID:  change.ActorID,
		Action:   change.Action,
		Entity:   "student_guardian",
		EntityID: change.StudentID + ":" + change.GuardianID,
		At:       change.At,
	}
	if err := w.Insert(ctx, entry); err != nil {
		log.Printf("audit write failed for guardian change: %v", err)
	}
}
