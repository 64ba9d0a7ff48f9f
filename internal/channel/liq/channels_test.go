package liq

import (
	"context"
	"testing"
	"time"

	"rektflow/internal/model"
)

func TestChannels_SendRaw(t *testing.T) {
	ch := NewChannels(1)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev := model.LiquidationEvent{Exchange: "binance", Symbol: "SOLUSDT", Side: model.SideLong, NotionalUSD: 1000, Price: 150, ObservedAt: time.Now()}
	if !ch.SendRaw(ctx, ev) {
		t.Fatalf("expected send to succeed")
	}
	if stats := ch.GetStats(); stats.RawSent != 1 {
		t.Fatalf("expected raw sent counter to be 1, got %d", stats.RawSent)
	}

	// buffer full should increment dropped counter
	if ch.SendRaw(ctx, ev) {
		t.Fatalf("expected send to fail due to full buffer")
	}
	if stats := ch.GetStats(); stats.RawDropped != 1 {
		t.Fatalf("expected raw dropped counter to be 1, got %d", stats.RawDropped)
	}
}
