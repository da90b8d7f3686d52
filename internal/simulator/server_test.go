package simulator_test

import (
	"context"
	"math/rand/v2"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/simulator"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/upstream"
)

// The simulator speaks the same protocol the upstream clients expect.
func TestServerMatchesUpstreamClients(t *testing.T) {
	bank := simulator.NewBank([]string{"100000001", "100000002"}, rand.New(rand.NewPCG(3, 4)))
	bank.Step()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	simulator.Register(app, bank)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	base := "http://" + ln.Addr().String()

	ctx := context.Background()
	ids, err := upstream.NewRegistry(base+"/meter_ids", time.Second).MeterIDs(ctx)
	if err != nil {
		t.Fatalf("MeterIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "100000001" {
		t.Fatalf("ids = %v", ids)
	}

	v, err := upstream.New(base, time.Second).Reading(ctx, "100000001")
	if err != nil {
		t.Fatalf("Reading: %v", err)
	}
	if v != bank.Reading("100000001") || v <= 0 {
		t.Fatalf("reading = %v", v)
	}

	v, err = upstream.New(base, time.Second).Reading(ctx, "100000007")
	if err != nil || v != 0 {
		t.Fatalf("unknown meter = %v, %v", v, err)
	}
	if got := len(bank.Meters()); got != 3 {
		t.Fatalf("unknown meter not registered, %d meters", got)
	}
}
