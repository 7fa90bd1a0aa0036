//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/techcycle/api/internal/domain"
	pconfig "github.com/techcycle/api/internal/platform/config"
	pfirestore "github.com/techcycle/api/internal/platform/firestore"
	"github.com/techcycle/api/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

// emulatorEndpoint reuses a running emulator when FIRESTORE_EMULATOR_HOST is
// set, otherwise starts one in docker. The test is skipped when neither is
// available.
func emulatorEndpoint(t *testing.T) string {
	t.Helper()
	if host := strings.TrimSpace(os.Getenv("FIRESTORE_EMULATOR_HOST")); host != "" {
		return host
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("FIRESTORE_EMULATOR_HOST unset and docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })
	waitForEndpoint(t, endpoint, 30*time.Second)
	return endpoint
}

func TestOrderRepositoryIntegration(t *testing.T) {
	endpoint := emulatorEndpoint(t)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "orders-test",
		EmulatorHost: endpoint,
	}
	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)

	t.Run("checkout stock guard admits one buyer for the last unit", func(t *testing.T) {
		const productID = "prod_last_unit"
		seed := productDocument{
			Name:      "iPhone 12 mini",
			Slug:      "iphone-12-mini",
			Condition: "used",
			Price:     29900,
			Currency:  "EUR",
			Stock:     1,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := client.Collection(productCollection).Doc(productID).Set(ctx, seed); err != nil {
			t.Fatalf("seed product: %v", err)
		}

		buildOrder := func(id, userID string) domain.Order {
			return domain.Order{
				ID:          id,
				OrderNumber: "ORD-" + id,
				UserID:      userID,
				Status:      domain.OrderStatusPending,
				Currency:    "EUR",
				Items: []domain.OrderItem{
					{ProductID: productID, Name: "iPhone 12 mini", UnitPrice: 29900, Quantity: 1},
				},
				Totals:    domain.OrderTotals{Subtotal: 29900, Total: 29900},
				CreatedAt: now,
				UpdatedAt: now,
			}
		}

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				order := buildOrder(fmt.Sprintf("o_race_%d", i), fmt.Sprintf("buyer-%d", i))
				errs[i] = repo.Create(ctx, order)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			var stockErr *repositories.StockError
			if !errors.As(err, &stockErr) || stockErr.Code != repositories.StockErrorInsufficient {
				t.Fatalf("expected insufficient stock error for the loser, got %v", err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("expected exactly one checkout to win, got %d", succeeded)
		}

		snapshot, err := client.Collection(productCollection).Doc(productID).Get(ctx)
		if err != nil {
			t.Fatalf("read product: %v", err)
		}
		var stored productDocument
		if err := snapshot.DataTo(&stored); err != nil {
			t.Fatalf("decode product: %v", err)
		}
		if stored.Stock != 0 {
			t.Fatalf("expected stock drained to 0, got %d", stored.Stock)
		}
	})

	t.Run("concurrent cancels restock once", func(t *testing.T) {
		const (
			orderID   = "o_cancel_race"
			productID = "prod_restock"
		)
		seed := productDocument{
			Name:      "USB-C dock",
			Slug:      "usb-c-dock",
			Condition: "refurbished",
			Price:     4900,
			Currency:  "EUR",
			Stock:     0,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := client.Collection(productCollection).Doc(productID).Set(ctx, seed); err != nil {
			t.Fatalf("seed product: %v", err)
		}

		pending := domain.Order{
			ID:          orderID,
			OrderNumber: "ORD-" + orderID,
			UserID:      "buyer-9",
			Status:      domain.OrderStatusPending,
			Currency:    "EUR",
			Items: []domain.OrderItem{
				{ProductID: productID, Name: "USB-C dock", UnitPrice: 4900, Quantity: 2},
			},
			Totals:    domain.OrderTotals{Subtotal: 9800, Total: 9800},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := client.Collection(orderCollection).Doc(orderID).Set(ctx, newOrderDocument(pending)); err != nil {
			t.Fatalf("seed order: %v", err)
		}

		cancelled := pending
		cancelled.Status = domain.OrderStatusCancelled
		cancelled.CancelReason = "changed my mind"
		cancelledAt := now.Add(time.Minute)
		cancelled.CancelledAt = &cancelledAt
		cancelled.UpdatedAt = cancelledAt

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.CancelAndRestock(ctx, cancelled)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			if !errors.Is(err, repositories.ErrOrderStatusConflict) {
				t.Fatalf("expected status conflict for the second cancel, got %v", err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("expected exactly one cancel to win, got %d", succeeded)
		}

		snapshot, err := client.Collection(productCollection).Doc(productID).Get(ctx)
		if err != nil {
			t.Fatalf("read product: %v", err)
		}
		var stored productDocument
		if err := snapshot.DataTo(&stored); err != nil {
			t.Fatalf("decode product: %v", err)
		}
		if stored.Stock != 2 {
			t.Fatalf("expected stock restored exactly once to 2, got %d", stored.Stock)
		}

		orderSnap, err := client.Collection(orderCollection).Doc(orderID).Get(ctx)
		if err != nil {
			t.Fatalf("read order: %v", err)
		}
		var storedOrder orderDocument
		if err := orderSnap.DataTo(&storedOrder); err != nil {
			t.Fatalf("decode order: %v", err)
		}
		if storedOrder.Status != string(domain.OrderStatusCancelled) {
			t.Fatalf("expected cancelled status stored, got %q", storedOrder.Status)
		}
	})

	t.Run("update guards against concurrent status change", func(t *testing.T) {
		const orderID = "o_update_guard"
		pending := domain.Order{
			ID:          orderID,
			OrderNumber: "ORD-" + orderID,
			UserID:      "buyer-3",
			Status:      domain.OrderStatusPending,
			Currency:    "EUR",
			Items: []domain.OrderItem{
				{ProductID: "prod_whatever", Name: "Keyboard", UnitPrice: 2500, Quantity: 1},
			},
			Totals:    domain.OrderTotals{Subtotal: 2500, Total: 2500},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := client.Collection(orderCollection).Doc(orderID).Set(ctx, newOrderDocument(pending)); err != nil {
			t.Fatalf("seed order: %v", err)
		}

		processing := pending
		processing.Status = domain.OrderStatusProcessing
		if err := repo.Update(ctx, processing, domain.OrderStatusPending); err != nil {
			t.Fatalf("first update: %v", err)
		}

		// Second writer still believes the order is pending.
		if err := repo.Update(ctx, processing, domain.OrderStatusPending); !errors.Is(err, repositories.ErrOrderStatusConflict) {
			t.Fatalf("expected status conflict for stale update, got %v", err)
		}
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Skipf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}
