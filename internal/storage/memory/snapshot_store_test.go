package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/storage"
)

func ptr(v float64) *float64 { return &v }

func testSnapshot() *domain.PositionSnapshot {
	return &domain.PositionSnapshot{
		Wallet: testWallet,
		AsOf:   1700000000000,
		Positions: []*domain.Position{
			{
				Mint:    mintTOKA,
				Balance: 100,
				Lots:    []domain.Lot{{Quantity: 100, UnitCost: 0.5}},
			},
		},
		Valuations: map[string]*domain.Valuation{
			mintTOKA: {Mint: mintTOKA, CurrentValue: ptr(45)},
		},
		UnrealizedPnL: ptr(15),
	}
}

func TestSnapshotStore_SaveAndGet(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Save(ctx, testSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, testWallet)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AsOf != 1700000000000 || len(got.Positions) != 1 {
		t.Errorf("Unexpected snapshot: %+v", got)
	}

	if _, err := store.Get(ctx, "unknown"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestSnapshotStore_SaveReplaces(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	first := testSnapshot()
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := testSnapshot()
	second.AsOf = 1700000100000
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, testWallet)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AsOf != 1700000100000 {
		t.Errorf("Expected the replacement snapshot, got AsOf %d", got.AsOf)
	}
}

func TestSnapshotStore_InvalidInput(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Save(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got: %v", err)
	}
	if err := store.Save(ctx, &domain.PositionSnapshot{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput without wallet, got: %v", err)
	}
}

func TestSnapshotStore_DeepCopyIsolation(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	original := testSnapshot()
	if err := store.Save(ctx, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutations of the saved value, nested slices and maps included, must
	// not reach the stored copy.
	original.Positions[0].Balance = 0
	original.Positions[0].Lots[0].Quantity = 0
	original.Valuations[mintTOKA].CurrentValue = nil
	*original.UnrealizedPnL = -1

	got, err := store.Get(ctx, testWallet)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Positions[0].Balance != 100 || got.Positions[0].Lots[0].Quantity != 100 {
		t.Error("Stored position shares state with the saved value")
	}
	if got.Valuations[mintTOKA].CurrentValue == nil || *got.Valuations[mintTOKA].CurrentValue != 45 {
		t.Error("Stored valuation shares state with the saved value")
	}
	if *got.UnrealizedPnL != 15 {
		t.Error("Stored aggregate shares state with the saved value")
	}

	// Read results are copies too.
	got.Positions[0].Balance = 7
	again, _ := store.Get(ctx, testWallet)
	if again.Positions[0].Balance != 100 {
		t.Error("Read result shares state with the store")
	}
}
