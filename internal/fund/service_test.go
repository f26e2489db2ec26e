package fund

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

type fakeRepository struct {
	fund    *domain.Fund
	history []domain.AssetHistoryEntry
	saves   int
}

func (r *fakeRepository) Create(_ context.Context, f *domain.Fund) error {
	r.fund = f
	return nil
}

func (r *fakeRepository) Get(_ context.Context, id string) (*domain.Fund, error) {
	if r.fund == nil || r.fund.ID != id {
		return nil, domain.ErrFundNotFound
	}
	copied := *r.fund
	copied.Assets = slices.Clone(r.fund.Assets)
	return &copied, nil
}

func (r *fakeRepository) ListActive(_ context.Context) ([]domain.Fund, error) {
	if r.fund == nil {
		return nil, nil
	}
	return []domain.Fund{*r.fund}, nil
}

func (r *fakeRepository) Save(_ context.Context, f *domain.Fund, history []domain.AssetHistoryEntry) error {
	if r.fund.Version != f.Version {
		return domain.ErrVersionConflict
	}
	copied := *f
	copied.Assets = slices.Clone(f.Assets)
	copied.Version++
	r.fund = &copied
	f.Version++
	r.history = append(r.history, history...)
	r.saves++
	return nil
}

func (r *fakeRepository) ListHistory(_ context.Context, _ string, _ time.Time) ([]domain.AssetHistoryEntry, error) {
	return slices.Clone(r.history), nil
}

func (r *fakeRepository) SweepStatuses(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakePriceGetter struct {
	price string
	err   error
}

func (g *fakePriceGetter) GetPrice(_ context.Context, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.price, nil
}

func TestUpdateAssetRecordsPricedHistory(t *testing.T) {
	repo := &fakeRepository{fund: testFund()}
	svc := NewService(repo, &fakePriceGetter{price: "150"}, NewLocker())

	entry, err := svc.UpdateAsset(context.Background(), "fund-1", AssetUpdate{
		TokenAddress:  "SolMint",
		TokenSymbol:   "SOL",
		Amount:        "2",
		Operation:     OperationAdd,
		OperationType: domain.OperationOther,
	})
	if err != nil {
		t.Fatalf("UpdateAsset() error = %v", err)
	}
	if entry.AmountBefore != "10" || entry.AmountAfter != "12" {
		t.Errorf("entry transition = %s -> %s, want 10 -> 12", entry.AmountBefore, entry.AmountAfter)
	}
	if entry.TokenPrice != "150" {
		t.Errorf("TokenPrice = %q, want the registry price 150", entry.TokenPrice)
	}

	idx, found := repo.fund.AssetByAddress("SolMint")
	if !found {
		t.Fatal("SolMint entry missing after save")
	}
	if got := repo.fund.Assets[idx].Amount; got != "12" {
		t.Errorf("saved amount = %q, want 12", got)
	}
	if len(repo.history) != 1 {
		t.Errorf("history entries = %d, want 1", len(repo.history))
	}
}

func TestUpdateAssetDegradesPriceFailureToZero(t *testing.T) {
	repo := &fakeRepository{fund: testFund()}
	svc := NewService(repo, &fakePriceGetter{err: errors.New("feed down")}, NewLocker())

	entry, err := svc.UpdateAsset(context.Background(), "fund-1", AssetUpdate{
		TokenAddress:  "TokA",
		TokenSymbol:   "A",
		Amount:        "1",
		Operation:     OperationSubtract,
		OperationType: domain.OperationOther,
	})
	if err != nil {
		t.Fatalf("UpdateAsset() error = %v, quantity tracking must not block on the feed", err)
	}
	if entry.TokenPrice != "0" {
		t.Errorf("TokenPrice = %q, want degraded 0", entry.TokenPrice)
	}
	if entry.AmountAfter != "4" {
		t.Errorf("AmountAfter = %q, want 4", entry.AmountAfter)
	}
}

func TestUpdateAssetSubtractMissingFails(t *testing.T) {
	repo := &fakeRepository{fund: testFund()}
	svc := NewService(repo, &fakePriceGetter{price: "1"}, NewLocker())

	_, err := svc.UpdateAsset(context.Background(), "fund-1", AssetUpdate{
		TokenAddress:  "UNKNOWN",
		TokenSymbol:   "X",
		Amount:        "1",
		Operation:     OperationSubtract,
		OperationType: domain.OperationOther,
	})
	if !errors.Is(err, domain.ErrAssetNotFound) {
		t.Fatalf("UpdateAsset() error = %v, want ErrAssetNotFound", err)
	}
	if repo.saves != 0 {
		t.Error("failed update must not save")
	}
}
