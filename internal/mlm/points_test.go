package mlm

import (
	"context"
	"fmt"
	"testing"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"

	"gorm.io/gorm"
)

func TestPointsReachBuyerAndEveryAncestor(t *testing.T) {
	db := setupTestDB(t)
	e := newTestEngine(db)
	pkg := mustPackage(t, db, "Starter")

	const depth = 6
	var parent *model.User
	var chain []*model.User
	for i := 0; i <= depth; i++ {
		parent = newUser(t, db, fmt.Sprintf("member%d", i), parent, "Consultant", 0)
		chain = append(chain, parent)
	}
	buyer := chain[depth]

	out := runEngine(t, db, e, buyer, pkg)

	if len(out.Points) != depth+1 {
		t.Errorf("points earnings = %d, want %d", len(out.Points), depth+1)
	}

	var rows int64
	db.Model(&model.Earning{}).Where("type = ?", model.EarningTypePoints).Count(&rows)
	if rows != depth+1 {
		t.Errorf("points rows in storage = %d, want %d", rows, depth+1)
	}

	for _, u := range chain {
		if got := reload(t, db, u).Points; got != pkg.Points {
			t.Errorf("%s points = %d, want %d", u.Username, got, pkg.Points)
		}
	}
}

func TestZeroPointPackageWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	b := newUser(t, db, "bob", nil, "Consultant", 0)
	a := newUser(t, db, "alice", b, "Consultant", 0)
	pkg := mustPackage(t, db, "Starter")
	req := newRequest(t, db, a, pkg)

	p := NewPointsPropagator(repository.NewUserRepository(db), repository.NewEarningRepository(db), testIDs)
	err := db.Transaction(func(tx *gorm.DB) error {
		rows, err := p.Propagate(context.Background(), tx, req, 0, a, []*model.User{b})
		if len(rows) != 0 {
			t.Errorf("rows = %d, want 0", len(rows))
		}
		return err
	})
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}

	if n := countEarnings(t, db, a.ID, model.EarningTypePoints); n != 0 {
		t.Errorf("points earnings = %d, want 0", n)
	}
}
