package mlm

import (
	"context"
	"testing"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"

	"gorm.io/gorm"
)

func walk(t *testing.T, db *gorm.DB, start *model.User, maxDepth int) []*model.User {
	t.Helper()
	walker := NewChainWalker(repository.NewUserRepository(db), testLogger())

	var ancestors []*model.User
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		ancestors, err = walker.Walk(context.Background(), tx, start, maxDepth)
		return err
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	return ancestors
}

func ids(users []*model.User) []int64 {
	out := make([]int64, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWalkNearestFirst(t *testing.T) {
	db := setupTestDB(t)
	c := newUser(t, db, "carol", nil, "Consultant", 0)
	b := newUser(t, db, "bob", c, "Consultant", 0)
	a := newUser(t, db, "alice", b, "Consultant", 0)

	got := ids(walk(t, db, a, 20))
	want := []int64{b.ID, c.ID}
	if !equalIDs(got, want) {
		t.Errorf("ancestors = %v, want %v", got, want)
	}

	if got := walk(t, db, c, 20); len(got) != 0 {
		t.Errorf("root should have no ancestors, got %v", ids(got))
	}
}

func TestWalkRespectsMaxDepth(t *testing.T) {
	db := setupTestDB(t)
	var parent *model.User
	var chain []*model.User
	for _, name := range []string{"u0", "u1", "u2", "u3", "u4"} {
		parent = newUser(t, db, name, parent, "Consultant", 0)
		chain = append(chain, parent)
	}
	leaf := chain[len(chain)-1]

	got := ids(walk(t, db, leaf, 2))
	want := []int64{chain[3].ID, chain[2].ID}
	if !equalIDs(got, want) {
		t.Errorf("ancestors = %v, want %v", got, want)
	}
}

func TestWalkTruncatesAtMissingParent(t *testing.T) {
	db := setupTestDB(t)
	b := newUser(t, db, "bob", nil, "Consultant", 0)
	a := newUser(t, db, "alice", b, "Consultant", 0)

	missing := int64(999999)
	if err := db.Model(&model.User{}).Where("id = ?", b.ID).Update("parent_id", missing).Error; err != nil {
		t.Fatalf("update parent: %v", err)
	}

	got := ids(walk(t, db, a, 20))
	want := []int64{b.ID}
	if !equalIDs(got, want) {
		t.Errorf("ancestors = %v, want %v", got, want)
	}
}

func TestWalkStopsOnCycle(t *testing.T) {
	db := setupTestDB(t)
	x := newUser(t, db, "x", nil, "Consultant", 0)
	y := newUser(t, db, "y", x, "Consultant", 0)
	start := newUser(t, db, "start", x, "Consultant", 0)

	// x -> y -> x
	if err := db.Model(&model.User{}).Where("id = ?", x.ID).Update("parent_id", y.ID).Error; err != nil {
		t.Fatalf("update parent: %v", err)
	}

	got := ids(walk(t, db, start, 20))
	want := []int64{x.ID, y.ID}
	if !equalIDs(got, want) {
		t.Errorf("ancestors = %v, want %v", got, want)
	}
}

func TestWalkSelfReferenceIsEmpty(t *testing.T) {
	db := setupTestDB(t)
	a := newUser(t, db, "alice", nil, "Consultant", 0)
	if err := db.Model(&model.User{}).Where("id = ?", a.ID).Update("parent_id", a.ID).Error; err != nil {
		t.Fatalf("update parent: %v", err)
	}

	if got := walk(t, db, reload(t, db, a), 20); len(got) != 0 {
		t.Errorf("self-referencing user should have no ancestors, got %v", ids(got))
	}
}
