package service

import (
	"context"
	"errors"
	"testing"

	"mlmsystem/internal/repository"
)

func TestRegisterResolvesReferrerCaseInsensitively(t *testing.T) {
	env := setupTestEnv(t)

	root := env.register(t, "RootUser", "")
	if root.ParentID != nil {
		t.Errorf("root parent = %v, want nil", *root.ParentID)
	}
	if root.RankID != env.rankID(t, "Consultant") {
		t.Error("new members start at the lowest rank")
	}

	child := env.register(t, "child", "rootuser")
	if child.ParentID == nil || *child.ParentID != root.ID {
		t.Fatalf("child parent = %v, want %d", child.ParentID, root.ID)
	}

	downline, err := env.users.ListDownline(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("list downline: %v", err)
	}
	if len(downline) != 1 || downline[0].ID != child.ID {
		t.Errorf("downline = %v", downline)
	}
}

func TestRegisterErrors(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.register(t, "Alice", "")

	tests := []struct {
		name     string
		username string
		referrer string
		wantErr  error
	}{
		{"duplicate ignoring case", "ALICE", "", repository.ErrDuplicateUsername},
		{"unknown referrer", "bob", "nobody", ErrReferrerNotFound},
		{"blank username", "   ", "", ErrInvalidUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.Register(ctx, tt.username, tt.referrer)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetStatus(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice", "")

	if err := env.users.SetStatus(ctx, u.ID, "frozen"); !errors.Is(err, ErrInvalidUserStatus) {
		t.Errorf("err = %v, want ErrInvalidUserStatus", err)
	}
	if err := env.users.SetStatus(ctx, 999, "inactive"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
	if err := env.users.SetStatus(ctx, u.ID, "inactive"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if got := env.user(t, u.ID).Status; got != "inactive" {
		t.Errorf("status = %s", got)
	}
}

func TestListEarningsPaginates(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	b := env.register(t, "bob", "")
	for _, name := range []string{"a1", "a2", "a3"} {
		a := env.register(t, name, "bob")
		pr := env.submit(t, a)
		if _, err := env.approval.ApprovePackageRequest(ctx, pr.ID); err != nil {
			t.Fatalf("approve %s: %v", name, err)
		}
	}

	// 每次审核：直推佣金 + 积分 各一条
	list, total, err := env.users.ListEarnings(ctx, b.ID, 1, 4)
	if err != nil {
		t.Fatalf("list earnings: %v", err)
	}
	if total != 6 {
		t.Errorf("total = %d, want 6", total)
	}
	if len(list) != 4 {
		t.Errorf("page size = %d, want 4", len(list))
	}

	list, _, err = env.users.ListEarnings(ctx, b.ID, 2, 4)
	if err != nil {
		t.Fatalf("list earnings: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("second page = %d, want 2", len(list))
	}
}
