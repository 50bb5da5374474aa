package brandaccess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	users map[int64]User
	perms map[string][]string
	all   []Permission
}

func (f *fakeRepo) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) GetUserByUsername(_ context.Context, username string) (User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeRepo) RolePermissions(_ context.Context, role string) ([]string, error) {
	return f.perms[role], nil
}

func (f *fakeRepo) SetUserBrands(_ context.Context, userID int64, brands []string) error {
	u := f.users[userID]
	u.Brands = brands
	f.users[userID] = u
	return nil
}

func (f *fakeRepo) ListPermissions(_ context.Context) ([]Permission, error) {
	return f.all, nil
}

func TestEffectivePermissionsByRole(t *testing.T) {
	repo := &fakeRepo{
		users: map[int64]User{
			1: {ID: 1, Username: "planner", Role: "logistics", Brands: []string{"ACME"}},
		},
		perms: map[string][]string{
			"logistics": {"shipments.write", "reports.read"},
		},
	}
	svc := NewService(repo)

	perms, err := svc.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"shipments.write", "reports.read"}, perms)
}

func TestAdminHoldsEveryPermission(t *testing.T) {
	repo := &fakeRepo{
		users: map[int64]User{
			7: {ID: 7, Username: "root", Role: "admin"},
		},
		all: []Permission{
			{ID: 1, Name: "shipments.write"},
			{ID: 2, Name: "po.delete"},
		},
	}
	svc := NewService(repo)

	perms, err := svc.EffectivePermissions(context.Background(), 7)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"shipments.write", "po.delete"}, perms)
}

func TestSetBrandsTrimsBlanks(t *testing.T) {
	repo := &fakeRepo{users: map[int64]User{2: {ID: 2, Username: "ops", Role: "logistics"}}}
	svc := NewService(repo)

	require.NoError(t, svc.SetBrands(context.Background(), 2, []string{" ACME ", "", "NOVA"}))
	require.Equal(t, []string{"ACME", "NOVA"}, repo.users[2].Brands)
}
