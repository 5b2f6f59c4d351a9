package service

import (
	"context"
	"testing"

	"github.com/fieldops/taskboard/internal/domain"
)

func TestActivityListScenario(t *testing.T) {
	// supervisor 1 manages team member 2; user 3 is outside the team
	users := newFakeUsers(
		member("1", "Sup", domain.RoleSupervisor, ""),
		member("2", "Mem", domain.RoleTeamMember, "1"),
		member("3", "Out", domain.RoleTeamMember, ""),
	)
	logs := &fakeActivity{entries: []domain.ActivityLog{{ID: "a", UserID: "2"}, {ID: "b", UserID: "3"}}}
	scopes := NewScopeService(users, nil, nil, nil, nil)
	svc := NewActivityService(logs, scopes, nil)

	got, err := svc.List(context.Background(), sessionFor(users, "1"), ActivityQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("got %+v, want only log a", got)
	}

	got, err = svc.List(context.Background(), sessionFor(users, "2"), ActivityQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("team member got %+v", got)
	}

	got, err = svc.List(context.Background(), sessionFor(users, "1"), ActivityQuery{UserID: strPtr("3")})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("narrowed to invisible user: %+v", got)
	}
}

func TestActivityRecordOnNilService(t *testing.T) {
	var svc *ActivityService
	svc.Record(context.Background(), &domain.ActivityLog{UserID: "x"})
}
