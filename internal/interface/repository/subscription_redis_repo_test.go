package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisRepo(t *testing.T) (repository.SubscriptionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSubscriptionRepository(client), mr
}

func newSubscription(connectionID string) *entity.FlightSubscription {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return &entity.FlightSubscription{
		ConnectionID:          connectionID,
		AreaName:              entity.DefaultAreaName,
		Area:                  entity.BoundingBox{MinLatitude: -10, MaxLatitude: -9, MinLongitude: -40, MaxLongitude: -39},
		UpdateIntervalSeconds: entity.DefaultUpdateIntervalSeconds,
		IsActive:              true,
		CreatedAt:             now,
		LastUpdatedAt:         now,
	}
}

func TestRedisSubscriptionLifecycle(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, newSubscription("conn-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create did not assign an ID")
	}

	byConn, err := repo.GetByConnectionID(ctx, "conn-1")
	if err != nil {
		t.Fatalf("GetByConnectionID: %v", err)
	}
	if byConn.ID != created.ID || byConn.Area != created.Area {
		t.Errorf("GetByConnectionID = %+v", byConn)
	}

	later := created.LastUpdatedAt.Add(time.Minute)
	created.LastUpdatedAt = later
	if err := repo.Update(ctx, created); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := repo.GetByID(ctx, created.ID)
	if !got.LastUpdatedAt.Equal(later) {
		t.Errorf("LastUpdatedAt = %s, want %s", got.LastUpdatedAt, later)
	}

	if err := repo.DeleteByConnectionID(ctx, "conn-1"); err != nil {
		t.Fatalf("DeleteByConnectionID: %v", err)
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, repository.ErrSubscriptionNotFound) {
		t.Errorf("GetByID after delete: %v", err)
	}
	if _, err := repo.GetByConnectionID(ctx, "conn-1"); !errors.Is(err, repository.ErrSubscriptionNotFound) {
		t.Errorf("GetByConnectionID after delete: %v", err)
	}
}

func TestRedisListActive(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	active, _ := repo.Create(ctx, newSubscription("conn-a"))
	inactive := newSubscription("conn-b")
	inactive.IsActive = false
	repo.Create(ctx, inactive)

	subs, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != active.ID {
		t.Fatalf("ListActive = %v", subs)
	}

	active.IsActive = false
	repo.Update(ctx, active)
	subs, _ = repo.ListActive(ctx)
	if len(subs) != 0 {
		t.Errorf("deactivated subscription still listed")
	}
}

func TestRedisUpdateMissing(t *testing.T) {
	repo, _ := newRedisRepo(t)
	sub := newSubscription("conn-x")
	sub.ID = "missing"

	if err := repo.Update(context.Background(), sub); !errors.Is(err, repository.ErrSubscriptionNotFound) {
		t.Errorf("Update missing = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestRedisDeleteOldKeepsNewerConnectionIndex(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	old, _ := repo.Create(ctx, newSubscription("conn-1"))
	newer, _ := repo.Create(ctx, newSubscription("conn-1"))

	if err := repo.DeleteByID(ctx, old.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	got, err := repo.GetByConnectionID(ctx, "conn-1")
	if err != nil {
		t.Fatalf("GetByConnectionID: %v", err)
	}
	if got.ID != newer.ID {
		t.Errorf("connection index points at %s, want %s", got.ID, newer.ID)
	}
}

func TestRedisListActiveSkipsVanishedDocuments(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	sub, _ := repo.Create(ctx, newSubscription("conn-1"))
	mr.Del(subscriptionKey(sub.ID))

	subs, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("ListActive = %v, want none", subs)
	}
}
