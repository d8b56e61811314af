package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iurnickita/posmart/internal/model"
	"github.com/iurnickita/posmart/internal/store"
)

// Key is where saved carts live, one JSON array per owner.
const Key = "savedCarts"

var (
	ErrEmptyCart    = errors.New("cannot save an empty cart")
	ErrNameRequired = errors.New("cart name is required")
	ErrNotFound     = errors.New("saved cart not found")
)

type Repository interface {
	List(ctx context.Context, owner string) ([]model.Snapshot, error)
	Save(ctx context.Context, owner string, name string, state model.CartState) (model.Snapshot, error)
	Get(ctx context.Context, owner string, id string) (model.Snapshot, error)
	Delete(ctx context.Context, owner string, id string) error
}

type repository struct {
	store store.Store
	now   func() time.Time
	mu    sync.Mutex
}

func NewRepository(store store.Store) Repository {
	return &repository{store: store, now: time.Now}
}

func key(owner string) string {
	if owner == "" {
		return Key
	}
	return Key + ":" + owner
}

func (repo *repository) read(ctx context.Context, owner string) ([]model.Snapshot, error) {
	data, err := repo.store.Get(ctx, key(owner))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []model.Snapshot{}, nil
		}
		return nil, err
	}

	var snapshots []model.Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("decode saved carts: %w", err)
	}
	return snapshots, nil
}

func (repo *repository) write(ctx context.Context, owner string, snapshots []model.Snapshot) error {
	data, err := json.Marshal(snapshots)
	if err != nil {
		return fmt.Errorf("encode saved carts: %w", err)
	}
	return repo.store.Set(ctx, key(owner), data)
}

func (repo *repository) List(ctx context.Context, owner string) ([]model.Snapshot, error) {
	return repo.read(ctx, owner)
}

func (repo *repository) Save(ctx context.Context, owner string, name string, state model.CartState) (model.Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Snapshot{}, ErrNameRequired
	}
	if len(state.Lines) == 0 {
		return model.Snapshot{}, ErrEmptyCart
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	snapshots, err := repo.read(ctx, owner)
	if err != nil {
		return model.Snapshot{}, err
	}

	created := repo.now()
	id := created.UnixMilli()
	// ids are creation timestamps; keep them unique within one list
	for _, s := range snapshots {
		if existing, err := strconv.ParseInt(s.ID, 10, 64); err == nil && existing >= id {
			id = existing + 1
		}
	}

	snapshot := model.Snapshot{
		ID:        strconv.FormatInt(id, 10),
		Name:      name,
		CreatedAt: created,
		State:     state,
	}
	snapshots = append(snapshots, snapshot)
	if err := repo.write(ctx, owner, snapshots); err != nil {
		return model.Snapshot{}, err
	}
	return snapshot, nil
}

func (repo *repository) Get(ctx context.Context, owner string, id string) (model.Snapshot, error) {
	snapshots, err := repo.read(ctx, owner)
	if err != nil {
		return model.Snapshot{}, err
	}
	for _, s := range snapshots {
		if s.ID == id {
			return s, nil
		}
	}
	return model.Snapshot{}, ErrNotFound
}

func (repo *repository) Delete(ctx context.Context, owner string, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	snapshots, err := repo.read(ctx, owner)
	if err != nil {
		return err
	}

	kept := snapshots[:0]
	found := false
	for _, s := range snapshots {
		if s.ID == id {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return ErrNotFound
	}
	return repo.write(ctx, owner, kept)
}
