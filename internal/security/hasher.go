package security

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Hasher bounds how many key derivations run at once. A derivation that has
// acquired its slot always runs to completion; only the wait honours ctx.
type Hasher struct {
	slots  *semaphore.Weighted
	params ScryptParams
	dummy  string
}

func NewHasher(concurrency int) (*Hasher, error) {
	return NewHasherWithParams(concurrency, defaultParams)
}

func NewHasherWithParams(concurrency int, params ScryptParams) (*Hasher, error) {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	dummy, err := HashPasswordWithParams("portal-dummy-credential", params)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Hasher{
		slots:  semaphore.NewWeighted(int64(concurrency)),
		params: params,
		dummy:  dummy,
	}, nil
}

func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.slots.Release(1)

	return HashPasswordWithParams(password, h.params)
}

func (h *Hasher) Compare(ctx context.Context, supplied, stored string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.slots.Release(1)

	return comparePasswordsWithParams(supplied, stored, h.params), nil
}

// DummyCompare burns the same work as a real mismatch. Used when the username
// does not exist so both failure paths take comparable time.
func (h *Hasher) DummyCompare(ctx context.Context, supplied string) error {
	_, err := h.Compare(ctx, supplied, h.dummy)
	return err
}
