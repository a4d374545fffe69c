package contract

import (
	"context"

	"github.com/huangsam/skysig/schema"
	"github.com/stretchr/testify/mock"
)

// MockRunSource is a mock implementation of RunSource for testing.
type MockRunSource struct {
	mock.Mock
}

var _ RunSource = &MockRunSource{} // Compile-time check

// OpenPair implements the RunSource interface.
func (m *MockRunSource) OpenPair(ctx context.Context, pair schema.RunPair) (PairHandle, error) {
	args := m.Called(ctx, pair)
	h, _ := args.Get(0).(PairHandle)
	return h, args.Error(1)
}

// StaticPairHandle serves fixed pair data and records whether it was closed.
type StaticPairHandle struct {
	Pair   *PairData
	Closed bool
}

var _ PairHandle = &StaticPairHandle{} // Compile-time check

// Data implements the PairHandle interface.
func (h *StaticPairHandle) Data() (*PairData, error) {
	return h.Pair, nil
}

// Close implements the PairHandle interface.
func (h *StaticPairHandle) Close() error {
	h.Closed = true
	return nil
}
