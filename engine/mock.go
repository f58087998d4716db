// Package engine holds the adapters to the external notarization engine and
// testify mocks of its interfaces.
package engine

import (
	"context"

	"github.com/ruteri/tlsn-notary-demo/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockProver implements interfaces.Prover for testing.
type MockProver struct {
	mock.Mock
}

func (m *MockProver) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProver) Connect(ctx context.Context, host string, port int) error {
	args := m.Called(ctx, host, port)
	return args.Error(0)
}

func (m *MockProver) StartNotarize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProver) FinalizeNotarize(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Factory returns a ProverFactory that always hands out m.
func (m *MockProver) Factory() interfaces.ProverFactory {
	return func(string, int, string) (interfaces.Prover, error) {
		return m, nil
	}
}

// MockNotaryService implements interfaces.NotaryService for testing.
type MockNotaryService struct {
	mock.Mock
}

func (m *MockNotaryService) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockNotaryService) Stop(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var (
	_ interfaces.Prover        = (*MockProver)(nil)
	_ interfaces.NotaryService = (*MockNotaryService)(nil)
)
