package rest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

type mockGameUseCase struct {
	mock.Mock
}

func newMockGameUseCase(t *testing.T) *mockGameUseCase {
	m := &mockGameUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockGameUseCase) GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error) {
	args := m.Called(ctx, id)
	player, _ := args.Get(0).(*entity.Player)

	return player, args.Error(1)
}

func (m *mockGameUseCase) CreateGame(ctx context.Context, playerID string) (*entity.Game, error) {
	args := m.Called(ctx, playerID)
	game, _ := args.Get(0).(*entity.Game)

	return game, args.Error(1)
}

func (m *mockGameUseCase) JoinGame(ctx context.Context, code, playerID string) (*entity.Game, entity.Mark, error) {
	args := m.Called(ctx, code, playerID)
	game, _ := args.Get(0).(*entity.Game)
	mark, _ := args.Get(1).(entity.Mark)

	return game, mark, args.Error(2)
}

func (m *mockGameUseCase) MakeMove(ctx context.Context, code, playerID string, subBoard, cell int) (*entity.Game, error) {
	args := m.Called(ctx, code, playerID, subBoard, cell)
	game, _ := args.Get(0).(*entity.Game)

	return game, args.Error(1)
}

func (m *mockGameUseCase) Resign(ctx context.Context, code, playerID string) (*entity.Game, error) {
	args := m.Called(ctx, code, playerID)
	game, _ := args.Get(0).(*entity.Game)

	return game, args.Error(1)
}

func (m *mockGameUseCase) GetGame(ctx context.Context, code string) (*entity.Game, error) {
	args := m.Called(ctx, code)
	game, _ := args.Get(0).(*entity.Game)

	return game, args.Error(1)
}

func (m *mockGameUseCase) GlobalStats(ctx context.Context) (*entity.GlobalStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*entity.GlobalStats)

	return stats, args.Error(1)
}

type mockStatsUseCase struct {
	mock.Mock
}

func newMockStatsUseCase(t *testing.T) *mockStatsUseCase {
	m := &mockStatsUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockStatsUseCase) GetPlayerStats(ctx context.Context, playerID string) (*entity.PlayerStats, error) {
	args := m.Called(ctx, playerID)
	stats, _ := args.Get(0).(*entity.PlayerStats)

	return stats, args.Error(1)
}
