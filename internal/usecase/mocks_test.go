package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

type mockGameRepo struct {
	mock.Mock
}

func newMockGameRepo(t *testing.T) *mockGameRepo {
	m := &mockGameRepo{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockGameRepo) Create(ctx context.Context, game *entity.Game) error {
	return m.Called(ctx, game).Error(0)
}

func (m *mockGameRepo) Update(ctx context.Context, game *entity.Game, expectedRevision int64) error {
	return m.Called(ctx, game, expectedRevision).Error(0)
}

func (m *mockGameRepo) GetByCode(ctx context.Context, code string) (*entity.Game, error) {
	args := m.Called(ctx, code)
	game, _ := args.Get(0).(*entity.Game)

	return game, args.Error(1)
}

func (m *mockGameRepo) DeleteByCode(ctx context.Context, code string, expectedRevision int64) error {
	return m.Called(ctx, code, expectedRevision).Error(0)
}

func (m *mockGameRepo) List(ctx context.Context) ([]*entity.Game, error) {
	args := m.Called(ctx)
	games, _ := args.Get(0).([]*entity.Game)

	return games, args.Error(1)
}

type mockPlayerRepo struct {
	mock.Mock
}

func newMockPlayerRepo(t *testing.T) *mockPlayerRepo {
	m := &mockPlayerRepo{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockPlayerRepo) GetOrCreate(ctx context.Context, id string) (*entity.Player, error) {
	args := m.Called(ctx, id)
	player, _ := args.Get(0).(*entity.Player)

	return player, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func newMockPublisher(t *testing.T) *mockPublisher {
	m := &mockPublisher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockPublisher) Publish(ctx context.Context, event *entity.Event) error {
	return m.Called(ctx, event).Error(0)
}

type mockStatsRecorder struct {
	mock.Mock
}

func newMockStatsRecorder(t *testing.T) *mockStatsRecorder {
	m := &mockStatsRecorder{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockStatsRecorder) RecordGame(ctx context.Context, game *entity.Game) error {
	return m.Called(ctx, game).Error(0)
}
