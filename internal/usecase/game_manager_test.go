package usecase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

var (
	errRedisDown = errors.New("redis down")
	errSomeError = errors.New("some error")
)

var (
	gameStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	gameNow   = gameStart.Add(5 * time.Minute)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type managerFixture struct {
	manager   *GameManager
	games     *mockGameRepo
	players   *mockPlayerRepo
	publisher *mockPublisher
	stats     *mockStatsRecorder
}

func newManagerFixture(t *testing.T) *managerFixture {
	f := &managerFixture{
		games:     newMockGameRepo(t),
		players:   newMockPlayerRepo(t),
		publisher: newMockPublisher(t),
		stats:     newMockStatsRecorder(t),
	}

	f.manager = NewGameManager(testLogger(), GameManagerConfig{CodeLength: 5, MaxCodeAttempts: 3},
		f.players, f.games, f.publisher, f.stats)
	f.manager.now = func() time.Time { return gameNow }

	return f
}

func codes(values ...string) func(int) (string, error) {
	i := 0
	return func(int) (string, error) {
		code := values[i%len(values)]
		i++
		return code, nil
	}
}

func waitingGame() *entity.Game {
	return entity.NewGame("ABCDE", "p1", gameStart)
}

func activeGame() *entity.Game {
	game := waitingGame()
	game.Player2 = "p2"
	game.Status = entity.StatusActive
	start := gameStart
	game.StartedAt = &start
	game.Revision = 1

	return game
}

func intPtr(v int) *int {
	return &v
}

func TestGameManager_CreateGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates a waiting game with the requester as X", func(t *testing.T) {
		// Given: a known player and a free code
		f := newManagerFixture(t)
		f.manager.generateCode = codes("AAAAA")

		f.players.On("GetOrCreate", mock.Anything, "p1").Return(&entity.Player{ID: "p1"}, nil).Once()
		f.games.On("Create", mock.Anything, mock.MatchedBy(func(game *entity.Game) bool {
			return game.Code == "AAAAA" && game.Player1 == "p1" && game.IsWaiting()
		})).Return(nil).Once()

		// When: CreateGame is called
		game, err := f.manager.CreateGame(ctx, "p1")

		// Then: the game is waiting, X to move, nothing published
		require.NoError(t, err)
		assert.Equal(t, "AAAAA", game.Code)
		assert.Equal(t, entity.PlayerX, game.State.Turn)
		assert.Equal(t, gameNow, game.CreatedAt)
		assert.Zero(t, game.Revision)
	})

	t.Run("Code collision is retried with a new code", func(t *testing.T) {
		// Given: the first code is taken
		f := newManagerFixture(t)
		f.manager.generateCode = codes("AAAAA", "BBBBB")

		f.players.On("GetOrCreate", mock.Anything, "p1").Return(&entity.Player{ID: "p1"}, nil).Once()
		f.games.On("Create", mock.Anything, mock.MatchedBy(func(game *entity.Game) bool {
			return game.Code == "AAAAA"
		})).Return(apperror.ErrGameAlreadyExists).Once()
		f.games.On("Create", mock.Anything, mock.MatchedBy(func(game *entity.Game) bool {
			return game.Code == "BBBBB"
		})).Return(nil).Once()

		// When: CreateGame is called
		game, err := f.manager.CreateGame(ctx, "p1")

		// Then: the second code is used
		require.NoError(t, err)
		assert.Equal(t, "BBBBB", game.Code)
	})

	t.Run("Gives up after the configured number of collisions", func(t *testing.T) {
		f := newManagerFixture(t)
		f.manager.generateCode = codes("AAAAA")

		f.players.On("GetOrCreate", mock.Anything, "p1").Return(&entity.Player{ID: "p1"}, nil).Once()
		f.games.On("Create", mock.Anything, mock.Anything).Return(apperror.ErrGameAlreadyExists).Times(3)

		game, err := f.manager.CreateGame(ctx, "p1")

		require.ErrorIs(t, err, apperror.ErrGameAlreadyExists)
		assert.Nil(t, game)
	})

	t.Run("Empty identity is issued before creating", func(t *testing.T) {
		f := newManagerFixture(t)
		f.manager.generateCode = codes("AAAAA")

		f.players.On("GetOrCreate", mock.Anything, "").Return(&entity.Player{ID: "issued"}, nil).Once()
		f.games.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		game, err := f.manager.CreateGame(ctx, "")

		require.NoError(t, err)
		assert.Equal(t, "issued", game.Player1)
	})

	t.Run("Storage failure is returned", func(t *testing.T) {
		f := newManagerFixture(t)
		f.manager.generateCode = codes("AAAAA")

		f.players.On("GetOrCreate", mock.Anything, "p1").Return(&entity.Player{ID: "p1"}, nil).Once()
		f.games.On("Create", mock.Anything, mock.Anything).Return(errRedisDown).Once()

		_, err := f.manager.CreateGame(ctx, "p1")

		require.ErrorIs(t, err, errRedisDown)
	})
}

func TestGameManager_JoinGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Second player joins as O and the game becomes active", func(t *testing.T) {
		// Given: a waiting game created by p1
		f := newManagerFixture(t)

		f.players.On("GetOrCreate", mock.Anything, "p2").Return(&entity.Player{ID: "p2"}, nil).Once()
		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(waitingGame(), nil).Once()
		f.games.On("Update", mock.Anything, mock.MatchedBy(func(game *entity.Game) bool {
			return game.IsActive() && game.Player2 == "p2" && game.Revision == 1
		}), int64(0)).Return(nil).Once()
		f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(event *entity.Event) bool {
			return event.Kind == entity.EventPlayerJoined && event.Revision == 1 &&
				event.Metadata["mark"] == entity.PlayerO && event.State.Seats[entity.PlayerO]
		})).Return(nil).Once()

		// When: p2 joins with a lower-case code
		game, mark, err := f.manager.JoinGame(ctx, "abcde", "p2")

		// Then: p2 holds O and the clock started
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerO, mark)
		assert.True(t, game.IsActive())
		require.NotNil(t, game.StartedAt)
		assert.Equal(t, gameNow, *game.StartedAt)
	})

	t.Run("Participant joining again gets their mark back without a change", func(t *testing.T) {
		f := newManagerFixture(t)

		f.players.On("GetOrCreate", mock.Anything, "p1").Return(&entity.Player{ID: "p1"}, nil).Once()
		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(waitingGame(), nil).Once()

		game, mark, err := f.manager.JoinGame(ctx, "ABCDE", "p1")

		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, mark)
		assert.True(t, game.IsWaiting())
	})

	t.Run("Joiner of an active game reconnects as O", func(t *testing.T) {
		f := newManagerFixture(t)

		f.players.On("GetOrCreate", mock.Anything, "p2").Return(&entity.Player{ID: "p2"}, nil).Once()
		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(activeGame(), nil).Once()

		_, mark, err := f.manager.JoinGame(ctx, "ABCDE", "p2")

		require.NoError(t, err)
		assert.Equal(t, entity.PlayerO, mark)
	})

	t.Run("Third player is refused", func(t *testing.T) {
		f := newManagerFixture(t)

		f.players.On("GetOrCreate", mock.Anything, "p3").Return(&entity.Player{ID: "p3"}, nil).Once()
		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(activeGame(), nil).Once()

		_, _, err := f.manager.JoinGame(ctx, "ABCDE", "p3")

		require.ErrorIs(t, err, apperror.ErrGameNotWaiting)
	})

	t.Run("Unknown code is not found", func(t *testing.T) {
		f := newManagerFixture(t)

		f.players.On("GetOrCreate", mock.Anything, "p2").Return(&entity.Player{ID: "p2"}, nil).Once()
		f.games.On("GetByCode", mock.Anything, "ZZZZ").Return(nil, apperror.ErrGameNotFound).Once()

		_, _, err := f.manager.JoinGame(ctx, "ZZZZ", "p2")

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})

	t.Run("Malformed code is refused before any lookup", func(t *testing.T) {
		f := newManagerFixture(t)

		_, _, err := f.manager.JoinGame(ctx, "AB!", "p2")

		require.ErrorIs(t, err, apperror.ErrInvalidCode)
	})

	t.Run("Failed save publishes nothing", func(t *testing.T) {
		f := newManagerFixture(t)

		f.players.On("GetOrCreate", mock.Anything, "p2").Return(&entity.Player{ID: "p2"}, nil).Once()
		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(waitingGame(), nil).Once()
		f.games.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(errRedisDown).Once()

		_, _, err := f.manager.JoinGame(ctx, "ABCDE", "p2")

		require.ErrorIs(t, err, errRedisDown)
	})

	t.Run("Game changed by another node is a conflict and publishes nothing", func(t *testing.T) {
		// Given: the store refuses the save because the revision moved
		f := newManagerFixture(t)

		f.players.On("GetOrCreate", mock.Anything, "p2").Return(&entity.Player{ID: "p2"}, nil).Once()
		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(waitingGame(), nil).Once()
		f.games.On("Update", mock.Anything, mock.Anything, int64(0)).Return(apperror.ErrGameConflict).Once()

		// When: p2 joins
		_, mark, err := f.manager.JoinGame(ctx, "ABCDE", "p2")

		// Then: the caller learns the seat was not taken
		require.ErrorIs(t, err, apperror.ErrGameConflict)
		assert.Equal(t, entity.EmptyCell, mark)
	})
}

func TestGameManager_MakeMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Accepted move is saved then published", func(t *testing.T) {
		// Given: an active game
		f := newManagerFixture(t)
		stored := activeGame()

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(stored, nil).Once()
		f.games.On("Update", mock.Anything, mock.MatchedBy(func(game *entity.Game) bool {
			return game.State.Board.SubBoards[0][4] == entity.PlayerX && game.Revision == 2
		}), int64(1)).Return(nil).Once()
		f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(event *entity.Event) bool {
			return event.Kind == entity.EventMoveMade &&
				event.Revision == 2 &&
				event.Metadata["mark"] == entity.PlayerX &&
				event.Metadata["sub_board"] == 0 &&
				event.Metadata["cell"] == 4 &&
				event.State.Board.SubBoards[0][4] == entity.PlayerX
		})).Return(nil).Once()

		// When: X plays (0,4)
		game, err := f.manager.MakeMove(ctx, "ABCDE", "p1", 0, 4)

		// Then: the returned game reflects the move
		require.NoError(t, err)
		assert.Equal(t, 1, game.MoveCount)
		assert.Equal(t, &entity.Move{SubBoard: 0, Cell: 4, Mark: entity.PlayerX}, game.LastMove)
		assert.Equal(t, intPtr(4), game.State.ActiveSubBoard)
		assert.Equal(t, entity.PlayerO, game.State.Turn)
		require.NotNil(t, game.LastMoveAt)

		// And: the loaded game was not mutated
		assert.Equal(t, entity.EmptyCell, stored.State.Board.SubBoards[0][4])
	})

	t.Run("Rejected move is neither saved nor published", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(activeGame(), nil).Once()

		_, err := f.manager.MakeMove(ctx, "ABCDE", "p2", 0, 0)

		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, apperror.CodeNotYourTurn, apperror.CodeOf(err))
	})

	t.Run("Stranger is forbidden", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(activeGame(), nil).Once()

		_, err := f.manager.MakeMove(ctx, "ABCDE", "p3", 0, 0)

		require.ErrorIs(t, err, apperror.ErrNotParticipant)
	})

	t.Run("Waiting game is not active yet", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(waitingGame(), nil).Once()

		_, err := f.manager.MakeMove(ctx, "ABCDE", "p1", 0, 0)

		require.ErrorIs(t, err, apperror.ErrGameNotActive)
	})

	t.Run("Failed save aborts before publish and stats", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(activeGame(), nil).Once()
		f.games.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(errRedisDown).Once()

		_, err := f.manager.MakeMove(ctx, "ABCDE", "p1", 0, 0)

		require.ErrorIs(t, err, errRedisDown)
	})

	t.Run("Failed publish does not fail the move", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(activeGame(), nil).Once()
		f.games.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(errSomeError).Once()

		game, err := f.manager.MakeMove(ctx, "ABCDE", "p1", 0, 0)

		require.NoError(t, err)
		assert.Equal(t, int64(2), game.Revision)
	})

	t.Run("Winning move completes the game and records stats once", func(t *testing.T) {
		// Given: X one sub-board away from the top row
		f := newManagerFixture(t)
		stored := activeGame()
		stored.State.Board.SubBoardWinners = [9]entity.Mark{entity.PlayerX, entity.PlayerX}
		stored.State.Board.SubBoards[2] = [9]entity.Mark{entity.PlayerX, entity.PlayerX}
		stored.State.ActiveSubBoard = intPtr(2)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(stored, nil).Once()
		f.games.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()
		f.stats.On("RecordGame", mock.Anything, mock.MatchedBy(func(game *entity.Game) bool {
			return game.IsCompleted() && game.EndReason == entity.EndReasonWin
		})).Return(nil).Once()

		// When: X wins sub-board 2
		game, err := f.manager.MakeMove(ctx, "ABCDE", "p1", 2, 2)

		// Then: the game is completed with X as winner
		require.NoError(t, err)
		assert.True(t, game.IsCompleted())
		assert.Equal(t, entity.PlayerX, game.State.WinnerMark)
		require.NotNil(t, game.EndedAt)
		assert.Equal(t, int64(300), game.DurationSeconds())
	})

	t.Run("Last sub-board drawn ends the game as a draw", func(t *testing.T) {
		f := newManagerFixture(t)
		stored := activeGame()
		x, o, d := entity.PlayerX, entity.PlayerO, entity.PlayerTie
		stored.State.Board.SubBoardWinners = [9]entity.Mark{x, o, x, x, o, o, o, x, entity.EmptyCell}
		stored.State.Board.SubBoards[8] = [9]entity.Mark{x, o, x, x, o, o, o, x, entity.EmptyCell}
		stored.State.ActiveSubBoard = intPtr(8)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(stored, nil).Once()
		f.games.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(event *entity.Event) bool {
			return event.Metadata["sub_board_state"] == d
		})).Return(nil).Once()
		f.stats.On("RecordGame", mock.Anything, mock.Anything).Return(nil).Once()

		game, err := f.manager.MakeMove(ctx, "ABCDE", "p1", 8, 8)

		require.NoError(t, err)
		assert.Equal(t, entity.EndReasonDraw, game.EndReason)
		assert.Equal(t, entity.EmptyCell, game.State.WinnerMark)
	})

	t.Run("Stats failure does not fail the move", func(t *testing.T) {
		f := newManagerFixture(t)
		stored := activeGame()
		stored.State.Board.SubBoardWinners = [9]entity.Mark{entity.PlayerX, entity.PlayerX}
		stored.State.Board.SubBoards[2] = [9]entity.Mark{entity.PlayerX, entity.PlayerX}

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(stored, nil).Once()
		f.games.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()
		f.stats.On("RecordGame", mock.Anything, mock.Anything).Return(errSomeError).Once()

		game, err := f.manager.MakeMove(ctx, "ABCDE", "p1", 2, 2)

		require.NoError(t, err)
		assert.True(t, game.IsCompleted())
	})

	t.Run("Move after the end is rejected as game over", func(t *testing.T) {
		f := newManagerFixture(t)
		stored := activeGame()
		stored.State.GameOver = true
		stored.State.WinnerMark = entity.PlayerO
		stored.Finish(entity.EndReasonResign, gameNow)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(stored, nil).Once()

		_, err := f.manager.MakeMove(ctx, "ABCDE", "p1", 0, 0)

		require.ErrorIs(t, err, apperror.ErrGameAlreadyOver)
	})
}

func TestGameManager_Resign(t *testing.T) {
	ctx := context.Background()

	t.Run("Resignation by O hands the game to X", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(activeGame(), nil).Once()
		f.games.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(event *entity.Event) bool {
			return event.Kind == entity.EventPlayerResigned &&
				event.Metadata["resigning_mark"] == entity.PlayerO &&
				event.Metadata["winner_mark"] == entity.PlayerX
		})).Return(nil).Once()
		f.stats.On("RecordGame", mock.Anything, mock.MatchedBy(func(game *entity.Game) bool {
			outcomes := game.Outcomes()
			return outcomes["p1"] == entity.ResultWin && outcomes["p2"] == entity.ResultAbandon
		})).Return(nil).Once()

		game, err := f.manager.Resign(ctx, "ABCDE", "p2")

		require.NoError(t, err)
		assert.Equal(t, entity.EndReasonResign, game.EndReason)
		assert.Equal(t, entity.PlayerX, game.State.WinnerMark)
		assert.True(t, game.IsCompleted())
	})

	t.Run("Resigning a finished game is rejected", func(t *testing.T) {
		f := newManagerFixture(t)
		stored := activeGame()
		stored.State.GameOver = true
		stored.Finish(entity.EndReasonDraw, gameNow)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(stored, nil).Once()

		_, err := f.manager.Resign(ctx, "ABCDE", "p1")

		require.ErrorIs(t, err, apperror.ErrGameAlreadyOver)
	})

	t.Run("Resigning a waiting game is a conflict", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(waitingGame(), nil).Once()

		_, err := f.manager.Resign(ctx, "ABCDE", "p1")

		require.ErrorIs(t, err, apperror.ErrGameNotActive)
	})

	t.Run("Stranger cannot resign", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(activeGame(), nil).Once()

		_, err := f.manager.Resign(ctx, "ABCDE", "p3")

		require.ErrorIs(t, err, apperror.ErrNotParticipant)
	})
}

func TestGameManager_GlobalStats(t *testing.T) {
	f := newManagerFixture(t)

	finished := activeGame()
	finished.MoveCount = 30
	finished.Finish(entity.EndReasonWin, gameNow)

	f.games.On("List", mock.Anything).Return([]*entity.Game{waitingGame(), activeGame(), finished}, nil).Once()

	stats, err := f.manager.GlobalStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalGames)
	assert.Equal(t, 1, stats.ActiveGames)
	assert.Equal(t, 1, stats.CompletedGames)
	assert.InDelta(t, 300, stats.AverageDurationSeconds, 0.001)
	assert.InDelta(t, 30, stats.AverageMoves, 0.001)
}

func TestGameManager_PurgeGame(t *testing.T) {
	ctx := context.Background()
	always := func(*entity.Game) bool { return true }

	t.Run("Expired finished game has stats reconciled then is deleted", func(t *testing.T) {
		f := newManagerFixture(t)
		stored := activeGame()
		stored.Finish(entity.EndReasonWin, gameNow)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(stored, nil).Once()
		f.stats.On("RecordGame", mock.Anything, stored).Return(nil).Once()
		f.games.On("DeleteByCode", mock.Anything, "ABCDE", int64(1)).Return(nil).Once()

		purged, err := f.manager.PurgeGame(ctx, "ABCDE", always)

		require.NoError(t, err)
		assert.True(t, purged)
	})

	t.Run("Expired waiting game is deleted without stats", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(waitingGame(), nil).Once()
		f.games.On("DeleteByCode", mock.Anything, "ABCDE", int64(0)).Return(nil).Once()

		purged, err := f.manager.PurgeGame(ctx, "ABCDE", always)

		require.NoError(t, err)
		assert.True(t, purged)
	})

	t.Run("Game that changed since listing is kept", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(activeGame(), nil).Once()

		purged, err := f.manager.PurgeGame(ctx, "ABCDE", func(*entity.Game) bool { return false })

		require.NoError(t, err)
		assert.False(t, purged)
	})

	t.Run("Stats failure keeps the game", func(t *testing.T) {
		f := newManagerFixture(t)
		stored := activeGame()
		stored.Finish(entity.EndReasonWin, gameNow)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(stored, nil).Once()
		f.stats.On("RecordGame", mock.Anything, stored).Return(errSomeError).Once()

		purged, err := f.manager.PurgeGame(ctx, "ABCDE", always)

		require.ErrorIs(t, err, errSomeError)
		assert.False(t, purged)
	})

	t.Run("Already deleted game is skipped", func(t *testing.T) {
		f := newManagerFixture(t)

		f.games.On("GetByCode", mock.Anything, "ABCDE").Return(nil, apperror.ErrGameNotFound).Once()

		purged, err := f.manager.PurgeGame(ctx, "ABCDE", always)

		require.NoError(t, err)
		assert.False(t, purged)
	})
}

// memoryGames is a goroutine-safe game store for concurrency tests.
type memoryGames struct {
	mu    sync.Mutex
	games map[string]*entity.Game
}

func (m *memoryGames) Create(_ context.Context, game *entity.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[game.Code]; ok {
		return apperror.ErrGameAlreadyExists
	}
	m.games[game.Code] = game.Clone()

	return nil
}

// Update mirrors the revision check of the redis store.
func (m *memoryGames) Update(_ context.Context, game *entity.Game, expectedRevision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.games[game.Code]
	if !ok {
		return apperror.ErrGameNotFound
	}

	if stored.Revision != expectedRevision {
		return apperror.ErrGameConflict
	}

	m.games[game.Code] = game.Clone()

	return nil
}

func (m *memoryGames) GetByCode(_ context.Context, code string) (*entity.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	game, ok := m.games[code]
	if !ok {
		return nil, apperror.ErrGameNotFound
	}

	return game.Clone(), nil
}

func (m *memoryGames) DeleteByCode(_ context.Context, code string, expectedRevision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.games[code]
	if !ok {
		return apperror.ErrGameNotFound
	}

	if stored.Revision != expectedRevision {
		return apperror.ErrGameConflict
	}

	delete(m.games, code)

	return nil
}

// lockstepGames holds every reader until `readers` reads have happened, so that
// writers in separate managers all act on the same revision.
type lockstepGames struct {
	*memoryGames
	reads sync.WaitGroup
}

func newLockstepGames(games *memoryGames, readers int) *lockstepGames {
	store := &lockstepGames{memoryGames: games}
	store.reads.Add(readers)

	return store
}

func (l *lockstepGames) GetByCode(ctx context.Context, code string) (*entity.Game, error) {
	game, err := l.memoryGames.GetByCode(ctx, code)

	l.reads.Done()
	l.reads.Wait()

	return game, err
}

func (m *memoryGames) List(_ context.Context) ([]*entity.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	games := make([]*entity.Game, 0, len(m.games))
	for _, game := range m.games {
		games = append(games, game.Clone())
	}

	return games, nil
}

type echoPlayers struct{}

func (echoPlayers) GetOrCreate(_ context.Context, id string) (*entity.Player, error) {
	return &entity.Player{ID: id}, nil
}

type noopStats struct{}

func (noopStats) RecordGame(context.Context, *entity.Game) error {
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*entity.Event
}

func (r *recordingPublisher) Publish(_ context.Context, event *entity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return nil
}

func TestGameManager_SingleWriter(t *testing.T) {
	ctx := context.Background()

	t.Run("Concurrent joins seat exactly one player", func(t *testing.T) {
		// Given: a waiting game and ten players racing to join
		games := &memoryGames{games: map[string]*entity.Game{"ABCDE": waitingGame()}}
		events := &recordingPublisher{}
		manager := NewGameManager(testLogger(), GameManagerConfig{CodeLength: 5, MaxCodeAttempts: 3},
			echoPlayers{}, games, events, noopStats{})

		var wg sync.WaitGroup
		results := make(chan error, 10)

		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()

				_, _, err := manager.JoinGame(ctx, "ABCDE", string(rune('a'+i)))
				results <- err
			}()
		}

		// When: all joins finish
		wg.Wait()
		close(results)

		// Then: one succeeded, the rest saw a full game
		joined := 0
		for err := range results {
			if err == nil {
				joined++
				continue
			}
			require.ErrorIs(t, err, apperror.ErrGameNotWaiting)
		}

		assert.Equal(t, 1, joined)
		assert.Len(t, events.events, 1)
	})

	t.Run("Published revisions follow the order of mutations", func(t *testing.T) {
		// Given: an active game
		games := &memoryGames{games: map[string]*entity.Game{"ABCDE": activeGame()}}
		events := &recordingPublisher{}
		manager := NewGameManager(testLogger(), GameManagerConfig{CodeLength: 5, MaxCodeAttempts: 3},
			echoPlayers{}, games, events, noopStats{})

		// When: both players hammer the same game concurrently
		var wg sync.WaitGroup
		for _, player := range []string{"p1", "p2"} {
			wg.Add(1)
			go func() {
				defer wg.Done()

				for sub := range 9 {
					for cell := range 9 {
						_, _ = manager.MakeMove(ctx, "ABCDE", player, sub, cell)
					}
				}
			}()
		}
		wg.Wait()

		// Then: every accepted move produced exactly one event, in revision order
		stored, err := games.GetByCode(ctx, "ABCDE")
		require.NoError(t, err)
		require.Len(t, events.events, stored.MoveCount)

		for i, event := range events.events {
			assert.Equal(t, int64(i+2), event.Revision)
		}
	})
}

func TestGameManager_SeparateNodes(t *testing.T) {
	ctx := context.Background()

	newNode := func(games gameRepo, events *recordingPublisher) *GameManager {
		return NewGameManager(testLogger(), GameManagerConfig{CodeLength: 5, MaxCodeAttempts: 3},
			echoPlayers{}, games, events, noopStats{})
	}

	t.Run("Joins read at the same revision seat one player", func(t *testing.T) {
		// Given: two nodes with their own locks over one store, both reading before either writes
		shared := &memoryGames{games: map[string]*entity.Game{"ABCDE": waitingGame()}}
		store := newLockstepGames(shared, 2)
		events := &recordingPublisher{}
		nodes := []*GameManager{newNode(store, events), newNode(store, events)}
		players := []string{"alice", "bob"}

		marks := make([]entity.Mark, 2)
		errs := make([]error, 2)

		// When: alice joins on one node and bob on the other
		var wg sync.WaitGroup
		for i := range nodes {
			wg.Add(1)
			go func() {
				defer wg.Done()

				_, marks[i], errs[i] = nodes[i].JoinGame(ctx, "ABCDE", players[i])
			}()
		}
		wg.Wait()

		// Then: exactly one holds O, the other got a conflict
		winner := -1
		for i, err := range errs {
			if err == nil {
				require.Equal(t, -1, winner, "both joins succeeded")
				winner = i
				continue
			}

			require.ErrorIs(t, err, apperror.ErrGameConflict)
			assert.Equal(t, entity.EmptyCell, marks[i])
		}
		require.NotEqual(t, -1, winner)
		assert.Equal(t, entity.PlayerO, marks[winner])

		// And: the stored seat and the single event agree with the winner
		stored, err := shared.GetByCode(ctx, "ABCDE")
		require.NoError(t, err)
		assert.Equal(t, players[winner], stored.Player2)
		assert.Len(t, events.events, 1)
	})

	t.Run("Move racing a resign is applied at most once", func(t *testing.T) {
		// Given: X to move on an active game, both nodes reading first
		shared := &memoryGames{games: map[string]*entity.Game{"ABCDE": activeGame()}}
		store := newLockstepGames(shared, 2)
		events := &recordingPublisher{}
		nodes := []*GameManager{newNode(store, events), newNode(store, events)}

		errs := make([]error, 2)

		// When: X moves on one node while O resigns on the other
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = nodes[0].MakeMove(ctx, "ABCDE", "p1", 4, 4)
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = nodes[1].Resign(ctx, "ABCDE", "p2")
		}()
		wg.Wait()

		// Then: one mutation landed at revision 2 and the other was refused
		conflicts := 0
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, apperror.ErrGameConflict)
				conflicts++
			}
		}
		assert.Equal(t, 1, conflicts)

		stored, err := shared.GetByCode(ctx, "ABCDE")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Revision)
		require.Len(t, events.events, 1)
		assert.Equal(t, int64(2), events.events[0].Revision)
	})
}
