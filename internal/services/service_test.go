package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"parley/internal/domain/conversation"
	"parley/internal/domain/user"
	"parley/internal/events"
	"parley/internal/repository"
	"parley/pkg/database"
	"parley/pkg/logger"
)

type testEnv struct {
	db     *gorm.DB
	bus    *events.MemoryBus
	convs  *ConversationService
	msgs   *MessageService
	ledger *LedgerService
	blocks *BlockService
	userA  uuid.UUID
	userB  uuid.UUID
	userC  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// Named in-memory database so the pool's connections share state while
	// tests stay isolated from each other.
	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	bus := events.NewMemoryBus()
	log := logger.NewNop()

	env := &testEnv{
		db:     db,
		bus:    bus,
		convs:  NewConversationService(db, convRepo, msgRepo, bus, log),
		msgs:   NewMessageService(db, msgRepo, convRepo, blockRepo, bus, log),
		ledger: NewLedgerService(msgRepo, convRepo, blockRepo, bus, log),
		blocks: NewBlockService(blockRepo, bus, log),
		userA:  uuid.New(),
		userB:  uuid.New(),
		userC:  uuid.New(),
	}

	for _, id := range []uuid.UUID{env.userA, env.userB, env.userC} {
		require.NoError(t, db.Create(&user.User{ID: id, FirstName: "Test"}).Error)
	}
	return env
}

func (e *testEnv) directConversation(t *testing.T) conversation.Conversation {
	t.Helper()
	conv, err := e.convs.Create(context.Background(), CreateConversationInput{
		CreatorID:      e.userA,
		ParticipantIDs: []uuid.UUID{e.userB},
		Type:           conversation.TypeDirect,
	})
	require.NoError(t, err)
	return conv
}

func (e *testEnv) groupConversation(t *testing.T) conversation.Conversation {
	t.Helper()
	title := "team"
	conv, err := e.convs.Create(context.Background(), CreateConversationInput{
		CreatorID:      e.userA,
		ParticipantIDs: []uuid.UUID{e.userB, e.userC},
		Type:           conversation.TypeGroup,
		Title:          &title,
	})
	require.NoError(t, err)
	return conv
}

// collectEvents subscribes to an event type and returns a pointer to the
// captured slice. MemoryBus dispatches synchronously, so captured events
// are visible as soon as the triggering call returns.
func collectEvents(bus *events.MemoryBus, eventType events.EventType) *[]events.Event {
	var captured []events.Event
	bus.Subscribe(eventType, events.EventHandlerFunc(func(ctx context.Context, event events.Event) error {
		captured = append(captured, event)
		return nil
	}))
	return &captured
}
