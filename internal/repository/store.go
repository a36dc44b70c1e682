package repository

import (
	"context"
	"time"

	"github.com/cueclub/table-service/internal/model"
)

// Store bundles the table and session repositories behind the single
// persistence surface the state machine and the broadcast scheduler
// consume (play.Store and broadcast.Store).
type Store struct {
	Tables   *TableRepo
	Sessions *SessionRepo
}

// NewStore composes the two repositories.
func NewStore(tables *TableRepo, sessions *SessionRepo) *Store {
	if tables == nil || sessions == nil {
		panic("nil repository passed to NewStore")
	}
	return &Store{Tables: tables, Sessions: sessions}
}

func (s *Store) TableByID(ctx context.Context, id uint64) (*model.Table, error) {
	return s.Tables.TableByID(ctx, id)
}

func (s *Store) AllTables(ctx context.Context) ([]*model.Table, error) {
	return s.Tables.AllTables(ctx)
}

func (s *Store) TablesByStatus(ctx context.Context, statuses ...model.TableStatus) ([]*model.Table, error) {
	return s.Tables.TablesByStatus(ctx, statuses...)
}

func (s *Store) SaveTable(ctx context.Context, t *model.Table, from model.TableStatus) error {
	return s.Tables.SaveTable(ctx, t, from)
}

func (s *Store) DeleteTable(ctx context.Context, id uint64) error {
	return s.Tables.DeleteTable(ctx, id)
}

func (s *Store) SessionByID(ctx context.Context, id uint64) (*model.Session, error) {
	return s.Sessions.SessionByID(ctx, id)
}

func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	return s.Sessions.CreateSession(ctx, sess)
}

func (s *Store) SaveSession(ctx context.Context, sess *model.Session) error {
	return s.Sessions.SaveSession(ctx, sess)
}

func (s *Store) CompletedSince(ctx context.Context, since time.Time) ([]*model.Session, error) {
	return s.Sessions.CompletedSince(ctx, since)
}
