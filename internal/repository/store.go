package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harberts01/Ai-Blog/internal/store"
)

// Store is the Postgres-backed store.Store.
type Store struct {
	*RegistryRepo
	*UserRepo
	*MatchupRepo
	*VoteRepo
}

var _ store.Store = (*Store)(nil)

// NewStore wires every repository onto one pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		RegistryRepo: NewRegistryRepo(pool),
		UserRepo:     NewUserRepo(pool),
		MatchupRepo:  NewMatchupRepo(pool),
		VoteRepo:     NewVoteRepo(pool),
	}
}
