package sqlengine

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/melosso/portway/internal/envreg"
	"github.com/melosso/portway/internal/gwerr"
)

// Pools keeps one *sql.DB per environment, opened lazily and reused for
// the life of the process. go-mssqldb's driver already pools physical
// connections; we only need to size the pool once per environment and
// keep a warm connection so the first request after an idle period
// doesn't pay a cold-dial cost.
type Pools struct {
	mu   sync.Mutex
	dbs  map[string]*sql.DB
}

func NewPools() *Pools {
	return &Pools{dbs: map[string]*sql.DB{}}
}

// Get returns the pooled *sql.DB for env, opening and warming it on first use.
func (p *Pools) Get(ctx context.Context, env *envreg.Environment) (*sql.DB, error) {
	p.mu.Lock()
	db, ok := p.dbs[env.Name]
	p.mu.Unlock()
	if ok {
		return db, nil
	}

	db, err := sql.Open("sqlserver", env.Conn.Reveal())
	if err != nil {
		return nil, gwerr.New(gwerr.CodeDbUnavailable, "sqlengine.pool", env.Name, err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, gwerr.New(gwerr.CodeDbUnavailable, "sqlengine.pool", env.Name, err)
	}

	p.mu.Lock()
	if existing, ok := p.dbs[env.Name]; ok {
		p.mu.Unlock()
		db.Close()
		return existing, nil
	}
	p.dbs[env.Name] = db
	p.mu.Unlock()
	return db, nil
}

func (p *Pools) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, db := range p.dbs {
		db.Close()
	}
	p.dbs = map[string]*sql.DB{}
}
