// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package coordinator drives cross-chain transfers from initiation through
// validator confirmation to completion or cancellation.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/timer/mockable"

	"github.com/luxfi/bridge/events"
	"github.com/luxfi/bridge/ledger"
	"github.com/luxfi/bridge/metrics"
	"github.com/luxfi/bridge/quorum"
	"github.com/luxfi/bridge/ratelimit"
	"github.com/luxfi/bridge/transfers"
	"github.com/luxfi/bridge/validators"
)

var (
	transferPrefix  = []byte("transfers")
	validatorPrefix = []byte("validators")
	ratePrefix      = []byte("ratelimit")
	paramsPrefix    = []byte("params")

	paramsKey = []byte("params")
)

// Dependencies are the collaborators of a Coordinator. Ledger and DB are
// required; the rest default to in-process implementations.
type Dependencies struct {
	DB        database.Database
	Ledger    ledger.Ledger
	Log       log.Logger
	Clock     *mockable.Clock
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	// RateStore overrides the database-backed rate limit counters.
	RateStore ratelimit.Store
	Recoverer quorum.Recoverer
	CacheSize int
}

// Coordinator is the bridge state machine. All methods are safe for
// concurrent use.
type Coordinator struct {
	config    Config
	log       log.Logger
	clock     *mockable.Clock
	ledger    ledger.Ledger
	publisher events.Publisher
	metrics   *metrics.Metrics

	validators *validators.Set
	verifier   *quorum.Verifier
	limiter    *ratelimit.Limiter
	registry   *transfers.Registry
	locks      *lockMap

	paramsLock sync.RWMutex
	paramsDB   database.Database
	params     Params
}

// New opens the coordinator state in deps.DB. On first start the state is
// seeded from [config].
func New(config Config, deps Dependencies) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.DB == nil || deps.Ledger == nil {
		return nil, errors.New("database and ledger are required")
	}
	if deps.Log == nil {
		deps.Log = log.NewNoOpLogger()
	}
	if deps.Clock == nil {
		deps.Clock = &mockable.Clock{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoOp{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop()
	}
	if deps.RateStore == nil {
		deps.RateStore = ratelimit.NewDBStore(prefixdb.New(ratePrefix, deps.DB))
	}
	if deps.Recoverer == nil {
		deps.Recoverer = quorum.ECDSARecoverer{}
	}

	vdrs, err := validators.New(prefixdb.New(validatorPrefix, deps.DB), deps.Log)
	if err != nil {
		return nil, err
	}
	registry, err := transfers.New(prefixdb.New(transferPrefix, deps.DB), deps.Log, deps.CacheSize)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		config:     config,
		log:        deps.Log,
		clock:      deps.Clock,
		ledger:     deps.Ledger,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		validators: vdrs,
		verifier:   quorum.NewVerifier(vdrs, deps.Recoverer),
		registry:   registry,
		locks:      newLockMap(),
		paramsDB:   prefixdb.New(paramsPrefix, deps.DB),
	}

	paramsBytes, err := c.paramsDB.Get(paramsKey)
	switch {
	case errors.Is(err, database.ErrNotFound):
		if err := c.seed(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load params: %w", err)
	default:
		if _, err := Codec.Unmarshal(paramsBytes, &c.params); err != nil {
			return nil, fmt.Errorf("failed to parse params: %w", err)
		}
	}

	c.limiter = ratelimit.New(deps.RateStore, deps.Clock, c.params.DailyLimit)
	c.metrics.SetPending(c.registry.Stats().PendingCount)

	c.log.Info("bridge coordinator started",
		log.String("localChain", config.LocalChain),
		log.String("remoteChain", config.RemoteChain),
		log.Stringer("owner", config.Owner),
		log.Int("validators", len(vdrs.List())),
		log.Int("quorum", vdrs.Quorum()),
		log.Bool("paused", c.params.Paused),
	)
	return c, nil
}

func (c *Coordinator) seed() error {
	for _, addr := range c.config.Validators {
		if err := c.validators.Add(addr); err != nil && !errors.Is(err, validators.ErrValidatorExists) {
			return fmt.Errorf("failed to seed validator %s: %w", addr, err)
		}
	}
	if err := c.validators.SetQuorum(c.config.MinValidators); err != nil {
		return err
	}
	return c.storeParams(c.config.Params)
}

// storeParams persists [p] and makes it current. Callers hold paramsLock or
// have exclusive access.
func (c *Coordinator) storeParams(p Params) error {
	b, err := Codec.Marshal(codecVersion, &p)
	if err != nil {
		return err
	}
	if err := c.paramsDB.Put(paramsKey, b); err != nil {
		return fmt.Errorf("failed to persist params: %w", err)
	}
	c.params = p
	return nil
}

// Config returns the static configuration.
func (c *Coordinator) Config() Config {
	return c.config
}

// Params returns the current parameters.
func (c *Coordinator) Params() Params {
	c.paramsLock.RLock()
	defer c.paramsLock.RUnlock()

	return c.params
}

// GetTransfer returns the transfer with [id].
func (c *Coordinator) GetTransfer(id ids.ID) (*transfers.Transfer, error) {
	return c.registry.Get(id)
}

// GetUserTransfers returns the ids of the transfers initiated by [addr].
func (c *Coordinator) GetUserTransfers(addr common.Address) ([]ids.ID, error) {
	return c.registry.UserTransfers(addr)
}

// Stats returns the aggregate bridge statistics.
func (c *Coordinator) Stats() transfers.Stats {
	return c.registry.Stats()
}

// DailyLimitInfo describes today's global volume.
func (c *Coordinator) DailyLimitInfo(ctx context.Context) (ratelimit.Info, error) {
	return c.limiter.Info(ctx)
}

// UserDailyLimitInfo describes today's volume sent by [addr].
func (c *Coordinator) UserDailyLimitInfo(ctx context.Context, addr common.Address) (ratelimit.Info, error) {
	return c.limiter.UserInfo(ctx, addr)
}

// Validators returns the active validators and the confirmation quorum.
func (c *Coordinator) Validators() ([]common.Address, int) {
	return c.validators.List(), c.validators.Quorum()
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.metrics.PublishFailed()
		c.log.Warn("failed to publish event",
			log.String("type", string(event.Type)),
			log.Stringer("transferID", event.TransferID),
			log.Err(err),
		)
	}
}

func (c *Coordinator) reject(op string, err error) error {
	c.metrics.Rejected(op, reason(err))
	c.log.Debug("request rejected",
		log.String("op", op),
		log.Err(err),
	)
	return err
}

func (c *Coordinator) updatePending() {
	c.metrics.SetPending(c.registry.Stats().PendingCount)
}

func newEvent(typ events.Type, t *transfers.Transfer) events.Event {
	return events.Event{
		Type:        typ,
		TransferID:  t.ID,
		From:        t.From,
		To:          t.To,
		Amount:      t.Amount,
		Fee:         t.Fee,
		SourceChain: t.SourceChain,
		TargetChain: t.TargetChain,
		Timestamp:   t.UpdatedAt,
	}
}
