// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luxfi/crypto"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/timer/mockable"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/luxfi/bridge/events"
	"github.com/luxfi/bridge/ledger"
	"github.com/luxfi/bridge/quorum"
	"github.com/luxfi/bridge/ratelimit"
	"github.com/luxfi/bridge/transfers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	owner = common.HexToAddress("0x0000000000000000000000000000000000000aaa")
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
	carol = common.HexToAddress("0xca40100000000000000000000000000000000003")

	errMintUnavailable  = errors.New("mint unavailable")
	errBurnUnavailable  = errors.New("burn unavailable")
	errWriteUnavailable = errors.New("write unavailable")

	// transfer records are stored under the registry's own prefix inside the
	// coordinator's transfer partition
	transferRecordPrefix = append(bytes.Clone(transferPrefix), "transfer"...)
)

// flakyLedger fails the next [failMints] mints and [failBurns] burns.
type flakyLedger struct {
	*ledger.State
	failMints atomic.Int32
	failBurns atomic.Int32
}

func (l *flakyLedger) Mint(ctx context.Context, account common.Address, amount uint64, memo string) error {
	if l.failMints.Add(-1) >= 0 {
		return errMintUnavailable
	}
	return l.State.Mint(ctx, account, amount, memo)
}

func (l *flakyLedger) Burn(ctx context.Context, account common.Address, amount uint64, memo string) error {
	if l.failBurns.Add(-1) >= 0 {
		return errBurnUnavailable
	}
	return l.State.Burn(ctx, account, amount, memo)
}

// failingDB rejects writes of keys under [prefix] while [fail] is set.
type failingDB struct {
	database.Database
	prefix []byte
	fail   atomic.Bool
}

func (db *failingDB) Put(key, value []byte) error {
	if db.fail.Load() && bytes.HasPrefix(key, db.prefix) {
		return errWriteUnavailable
	}
	return db.Database.Put(key, value)
}

func (db *failingDB) NewBatch() database.Batch {
	return &failingBatch{
		Batch: db.Database.NewBatch(),
		db:    db,
	}
}

type failingBatch struct {
	database.Batch
	db      *failingDB
	matched bool
}

func (b *failingBatch) Put(key, value []byte) error {
	if bytes.HasPrefix(key, b.db.prefix) {
		b.matched = true
	}
	return b.Batch.Put(key, value)
}

func (b *failingBatch) Write() error {
	if b.matched && b.db.fail.Load() {
		return errWriteUnavailable
	}
	return b.Batch.Write()
}

func (b *failingBatch) Reset() {
	b.matched = false
	b.Batch.Reset()
}

type testEnv struct {
	db        database.Database
	c         *Coordinator
	config    Config
	ledger    *flakyLedger
	clock     *mockable.Clock
	publisher *events.Memory
	keys      []*ecdsa.PrivateKey
}

// newTestEnv builds a coordinator with the reference parameters
// min=1000, max=1e9, daily=1e10, fee=100 and three validators with quorum 3.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	require := require.New(t)

	keys := make([]*ecdsa.PrivateKey, 3)
	config := DefaultConfig(owner)
	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(err)
		keys[i] = key
		config.Validators = append(config.Validators, common.Address(crypto.PubkeyToAddress(key.PublicKey)))
	}
	config.MinValidators = 3

	db := memdb.New()
	clock := &mockable.Clock{}
	clock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	l := &flakyLedger{State: ledger.New(memdb.New(), log.NewNoOpLogger())}
	require.NoError(l.State.Mint(context.Background(), alice, 10_000, "genesis"))

	env := &testEnv{
		db:        db,
		config:    config,
		ledger:    l,
		clock:     clock,
		publisher: &events.Memory{},
		keys:      keys,
	}
	env.c = env.open(t)
	return env
}

func (e *testEnv) open(t *testing.T) *Coordinator {
	t.Helper()

	c, err := New(e.config, Dependencies{
		DB:        e.db,
		Ledger:    e.ledger,
		Log:       log.NewNoOpLogger(),
		Clock:     e.clock,
		Publisher: e.publisher,
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) sign(t *testing.T, id ids.ID, confirmationHash common.Hash, keys ...*ecdsa.PrivateKey) [][]byte {
	t.Helper()

	sigs := make([][]byte, len(keys))
	for i, key := range keys {
		sig, err := quorum.Sign(key, id, confirmationHash)
		require.NoError(t, err)
		sigs[i] = sig
	}
	return sigs
}

func (e *testEnv) balance(t *testing.T, addr common.Address) uint64 {
	t.Helper()

	balance, err := e.ledger.BalanceOf(context.Background(), addr)
	require.NoError(t, err)
	return balance
}

func TestInitiate(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	id, err := env.c.Initiate(ctx, alice, bob, 5_000, "")
	require.NoError(err)
	require.Equal(uint64(4_900), env.balance(t, alice))

	transfer, err := env.c.GetTransfer(id)
	require.NoError(err)
	require.Equal(transfers.Pending, transfer.Status)
	require.Equal(DefaultLocalChain, transfer.SourceChain)
	require.Equal(DefaultRemoteChain, transfer.TargetChain)
	require.Equal(uint64(5_000), transfer.Amount)
	require.Equal(uint64(100), transfer.Fee)
	require.False(transfer.Processed)

	userTransfers, err := env.c.GetUserTransfers(alice)
	require.NoError(err)
	require.Equal([]ids.ID{id}, userTransfers)

	stats := env.c.Stats()
	require.Equal(uint64(1), stats.TotalTransfers)
	require.Equal(uint64(1), stats.PendingCount)

	info, err := env.c.UserDailyLimitInfo(ctx, alice)
	require.NoError(err)
	require.Equal(uint64(5_000), info.Used)

	published := env.publisher.Events()
	require.Len(published, 1)
	require.Equal(events.TransferInitiated, published[0].Type)
	require.Equal(id, published[0].TransferID)
}

func TestInitiateRejections(t *testing.T) {
	tests := []struct {
		name        string
		to          common.Address
		amount      uint64
		sourceChain string
		setup       func(*testing.T, *testEnv)
		expectedErr error
	}{
		{
			name:        "zero recipient",
			amount:      5_000,
			expectedErr: ErrInvalidRecipient,
		},
		{
			name:        "below minimum",
			to:          bob,
			amount:      999,
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "above maximum",
			to:          bob,
			amount:      1_000_000_001,
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "unknown chain",
			to:          bob,
			amount:      5_000,
			sourceChain: "ELSEWHERE",
			expectedErr: ErrUnsupportedChain,
		},
		{
			name:        "remote source",
			to:          bob,
			amount:      5_000,
			sourceChain: DefaultRemoteChain,
			expectedErr: ErrUnauthorized,
		},
		{
			name:        "balance does not cover fee",
			to:          bob,
			amount:      9_950,
			expectedErr: ErrInsufficientBalance,
		},
		{
			name:   "daily limit",
			to:     bob,
			amount: 5_000,
			setup: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.c.SetLimits(owner, 1_000, 1_000_000_000, 4_000))
			},
			expectedErr: ErrLimitExceeded,
		},
		{
			name:   "paused",
			to:     bob,
			amount: 5_000,
			setup: func(t *testing.T, env *testEnv) {
				require.NoError(t, env.c.Pause(owner))
			},
			expectedErr: ErrPaused,
		},
		{
			name:   "burn fails",
			to:     bob,
			amount: 5_000,
			setup: func(_ *testing.T, env *testEnv) {
				env.ledger.failBurns.Store(1)
			},
			expectedErr: errBurnUnavailable,
		},
		{
			name:   "record fails after burn",
			to:     bob,
			amount: 5_000,
			setup: func(t *testing.T, env *testEnv) {
				db := &failingDB{
					Database: env.db,
					prefix:   transferRecordPrefix,
				}
				db.fail.Store(true)
				env.db = db
				env.c = env.open(t)
			},
			expectedErr: errWriteUnavailable,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			env := newTestEnv(t)
			if test.setup != nil {
				test.setup(t, env)
			}

			_, err := env.c.Initiate(context.Background(), alice, test.to, test.amount, test.sourceChain)
			require.ErrorIs(err, test.expectedErr)

			// rejected requests have no effect
			require.Equal(uint64(10_000), env.balance(t, alice))
			require.Zero(env.c.Stats().TotalTransfers)
			info, err := env.c.DailyLimitInfo(context.Background())
			require.NoError(err)
			require.Zero(info.Used)
			info, err = env.c.UserDailyLimitInfo(context.Background(), alice)
			require.NoError(err)
			require.Zero(info.Used)
		})
	}
}

func TestInitiateUniqueIDs(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(env.ledger.State.Mint(ctx, alice, 1_000_000, "top up"))

	seen := make(map[ids.ID]struct{})
	for i := 0; i < 20; i++ {
		// identical requests in the same second still get distinct ids
		id, err := env.c.Initiate(ctx, alice, bob, 1_000, "")
		require.NoError(err)
		require.NotContains(seen, id)
		seen[id] = struct{}{}
	}
}

func TestConfirmScenario(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	id, err := env.c.Initiate(ctx, alice, bob, 5_000, DefaultLocalChain)
	require.NoError(err)
	require.Equal(uint64(4_900), env.balance(t, alice))

	confirmationHash := common.HexToHash("0x5eed")

	// two of three signatures
	err = env.c.Confirm(ctx, id, confirmationHash, env.sign(t, id, confirmationHash, env.keys[:2]...))
	require.ErrorIs(err, ErrInvalidSignatureSet)

	// duplicate signer
	err = env.c.Confirm(ctx, id, confirmationHash, env.sign(t, id, confirmationHash, env.keys[0], env.keys[0], env.keys[1]))
	require.ErrorIs(err, ErrInvalidSignatureSet)
	require.ErrorIs(err, quorum.ErrDuplicateSigner)

	transfer, err := env.c.GetTransfer(id)
	require.NoError(err)
	require.Equal(transfers.Pending, transfer.Status)
	require.Zero(env.balance(t, bob))

	sigs := env.sign(t, id, confirmationHash, env.keys...)
	require.NoError(env.c.Confirm(ctx, id, confirmationHash, sigs))
	require.Equal(uint64(5_000), env.balance(t, bob))

	transfer, err = env.c.GetTransfer(id)
	require.NoError(err)
	require.Equal(transfers.Completed, transfer.Status)
	require.True(transfer.Processed)
	require.Equal(confirmationHash, transfer.ConfirmationHash)

	// replay
	err = env.c.Confirm(ctx, id, confirmationHash, sigs)
	require.ErrorIs(err, ErrTransferNotPending)
	require.Equal(uint64(5_000), env.balance(t, bob))

	stats := env.c.Stats()
	require.Equal(uint64(1), stats.CompletedCount)
	require.Equal(uint64(5_000), stats.TotalVolume)
	require.Zero(stats.PendingCount)

	err = env.c.Cancel(ctx, owner, id, "too late")
	require.ErrorIs(err, ErrTransferNotPending)

	_, err = env.c.GetTransfer(ids.GenerateTestID())
	require.ErrorIs(err, ErrTransferNotFound)
	err = env.c.Confirm(ctx, ids.GenerateTestID(), confirmationHash, sigs)
	require.ErrorIs(err, ErrTransferNotFound)
}

func TestConcurrentConfirmMintsOnce(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	id, err := env.c.Initiate(ctx, alice, bob, 5_000, "")
	require.NoError(err)
	confirmationHash := common.HexToHash("0x01")
	sigs := env.sign(t, id, confirmationHash, env.keys...)

	const attempts = 16
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := env.c.Confirm(ctx, id, confirmationHash, sigs); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(int32(1), succeeded.Load())
	require.Equal(uint64(5_000), env.balance(t, bob))
	require.Zero(env.c.locks.len())
}

func TestConfirmMintFailureRollsBack(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	id, err := env.c.Initiate(ctx, alice, bob, 5_000, "")
	require.NoError(err)
	confirmationHash := common.HexToHash("0x02")
	sigs := env.sign(t, id, confirmationHash, env.keys...)

	env.ledger.failMints.Store(1)
	err = env.c.Confirm(ctx, id, confirmationHash, sigs)
	require.ErrorIs(err, errMintUnavailable)

	transfer, err := env.c.GetTransfer(id)
	require.NoError(err)
	require.Equal(transfers.Pending, transfer.Status)
	require.False(transfer.Processed)

	require.NoError(env.c.Confirm(ctx, id, confirmationHash, sigs))
	require.Equal(uint64(5_000), env.balance(t, bob))
}

func TestCancelRefundAsymmetry(t *testing.T) {
	tests := []struct {
		name           string
		sourceChain    string
		expectedAlice  uint64
		expectedVolume uint64
		refunded       bool
	}{
		{
			name:          "local source is refunded",
			sourceChain:   DefaultLocalChain,
			expectedAlice: 10_000,
			refunded:      true,
		},
		{
			name:           "remote source is not refunded",
			sourceChain:    DefaultRemoteChain,
			expectedAlice:  10_000,
			expectedVolume: 5_000,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()
			env := newTestEnv(t)

			var (
				id  ids.ID
				err error
			)
			if test.sourceChain == DefaultRemoteChain {
				id, err = env.c.RecordRemote(ctx, owner, alice, bob, 5_000)
			} else {
				id, err = env.c.Initiate(ctx, alice, bob, 5_000, test.sourceChain)
			}
			require.NoError(err)

			// not yet expired and not the owner
			err = env.c.Cancel(ctx, carol, id, "stuck")
			require.ErrorIs(err, ErrUnauthorized)

			env.clock.Set(env.clock.Time().Add(DefaultTransferTimeout + time.Second))
			require.NoError(env.c.Cancel(ctx, carol, id, "stuck"))
			require.Equal(test.expectedAlice, env.balance(t, alice))

			transfer, err := env.c.GetTransfer(id)
			require.NoError(err)
			require.Equal(transfers.Cancelled, transfer.Status)
			require.Equal("stuck", transfer.CancelReason)
			require.False(transfer.Processed)

			// the reservation lives in the bucket of the creation day
			used, err := env.c.limiter.Volume(ctx, ratelimit.UserKey(ratelimit.Day(transfer.Created()), alice))
			require.NoError(err)
			require.Equal(test.expectedVolume, used)
			used, err = env.c.limiter.Volume(ctx, ratelimit.GlobalKey(ratelimit.Day(transfer.Created())))
			require.NoError(err)
			require.Equal(test.expectedVolume, used)

			err = env.c.Cancel(ctx, carol, id, "again")
			require.ErrorIs(err, ErrTransferNotPending)

			published := env.publisher.Events()
			last := published[len(published)-1]
			require.Equal(events.TransferCancelled, last.Type)
			require.Equal(test.refunded, last.Refunded)

			stats := env.c.Stats()
			require.Equal(uint64(1), stats.CancelledCount)
			require.Zero(stats.PendingCount)
		})
	}
}

func TestRecordRemote(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.c.RecordRemote(ctx, alice, carol, bob, 5_000)
	require.ErrorIs(err, ErrUnauthorized)

	// carol holds nothing locally; the burn happened on the remote ledger
	id, err := env.c.RecordRemote(ctx, owner, carol, bob, 5_000)
	require.NoError(err)
	require.Zero(env.balance(t, carol))
	require.Equal(uint64(10_000), env.balance(t, alice))

	transfer, err := env.c.GetTransfer(id)
	require.NoError(err)
	require.Equal(DefaultRemoteChain, transfer.SourceChain)
	require.Equal(DefaultLocalChain, transfer.TargetChain)
	require.Equal(transfers.Pending, transfer.Status)

	confirmationHash := common.HexToHash("0x7e1a7")
	require.NoError(env.c.Confirm(ctx, id, confirmationHash, env.sign(t, id, confirmationHash, env.keys...)))
	require.Equal(uint64(5_000), env.balance(t, bob))
	require.Zero(env.balance(t, carol))
}

func TestOwnerCancelBeforeTimeout(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	id, err := env.c.Initiate(ctx, alice, bob, 5_000, "")
	require.NoError(err)

	require.NoError(env.c.Cancel(ctx, owner, id, "operator abort"))
	require.Equal(uint64(10_000), env.balance(t, alice))

	// the refunded volume is available again today
	info, err := env.c.UserDailyLimitInfo(ctx, alice)
	require.NoError(err)
	require.Zero(info.Used)
}

func TestCancelRefundFailure(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	id, err := env.c.Initiate(ctx, alice, bob, 5_000, "")
	require.NoError(err)

	env.ledger.failMints.Store(1)
	err = env.c.Cancel(ctx, owner, id, "abort")
	require.ErrorIs(err, ErrRefundFailed)
	require.ErrorIs(err, errMintUnavailable)

	transfer, err := env.c.GetTransfer(id)
	require.NoError(err)
	require.Equal(transfers.Cancelled, transfer.Status)
	require.Equal(uint64(4_900), env.balance(t, alice))
}

func TestPause(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	id, err := env.c.Initiate(ctx, alice, bob, 5_000, "")
	require.NoError(err)

	require.ErrorIs(env.c.Pause(alice), ErrUnauthorized)
	require.NoError(env.c.Pause(owner))
	require.True(env.c.Params().Paused)

	confirmationHash := common.HexToHash("0x03")
	err = env.c.Confirm(ctx, id, confirmationHash, env.sign(t, id, confirmationHash, env.keys...))
	require.ErrorIs(err, ErrPaused)

	// cancellation stays available while paused
	require.NoError(env.c.Cancel(ctx, owner, id, "paused"))

	require.NoError(env.c.Unpause(owner))
	_, err = env.c.Initiate(ctx, alice, bob, 5_000, "")
	require.NoError(err)
}

func TestConcurrentInitiateRespectsDailyLimit(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	const (
		dailyLimit = 50_000
		amount     = 3_000
		senders    = 40
	)
	require.NoError(env.c.SetLimits(owner, 1_000, 1_000_000, dailyLimit))

	addrs := make([]common.Address, senders)
	for i := range addrs {
		addrs[i][0] = 0xee
		addrs[i][19] = byte(i + 1)
		require.NoError(env.ledger.State.Mint(ctx, addrs[i], 10_000, "genesis"))
	}

	var (
		wg       sync.WaitGroup
		accepted atomic.Uint64
	)
	for _, addr := range addrs {
		wg.Add(1)
		go func(addr common.Address) {
			defer wg.Done()
			_, err := env.c.Initiate(ctx, addr, bob, amount, "")
			switch {
			case err == nil:
				accepted.Add(amount)
			case errors.Is(err, ErrLimitExceeded):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(addr)
	}
	wg.Wait()

	info, err := env.c.DailyLimitInfo(ctx)
	require.NoError(err)
	require.LessOrEqual(info.Used, uint64(dailyLimit))
	require.Equal(accepted.Load(), info.Used)
	require.Equal(uint64(dailyLimit/amount*amount), accepted.Load())

	// every rejected sender kept their funds
	var burned uint64
	for _, addr := range addrs {
		burned += 10_000 - env.balance(t, addr)
	}
	require.Equal(accepted.Load()/amount*(amount+DefaultTransferFee), burned)
}

func TestAdmin(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	require.ErrorIs(env.c.SetLimits(alice, 1, 2, 3), ErrUnauthorized)
	require.ErrorIs(env.c.SetLimits(owner, 0, 2, 3), ErrInvalidLimits)
	require.ErrorIs(env.c.SetLimits(owner, 5, 2, 3), ErrInvalidLimits)
	require.ErrorIs(env.c.SetLimits(owner, 1, 2, 0), ErrInvalidLimits)
	require.NoError(env.c.SetLimits(owner, 10, 20_000, 30_000))

	require.ErrorIs(env.c.SetTransferFee(alice, 1), ErrUnauthorized)
	require.NoError(env.c.SetTransferFee(owner, 0))

	_, err := env.c.Initiate(ctx, alice, bob, 10_000, "")
	require.NoError(err)
	require.Zero(env.balance(t, alice))

	require.ErrorIs(env.c.AddValidator(alice, carol), ErrUnauthorized)
	require.NoError(env.c.AddValidator(owner, carol))
	require.ErrorIs(env.c.RemoveValidator(alice, carol), ErrUnauthorized)
	require.NoError(env.c.RemoveValidator(owner, carol))

	require.ErrorIs(env.c.SetMinValidators(alice, 2), ErrUnauthorized)
	require.ErrorIs(env.c.SetMinValidators(owner, 0), ErrInvalidLimits)
	require.NoError(env.c.SetMinValidators(owner, 2))
	vdrs, quorumSize := env.c.Validators()
	require.Len(vdrs, 3)
	require.Equal(2, quorumSize)

	info, err := env.c.DailyLimitInfo(ctx)
	require.NoError(err)
	require.Equal(uint64(30_000), info.Limit)
	require.Equal(uint64(20_000), info.Remaining)
}

func TestPruneRateLimits(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.c.Initiate(ctx, alice, bob, 1_000, "")
	require.NoError(err)
	yesterday := env.c.limiter.Today()

	env.clock.Set(env.clock.Time().Add(24 * time.Hour))
	_, err = env.c.Initiate(ctx, alice, bob, 1_000, "")
	require.NoError(err)

	_, err = env.c.PruneRateLimits(ctx, alice, yesterday+1)
	require.ErrorIs(err, ErrUnauthorized)

	// asking to prune the future keeps today's buckets
	pruned, err := env.c.PruneRateLimits(ctx, owner, yesterday+100)
	require.NoError(err)
	require.Equal(2, pruned)

	info, err := env.c.UserDailyLimitInfo(ctx, alice)
	require.NoError(err)
	require.Equal(uint64(1_000), info.Used)
}

func TestRestart(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	id, err := env.c.Initiate(ctx, alice, bob, 5_000, "")
	require.NoError(err)
	require.NoError(env.c.SetTransferFee(owner, 7))
	require.NoError(env.c.SetMinValidators(owner, 2))
	require.NoError(env.c.Pause(owner))

	// config values are only used to seed a fresh store
	env.config.Params.TransferFee = 1
	env.config.MinValidators = 1
	restarted := env.open(t)

	require.Equal(uint64(7), restarted.Params().TransferFee)
	require.True(restarted.Params().Paused)
	_, quorumSize := restarted.Validators()
	require.Equal(2, quorumSize)

	transfer, err := restarted.GetTransfer(id)
	require.NoError(err)
	require.Equal(transfers.Pending, transfer.Status)

	info, err := restarted.UserDailyLimitInfo(ctx, alice)
	require.NoError(err)
	require.Equal(uint64(5_000), info.Used)

	require.NoError(restarted.Unpause(owner))
	confirmationHash := common.HexToHash("0x04")
	require.NoError(restarted.Confirm(ctx, id, confirmationHash, env.sign(t, id, confirmationHash, env.keys[:2]...)))
}

func TestTransferIDEncoding(t *testing.T) {
	require := require.New(t)

	base := TransferID(alice, bob, 5_000, "AB", 1, 1)
	require.Equal(base, TransferID(alice, bob, 5_000, "AB", 1, 1))
	require.NotEqual(base, TransferID(bob, alice, 5_000, "AB", 1, 1))
	require.NotEqual(base, TransferID(alice, bob, 5_001, "AB", 1, 1))
	require.NotEqual(base, TransferID(alice, bob, 5_000, "A", 1, 1))
	require.NotEqual(base, TransferID(alice, bob, 5_000, "AB", 2, 1))
	require.NotEqual(base, TransferID(alice, bob, 5_000, "AB", 1, 2))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectedErr error
	}{
		{
			name:   "default",
			modify: func(*Config) {},
		},
		{
			name:        "no owner",
			modify:      func(c *Config) { c.Owner = common.Address{} },
			expectedErr: errNoOwner,
		},
		{
			name:        "same chains",
			modify:      func(c *Config) { c.RemoteChain = c.LocalChain },
			expectedErr: errNoChains,
		},
		{
			name:        "no timeout",
			modify:      func(c *Config) { c.TransferTimeout = 0 },
			expectedErr: errNonPositiveTimeout,
		},
		{
			name:        "zero quorum",
			modify:      func(c *Config) { c.MinValidators = 0 },
			expectedErr: ErrInvalidLimits,
		},
		{
			name:        "min above max",
			modify:      func(c *Config) { c.Params.MinTransferAmount = c.Params.MaxTransferAmount + 1 },
			expectedErr: ErrInvalidLimits,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig(owner)
			test.modify(&config)
			require.ErrorIs(t, config.Validate(), test.expectedErr)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.c.Initiate(ctx, alice, bob, 1_000, "")
	require.NoError(err)

	details, err := env.c.HealthCheck(ctx)
	require.NoError(err)
	require.Equal(healthDetails{
		ActiveValidators: 3,
		Quorum:           3,
		PendingTransfers: 1,
	}, details)

	require.NoError(env.c.RemoveValidator(owner, env.config.Validators[0]))
	_, err = env.c.HealthCheck(ctx)
	require.ErrorIs(err, errQuorumUnreachable)
}
