// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge exposes the transfer coordinator as the "bridge" JSON-RPC
// service.
package bridge

import (
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/bridge/api/json"
	"github.com/luxfi/bridge/api/server"
	"github.com/luxfi/bridge/coordinator"
	"github.com/luxfi/bridge/ratelimit"
	"github.com/luxfi/bridge/transfers"
)

const (
	ServiceName = "bridge"

	interceptorNamespace = "bridge_api"
)

// NewHandler returns the HTTP handler of the bridge service. When [auth] is
// nil every request is anonymous and operations that need a caller fail.
func NewHandler(
	log log.Logger,
	c *coordinator.Coordinator,
	auth *Authenticator,
	registry metric.Registry,
) (http.Handler, error) {
	interceptor, err := server.NewAPIInterceptor(interceptorNamespace, registry)
	if err != nil {
		return nil, err
	}

	s := rpc.NewServer()
	codec := json.NewCodec()
	s.RegisterCodec(codec, "application/json")
	s.RegisterCodec(codec, "application/json;charset=UTF-8")
	s.RegisterInterceptFunc(interceptor.InterceptRequest)
	s.RegisterAfterFunc(interceptor.AfterRequest)
	if err := s.RegisterService(&Service{log: log, coordinator: c}, ServiceName); err != nil {
		return nil, err
	}

	if auth == nil {
		return s, nil
	}
	return auth.Wrap(s), nil
}

// Service is the API service for the bridge.
type Service struct {
	log         log.Logger
	coordinator *coordinator.Coordinator
}

func (s *Service) called(method string) {
	s.log.Debug("API called",
		log.String("service", ServiceName),
		log.String("method", method),
	)
}

// EmptyReply is returned by operations without a result.
type EmptyReply struct{}

type InitiateTransferArgs struct {
	To     common.Address `json:"to"`
	Amount json.Uint64    `json:"amount"`
}

type InitiateTransferReply struct {
	TransferID ids.ID `json:"transferID"`
}

// InitiateTransfer burns amount plus fee from the caller and records a
// pending transfer.
func (s *Service) InitiateTransfer(r *http.Request, args *InitiateTransferArgs, reply *InitiateTransferReply) error {
	s.called("initiateTransfer")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	reply.TransferID, err = s.coordinator.Initiate(r.Context(), caller, args.To, uint64(args.Amount), "")
	return err
}

type RecordRemoteTransferArgs struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount json.Uint64    `json:"amount"`
}

// RecordRemoteTransfer records a transfer burned on the remote chain. Only
// the owner may call it.
func (s *Service) RecordRemoteTransfer(r *http.Request, args *RecordRemoteTransferArgs, reply *InitiateTransferReply) error {
	s.called("recordRemoteTransfer")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	reply.TransferID, err = s.coordinator.RecordRemote(r.Context(), caller, args.From, args.To, uint64(args.Amount))
	return err
}

type ConfirmTransferArgs struct {
	TransferID       ids.ID          `json:"transferID"`
	ConfirmationHash common.Hash     `json:"confirmationHash"`
	Signatures       []hexutil.Bytes `json:"signatures"`
}

// ConfirmTransfer completes a transfer with a quorum of validator signatures.
// It is usually submitted by a relayer and needs no caller.
func (s *Service) ConfirmTransfer(r *http.Request, args *ConfirmTransferArgs, _ *EmptyReply) error {
	s.called("confirmTransfer")

	sigs := make([][]byte, len(args.Signatures))
	for i, sig := range args.Signatures {
		sigs[i] = sig
	}
	return s.coordinator.Confirm(r.Context(), args.TransferID, args.ConfirmationHash, sigs)
}

type CancelTransferArgs struct {
	TransferID ids.ID `json:"transferID"`
	Reason     string `json:"reason"`
}

func (s *Service) CancelTransfer(r *http.Request, args *CancelTransferArgs, _ *EmptyReply) error {
	s.called("cancelTransfer")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	return s.coordinator.Cancel(r.Context(), caller, args.TransferID, args.Reason)
}

type GetTransferArgs struct {
	TransferID ids.ID `json:"transferID"`
}

// APITransfer is the JSON form of a transfer.
type APITransfer struct {
	ID               ids.ID           `json:"id"`
	From             common.Address   `json:"from"`
	To               common.Address   `json:"to"`
	Amount           json.Uint64      `json:"amount"`
	Fee              json.Uint64      `json:"fee"`
	SourceChain      string           `json:"sourceChain"`
	TargetChain      string           `json:"targetChain"`
	Status           transfers.Status `json:"status"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	Sequence         json.Uint64      `json:"sequence"`
	ConfirmationHash *common.Hash     `json:"confirmationHash,omitempty"`
	Processed        bool             `json:"processed"`
	CancelReason     string           `json:"cancelReason,omitempty"`
}

func newAPITransfer(t *transfers.Transfer) APITransfer {
	out := APITransfer{
		ID:           t.ID,
		From:         t.From,
		To:           t.To,
		Amount:       json.Uint64(t.Amount),
		Fee:          json.Uint64(t.Fee),
		SourceChain:  t.SourceChain,
		TargetChain:  t.TargetChain,
		Status:       t.Status,
		CreatedAt:    time.Unix(t.CreatedAt, 0).UTC(),
		UpdatedAt:    time.Unix(t.UpdatedAt, 0).UTC(),
		Sequence:     json.Uint64(t.Sequence),
		Processed:    t.Processed,
		CancelReason: t.CancelReason,
	}
	if t.ConfirmationHash != (common.Hash{}) {
		hash := t.ConfirmationHash
		out.ConfirmationHash = &hash
	}
	return out
}

func (s *Service) GetTransfer(_ *http.Request, args *GetTransferArgs, reply *APITransfer) error {
	s.called("getTransfer")

	t, err := s.coordinator.GetTransfer(args.TransferID)
	if err != nil {
		return err
	}
	*reply = newAPITransfer(t)
	return nil
}

type AddressArgs struct {
	Address common.Address `json:"address"`
}

type GetUserTransfersReply struct {
	TransferIDs []ids.ID `json:"transferIDs"`
}

// GetUserTransfers lists the transfers initiated by an address, oldest first.
func (s *Service) GetUserTransfers(_ *http.Request, args *AddressArgs, reply *GetUserTransfersReply) error {
	s.called("getUserTransfers")

	transferIDs, err := s.coordinator.GetUserTransfers(args.Address)
	if err != nil {
		return err
	}
	if transferIDs == nil {
		transferIDs = []ids.ID{}
	}
	reply.TransferIDs = transferIDs
	return nil
}

type GetBridgeStatsReply struct {
	TotalTransfers json.Uint64 `json:"totalTransfers"`
	TotalVolume    json.Uint64 `json:"totalVolume"`
	PendingCount   json.Uint64 `json:"pendingCount"`
	CompletedCount json.Uint64 `json:"completedCount"`
	CancelledCount json.Uint64 `json:"cancelledCount"`
}

func (s *Service) GetBridgeStats(_ *http.Request, _ *struct{}, reply *GetBridgeStatsReply) error {
	s.called("getBridgeStats")

	stats := s.coordinator.Stats()
	reply.TotalTransfers = json.Uint64(stats.TotalTransfers)
	reply.TotalVolume = json.Uint64(stats.TotalVolume)
	reply.PendingCount = json.Uint64(stats.PendingCount)
	reply.CompletedCount = json.Uint64(stats.CompletedCount)
	reply.CancelledCount = json.Uint64(stats.CancelledCount)
	return nil
}

type DailyLimitReply struct {
	Day       json.Uint64 `json:"day"`
	Limit     json.Uint64 `json:"limit"`
	Used      json.Uint64 `json:"used"`
	Remaining json.Uint64 `json:"remaining"`
	ResetsAt  time.Time   `json:"resetsAt"`
}

func (reply *DailyLimitReply) set(info ratelimit.Info) {
	reply.Day = json.Uint64(info.Day)
	reply.Limit = json.Uint64(info.Limit)
	reply.Used = json.Uint64(info.Used)
	reply.Remaining = json.Uint64(info.Remaining)
	reply.ResetsAt = info.ResetsAt.UTC()
}

func (s *Service) GetDailyLimitInfo(r *http.Request, _ *struct{}, reply *DailyLimitReply) error {
	s.called("getDailyLimitInfo")

	info, err := s.coordinator.DailyLimitInfo(r.Context())
	if err != nil {
		return err
	}
	reply.set(info)
	return nil
}

func (s *Service) GetUserDailyLimitInfo(r *http.Request, args *AddressArgs, reply *DailyLimitReply) error {
	s.called("getUserDailyLimitInfo")

	info, err := s.coordinator.UserDailyLimitInfo(r.Context(), args.Address)
	if err != nil {
		return err
	}
	reply.set(info)
	return nil
}

type GetParamsReply struct {
	Owner             common.Address `json:"owner"`
	LocalChain        string         `json:"localChain"`
	RemoteChain       string         `json:"remoteChain"`
	TransferTimeout   json.Uint64    `json:"transferTimeout"`
	MinTransferAmount json.Uint64    `json:"minTransferAmount"`
	MaxTransferAmount json.Uint64    `json:"maxTransferAmount"`
	DailyLimit        json.Uint64    `json:"dailyLimit"`
	TransferFee       json.Uint64    `json:"transferFee"`
	Paused            bool           `json:"paused"`
}

// GetParams returns the static configuration and the current parameters.
// TransferTimeout is in seconds.
func (s *Service) GetParams(_ *http.Request, _ *struct{}, reply *GetParamsReply) error {
	s.called("getParams")

	config := s.coordinator.Config()
	params := s.coordinator.Params()
	reply.Owner = config.Owner
	reply.LocalChain = config.LocalChain
	reply.RemoteChain = config.RemoteChain
	reply.TransferTimeout = json.Uint64(config.TransferTimeout / time.Second)
	reply.MinTransferAmount = json.Uint64(params.MinTransferAmount)
	reply.MaxTransferAmount = json.Uint64(params.MaxTransferAmount)
	reply.DailyLimit = json.Uint64(params.DailyLimit)
	reply.TransferFee = json.Uint64(params.TransferFee)
	reply.Paused = params.Paused
	return nil
}

type GetValidatorsReply struct {
	Validators    []common.Address `json:"validators"`
	MinValidators json.Uint32      `json:"minValidators"`
}

func (s *Service) GetValidators(_ *http.Request, _ *struct{}, reply *GetValidatorsReply) error {
	s.called("getValidators")

	validators, quorum := s.coordinator.Validators()
	if validators == nil {
		validators = []common.Address{}
	}
	reply.Validators = validators
	reply.MinValidators = json.Uint32(quorum)
	return nil
}

type SetLimitsArgs struct {
	MinTransferAmount json.Uint64 `json:"minTransferAmount"`
	MaxTransferAmount json.Uint64 `json:"maxTransferAmount"`
	DailyLimit        json.Uint64 `json:"dailyLimit"`
}

func (s *Service) SetLimits(r *http.Request, args *SetLimitsArgs, _ *EmptyReply) error {
	s.called("setLimits")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	return s.coordinator.SetLimits(
		caller,
		uint64(args.MinTransferAmount),
		uint64(args.MaxTransferAmount),
		uint64(args.DailyLimit),
	)
}

type SetTransferFeeArgs struct {
	Fee json.Uint64 `json:"fee"`
}

func (s *Service) SetTransferFee(r *http.Request, args *SetTransferFeeArgs, _ *EmptyReply) error {
	s.called("setTransferFee")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	return s.coordinator.SetTransferFee(caller, uint64(args.Fee))
}

func (s *Service) AddValidator(r *http.Request, args *AddressArgs, _ *EmptyReply) error {
	s.called("addValidator")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	return s.coordinator.AddValidator(caller, args.Address)
}

func (s *Service) RemoveValidator(r *http.Request, args *AddressArgs, _ *EmptyReply) error {
	s.called("removeValidator")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	return s.coordinator.RemoveValidator(caller, args.Address)
}

type SetMinValidatorsArgs struct {
	MinValidators json.Uint32 `json:"minValidators"`
}

func (s *Service) SetMinValidators(r *http.Request, args *SetMinValidatorsArgs, _ *EmptyReply) error {
	s.called("setMinValidators")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	return s.coordinator.SetMinValidators(caller, int(args.MinValidators))
}

func (s *Service) Pause(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	s.called("pause")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	return s.coordinator.Pause(caller)
}

func (s *Service) Unpause(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	s.called("unpause")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	return s.coordinator.Unpause(caller)
}

type PruneRateLimitsArgs struct {
	BeforeDay json.Uint64 `json:"beforeDay"`
}

type PruneRateLimitsReply struct {
	Pruned json.Uint64 `json:"pruned"`
}

// PruneRateLimits drops the volume buckets of days before BeforeDay.
func (s *Service) PruneRateLimits(r *http.Request, args *PruneRateLimitsArgs, reply *PruneRateLimitsReply) error {
	s.called("pruneRateLimits")

	caller, err := callerFrom(r)
	if err != nil {
		return err
	}
	pruned, err := s.coordinator.PruneRateLimits(r.Context(), caller, uint64(args.BeforeDay))
	reply.Pruned = json.Uint64(pruned)
	return err
}
