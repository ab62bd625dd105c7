// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"context"
	"errors"
	"fmt"
)

var errQuorumUnreachable = errors.New("fewer active validators than the confirmation quorum")

type healthDetails struct {
	Paused           bool   `json:"paused"`
	ActiveValidators int    `json:"activeValidators"`
	Quorum           int    `json:"quorum"`
	PendingTransfers uint64 `json:"pendingTransfers"`
}

// HealthCheck reports unhealthy when no confirmation can reach quorum.
func (c *Coordinator) HealthCheck(context.Context) (interface{}, error) {
	snapshot := c.validators.Snapshot()
	details := healthDetails{
		Paused:           c.Params().Paused,
		ActiveValidators: snapshot.Len(),
		Quorum:           snapshot.Quorum,
		PendingTransfers: c.registry.Stats().PendingCount,
	}
	if details.ActiveValidators < details.Quorum {
		return details, fmt.Errorf("%w: %d < %d", errQuorumUnreachable, details.ActiveValidators, details.Quorum)
	}
	return details, nil
}
