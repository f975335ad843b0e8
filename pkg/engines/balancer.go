package engines

import (
	"context"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/google/uuid"
)

// DefaultBalancerInterval is how often the balancer looks for
// deviation within each group.
const DefaultBalancerInterval = 30 * time.Second

// Balancer implements spec §4.9's intra-group balancer: within each
// group, a file system whose fill ratio exceeds the group average by
// more than the owning space's BalanceThreshold gets one file moved,
// per cycle, toward the group's least-filled eligible file system.
// Moving one file at a time (rather than computing a full transfer
// plan) mirrors the deletion dispatcher's bounded-per-tick design
// (spec §4.9, §9).
type Balancer struct {
	store *namespace.Store
	view  *clusterview.View
}

func NewBalancer(store *namespace.Store, view *clusterview.View) *Balancer {
	return &Balancer{store: store, view: view}
}

func (b *Balancer) Name() string            { return "balancer" }
func (b *Balancer) Interval() time.Duration { return DefaultBalancerInterval }

func (b *Balancer) RunOnce(ctx context.Context) error {
	for _, sp := range b.view.ListSpaces() {
		for _, groupName := range b.view.GroupsInSpace(sp.Name) {
			if err := b.balanceGroup(groupName, sp.BalanceThreshold); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Balancer) balanceGroup(groupName string, threshold float64) error {
	fsids := b.view.FileSystemsInGroup(groupName)
	if len(fsids) < 2 {
		return nil
	}

	var total float64
	members := make([]*types.FileSystem, 0, len(fsids))
	for _, id := range fsids {
		fs, err := b.view.FileSystem(id)
		if err != nil {
			continue
		}
		members = append(members, fs)
		total += fs.Filled
	}
	if len(members) < 2 {
		return nil
	}
	avg := total / float64(len(members))

	var source, target *types.FileSystem
	for _, fs := range members {
		if fs.Config != types.ConfigReadWrite || fs.Active != types.ActiveOnline {
			continue
		}
		if fs.Filled-avg > threshold && (source == nil || fs.Filled > source.Filled) {
			source = fs
		}
		if avg-fs.Filled > 0 && (target == nil || fs.Filled < target.Filled) {
			target = fs
		}
	}
	if source == nil || target == nil || source.ID == target.ID {
		return nil
	}

	fileID, ok := b.store.SampleLiveFile(source.ID)
	if !ok {
		return nil
	}

	job := &types.TransferJob{
		ID:        "balance-" + uuid.NewString(),
		FileID:    fileID,
		SourceFsID: source.ID,
		TargetFsID: target.ID,
		Kind:      types.TransferBalance,
		CreatedAt: time.Now(),
	}
	if hasFileJob(source.BalanceQueue, fileID) {
		return nil
	}
	if !enqueue(&source.BalanceQueue, job) {
		return nil
	}
	return b.view.UpsertFileSystem(source)
}
