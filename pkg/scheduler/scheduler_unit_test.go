package scheduler

import (
	"testing"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestContainsU32(t *testing.T) {
	assert.True(t, containsU32([]uint32{1, 2, 3}, 2))
	assert.False(t, containsU32([]uint32{1, 2, 3}, 9))
	assert.False(t, containsU32(nil, 1))
}

func TestQuotaExceeded(t *testing.T) {
	tests := []struct {
		name        string
		node        *types.QuotaNode
		uid, gid    uint32
		bookingSize uint64
		expected    bool
	}{
		{
			name: "no limit configured",
			node: &types.QuotaNode{
				UIDLimitBytes: map[uint32]uint64{},
				GIDLimitBytes: map[uint32]uint64{},
			},
			uid:         7,
			bookingSize: 1 << 30,
			expected:    false,
		},
		{
			name: "under uid limit",
			node: &types.QuotaNode{
				UIDLimitBytes: map[uint32]uint64{7: 1000},
				GIDLimitBytes: map[uint32]uint64{},
				ByUID:         map[uint32]*types.QuotaCounters{7: {PhysicalBytes: 500}},
			},
			uid:         7,
			bookingSize: 100,
			expected:    false,
		},
		{
			name: "booking pushes past uid limit",
			node: &types.QuotaNode{
				UIDLimitBytes: map[uint32]uint64{7: 1000},
				GIDLimitBytes: map[uint32]uint64{},
				ByUID:         map[uint32]*types.QuotaCounters{7: {PhysicalBytes: 950}},
			},
			uid:         7,
			bookingSize: 100,
			expected:    true,
		},
		{
			name: "booking pushes past gid limit",
			node: &types.QuotaNode{
				UIDLimitBytes: map[uint32]uint64{},
				GIDLimitBytes: map[uint32]uint64{3: 100},
				ByGID:         map[uint32]*types.QuotaCounters{3: {PhysicalBytes: 50}},
			},
			gid:         3,
			bookingSize: 100,
			expected:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, quotaExceeded(tt.node, tt.uid, tt.gid, tt.bookingSize))
		})
	}
}
