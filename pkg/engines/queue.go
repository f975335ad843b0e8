package engines

import "github.com/HaiboGNU/eos-sub000/pkg/types"

// enqueue appends job to q unless q is already at its bound (0 means
// unbounded), returning whether the job was accepted.
func enqueue(q *types.TransferQueue, job *types.TransferJob) bool {
	if q.Cap > 0 && len(q.Jobs) >= q.Cap {
		return false
	}
	q.Jobs = append(q.Jobs, job)
	return true
}

// hasFileJob reports whether q already carries a job for fileID, used
// to avoid queueing the same file twice while an earlier job is still
// outstanding.
func hasFileJob(q types.TransferQueue, fileID types.ID) bool {
	for _, j := range q.Jobs {
		if j.FileID == fileID {
			return true
		}
	}
	return false
}
