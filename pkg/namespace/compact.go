package namespace

import "github.com/HaiboGNU/eos-sub000/pkg/changelog"

// Compact rewrites both change logs, keeping only the newest record
// per id and dropping any id whose newest record is a remove, then
// reopens each log so subsequent appends land in the replacement file
// rather than the renamed-away original inode (spec §4.10: compaction
// is done by whichever process holds the master role, never a
// replica — the caller, pkg/engines' compactor, is responsible for
// only invoking this while leading).
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.containerLog.Close(); err != nil {
		return err
	}
	if err := changelog.Compact(s.containerLogPath, containerKey); err != nil {
		return err
	}
	cw, _, err := changelog.Open(s.containerLogPath)
	if err != nil {
		return err
	}
	s.containerLog = cw

	if err := s.fileLog.Close(); err != nil {
		return err
	}
	if err := changelog.Compact(s.fileLogPath, fileKey); err != nil {
		return err
	}
	fw, _, err := changelog.Open(s.fileLogPath)
	if err != nil {
		return err
	}
	s.fileLog = fw
	return nil
}

func containerKey(r changelog.Record) (uint64, bool) {
	c, err := decodeContainer(r.Payload)
	if err != nil {
		return 0, false
	}
	return uint64(c.ID), r.Tag == changelog.TagRemove
}

func fileKey(r changelog.Record) (uint64, bool) {
	f, err := decodeFile(r.Payload)
	if err != nil {
		return 0, false
	}
	return uint64(f.ID), r.Tag == changelog.TagRemove
}
