package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketFileSystems = []byte("filesystems")
	bucketNodes       = []byte("nodes")
	bucketGroups      = []byte("groups")
	bucketSpaces      = []byte("spaces")
)

// Store implements Backend using bbolt, following the teacher's
// one-bucket-per-entity-kind layout and JSON value encoding
// (pkg/storage/boltdb.go in the teacher repo).
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the cluster-view database under
// dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "clusterview.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketFileSystems, bucketNodes, bucketGroups, bucketSpaces} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) PutFileSystem(fs *types.FileSystem) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(fs)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketFileSystems).Put(fsKey(fs.ID), data)
	})
}

func (s *Store) GetFileSystem(id uint32) (*types.FileSystem, error) {
	var fs types.FileSystem
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFileSystems).Get(fsKey(id))
		if data == nil {
			return fmt.Errorf("file system not found: %d", id)
		}
		return json.Unmarshal(data, &fs)
	})
	if err != nil {
		return nil, err
	}
	return &fs, nil
}

func (s *Store) ListFileSystems() ([]*types.FileSystem, error) {
	var out []*types.FileSystem
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFileSystems).ForEach(func(k, v []byte) error {
			var fs types.FileSystem
			if err := json.Unmarshal(v, &fs); err != nil {
				return err
			}
			out = append(out, &fs)
			return nil
		})
	})
	return out, err
}

func (s *Store) DeleteFileSystem(id uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFileSystems).Delete(fsKey(id))
	})
}

func (s *Store) PutNode(n *types.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNodes).Put([]byte(n.Name), data)
	})
}

func (s *Store) GetNode(name string) (*types.Node, error) {
	var n types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNodes).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("node not found: %s", name)
		}
		return json.Unmarshal(data, &n)
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) ListNodes() ([]*types.Node, error) {
	var out []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var n types.Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			out = append(out, &n)
			return nil
		})
	})
	return out, err
}

func (s *Store) DeleteNode(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Delete([]byte(name))
	})
}

func (s *Store) PutGroup(g *types.Group) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(g)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketGroups).Put([]byte(g.Name), data)
	})
}

func (s *Store) GetGroup(name string) (*types.Group, error) {
	var g types.Group
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketGroups).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("group not found: %s", name)
		}
		return json.Unmarshal(data, &g)
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) ListGroups() ([]*types.Group, error) {
	var out []*types.Group
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGroups).ForEach(func(k, v []byte) error {
			var g types.Group
			if err := json.Unmarshal(v, &g); err != nil {
				return err
			}
			out = append(out, &g)
			return nil
		})
	})
	return out, err
}

func (s *Store) DeleteGroup(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGroups).Delete([]byte(name))
	})
}

func (s *Store) PutSpace(sp *types.Space) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(sp)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSpaces).Put([]byte(sp.Name), data)
	})
}

func (s *Store) GetSpace(name string) (*types.Space, error) {
	var sp types.Space
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSpaces).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("space not found: %s", name)
		}
		return json.Unmarshal(data, &sp)
	})
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *Store) ListSpaces() ([]*types.Space, error) {
	var out []*types.Space
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSpaces).ForEach(func(k, v []byte) error {
			var sp types.Space
			if err := json.Unmarshal(v, &sp); err != nil {
				return err
			}
			out = append(out, &sp)
			return nil
		})
	})
	return out, err
}

func (s *Store) DeleteSpace(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSpaces).Delete([]byte(name))
	})
}

func fsKey(id uint32) []byte {
	return []byte(strconv.FormatUint(uint64(id), 10))
}
