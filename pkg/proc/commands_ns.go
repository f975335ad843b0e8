package proc

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

func (d *Dispatcher) cmdMkdir(ctx context.Context, id types.Identity, args Args) (Result, error) {
	p := args.Get("mgm.path")
	recursive := args.Get("mgm.option") == "p"
	mode := parseModeArg(args.Get("mgm.mkdir.mode"))
	c, err := d.store.CreateContainer(p, id.UID, id.GID, mode, recursive)
	if err != nil {
		return Result{}, err
	}
	return Result{Stdout: fmt.Sprintf("created %s (id=%d)", p, c.ID)}, nil
}

func (d *Dispatcher) cmdRmdir(ctx context.Context, id types.Identity, args Args) (Result, error) {
	p := args.Get("mgm.path")
	recursive := args.Get("mgm.option") == "r"
	if err := d.store.RemoveContainer(p, recursive); err != nil {
		return Result{}, err
	}
	return Result{Stdout: "removed " + p}, nil
}

// cmdCd validates that p exists and is a directory; the shell-style
// working directory itself is client-side state the CORE never holds.
func (d *Dispatcher) cmdCd(ctx context.Context, id types.Identity, args Args) (Result, error) {
	p := args.Get("mgm.path")
	if _, err := d.store.GetContainer(p); err != nil {
		return Result{}, err
	}
	return Result{Stdout: p}, nil
}

func (d *Dispatcher) cmdLs(ctx context.Context, id types.Identity, args Args) (Result, error) {
	p := args.Get("mgm.path")
	c, err := d.store.GetContainer(p)
	if err != nil {
		return Result{}, err
	}
	var b strings.Builder
	for _, name := range c.Children {
		fmt.Fprintf(&b, "d %s\n", name)
	}
	for _, name := range c.Files {
		f, err := d.store.GetFile(path.Join(p, name))
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "f %s size=%d\n", name, f.Size)
	}
	return Result{Stdout: b.String()}, nil
}

// cmdRm removes a file via the recycle-bin policy: the file is moved
// under namespace.RecycleRoot rather than unlinked outright, unless
// the caller passed "-f" to bypass the bin entirely (spec §2 item 8).
func (d *Dispatcher) cmdRm(ctx context.Context, id types.Identity, args Args) (Result, error) {
	p := args.Get("mgm.path")
	if args.Get("mgm.option") == "f" {
		if err := d.store.UnlinkFile(p); err != nil {
			return Result{}, err
		}
		return Result{Stdout: "removed " + p}, nil
	}
	if err := d.store.RecycleFile(p, id.UID); err != nil {
		return Result{}, err
	}
	return Result{Stdout: "recycled " + p}, nil
}

func (d *Dispatcher) cmdWhoami(ctx context.Context, id types.Identity, args Args) (Result, error) {
	return Result{Stdout: fmt.Sprintf("uid=%d gid=%d groups=%v auth=%s sudoer=%v", id.UID, id.GID, id.Groups, id.AuthMethod, id.Sudoer)}, nil
}

// cmdFind walks the subtree rooted at mgm.path, bounded by
// findDepthLimit for every caller regardless of privilege (spec §9
// Open Question, resolved in DESIGN.md): an unbounded recursive find
// is an availability risk the CORE must protect itself against.
func (d *Dispatcher) cmdFind(ctx context.Context, id types.Identity, args Args) (Result, error) {
	root := args.Get("mgm.path")
	var b strings.Builder
	if err := d.findWalk(root, 0, &b); err != nil {
		return Result{}, err
	}
	return Result{Stdout: b.String()}, nil
}

func (d *Dispatcher) findWalk(p string, depth int, b *strings.Builder) error {
	if depth > d.findDepthLimit {
		return mgmerr.New(mgmerr.Invalid, "find exceeded depth limit %d at %q", d.findDepthLimit, p)
	}
	c, err := d.store.GetContainer(p)
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "%s/\n", p)
	for _, name := range c.Files {
		fmt.Fprintf(b, "%s\n", path.Join(p, name))
	}
	for _, name := range c.Children {
		if err := d.findWalk(path.Join(p, name), depth+1, b); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) cmdFileinfo(ctx context.Context, id types.Identity, args Args) (Result, error) {
	p := args.Get("mgm.path")
	if c, err := d.store.GetContainer(p); err == nil {
		return Result{Stdout: fmt.Sprintf("id=%d kind=container uid=%d gid=%d mode=%o children=%d files=%d",
			c.ID, c.UID, c.GID, c.Mode, len(c.Children), len(c.Files))}, nil
	}
	f, err := d.store.GetFile(p)
	if err != nil {
		return Result{}, err
	}
	return Result{Stdout: fmt.Sprintf("id=%d kind=file uid=%d gid=%d size=%d layout=%d locations=%v",
		f.ID, f.UID, f.GID, f.Size, f.LayoutID, f.Locations)}, nil
}

func (d *Dispatcher) cmdAttr(ctx context.Context, id types.Identity, args Args) (Result, error) {
	p := args.Get("mgm.path")
	key := args.Get("mgm.attr.key")

	switch args.Get("mgm.subcmd") {
	case "set":
		val := args.Get("mgm.attr.value")
		if c, err := d.store.GetContainer(p); err == nil {
			c.Xattrs[key] = val
			return Result{Stdout: "set"}, d.store.UpdateContainer(c)
		}
		f, err := d.store.GetFile(p)
		if err != nil {
			return Result{}, err
		}
		f.Xattrs[key] = val
		return Result{Stdout: "set"}, d.store.UpdateFile(f)
	case "rm":
		if c, err := d.store.GetContainer(p); err == nil {
			delete(c.Xattrs, key)
			return Result{Stdout: "removed"}, d.store.UpdateContainer(c)
		}
		f, err := d.store.GetFile(p)
		if err != nil {
			return Result{}, err
		}
		delete(f.Xattrs, key)
		return Result{Stdout: "removed"}, d.store.UpdateFile(f)
	case "ls", "":
		xattrs, err := d.xattrsOf(p)
		if err != nil {
			return Result{}, err
		}
		var b strings.Builder
		for k, v := range xattrs {
			fmt.Fprintf(&b, "%s=%s\n", k, v)
		}
		return Result{Stdout: b.String()}, nil
	default:
		return Result{}, mgmerr.New(mgmerr.Invalid, "unknown attr subcommand")
	}
}

func (d *Dispatcher) xattrsOf(p string) (map[string]string, error) {
	if c, err := d.store.GetContainer(p); err == nil {
		return c.Xattrs, nil
	}
	f, err := d.store.GetFile(p)
	if err != nil {
		return nil, err
	}
	return f.Xattrs, nil
}

func (d *Dispatcher) cmdChmod(ctx context.Context, id types.Identity, args Args) (Result, error) {
	p := args.Get("mgm.path")
	mode := parseModeArg(args.Get("mgm.chmod.mode"))
	if c, err := d.store.GetContainer(p); err == nil {
		c.Mode = mode
		if err := d.store.UpdateContainer(c); err != nil {
			return Result{}, err
		}
		return Result{Stdout: fmt.Sprintf("chmod %o %s", mode, p)}, nil
	}
	return Result{}, mgmerr.New(mgmerr.Invalid, "chmod only applies to containers in this CORE")
}

func parseModeArg(s string) uint32 {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0755
	}
	return uint32(v)
}
