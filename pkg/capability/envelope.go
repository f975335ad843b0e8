package capability

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// MaxEnvelopeBytes is the hard cap on the signed wire form (spec §6:
// "the full signed string must not exceed 2048 bytes").
const MaxEnvelopeBytes = 2048

// encodeFields renders c's bindings (spec §3) as the unsigned
// key=value&-separated wire form, one entry per non-zero field plus a
// repeated mgm.url<i>/mgm.fsid<i>/mgm.localprefix<i> triple per
// replica (spec §6).
func encodeFields(c types.Capability) string {
	var b strings.Builder
	put := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	put("mgm.access", string(c.Access))
	put("mgm.lid", strconv.FormatUint(uint64(c.LayoutID), 10))
	put("mgm.ruid", strconv.FormatUint(uint64(c.RUID), 10))
	put("mgm.rgid", strconv.FormatUint(uint64(c.RGID), 10))
	put("mgm.uid", strconv.FormatUint(uint64(c.UID), 10))
	put("mgm.gid", strconv.FormatUint(uint64(c.GID), 10))
	put("mgm.path", c.Path)
	put("mgm.manager", c.Manager)
	put("mgm.fid", fmt.Sprintf("%x", c.FileID))
	put("mgm.bookingsize", strconv.FormatUint(c.BookingSize, 10))
	put("mgm.fsid", strconv.FormatUint(uint64(c.FsID), 10))
	put("mgm.localprefix", c.LocalPrefix)
	put("mgm.issued", strconv.FormatInt(c.IssuedAt.UnixNano(), 10))
	put("mgm.validity", strconv.FormatInt(int64(c.Validity), 10))

	for i, r := range c.URLs {
		put(fmt.Sprintf("mgm.url%d", i), fmt.Sprintf("root://%s:%d//", r.Host, r.Port))
		put(fmt.Sprintf("mgm.fsid%d", i), strconv.FormatUint(uint64(r.FsID), 10))
		put(fmt.Sprintf("mgm.localprefix%d", i), r.LocalPrefix)
	}

	return b.String()
}

// decodeFields is encodeFields' inverse, tolerant of fields being
// absent (a capability minted for a read has no mgm.bookingsize, for
// instance).
func decodeFields(s string) (types.Capability, error) {
	values, err := url.ParseQuery(s)
	if err != nil {
		return types.Capability{}, mgmerr.New(mgmerr.Invalid, "capability: malformed envelope: %v", err)
	}

	var c types.Capability
	c.Access = types.CapabilityAccess(values.Get("mgm.access"))
	c.LayoutID = parseUint32(values.Get("mgm.lid"))
	c.RUID = parseUint32(values.Get("mgm.ruid"))
	c.RGID = parseUint32(values.Get("mgm.rgid"))
	c.UID = parseUint32(values.Get("mgm.uid"))
	c.GID = parseUint32(values.Get("mgm.gid"))
	c.Path = values.Get("mgm.path")
	c.Manager = values.Get("mgm.manager")
	if fid, err := strconv.ParseUint(values.Get("mgm.fid"), 16, 64); err == nil {
		c.FileID = types.ID(fid)
	}
	c.BookingSize, _ = strconv.ParseUint(values.Get("mgm.bookingsize"), 10, 64)
	c.FsID = parseUint32(values.Get("mgm.fsid"))
	c.LocalPrefix = values.Get("mgm.localprefix")
	if nanos, err := strconv.ParseInt(values.Get("mgm.issued"), 10, 64); err == nil {
		c.IssuedAt = time.Unix(0, nanos)
	}
	if validity, err := strconv.ParseInt(values.Get("mgm.validity"), 10, 64); err == nil {
		c.Validity = time.Duration(validity)
	}

	for i := 0; ; i++ {
		urlKey := fmt.Sprintf("mgm.url%d", i)
		raw, ok := values[urlKey]
		if !ok || len(raw) == 0 {
			break
		}
		host, port := splitRootURL(raw[0])
		c.URLs = append(c.URLs, types.CapabilityReplica{
			FsID:        parseUint32(values.Get(fmt.Sprintf("mgm.fsid%d", i))),
			Host:        host,
			Port:        port,
			LocalPrefix: values.Get(fmt.Sprintf("mgm.localprefix%d", i)),
		})
	}

	return c, nil
}

func parseUint32(s string) uint32 {
	v, _ := strconv.ParseUint(s, 10, 32)
	return uint32(v)
}

// splitRootURL parses the "root://host:port//" form written by
// encodeFields back into its host and port.
func splitRootURL(s string) (string, int) {
	s = strings.TrimPrefix(s, "root://")
	s = strings.TrimSuffix(s, "//")
	host, portStr, found := strings.Cut(s, ":")
	if !found {
		return host, 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
