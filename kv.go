package goat

import (
	"sort"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/joeycumines/go-goat/wire"
)

// internalHeaderPrefix marks adapter-owned header entries: the adapter
// appends user headers after any adapter-owned headers, so indices
// beyond the adapter-owned prefix are stable across a round trip -
// callers that need an adapter-owned entry use SetInternalHeader instead
// of writing directly into a metadata.MD, so it always lands before user
// headers in the wire list.
const internalHeaderPrefix = "x-goat-"

// MethodName formats a full gRPC-style method path from a service and
// method name, matching the "/<service>/<method>" shape an envelope's
// header.method expects.
func MethodName(service, method string) string {
	var b strings.Builder
	b.Grow(len(service) + len(method) + 2)
	b.WriteByte('/')
	b.WriteString(service)
	b.WriteByte('/')
	b.WriteString(method)
	return b.String()
}

// headersToKV flattens md into a []wire.KeyValue, lowercasing keys per gRPC
// metadata semantics (metadata.MD already stores lowercase keys). Go map
// iteration order is randomized, so keys are sorted to get a deterministic
// wire order; adapter-owned (x-goat- prefixed) entries sort first, which
// gives the adapter-owned prefix its round-trip stability.
func headersToKV(md metadata.MD) []wire.KeyValue {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ki, kj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		iInternal := strings.HasPrefix(ki, internalHeaderPrefix)
		jInternal := strings.HasPrefix(kj, internalHeaderPrefix)
		if iInternal != jInternal {
			return iInternal
		}
		return ki < kj
	})
	var kv []wire.KeyValue
	for _, k := range keys {
		for _, v := range md[k] {
			kv = append(kv, wire.KeyValue{Key: strings.ToLower(k), Value: v})
		}
	}
	return kv
}

// kvToHeaders reconstructs a metadata.MD from a wire key-value list. A nil
// or empty list yields an empty, non-nil bag.
func kvToHeaders(kv []wire.KeyValue) metadata.MD {
	md := make(metadata.MD, len(kv))
	for _, e := range kv {
		md.Append(e.Key, e.Value)
	}
	return md
}

// SetInternalHeader returns md with an adapter-owned, x-goat- prefixed
// header entry set, replacing any prior value for key.
func SetInternalHeader(md metadata.MD, key, value string) metadata.MD {
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(internalHeaderPrefix+key, value)
	return md
}

// GetInternalHeader returns the value of an adapter-owned header previously
// set with SetInternalHeader, if present.
func GetInternalHeader(header *wire.Header, key string) (string, bool) {
	if header == nil {
		return "", false
	}
	full := internalHeaderPrefix + key
	for _, kv := range header.Headers {
		if strings.EqualFold(kv.Key, full) {
			return kv.Value, true
		}
	}
	return "", false
}

// trailerMetadata extracts the KeyValue list from a possibly-nil trailer.
func trailerMetadata(t *wire.Trailer) []wire.KeyValue {
	if t == nil {
		return nil
	}
	return t.Metadata
}

// headerHeaders extracts the KeyValue list from a possibly-nil header.
func headerHeaders(h *wire.Header) []wire.KeyValue {
	if h == nil {
		return nil
	}
	return h.Headers
}
