package wire

import (
	"bytes"
	"encoding/binary"
	"sort"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/actornet/actornet/node"
)

// Handshake frames carry the set of application interface signatures the
// advertised actor implements. The set is encoded as a uvarint count
// followed by uvarint-length-prefixed UTF-8 strings, sorted, so the
// encoding is canonical.

func MarshalSignatures(sigs []string) ([]byte, error) {
	sorted := append([]string(nil), sigs...)
	sort.Strings(sorted)
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(sorted)))
	buf.Write(tmp[:n])
	for i, s := range sorted {
		if !utf8.ValidString(s) {
			return nil, errors.Errorf("wire: signature #%d is not valid UTF-8", i)
		}
		n := binary.PutUvarint(tmp[:], uint64(len(s)))
		buf.Write(tmp[:n])
		buf.WriteString(s)
	}
	return buf.Bytes(), nil
}

func UnmarshalSignatures(payload []byte) ([]string, error) {
	r := bytes.NewReader(payload)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(err, "wire: cannot read signature count")
	}
	if count > uint64(len(payload)) {
		return nil, errors.Errorf("wire: implausible signature count %d", count)
	}
	sigs := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		slen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, errors.Wrapf(err, "wire: cannot read signature #%d length", i)
		}
		if slen > uint64(r.Len()) {
			return nil, errors.Errorf("wire: signature #%d length %d exceeds remaining payload", i, slen)
		}
		b := make([]byte, slen)
		if _, err := r.Read(b); err != nil {
			return nil, errors.Wrapf(err, "wire: cannot read signature #%d", i)
		}
		sigs = append(sigs, string(b))
	}
	if r.Len() != 0 {
		return nil, errors.New("wire: unexpected data trailing after last signature")
	}
	return sigs, nil
}

// SignatureSubset reports whether every signature in expected is present
// in reported. Both slices may be unsorted.
func SignatureSubset(expected, reported []string) bool {
	have := make(map[string]struct{}, len(reported))
	for _, s := range reported {
		have[s] = struct{}{}
	}
	for _, s := range expected {
		if _, ok := have[s]; !ok {
			return false
		}
	}
	return true
}

// Bounced requests receive a synthetic error reply whose payload encodes
// the exit reason plus a human-readable message.

func MarshalError(reason node.Reason, msg string) []byte {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(reason))
	buf.Write(tmp[:n])
	n = binary.PutUvarint(tmp[:], uint64(len(msg)))
	buf.Write(tmp[:n])
	buf.WriteString(msg)
	return buf.Bytes()
}

func UnmarshalError(payload []byte) (node.Reason, string, error) {
	r := bytes.NewReader(payload)
	reason, err := binary.ReadUvarint(r)
	if err != nil {
		return node.ReasonNotExited, "", errors.Wrap(err, "wire: cannot read error reason")
	}
	mlen, err := binary.ReadUvarint(r)
	if err != nil {
		return node.ReasonNotExited, "", errors.Wrap(err, "wire: cannot read error message length")
	}
	if mlen > uint64(r.Len()) {
		return node.ReasonNotExited, "", errors.New("wire: error message length exceeds payload")
	}
	b := make([]byte, mlen)
	if _, err := r.Read(b); err != nil {
		return node.ReasonNotExited, "", err
	}
	return node.Reason(reason), string(b), nil
}
