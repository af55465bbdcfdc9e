package codec

import "fmt"

const (
	batchOK     byte = 0
	batchFailed byte = 1
)

// BatchEntry is one file of a multi-file binary read.
type BatchEntry struct {
	OK      bool
	Stat    StatRecord
	Content []byte
}

// EncodeBatch frames entries in order. The content of each successful entry
// must be exactly Stat.Size bytes long.
func EncodeBatch(entries []BatchEntry) ([]byte, error) {
	var out []byte
	for i, e := range entries {
		if !e.OK {
			out = append(out, batchFailed)
			continue
		}
		if uint64(len(e.Content)) != e.Stat.Size {
			return nil, fmt.Errorf("entry %d: %w", i, ErrSizeMismatch)
		}
		out = append(out, batchOK)
		var err error
		if out, err = AppendBinary(out, e.Stat); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, e.Content...)
	}
	return out, nil
}

// DecodeBatch walks a framed buffer and returns its entries in order.
func DecodeBatch(buf []byte) ([]BatchEntry, error) {
	var entries []BatchEntry
	for pos := 0; pos < len(buf); {
		status := buf[pos]
		pos++

		switch status {
		case batchFailed:
			entries = append(entries, BatchEntry{})
			continue
		case batchOK:
		default:
			return nil, fmt.Errorf("codec: entry %d: unknown status byte %d", len(entries), status)
		}

		stat, n, err := DecodeBinary(buf[pos:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(entries), err)
		}
		pos += n

		if uint64(len(buf)-pos) < stat.Size {
			return nil, fmt.Errorf("entry %d: %w: content needs %d bytes, have %d", len(entries), ErrShortBuffer, stat.Size, len(buf)-pos)
		}
		end := pos + int(stat.Size)
		entries = append(entries, BatchEntry{OK: true, Stat: stat, Content: buf[pos:end]})
		pos = end
	}
	return entries, nil
}

// EncodeStatList frames stat records without content, one status byte per
// entry. It is the binary form of a directory listing.
func EncodeStatList(entries []BatchEntry) ([]byte, error) {
	var out []byte
	for i, e := range entries {
		if !e.OK {
			out = append(out, batchFailed)
			continue
		}
		out = append(out, batchOK)
		var err error
		if out, err = AppendBinary(out, e.Stat); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return out, nil
}

// DecodeStatList is the inverse of EncodeStatList.
func DecodeStatList(buf []byte) ([]BatchEntry, error) {
	var entries []BatchEntry
	for pos := 0; pos < len(buf); {
		status := buf[pos]
		pos++
		switch status {
		case batchFailed:
			entries = append(entries, BatchEntry{})
			continue
		case batchOK:
		default:
			return nil, fmt.Errorf("codec: entry %d: unknown status byte %d", len(entries), status)
		}
		stat, n, err := DecodeBinary(buf[pos:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(entries), err)
		}
		pos += n
		entries = append(entries, BatchEntry{OK: true, Stat: stat})
	}
	return entries, nil
}
