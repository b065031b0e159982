package credstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrCorruptRecord is returned by [Decode] for records that cannot be parsed,
// including records written with an unknown schema version.
var ErrCorruptRecord = errors.New("corrupt credential record")

const maxTokenLen = 65535

// Encode serializes a stored credential into the versioned binary record
// format. The layout is version byte, stored-at and issued-at timestamps,
// then length-prefixed access and refresh tokens.
func Encode(rec *StoredCredential) ([]byte, error) {
	if len(rec.Pair.AccessToken) > maxTokenLen || len(rec.Pair.RefreshToken) > maxTokenLen {
		return nil, errors.New("token too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(RecordVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, rec.StoredAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.Pair.IssuedAt); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(rec.Pair.AccessToken))); err != nil {
		return nil, err
	}
	buf.WriteString(rec.Pair.AccessToken)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(rec.Pair.RefreshToken))); err != nil {
		return nil, err
	}
	buf.WriteString(rec.Pair.RefreshToken)

	return buf.Bytes(), nil
}

// Decode parses a binary record produced by [Encode]. Version 1 records are
// accepted and decode with an empty refresh token.
func Decode(data []byte) (*StoredCredential, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if version != RecordVersionCurrent && version != recordVersionV1 {
		return nil, ErrCorruptRecord
	}

	rec := &StoredCredential{SchemaVersion: version}

	if err := binary.Read(reader, binary.BigEndian, &rec.StoredAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.Pair.IssuedAt); err != nil {
		return nil, ErrCorruptRecord
	}

	access, err := readToken(reader)
	if err != nil {
		return nil, err
	}
	rec.Pair.AccessToken = access

	if version >= RecordVersionCurrent {
		refresh, err := readToken(reader)
		if err != nil {
			return nil, err
		}
		rec.Pair.RefreshToken = refresh
	}

	return rec, nil
}

func readToken(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", ErrCorruptRecord
	}
	tok := make([]byte, n)
	if _, err := io.ReadFull(reader, tok); err != nil {
		return "", ErrCorruptRecord
	}
	return string(tok), nil
}
