package types

import (
	"encoding/hex"
	"encoding/json"
)

// ScriptType identifies the type of locking script.
type ScriptType uint8

const (
	ScriptTypeP2PKH ScriptType = 0x01 // Pay to public key hash
	ScriptTypeP2SH  ScriptType = 0x02 // Pay to script hash
	ScriptTypeBurn  ScriptType = 0x11 // Unspendable, carries no address
	ScriptTypeData  ScriptType = 0x12 // Null-data output
)

// String returns a human-readable name for the script type.
func (st ScriptType) String() string {
	switch st {
	case ScriptTypeP2PKH:
		return "P2PKH"
	case ScriptTypeP2SH:
		return "P2SH"
	case ScriptTypeBurn:
		return "Burn"
	case ScriptTypeData:
		return "Data"
	default:
		return "Unknown"
	}
}

// Script defines the locking condition for an output.
type Script struct {
	Type ScriptType `json:"type"`
	Data []byte     `json:"data"`
}

// Address returns the address the script pays to, if it has one.
func (s Script) Address() (Address, bool) {
	switch s.Type {
	case ScriptTypeP2PKH, ScriptTypeP2SH:
		if len(s.Data) >= AddressSize {
			var addr Address
			copy(addr[:], s.Data[:AddressSize])
			return addr, true
		}
	}
	return Address{}, false
}

// Bytes returns the serialized script: type byte followed by data.
func (s Script) Bytes() []byte {
	out := make([]byte, 0, 1+len(s.Data))
	out = append(out, byte(s.Type))
	return append(out, s.Data...)
}

// Hex returns the hex encoding of Bytes.
func (s Script) Hex() string {
	return hex.EncodeToString(s.Bytes())
}

type scriptJSON struct {
	Type ScriptType `json:"type"`
	Data string     `json:"data"`
}

// MarshalJSON encodes the script with hex-encoded data.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(scriptJSON{
		Type: s.Type,
		Data: hex.EncodeToString(s.Data),
	})
}

// UnmarshalJSON decodes a script with hex-encoded data.
func (s *Script) UnmarshalJSON(data []byte) error {
	var j scriptJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	s.Type = j.Type
	s.Data = nil
	if j.Data != "" {
		b, err := hex.DecodeString(j.Data)
		if err != nil {
			return err
		}
		s.Data = b
	}
	return nil
}
