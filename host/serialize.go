package host

import (
	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/object"
	"github.com/wippyai/contract-host/scval"
	"github.com/wippyai/contract-host/val"
)

// SerializeToBytes encodes v in the wire format under the host's wire limits.
func (h *Host) SerializeToBytes(v val.Val) ([]byte, error) {
	sc, err := h.ToScVal(v)
	if err != nil {
		return nil, err
	}
	data, err := scval.Marshal(sc, h.limits.Wire)
	if err != nil {
		return nil, err
	}
	if err := h.charge(budget.ValSer, uint64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

// DeserializeFromBytes decodes one wire value and converts it to a Val.
func (h *Host) DeserializeFromBytes(data []byte) (val.Val, error) {
	if err := h.charge(budget.ValDeser, uint64(len(data))); err != nil {
		return 0, err
	}
	sc, err := scval.Unmarshal(data, h.limits.Wire)
	if err != nil {
		return 0, err
	}
	return h.FromScVal(sc)
}

// SerializeToBytesObject is SerializeToBytes returning a byte object.
func (h *Host) SerializeToBytesObject(v val.Val) (val.Val, error) {
	data, err := h.SerializeToBytes(v)
	if err != nil {
		return 0, err
	}
	return h.add(object.Bytes(data))
}

// DeserializeFromBytesObject decodes the contents of a byte object.
func (h *Host) DeserializeFromBytesObject(b val.Val) (val.Val, error) {
	data, err := get[object.Bytes](h, b)
	if err != nil {
		return 0, err
	}
	return h.DeserializeFromBytes(data)
}
