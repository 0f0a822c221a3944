package trainrt

import (
	"encoding/base64"
	"fmt"

	"github.com/w-garcia/nextvlad-go/internal/feature"
)

// wireTensor is how tensors travel over the runtime API: a shape plus the
// base64 of the little-endian float32 payload.
type wireTensor struct {
	Shape []int  `json:"shape"`
	Data  string `json:"data"`
}

func toWire(t *feature.Tensor) wireTensor {
	return wireTensor{
		Shape: t.Shape,
		Data:  base64.StdEncoding.EncodeToString(feature.EncodeFloats(t.Data)),
	}
}

func fromWire(w wireTensor) (*feature.Tensor, error) {
	raw, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return nil, fmt.Errorf("trainrt: decoding tensor payload: %w", err)
	}
	data, err := feature.DecodeFloats(raw)
	if err != nil {
		return nil, err
	}
	n := 1
	for _, d := range w.Shape {
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("trainrt: tensor shape %v wants %d values, payload has %d", w.Shape, n, len(data))
	}
	return &feature.Tensor{Shape: w.Shape, Data: data}, nil
}
