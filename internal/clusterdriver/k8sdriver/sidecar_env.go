package k8sdriver

import (
	"encoding/json"

	"github.com/flowmium-io/flowmium/internal/types"
)

func marshalInputs(in []types.InputRef) (string, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalOutputs(out []types.OutputRef) (string, error) {
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
