package elastic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

func encode(v interface{}) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("error encoding body: %w", err)
	}
	return &buf, nil
}
