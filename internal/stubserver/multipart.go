package stubserver

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
)

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read part %s: %w", fh.Filename, err)
	}
	return data, nil
}

func jsonUnmarshal(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode data part: %w", err)
	}
	return nil
}
