package batch

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/carson-networks/ingest-server/internal/apperror"
)

// readChunkSize is the unit in which uploads are pulled into memory.
const readChunkSize = 1 << 20 // 1 MiB

// ReadCapped streams src fully into memory in bounded chunks. The moment the
// accumulated size exceeds maxBytes it aborts with FileTooLarge carrying the
// configured limit; no partial buffer is returned. Buffering fully in memory
// is intentional: validation needs the complete content before anything is
// durably written, and raw unvalidated bytes never touch disk.
func ReadCapped(src io.Reader, maxBytes int64) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	var total int64

	for {
		n, err := src.Read(chunk)
		if n > 0 {
			total += int64(n)
			if total > maxBytes {
				return nil, apperror.New(apperror.KindFileTooLarge, fmt.Sprintf("limit %d bytes", maxBytes))
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading upload")
		}
	}

	return buf.Bytes(), nil
}
